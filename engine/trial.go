package engine

import (
	"context"

	"github.com/cxlab/cxdriver/cxerr"
	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/display"
	"github.com/cxlab/cxdriver/fixation"
	"github.com/cxlab/cxdriver/record"
	"github.com/cxlab/cxdriver/syncmark"
	"github.com/cxlab/cxdriver/trajectory"
	"github.com/cxlab/cxdriver/trial"
)

// aiFullScaleVolts is the bench assumption for converting a raw int16 AI
// sample to volts for the response-pushbutton and R/P-distro checks; the
// legacy board's actual full-scale range was not recovered in the
// distillation.
const aiFullScaleVolts = 10.0

// skipOnSaccadeWarpTicks is the fixed tick delta a skip-on-saccade time
// warp advances the trajectory and display lead buffer by. The legacy
// source's actual warp length was not recovered; this value is a
// placeholder.
const skipOnSaccadeWarpTicks = 10

func voltsFromRaw(raw int16) float64 {
	return float64(raw) / 32768.0 * aiFullScaleVolts
}

// TrialSession composes the trial interpreter with the trajectory,
// display, fixation, recording, and sync-marker engines into one
// per-tick unit, implementing spec.md §5's tick ordering: unload AI,
// trajectory step, recording push, display publish, fixation check,
// mid-trial reward, marker emission, response check, then tick advance.
type TrialSession struct {
	Trial *trial.Trial

	traj     *trajectory.State
	pipeline *display.Pipeline
	fix      *fixation.Engine
	rec      *record.Writer
	sync     *syncmark.Writer

	ai   device.AI
	dio  device.DIO
	eye  device.EyeTracker
	disp device.RemoteDisplay

	dT float64

	tick            int
	lastSegmentTick int

	prevWindowPos  []trial.Vec2
	prevPatternPos []trial.Vec2

	eyeRing    *trajectory.EyeRing
	prevEyeAvg trial.Vec2

	mtrCountdown int

	rewardWHVR   int
	audioPulseMs int

	slowBuf []int16
	fastBuf []int16
	maskBuf []uint32
	timeBuf []uint32
}

// NewTrialSession builds a TrialSession for t, priming the display
// pipeline and sync-marker stream and applying tick 0's codes.
func NewTrialSession(t *trial.Trial, disp device.RemoteDisplay, ai device.AI, dio device.DIO, eye device.EyeTracker, rec *record.Writer, sm *syncmark.Writer, recPath string, dT, framePeriod float64, dupTolerance, eyeSmoothingWindow, rewardWHVR, audioPulseMs int) (*TrialSession, error) {
	n := len(t.Targets)
	ts := &TrialSession{
		Trial:          t,
		traj:           trajectory.NewState(n),
		pipeline:       display.NewPipeline(disp, n, framePeriod, dT, dupTolerance),
		fix:            fixation.New(),
		rec:            rec,
		sync:           sm,
		ai:             ai,
		dio:            dio,
		eye:            eye,
		disp:           disp,
		dT:             dT,
		lastSegmentTick: -1,
		prevWindowPos:  make([]trial.Vec2, n),
		prevPatternPos: make([]trial.Vec2, n),
		eyeRing:        trajectory.NewEyeRing(256),
		rewardWHVR:     rewardWHVR,
		audioPulseMs:   audioPulseMs,
		slowBuf:        make([]int16, 64),
		fastBuf:        make([]int16, 1),
		maskBuf:        make([]uint32, 64),
		timeBuf:        make([]uint32, 64),
	}
	ts.eyeRing.SetWindow(eyeSmoothingWindow)

	targetDefs := make([]device.TargetDef, n)
	for i, tgt := range t.Targets {
		targetDefs[i] = device.TargetDef{Kind: int(tgt.Subkind), Flags: uint32(tgt.Flags)}
	}
	if err := ts.pipeline.Start(targetDefs, false); err != nil {
		return nil, err
	}
	if ts.sync != nil {
		ts.sync.Start(recPath, rec != nil)
	}
	if err := t.ApplyTick(0); err != nil {
		return nil, err
	}
	ts.enterSegmentIfNeeded()
	return ts, nil
}

// fixPos returns target idx's current window position, or the zero
// vector if idx is trial.NoFix or out of range.
func (ts *TrialSession) fixPos(idx int) trial.Vec2 {
	if idx == trial.NoFix || idx < 0 || idx >= len(ts.Trial.Targets) {
		return trial.Vec2{}
	}
	return ts.traj.Pos(idx)
}

// searchBounds derives the search special op's exit rectangle from the
// display's visual-angle subtense (spec.md §4.6 "exiting the search
// bounds ends the task unrewarded").
func (ts *TrialSession) searchBounds() trial.Vec2 {
	if ts.disp == nil {
		return trial.Vec2{H: 20, V: 20}
	}
	halfW := ts.disp.ScreenWidthDeg() / 2
	halfH := halfW * float64(ts.disp.ScreenHeightPix()) / float64(max1(ts.disp.ScreenWidthPix()))
	return trial.Vec2{H: halfW, V: halfH}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// enterSegmentIfNeeded applies segment-entry trajectory overwrites and
// resets the fixation engine's cross-tick state when ApplyTick has just
// opened a new segment. It also resolves the previous segment's
// end-of-segment mid-trial reward here, the first point at which it is
// known the previous segment truly ended rather than merely being
// mid-flight (spec.md §4.6 "except the final segment").
func (ts *TrialSession) enterSegmentIfNeeded() {
	seg := ts.Trial.CurrentSegment()
	if seg.StartTick == ts.lastSegmentTick {
		return
	}

	if ts.lastSegmentTick >= 0 && len(ts.Trial.Segments) >= 2 {
		prev := ts.Trial.Segments[len(ts.Trial.Segments)-2]
		tickInSegment := ts.tick - prev.StartTick
		if fixation.MidTrialRewardDue(prev, &ts.mtrCountdown, tickInSegment, false, true) {
			ts.deliverMidTrialReward(prev)
		}
	}

	ts.lastSegmentTick = seg.StartTick
	ts.fix.Reset()
	ts.mtrCountdown = seg.MTRPeriodicTicks

	for i, tgt := range ts.Trial.Targets {
		if !seg.On[i] {
			continue
		}
		patWRT := tgt.Flags&trial.FlagPatternWRTScreen != 0
		ts.traj.EnterSegment(i, seg.Absolute[i], seg.PosChange[i], seg.Velocity[i], seg.Accel[i], seg.PatVelocity[i], seg.PatAccel[i], patWRT)
		ts.prevWindowPos[i] = ts.traj.Pos(i)
		ts.prevPatternPos[i] = ts.traj.PatPos(i)
	}
}

func (ts *TrialSession) deliverMidTrialReward(seg *trial.Segment) {
	delivered := ts.dio.DeliverReward(ts.rewardWHVR, ts.Trial.RewardPulseMs[0], ts.audioPulseMs)
	if delivered {
		ts.Trial.Result |= trial.ResultRewardEarned | trial.ResultRewardGiven
	}
}

// sampleVolts reads channel idx's most recently unloaded slow-channel
// sample as volts, or 0 if idx is out of range.
func (ts *TrialSession) sampleVolts(idx int) float64 {
	if idx < 0 || idx >= len(ts.slowBuf) {
		return 0
	}
	return voltsFromRaw(ts.slowBuf[idx])
}

// Tick runs one scan-synchronous tick of the trial (spec.md §5). It
// returns the trial's terminal reason, which is TerminalNone while still
// running.
func (ts *TrialSession) Tick(ctx context.Context) (trial.Terminal, error) {
	if ts.Trial.Done() || ts.Trial.Terminal() != trial.TerminalNone {
		return ts.Trial.Terminal(), nil
	}

	// unload AI
	nSlow, nFast, ok := ts.ai.Unload(ctx, ts.slowBuf, ts.fastBuf, false)
	if !ok {
		ts.Trial.Abort(trial.TerminalError)
		return ts.Trial.Terminal(), cxerr.RuntimeAbort("trial: AI unload failed")
	}
	nEvt := ts.dio.UnloadEvents(ts.maskBuf, ts.timeBuf)

	var eyeNow, eyeVelNow trial.Vec2
	if ts.eye != nil {
		sample, _, haveEye := ts.eye.GetNextSample(false)
		if haveEye {
			eyeNow = eyePos(sample)
			eyeVelNow = eyeVel(sample)
		}
	}
	eyeAvg := ts.eyeRing.Push(eyeNow)

	seg := ts.Trial.CurrentSegment()

	// trajectory step
	for i := range ts.Trial.Targets {
		if !seg.On[i] {
			continue
		}
		if seg.Perturb[i].Active {
			ts.traj.Perturb(i, seg.Perturb[i], ts.tick, sinPerturber{dT: ts.dT})
		}
		if seg.VStab[i]&trial.VStabOn != 0 {
			trajectory.ApplyVStab(ts.traj, i, seg.VStab[i], eyeAvg, ts.prevEyeAvg, seg.PosChange[i])
		}
	}
	ts.traj.Step(ts.dT)
	ts.prevEyeAvg = eyeAvg

	// recording push
	if ts.rec != nil {
		ts.rec.StreamAnalog(ts.slowBuf[:nSlow], ts.fastBuf[:nFast])
		if nEvt > 0 {
			ts.rec.StreamEvents(ts.maskBuf[:nEvt], ts.timeBuf[:nEvt])
		}
	}

	// publish display frame
	cells := make([]display.Cell, len(ts.Trial.Targets))
	for i := range ts.Trial.Targets {
		windowPos := ts.traj.Pos(i)
		patPos := ts.traj.PatPos(i)
		cells[i] = display.Cell{
			On: seg.On[i],
			WindowDelta: device.FrameRecord{
				HWin: windowPos.H - ts.prevWindowPos[i].H,
				VWin: windowPos.V - ts.prevWindowPos[i].V,
			},
			PatternDelta: device.FrameRecord{
				HPat: patPos.H - ts.prevPatternPos[i].H,
				VPat: patPos.V - ts.prevPatternPos[i].V,
			},
		}
		ts.prevWindowPos[i] = windowPos
		ts.prevPatternPos[i] = patPos
		if seg.Perturb[i].Active {
			ts.traj.UndoPerturb(i)
		}
	}
	ts.pipeline.Accumulate(cells)
	if ts.pipeline.ReadyToShip() {
		if err := ts.pipeline.Ship(seg.SyncFlash); err != nil {
			if cxerr.IsDuplicateFrame(err) {
				ts.Trial.Abort(trial.TerminalDupFrame)
			} else {
				ts.Trial.Abort(trial.TerminalError)
			}
			return ts.Trial.Terminal(), err
		}
	}

	// fixation check
	outcome := ts.checkFixation(seg, eyeNow, eyeVelNow)
	if outcome.LostFix {
		ts.dio.ClearFixationStatus()
		if ts.sync != nil {
			ts.sync.LostFix()
		}
		ts.Trial.Abort(trial.TerminalLostFix)
		return ts.Trial.Terminal(), nil
	}
	ts.applyOutcome(outcome)

	// mid-trial reward (periodic mode; end-of-segment mode resolves in
	// enterSegmentIfNeeded once the boundary is known)
	if seg.MidTrialReward && seg.MTRPeriodicTicks > 0 {
		if fixation.MidTrialRewardDue(seg, &ts.mtrCountdown, ts.tick-seg.StartTick, false, false) {
			ts.deliverMidTrialReward(seg)
		}
	}

	// marker emission
	if outcome.Marker6 {
		ts.dio.TriggerMarkers(1 << 6)
	}
	if seg.PulseOn && seg.MarkerChannel >= 0 {
		ts.dio.TriggerMarkers(1 << uint(seg.MarkerChannel))
	}

	// response check
	if seg.CheckResponEnabled {
		cv := ts.sampleVolts(seg.RespCorrectChan)
		iv := ts.sampleVolts(seg.RespIncorrectChan)
		if responded, correct := fixation.ResponseCheck(cv, iv); responded {
			if correct {
				ts.Trial.Result |= trial.ResultRewardEarned
			} else {
				seg.CheckResponEnabled = false
			}
		}
	}

	// IPC poll happens in the caller's loop, between ticks, per spec.md
	// §6 "outside time-critical inner sections".

	// tick advance
	ts.tick++
	if err := ts.Trial.ApplyTick(ts.tick); err != nil {
		ts.Trial.Abort(trial.TerminalError)
		return ts.Trial.Terminal(), err
	}
	ts.enterSegmentIfNeeded()

	return ts.Trial.Terminal(), nil
}

// checkFixation dispatches the per-tick gaze check according to the
// current segment's special operation (spec.md §4.6).
func (ts *TrialSession) checkFixation(seg *trial.Segment, eyeNow, eyeVelNow trial.Vec2) fixation.Outcome {
	switch seg.SpecialOp {
	case trial.SpecialOpSkipOnSaccade:
		saccadic := fixation.Saccade(eyeVelNow, seg.SaccadeThreshold)
		out := ts.fix.SkipOnSaccade(saccadic)
		if out.SkipWarpNow {
			ts.pipeline.SkipOnSaccade(skipOnSaccadeWarpTicks)
		}
		return out

	case trial.SpecialOpSelectByFix:
		return ts.fix.SelectByFix(eyeNow, ts.fixPos(seg.Fix1), ts.fixPos(seg.Fix2), seg.AccuracyDeg, trial.Vec2{}, false, false)

	case trial.SpecialOpSelectByFix2:
		return ts.fix.SelectByFix(eyeNow, ts.fixPos(seg.Fix1), ts.fixPos(seg.Fix2), seg.AccuracyDeg, trial.Vec2{}, true, false)

	case trial.SpecialOpSelectDurationByFix:
		out := ts.fix.SelectByFix(eyeNow, ts.fixPos(seg.Fix1), ts.fixPos(seg.Fix2), seg.AccuracyDeg, trial.Vec2{}, false, false)
		if out.SpecialDone {
			fixation.SelectDurationByFix(out.SelectedFix, seg)
		}
		return out

	case trial.SpecialOpChooseFix1:
		out, _ := ts.fix.ChooseFix(eyeNow, ts.fixPos(seg.Fix1), seg.AccuracyDeg, false)
		return out

	case trial.SpecialOpChooseFix2:
		out, _ := ts.fix.ChooseFix(eyeNow, ts.fixPos(seg.Fix2), seg.AccuracyDeg, false)
		return out

	case trial.SpecialOpSwitchFix:
		return ts.fix.SwitchFix(eyeNow, ts.fixPos(seg.Fix1), ts.fixPos(seg.Fix2), seg.AccuracyDeg)

	case trial.SpecialOpRPDistro:
		ts.fix.AccumulateRPD(eyeVelNow.H)
		return fixation.Outcome{}

	case trial.SpecialOpSearch:
		bounds := ts.searchBounds()
		return ts.fix.Search(eyeNow, ts.fixPos(seg.Fix1), ts.fixPos(seg.Fix2), ts.fixPos(seg.Fix2), seg.AccuracyDeg, bounds, 1, seg.Fix2 != trial.NoFix)

	default:
		if seg.Fix1 == trial.NoFix {
			return fixation.Outcome{}
		}
		return ts.fix.NormalCheck(seg, eyeNow, ts.fixPos(seg.Fix1))
	}
}

// applyOutcome folds a non-LOSTFIX fixation outcome into the trial's
// reward delivery and result flags.
func (ts *TrialSession) applyOutcome(outcome fixation.Outcome) {
	if outcome.DeliverReward[0] {
		if ts.dio.DeliverReward(ts.rewardWHVR, ts.Trial.RewardPulseMs[0], ts.audioPulseMs) {
			ts.Trial.Result |= trial.ResultRewardEarned | trial.ResultRewardGiven
		}
	}
	if outcome.DeliverReward[1] {
		if ts.dio.DeliverReward(ts.rewardWHVR, ts.Trial.RewardPulseMs[1], ts.audioPulseMs) {
			ts.Trial.Result |= trial.ResultRewardEarned | trial.ResultRewardGiven
		}
	}
	switch outcome.SelectedFix {
	case 1:
		ts.Trial.Result |= trial.ResultFix1Selected
	case 2:
		ts.Trial.Result |= trial.ResultFix2Selected
	}
	if outcome.EndSelected {
		ts.Trial.Result |= trial.ResultEndSelected
	}
}

// Close writes the closing sync-stream sentinels matching how the trial
// ended (when a sync writer is set), closes the attached recording (if
// any), saving or discarding it, and tears down the display animation.
func (ts *TrialSession) Close(saveRecording bool) error {
	if ts.sync != nil {
		switch ts.Trial.Terminal() {
		case trial.TerminalAbortedByUser, trial.TerminalError, trial.TerminalDupFrame, trial.TerminalEyelinkError:
			ts.sync.Abort()
		}
		ts.sync.Stop()
		if saveRecording {
			ts.sync.DataSaved()
		}
	}
	if ts.rec != nil {
		if err := ts.rec.Close(saveRecording); err != nil {
			return err
		}
	}
	return ts.pipeline.Stop()
}
