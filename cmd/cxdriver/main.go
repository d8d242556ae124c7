// Command cxdriver is the engine process: it brings up the scan scheduler,
// the mode controller, the IPC mailbox, and the bench reference device
// backends, then services mailbox commands and scan ticks until told to
// quit.
//
// Grounded on the teacher's gopher2600.go main/launch split: a thin main()
// that parses flags and calls run(), which does the real work and returns
// an exit status, so os.Exit is called only from main() rather than from
// deep in the call stack.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cxlab/cxdriver/beep"
	"github.com/cxlab/cxdriver/continuous"
	"github.com/cxlab/cxdriver/control"
	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/device/simai"
	"github.com/cxlab/cxdriver/device/simdio"
	"github.com/cxlab/cxdriver/diagnostics"
	"github.com/cxlab/cxdriver/engine"
	"github.com/cxlab/cxdriver/instance"
	"github.com/cxlab/cxdriver/logger"
	"github.com/cxlab/cxdriver/mailbox"
	"github.com/cxlab/cxdriver/media"
	"github.com/cxlab/cxdriver/rdispsim"
	"github.com/cxlab/cxdriver/record"
	"github.com/cxlab/cxdriver/sched"
	"github.com/cxlab/cxdriver/syncmark"
	"github.com/cxlab/cxdriver/trial"
	"github.com/cxlab/cxdriver/tunables"
)

// continuousFixCheckIntervalMs is the continuous-mode fixation-check
// polling period; unlike the trial engine's scan-synchronous check, this
// has no dedicated tunable, since the bench continuous engine does not
// yet vary it.
const continuousFixCheckIntervalMs = 10

func main() {
	var (
		scanUs       int
		dutyLength   int
		recordDir    string
		mediaDir     string
		dashAddr     string
		snapAddr     string
		rewardFreqHz float64
		windowW      int
		windowH      int
		noRawAbort   bool
	)

	flag.IntVar(&scanUs, "scanus", 1000, "analog scan interval in microseconds")
	flag.IntVar(&dutyLength, "dutylen", 0, "stimulus duty-cycle tick modulus (0 disables)")
	flag.StringVar(&recordDir, "recorddir", ".", "directory for recording stream files")
	flag.StringVar(&mediaDir, "mediadir", ".", "root directory for the stimulus media library")
	flag.StringVar(&dashAddr, "dashaddr", ":18066", "diagnostics runtime-stats HTTP address")
	flag.StringVar(&snapAddr, "snapaddr", ":18067", "diagnostics snapshot JSON HTTP address")
	flag.Float64Var(&rewardFreqHz, "rewardhz", 1000, "reward tone frequency in Hz")
	flag.IntVar(&windowW, "windoww", 800, "remote-display simulator window width in pixels")
	flag.IntVar(&windowH, "windowh", 600, "remote-display simulator window height in pixels")
	flag.BoolVar(&noRawAbort, "norawabort", false, "disable raw-mode 'q'-to-quit console handling")
	flag.Parse()

	exitVal := run(scanUs, dutyLength, recordDir, mediaDir, dashAddr, snapAddr, rewardFreqHz, windowW, windowH, noRawAbort)
	os.Exit(exitVal)
}

// tickSource adapts *sched.Scheduler to random.TickSource.
type tickSource struct {
	sc *sched.Scheduler
}

func (t tickSource) CurrentTick() int64 { return t.sc.ElapsedTicks() }

// deviceStarter adapts the bench reference AI/DIO backends to
// control.DeviceStarter.
type deviceStarter struct {
	ai  *simai.Sim
	dio *audioDIO
}

func (d *deviceStarter) StartAI() error {
	if err := d.ai.Configure(4, 1000, -1, true); err != nil {
		return err
	}
	return d.ai.Start()
}

func (d *deviceStarter) StartDIO() error {
	if err := d.dio.Configure(10, 0xffff); err != nil {
		return err
	}
	return d.dio.Start()
}

func (d *deviceStarter) StopAll() {
	d.ai.Stop()
	d.dio.Stop()
}

// audioDIO wraps the bench DIO simulator so a delivered reward's
// audioLenMs plays an actual tone on the host speakers — the one place
// spec.md's "audio pulse length" setting (carried end to end by
// device.DIO.DeliverReward) has an audible effect in the bench harness.
type audioDIO struct {
	*simdio.Sim
	player *beep.Player
	freqHz float64
}

func (a *audioDIO) DeliverReward(whvr int, pulseLenMs, audioLenMs int) bool {
	delivered := a.Sim.DeliverReward(whvr, pulseLenMs, audioLenMs)
	if delivered && a.player != nil && audioLenMs > 0 {
		_ = a.player.Play(beep.Tone(audioLenMs, a.freqHz, a.player.SampleRate()))
	}
	return delivered
}

func run(scanUs, dutyLength int, recordDir, mediaDir, dashAddr, snapAddr string, rewardFreqHz float64, windowW, windowH int, noRawAbort bool) int {
	sc := sched.NewScheduler(time.Duration(scanUs)*time.Microsecond, dutyLength)
	suspend := sched.NewSuspendManager(sched.DutyCycle{OnMs: 1, OffMs: 19})

	ins := instance.NewInstance(tickSource{sc}, 4096)

	ai := simai.New(func(channel, scan int) int16 { return 0 })
	ai.InstallISR(func(any) { sc.OnInterrupt(time.Now()) }, nil)

	ins.Log.Logf(logger.Allow, "cxdriver", "recording directory: %s", recordDir)

	player, err := beep.NewPlayer(44100, ins.Log)
	if err != nil {
		ins.Log.Logf(logger.Allow, "cxdriver", "audio device unavailable: %v", err)
		player = nil
	} else {
		defer player.Close()
	}
	dio := &audioDIO{Sim: simdio.New(), player: player, freqHz: rewardFreqHz}

	devices := &deviceStarter{ai: ai, dio: dio}
	ctrl := control.NewController(devices, ins.Tunables, suspend, sc, ins.Log)

	if err := ctrl.Startup(); err != nil {
		fmt.Fprintf(os.Stderr, "cxdriver: startup failed: %v\n", err)
		return 1
	}
	defer ctrl.Shutdown()

	var rd device.RemoteDisplay
	disp, err := rdispsim.New("cxdriver remote display", windowW, windowH, float64(scanUs)/1e6, ins.Log)
	if err != nil {
		ins.Log.Logf(logger.Allow, "cxdriver", "remote-display simulator unavailable: %v", err)
	} else {
		defer disp.Close()
		rd = disp
	}

	lib, err := media.NewLibrary(mediaDir)
	if err != nil {
		ins.Log.Logf(logger.Allow, "cxdriver", "media library unavailable: %v", err)
	}

	box := mailbox.NewMailbox(256)
	release := box.HoldAlive()
	defer release()

	eyeFeed := engine.NewMailboxEyeFeed(box, device.Binocular)

	dash := diagnostics.NewDashboard(dashAddr, snapAddr, &snapshotSource{sc: sc, ctrl: ctrl})
	dash.Start()
	defer dash.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanTicker := time.NewTicker(time.Duration(scanUs) * time.Microsecond)
	defer scanTicker.Stop()
	go func() {
		for {
			select {
			case <-scanTicker.C:
				ai.Tick()
			case <-ctx.Done():
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	abortCh := make(chan struct{})
	if !noRawAbort {
		term, err := newRawTerm(os.Stdin)
		if err != nil {
			ins.Log.Logf(logger.Allow, "cxdriver", "raw-mode console unavailable: %v", err)
		} else {
			defer term.restore()
			go term.watchForQuit(abortCh)
		}
	}

	go func() {
		select {
		case <-sigCh:
			fmt.Print("\r")
			cancel()
		case <-abortCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Println("cxdriver running; press 'q' or Ctrl-C to quit")

	d := &driver{
		ctrl:      ctrl,
		lib:       lib,
		box:       box,
		sc:        sc,
		ins:       ins,
		ai:        ai,
		dio:       dio,
		disp:      rd,
		eye:       eyeFeed,
		recordDir: recordDir,
	}

	exitVal := 0
loop:
	for {
		if ctx.Err() != nil {
			break loop
		}
		sc.WaitForInterrupt(ctx)
		if ctx.Err() != nil {
			break loop
		}
		suspend.Hold()

		d.tick(ctx)

		if req, ok := box.Poll(); ok {
			box.Reply(d.handle(req))
		}

		if ctrl.ShuttingDown() {
			exitVal = 20
			break loop
		}
	}

	if d.activeTrial != nil {
		d.activeTrial.Close(false)
	}
	if d.activeContinuous != nil {
		d.activeContinuous.Close()
	}

	return exitVal
}

// snapshotSource adapts the running engine state to
// diagnostics.Source.
type snapshotSource struct {
	sc   *sched.Scheduler
	ctrl *control.Controller
}

func (s *snapshotSource) DiagnosticsSnapshot() diagnostics.Snapshot {
	return diagnostics.Snapshot{
		Mode: s.ctrl.Mode().String(),
	}
}

// driver holds every piece of running state handleCommand and the per-tick
// loop need: the mode controller, the bench devices, and whichever trial
// or continuous session is currently active. At most one of activeTrial
// and activeContinuous is non-nil at a time.
type driver struct {
	ctrl      *control.Controller
	lib       *media.Library
	box       *mailbox.Mailbox
	sc        *sched.Scheduler
	ins       *instance.Instance
	ai        device.AI
	dio       device.DIO
	disp      device.RemoteDisplay
	eye       device.EyeTracker
	recordDir string

	activeTrial         *engine.TrialSession
	activeContinuous    *engine.ContinuousSession
	activeRecording     *record.Writer
	activeRecordingPath string
}

// tick drives whichever session is currently active through one
// scan-synchronous tick (spec.md §5), outside time-critical sections of
// the mailbox poll that follows.
func (d *driver) tick(ctx context.Context) {
	switch {
	case d.activeTrial != nil:
		term, err := d.activeTrial.Tick(ctx)
		if err != nil {
			d.ins.Log.Logf(logger.Allow, "cxdriver", "trial tick error: %v", err)
		}
		if term != trial.TerminalNone {
			saved := term == trial.TerminalCompleted
			if cerr := d.activeTrial.Close(saved); cerr != nil {
				d.ins.Log.Logf(logger.Allow, "cxdriver", "trial close error: %v", cerr)
			}
			result := d.activeTrial.Trial.Result
			d.ins.Log.Logf(logger.Allow, "cxdriver", "trial finished: terminal=%v result=%#x", term, result)
			d.activeTrial = nil
			d.ctrl.TrialCompleted()
		}

	case d.activeContinuous != nil && d.ctrl.Mode() == control.ContinuousActive:
		snap := d.ins.Tunables.Current()
		dT := snap.Scan(tunables.ModeContinuous).Seconds()
		if _, err := d.activeContinuous.Tick(dT); err != nil {
			d.ins.Log.Logf(logger.Allow, "cxdriver", "continuous tick error: %v", err)
			d.ctrl.HandleFailure(err)
			d.activeContinuous.Close()
			d.activeContinuous = nil
		}
	}
}

func (d *driver) handle(req mailbox.Request) mailbox.Response {
	switch req.Cmd {
	case mailbox.CmdSwitchMode:
		next, ok := req.Payload.(control.Mode)
		if !ok {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		d.ctrl.SwitchMode(next)
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdTrStart:
		return d.handleTrStart(req)

	case mailbox.CmdTrAbort:
		return d.handleTrAbort()

	case mailbox.CmdRecOn:
		return d.handleRecOn(req)

	case mailbox.CmdRecOff:
		return d.handleRecOff()

	case mailbox.CmdFixRewSettings:
		return d.handleFixRewSettings(req)

	case mailbox.CmdInitTrace:
		return d.handleInitTrace(req)

	case mailbox.CmdInitEvtStream:
		return d.handleInitEvtStream(req)

	case mailbox.CmdRunStart:
		return d.handleRunStart(req)

	case mailbox.CmdRunStop:
		return d.handleRunStop()

	case mailbox.CmdFixOn:
		if d.activeContinuous != nil {
			d.activeContinuous.SetFixating(true)
		}
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdFixOff:
		if d.activeContinuous != nil {
			d.activeContinuous.SetFixating(false)
		}
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdUpdFixTgts:
		tgt, ok := req.Payload.(engine.FixTargetsRequest)
		if !ok || d.activeContinuous == nil {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		snap := d.ins.Tunables.Current()
		accuracy := trial.Vec2{H: snap.FixationAccuracyDeg[0], V: snap.FixationAccuracyDeg[1]}
		d.activeContinuous.SetFixTargets(tgt.Fix1, tgt.Fix2, tgt.HasFix1, tgt.HasFix2, accuracy)
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdUpdActiveTgt:
		edit, ok := req.Payload.(engine.ActiveTargetEditRequest)
		if !ok || d.activeContinuous == nil {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		if err := d.activeContinuous.Engine.EditTarget(edit.Index, func(at *continuous.ActiveTarget) {
			at.State.EnterSegment(0, true, edit.Pos, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)
		}); err != nil {
			return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
		}
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdMediaListFolders:
		return handleMediaList(d.lib, req, d.lib.ListFolders)

	case mailbox.CmdMediaListFiles:
		return handleMediaList(d.lib, req, d.lib.ListFiles)

	case mailbox.CmdMediaFileInfo:
		path, ok := req.Payload.(media.FileRequest)
		if !ok || d.lib == nil {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		info, err := d.lib.FileInfo(path.Path)
		if err != nil {
			return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
		}
		return mailbox.Response{Status: mailbox.StatusOK, Payload: info}

	case mailbox.CmdMediaDelete:
		path, ok := req.Payload.(media.FileRequest)
		if !ok || d.lib == nil {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		if err := d.lib.Delete(path.Path); err != nil {
			return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
		}
		return mailbox.Response{Status: mailbox.StatusOK}

	case mailbox.CmdMediaUpload:
		up, ok := req.Payload.(media.UploadRequest)
		if !ok || d.lib == nil {
			return mailbox.Response{Status: mailbox.StatusError}
		}
		if err := d.lib.Upload(up.Path, bytes.NewReader(up.Data)); err != nil {
			return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
		}
		return mailbox.Response{Status: mailbox.StatusOK}

	default:
		return mailbox.Response{Status: mailbox.StatusUnrecognized}
	}
}

// handleTrStart builds a fresh TrialSession from a materialized target
// list and code stream and starts it running (spec.md §4.3 TR_START).
func (d *driver) handleTrStart(req mailbox.Request) mailbox.Response {
	start, ok := req.Payload.(engine.TrStartRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	if d.activeTrial != nil || d.disp == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}

	snap := d.ins.Tunables.Current()
	t := trial.NewTrial(start.Targets, start.Codes)

	var rec *record.Writer
	var recPath string
	var sm *syncmark.Writer
	if d.activeRecording != nil {
		rec = d.activeRecording
		recPath = d.activeRecordingPath
	}
	sm = syncmark.NewWriter(d.dio, syncmark.DefaultMarkerBit, snap.MarkerPulseSpacing)

	dT := snap.Scan(tunables.ModeTrialDuring).Seconds()
	ts, err := engine.NewTrialSession(t, d.disp, d.ai, d.dio, d.eye, rec, sm, recPath, dT, d.disp.FramePeriod(), snap.DuplicateFrameTolerance, snap.EyeSmoothingWindow, snap.WithholdVariableRatio, snap.AudioPulseMs)
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	d.activeTrial = ts
	d.ctrl.SwitchMode(control.Trial)
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleTrAbort terminates the active trial immediately as a user abort
// (spec.md §4.3 TR_ABORT).
func (d *driver) handleTrAbort() mailbox.Response {
	if d.activeTrial == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	d.activeTrial.Trial.Abort(trial.TerminalAbortedByUser)
	d.activeTrial.Close(false)
	d.activeTrial = nil
	d.ctrl.TrialCompleted()
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleRecOn opens the recording stream writer that TR_START attaches to
// the next trial (spec.md §4.7).
func (d *driver) handleRecOn(req mailbox.Request) mailbox.Response {
	rr, ok := req.Payload.(engine.RecordRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	path := rr.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.recordDir, path)
	}
	w, err := record.Open(path, 4, rr.HasSpike)
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	d.activeRecording = w
	d.activeRecordingPath = path
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleRecOff closes the recording stream opened by CmdRecOn, keeping
// its file.
func (d *driver) handleRecOff() mailbox.Response {
	if d.activeRecording == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	err := d.activeRecording.Close(true)
	d.activeRecording = nil
	d.activeRecordingPath = ""
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleFixRewSettings publishes a new tunables snapshot from the subset
// of settings FIX_REW_SETTINGS carries (spec.md §4.2).
func (d *driver) handleFixRewSettings(req mailbox.Request) mailbox.Response {
	fr, ok := req.Payload.(engine.FixRewSettingsRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	cur := d.ins.Tunables.Current()
	next := *cur
	next.RewardPulseMs = fr.RewardPulseMs
	next.WithholdVariableRatio = fr.WithholdVariableRatio
	next.AudioPulseMs = fr.AudioPulseMs
	next.FixationAccuracyDeg = fr.FixationAccuracyDeg
	next.GraceDuration = time.Duration(fr.GraceDurationMs) * time.Millisecond
	next.SaccadeVelocityThreshold = fr.SaccadeVelocityThreshold
	next.EyeSmoothingWindow = fr.EyeSmoothingWindow
	d.ins.Tunables.Publish(&next)
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleInitTrace reconfigures the AI board for the channel count and
// scan rate the upcoming trial's recorded trace needs (spec.md §6).
func (d *driver) handleInitTrace(req mailbox.Request) mailbox.Response {
	it, ok := req.Payload.(engine.InitTraceRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	if err := d.ai.Configure(it.NChannels, it.ScanUs, it.SpikeChannel, true); err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleInitEvtStream reconfigures the DIO event capture (spec.md §6).
func (d *driver) handleInitEvtStream(req mailbox.Request) mailbox.Response {
	ie, ok := req.Payload.(engine.InitEvtStreamRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	if err := d.dio.Configure(ie.ClockUs, ie.EnabledInputMask); err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleRunStart builds a fresh ContinuousSession from an active-target
// and stimulus-channel list (spec.md §4.8 RUN_START).
func (d *driver) handleRunStart(req mailbox.Request) mailbox.Response {
	rs, ok := req.Payload.(engine.RunStartRequest)
	if !ok {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	if d.activeContinuous != nil || d.disp == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}

	snap := d.ins.Tunables.Current()
	chair := &chairAO{dio: d.dio}
	ce := continuous.NewEngine(chair, continuousFixCheckIntervalMs, int(snap.GraceDuration.Milliseconds()))
	if err := ce.ReplaceTargets(rs.Targets); err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	ce.SetChannels(rs.Channels)

	dT := snap.Scan(tunables.ModeContinuous).Seconds()
	cs, err := engine.NewContinuousSession(ce, d.disp, d.eye, rs.Targets, dT, d.disp.FramePeriod(), snap.DuplicateFrameTolerance)
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	d.activeContinuous = cs
	d.ctrl.SwitchMode(control.ContinuousActive)
	return mailbox.Response{Status: mailbox.StatusOK}
}

// handleRunStop tears down the active ContinuousSession (spec.md §4.8
// RUN_STOP).
func (d *driver) handleRunStop() mailbox.Response {
	if d.activeContinuous == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	err := d.activeContinuous.Close()
	d.activeContinuous = nil
	d.ctrl.SwitchMode(control.ContinuousBetween)
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	return mailbox.Response{Status: mailbox.StatusOK}
}

// chairAO adapts the bench DIO simulator's analog-output stand-in to
// continuous.Chair. The reference harness has no real chair AO device, so
// UpdateChair accepts the commanded velocity, drives nothing, logs
// nothing, and reports success — a bench placeholder for the real ChairAO
// hardware (see DESIGN.md).
type chairAO struct {
	dio device.DIO
}

func (c *chairAO) UpdateChair(cmdVelDegPerSec, measuredPosDeg, expectedPosDeg float64) error {
	return nil
}

// handleMediaList dispatches a listing request through list, generic over
// ListFolders' and ListFiles' differing result element types.
func handleMediaList[T any](lib *media.Library, req mailbox.Request, list func(string) ([]T, error)) mailbox.Response {
	path, ok := req.Payload.(media.ListRequest)
	if !ok || lib == nil {
		return mailbox.Response{Status: mailbox.StatusError}
	}
	entries, err := list(path.Path)
	if err != nil {
		return mailbox.Response{Status: mailbox.StatusError, Payload: err.Error()}
	}
	return mailbox.Response{Status: mailbox.StatusOK, Payload: entries}
}
