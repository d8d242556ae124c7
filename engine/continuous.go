package engine

import (
	"github.com/cxlab/cxdriver/continuous"
	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/display"
	"github.com/cxlab/cxdriver/trial"
)

// ContinuousSession composes the continuous-mode engine with a display
// pipeline and the independent fixation check of spec.md §4.8. Unlike
// TrialSession it has no code-stream interpreter: targets and stimulus
// channels are authored directly by the mailbox commands that built it.
type ContinuousSession struct {
	Engine   *continuous.Engine
	pipeline *display.Pipeline
	eye      device.EyeTracker

	fix1, fix2         int
	hasFix1, hasFix2   bool
	fixating           bool
	fixationAccuracy   trial.Vec2

	prevWindowPos []trial.Vec2
	measuredPos   float64
	expectedPos   float64
}

// NewContinuousSession builds a ContinuousSession and primes the display
// pipeline with the given active targets.
func NewContinuousSession(eng *continuous.Engine, disp device.RemoteDisplay, eye device.EyeTracker, targets []continuous.ActiveTarget, dT, framePeriod float64, dupTolerance int) (*ContinuousSession, error) {
	defs := make([]device.TargetDef, len(targets))
	for i, at := range targets {
		defs[i] = device.TargetDef{Kind: int(at.Target.Subkind), Flags: uint32(at.Target.Flags)}
	}
	cs := &ContinuousSession{
		Engine:        eng,
		pipeline:      display.NewPipeline(disp, len(targets), framePeriod, dT, dupTolerance),
		eye:           eye,
		fix1:          trial.NoFix,
		fix2:          trial.NoFix,
		prevWindowPos: make([]trial.Vec2, len(targets)),
	}
	if err := cs.pipeline.Start(defs, false); err != nil {
		return nil, err
	}
	return cs, nil
}

// SetFixTargets installs the continuous-mode fixation designations
// (spec.md §4.8, mailbox command UPD_FIX_TGTS).
func (cs *ContinuousSession) SetFixTargets(fix1, fix2 int, hasFix1, hasFix2 bool, accuracy trial.Vec2) {
	cs.fix1, cs.fix2 = fix1, fix2
	cs.hasFix1, cs.hasFix2 = hasFix1, hasFix2
	cs.fixationAccuracy = accuracy
}

// SetFixating toggles whether the fixation check gates FixationOK this
// tick (mailbox commands FIX_ON/FIX_OFF).
func (cs *ContinuousSession) SetFixating(on bool) {
	cs.fixating = on
}

// Tick advances the continuous engine and display pipeline by one tick
// and reports whether fixation is currently satisfied (always true while
// fixation checking is off).
func (cs *ContinuousSession) Tick(dT float64) (fixOK bool, err error) {
	if err := cs.Engine.Tick(dT, cs.measuredPos, cs.expectedPos); err != nil {
		return false, err
	}

	targets := cs.activeTargets()
	if len(targets) != len(cs.prevWindowPos) {
		cs.prevWindowPos = make([]trial.Vec2, len(targets))
	}
	cells := make([]display.Cell, len(targets))
	for i, at := range targets {
		pos := at.State.Pos(0)
		cells[i] = display.Cell{
			On: true,
			WindowDelta: device.FrameRecord{
				HWin: pos.H - cs.prevWindowPos[i].H,
				VWin: pos.V - cs.prevWindowPos[i].V,
			},
		}
		cs.prevWindowPos[i] = pos
	}
	cs.pipeline.Accumulate(cells)
	if cs.pipeline.ReadyToShip() {
		if err := cs.pipeline.Ship(false); err != nil {
			return false, err
		}
	}

	if !cs.fixating || cs.eye == nil {
		return true, nil
	}
	sample, _, haveEye := cs.eye.GetNextSample(false)
	if !haveEye {
		return true, nil
	}
	eye := eyePos(sample)
	var fix1Pos, fix2Pos trial.Vec2
	if cs.hasFix1 {
		fix1Pos = cs.activeTargetPos(cs.fix1)
	}
	if cs.hasFix2 {
		fix2Pos = cs.activeTargetPos(cs.fix2)
	}
	return continuous.FixationOK(eye, fix1Pos, fix2Pos, cs.hasFix1, cs.hasFix2, cs.fixationAccuracy), nil
}

func (cs *ContinuousSession) activeTargets() []continuous.ActiveTarget {
	return cs.Engine.Targets()
}

func (cs *ContinuousSession) activeTargetPos(idx int) trial.Vec2 {
	targets := cs.activeTargets()
	if idx < 0 || idx >= len(targets) {
		return trial.Vec2{}
	}
	return targets[idx].State.Pos(0)
}

// Close stops the display animation.
func (cs *ContinuousSession) Close() error {
	return cs.pipeline.Stop()
}
