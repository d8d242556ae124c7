// Package continuous implements the continuous-mode engine of spec.md
// §4.8: an independent scan-synchronous loop over a small active-target
// list, driving commanded motion through the trajectory engine and
// summing per-channel stimulus waveforms into the chair's commanded
// velocity and expected position.
//
// Grounded on the teacher's bots/wrangler runtime load/unload idiom: a
// small set of "active" entities that can be added or removed while the
// engine keeps running, as opposed to the trial engine's fixed,
// preassembled target list.
package continuous

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cxlab/cxdriver/cxerr"
	"github.com/cxlab/cxdriver/trajectory"
	"github.com/cxlab/cxdriver/trial"
)

// WaveKind identifies a stimulus-channel waveform generator (spec.md
// §4.8).
type WaveKind int

const (
	WaveSine WaveKind = iota
	WaveTrapezoid
)

// Channel is one stimulus-channel waveform configuration.
type Channel struct {
	Kind WaveKind

	// Sine parameters.
	Amplitude float64
	Period    float64 // T, seconds
	Phase     float64
	Cycles    int // N

	// Trapezoid parameters.
	RampDur float64 // R, seconds
	HoldDur float64 // D, seconds

	StartOffset float64 // channel's start time within the duty cycle, seconds
}

// Evaluate returns (v, p) at elapsed time tau since the channel's start
// offset within the current duty cycle (spec.md §4.8).
func (c Channel) Evaluate(tau float64) (v, p float64) {
	tau -= c.StartOffset
	if tau < 0 {
		return 0, 0
	}
	switch c.Kind {
	case WaveSine:
		return c.evalSine(tau)
	case WaveTrapezoid:
		return c.evalTrapezoid(tau)
	}
	return 0, 0
}

func (c Channel) evalSine(tau float64) (v, p float64) {
	window := float64(c.Cycles) * c.Period
	if tau > window {
		return 0, 0
	}
	omega := 2 * math.Pi / c.Period
	v = c.Amplitude * math.Sin(omega*tau+c.Phase)
	// Closed-form integral of A*sin(w*tau+phi) dtau from 0 to tau:
	// -(A/w)*(cos(w*tau+phi) - cos(phi))
	p = -(c.Amplitude / omega) * (math.Cos(omega*tau+c.Phase) - math.Cos(c.Phase))
	return v, p
}

func (c Channel) evalTrapezoid(tau float64) (v, p float64) {
	R, D, A := c.RampDur, c.HoldDur, c.Amplitude
	switch {
	case tau < R:
		// Ramp up: v rises linearly 0 -> A.
		v = A * tau / R
		p = A * tau * tau / (2 * R)
	case tau < R+D:
		t2 := tau - R
		v = A
		p = A*R/2 + A*t2
	case tau < 2*R+D:
		t3 := tau - R - D
		v = A * (1 - t3/R)
		p = A*R/2 + A*D + A*t3 - A*t3*t3/(2*R)
	default:
		v = 0
		p = A * (R + D)
	}
	return v, p
}

// Chair is the narrow contract continuous mode drives for the commanded
// stimulus; the chair device implements its own drift compensation given
// (command velocity, expected position, measured position).
type Chair interface {
	UpdateChair(cmdVelDegPerSec, measuredPosDeg, expectedPosDeg float64) error
}

// ActiveTarget is one entry in the continuous-mode active-target list
// (spec.md §4.8 "C9 owns this").
type ActiveTarget struct {
	Target trial.Target
	State  *trajectory.State // single-target trajectory state, index 0
}

// Engine runs the continuous-mode loop.
type Engine struct {
	chair    Chair
	channels []Channel

	targets []ActiveTarget

	recording  bool
	fixating   bool
	stimulating bool

	elapsed float64 // seconds since duty-cycle start

	fixCheckIntvMs int
	graceMs        int
}

// NewEngine builds an Engine with no active targets and no stimulus
// channels configured.
func NewEngine(chair Chair, fixCheckIntvMs, graceMs int) *Engine {
	return &Engine{chair: chair, fixCheckIntvMs: fixCheckIntvMs, graceMs: graceMs}
}

// SetChannels replaces the stimulus-channel set.
func (e *Engine) SetChannels(channels []Channel) {
	e.channels = channels
}

// Targets returns the current active-target list, for callers (the
// display pipeline, the continuous-mode fixation check) that need to read
// target state without mutating it.
func (e *Engine) Targets() []ActiveTarget {
	return e.targets
}

// ReplaceTargets performs a wholesale active-target-list replacement,
// rejected while recording/fixating/stimulating is active (spec.md
// §4.8). Callers are expected to follow a successful replacement with a
// display target (re)load and animation-timeline restart.
func (e *Engine) ReplaceTargets(targets []ActiveTarget) error {
	if e.recording || e.fixating || e.stimulating {
		return cxerr.ProtocolError("continuous: wholesale target replacement rejected while recording, fixating, or stimulating")
	}
	e.targets = targets
	return nil
}

// EditTarget applies a single-target edit (position/speed/direction/
// on-off), accepted at any time (spec.md §4.8).
func (e *Engine) EditTarget(idx int, mutate func(*ActiveTarget)) error {
	if idx < 0 || idx >= len(e.targets) {
		return cxerr.ProtocolError("continuous: target index out of range")
	}
	mutate(&e.targets[idx])
	return nil
}

// SetFlags marks whether recording/fixation/stimulation is currently
// active, gating ReplaceTargets.
func (e *Engine) SetFlags(recording, fixating, stimulating bool) {
	e.recording, e.fixating, e.stimulating = recording, fixating, stimulating
}

// Tick advances all active targets' trajectory state by dT, sums the
// configured stimulus channels' contribution at the current duty-cycle
// elapsed time, and drives the chair (spec.md §4.8).
func (e *Engine) Tick(dT float64, measuredPosDeg, expectedPosDegPrev float64) error {
	for i := range e.targets {
		e.targets[i].State.Step(dT)
	}

	var cmdVel, expectedDelta float64
	for _, ch := range e.channels {
		v, p := ch.Evaluate(e.elapsed)
		cmdVel += v
		expectedDelta += p
	}
	e.elapsed += dT

	expectedPos := expectedPosDegPrev + expectedDelta*dT
	if err := e.chair.UpdateChair(cmdVel, measuredPosDeg, expectedPos); err != nil {
		return cxerr.RuntimeAbort("continuous: chair update failed: " + err.Error())
	}
	return nil
}

// ResetDutyCycle restarts the elapsed-time clock at the start of a new
// duty cycle, so channel StartOffsets are measured afresh.
func (e *Engine) ResetDutyCycle() {
	e.elapsed = 0
}

// FixationOK implements the independent continuous-mode fixation check
// (spec.md §4.8): when both Fix1 and Fix2 are defined, both must be
// satisfied simultaneously.
func FixationOK(eye trial.Vec2, fix1, fix2 trial.Vec2, hasFix1, hasFix2 bool, accuracy trial.Vec2) bool {
	within := func(target trial.Vec2) bool {
		return math.Abs(eye.H-target.H) <= accuracy.H && math.Abs(eye.V-target.V) <= accuracy.V
	}
	switch {
	case hasFix1 && hasFix2:
		return within(fix1) && within(fix2)
	case hasFix1:
		return within(fix1)
	case hasFix2:
		return within(fix2)
	default:
		return true
	}
}

// sumVec is a small helper retained for components that want a
// vectorized sum across active-target contributions (e.g., combined
// chair load from several overlapping channels) using the same
// gonum.org/v1/gonum/mat machinery trajectory uses, rather than a bespoke
// accumulator type.
func sumVec(vs []*mat.VecDense) *mat.VecDense {
	if len(vs) == 0 {
		return nil
	}
	out := mat.NewVecDense(vs[0].Len(), nil)
	for _, v := range vs {
		out.AddVec(out, v)
	}
	return out
}
