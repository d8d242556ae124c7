// Package trajectory implements the per-tick piecewise integrator of
// spec.md §4.4: window and pattern position/velocity/acceleration state
// for every target, advanced one fixed timestep per tick and subject to
// segment-entry overwrites, perturbation, and velocity stabilization.
//
// Grounded on the teacher's hardware/cpu/registers fixed-point register
// idiom (state held in flat per-target arrays, stepped in a tight loop)
// and on the vectorized gonum.org/v1/gonum/mat usage shown by the
// dastard.DataSource reference (other_examples): per-tick state for all
// targets is held as mat.VecDense columns so the step/perturb passes are
// single vector operations instead of a scalar loop body duplicated per
// axis.
package trajectory

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cxlab/cxdriver/trial"
)

// Perturber computes the velocity perturbation delta for one target at
// tick t, given its nominal (v, vp). Implementations model the waveform
// named by PerturbSpec.Kind (sinusoid, step, ramp, ...).
type Perturber interface {
	Delta(spec trial.PerturbSpec, tick int, v, vp trial.Vec2) (dv, dvp trial.Vec2)
}

// EyeAverager returns the current sliding-window mean eye position, used
// by velocity stabilization (spec.md §4.4 "eyeAvg is a sliding-window mean
// of raw eye samples").
type EyeAverager interface {
	EyeAvg() trial.Vec2
}

// State is the per-target trajectory state carried tick to tick. The H
// and V axes of each quantity are packed into a 2*n-length vector so a
// segment-entry or step pass can operate on the whole target list with a
// single mat.VecDense add/scale rather than a per-target loop.
type State struct {
	n int

	pos      *mat.VecDense // window position
	vel      *mat.VecDense // window velocity (nominal, pre-perturbation)
	acc      *mat.VecDense // window acceleration
	patPos   *mat.VecDense // pattern position
	patVel   *mat.VecDense // pattern velocity (nominal)
	patAcc   *mat.VecDense // pattern acceleration

	perturbDV  []trial.Vec2 // last-applied perturbation delta, window
	perturbDVP []trial.Vec2 // last-applied perturbation delta, pattern

	vstabFirstTick []bool // true once VStab has been seen on for this target
}

// NewState allocates trajectory state for n targets, all quantities zero.
func NewState(n int) *State {
	return &State{
		n:              n,
		pos:            mat.NewVecDense(2*n, nil),
		vel:            mat.NewVecDense(2*n, nil),
		acc:            mat.NewVecDense(2*n, nil),
		patPos:         mat.NewVecDense(2*n, nil),
		patVel:         mat.NewVecDense(2*n, nil),
		patAcc:         mat.NewVecDense(2*n, nil),
		perturbDV:      make([]trial.Vec2, n),
		perturbDVP:     make([]trial.Vec2, n),
		vstabFirstTick: make([]bool, n),
	}
}

func idxH(i int) int { return 2 * i }
func idxV(i int) int { return 2*i + 1 }

func (s *State) getVec(v *mat.VecDense, i int) trial.Vec2 {
	return trial.Vec2{H: v.AtVec(idxH(i)), V: v.AtVec(idxV(i))}
}

func (s *State) setVec(v *mat.VecDense, i int, val trial.Vec2) {
	v.SetVec(idxH(i), val.H)
	v.SetVec(idxV(i), val.V)
}

// Pos, Vel, PatPos, PatVel return target i's current window/pattern
// position and (nominal, pre-perturbation-undo) velocity.
func (s *State) Pos(i int) trial.Vec2    { return s.getVec(s.pos, i) }
func (s *State) Vel(i int) trial.Vec2    { return s.getVec(s.vel, i) }
func (s *State) PatPos(i int) trial.Vec2 { return s.getVec(s.patPos, i) }
func (s *State) PatVel(i int) trial.Vec2 { return s.getVec(s.patVel, i) }

// EnterSegment applies segment-entry overwrites for target i (spec.md
// §4.4 "At segment entry for a target..."). patternWRTScreen carries the
// window jump into the pattern accumulator too, for dot-patch targets
// flagged pattern-WRT-screen.
func (s *State) EnterSegment(i int, absolute bool, delta, vel, acc, patVel, patAcc trial.Vec2, patternWRTScreen bool) {
	pos := s.Pos(i)
	var newPos trial.Vec2
	if absolute {
		newPos = delta
		s.setVec(s.vel, i, trial.Vec2{})
	} else {
		newPos = trial.Vec2{H: pos.H + delta.H, V: pos.V + delta.V}
	}
	s.setVec(s.pos, i, newPos)
	s.setVec(s.vel, i, vel)
	s.setVec(s.acc, i, acc)
	s.setVec(s.patVel, i, patVel)
	s.setVec(s.patAcc, i, patAcc)

	if patternWRTScreen {
		jump := trial.Vec2{H: newPos.H - pos.H, V: newPos.V - pos.V}
		patPos := s.PatPos(i)
		s.setVec(s.patPos, i, trial.Vec2{H: patPos.H + jump.H, V: patPos.V + jump.V})
	}
}

// Step advances all targets by one timestep dT: position integrates
// velocity, velocity integrates acceleration, and the pattern pair does
// the same (spec.md §4.4's p/v/vp equations), implemented as vectorized
// axpy operations over the packed 2n state rather than a per-target loop.
func (s *State) Step(dT float64) {
	s.pos.AddScaledVec(s.pos, dT, s.vel)
	s.patPos.AddScaledVec(s.patPos, dT, s.patVel)
	s.vel.AddScaledVec(s.vel, dT, s.acc)
	s.patVel.AddScaledVec(s.patVel, dT, s.patAcc)
}

// Perturb applies target i's installed perturbation to its velocity and
// pattern velocity for this tick, recording the delta so UndoPerturb can
// restore the nominal value at the tick's end (spec.md §4.4: "the
// perturbation delta is stored so the nominal can be restored").
func (s *State) Perturb(i int, spec trial.PerturbSpec, tick int, p Perturber) {
	if !spec.Active || p == nil {
		s.perturbDV[i], s.perturbDVP[i] = trial.Vec2{}, trial.Vec2{}
		return
	}
	v := s.Vel(i)
	vp := s.PatVel(i)
	dv, dvp := p.Delta(spec, tick, v, vp)
	s.perturbDV[i], s.perturbDVP[i] = dv, dvp
	s.setVec(s.vel, i, trial.Vec2{H: v.H + dv.H, V: v.V + dv.V})
	s.setVec(s.patVel, i, trial.Vec2{H: vp.H + dvp.H, V: vp.V + dvp.V})
}

// UndoPerturb restores target i's velocity and pattern velocity to the
// nominal (pre-perturbation) values recorded by the last Perturb call, so
// next tick's Step integrates from the nominal trajectory rather than a
// perturbation-inflated one.
func (s *State) UndoPerturb(i int) {
	v := s.Vel(i)
	vp := s.PatVel(i)
	dv, dvp := s.perturbDV[i], s.perturbDVP[i]
	s.setVec(s.vel, i, trial.Vec2{H: v.H - dv.H, V: v.V - dv.V})
	s.setVec(s.patVel, i, trial.Vec2{H: vp.H - dvp.H, V: vp.V - dvp.V})
}

// VStabFirstTickSeen reports and latches whether this is the first tick
// VStab has been observed on for target i, then marks it seen — used to
// gate the one-shot "snap to eye" behavior (spec.md §4.4).
func (s *State) VStabFirstTickSeen(i int) bool {
	first := !s.vstabFirstTick[i]
	s.vstabFirstTick[i] = true
	return first
}

// VStabReset clears the first-tick latch for target i, called when VStab
// turns off so a later re-enable is treated as a fresh onset.
func (s *State) VStabReset(i int) {
	s.vstabFirstTick[i] = false
}

// ApplyVStab implements spec.md §4.4's velocity-stabilization compensation
// for one target: on first-onset-with-snap, jump straight to the eye
// position; otherwise nudge position by the masked eye delta.
func ApplyVStab(s *State, i int, flags trial.VStabFlags, eyeAvgNow, eyeAvgPrev, posDelta trial.Vec2) {
	if flags&trial.VStabOn == 0 {
		s.VStabReset(i)
		return
	}
	if s.VStabFirstTickSeen(i) && flags&trial.VStabSnap != 0 {
		snapped := trial.Vec2{H: eyeAvgNow.H + posDelta.H, V: eyeAvgNow.V + posDelta.V}
		s.setVec(s.pos, i, snapped)
		return
	}
	eDelta := trial.Vec2{H: eyeAvgNow.H - eyeAvgPrev.H, V: eyeAvgNow.V - eyeAvgPrev.V}
	if flags&trial.VStabH == 0 {
		eDelta.H = 0
	}
	if flags&trial.VStabV == 0 {
		eDelta.V = 0
	}
	pos := s.Pos(i)
	s.setVec(s.pos, i, trial.Vec2{H: pos.H + eDelta.H, V: pos.V + eDelta.V})
}
