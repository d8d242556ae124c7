package engine

import (
	"math"

	"github.com/cxlab/cxdriver/trial"
)

// sinPerturber implements trajectory.Perturber as a sinusoidal velocity
// modulation: PerturbSpec.Amplitude/Frequency/Phase drive a sin wave added
// to both the window and pattern velocity (spec.md §4.4 "velocities are
// perturbed"). Kind is reserved for future non-sinusoidal waveforms; only
// kind 0 is implemented, matching the one perturbation waveform the
// distillation actually specifies.
type sinPerturber struct {
	dT float64
}

func (p sinPerturber) Delta(spec trial.PerturbSpec, tick int, v, vp trial.Vec2) (dv, dvp trial.Vec2) {
	if !spec.Active {
		return trial.Vec2{}, trial.Vec2{}
	}
	t := float64(tick) * p.dT
	s := spec.Amplitude * math.Sin(2*math.Pi*spec.Frequency*t+spec.Phase)
	return trial.Vec2{H: s, V: s}, trial.Vec2{H: s, V: s}
}
