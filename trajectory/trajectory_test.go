package trajectory_test

import (
	"math"
	"testing"

	"github.com/cxlab/cxdriver/trajectory"
	"github.com/cxlab/cxdriver/trial"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestStepIntegratesPositionAndVelocity(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{}, trial.Vec2{H: 10, V: 0}, trial.Vec2{H: 1, V: 0}, trial.Vec2{}, trial.Vec2{}, false)

	const dT = 0.001
	for i := 0; i < 1000; i++ {
		s.Step(dT)
	}

	pos := s.Pos(0)
	if !approxEqual(pos.H, 10.4995, 1e-6) {
		t.Fatalf("expected H position ~10.4995 after 1s of v=10,a=1, got %v", pos.H)
	}
	vel := s.Vel(0)
	if !approxEqual(vel.H, 11.0, 1e-6) {
		t.Fatalf("expected H velocity ~11 after 1s of a=1 from v=10, got %v", vel.H)
	}
}

func TestEnterSegmentRelativeAddsDelta(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{H: 5, V: -2}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)
	pos := s.Pos(0)
	if pos.H != 5 || pos.V != -2 {
		t.Fatalf("expected relative delta applied, got %+v", pos)
	}

	s.EnterSegment(0, false, trial.Vec2{H: 1, V: 1}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)
	pos = s.Pos(0)
	if pos.H != 6 || pos.V != -1 {
		t.Fatalf("expected relative delta to accumulate, got %+v", pos)
	}
}

func TestEnterSegmentAbsoluteOverwritesAndZeroesVelocity(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{}, trial.Vec2{H: 5, V: 5}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)
	s.EnterSegment(0, true, trial.Vec2{H: 3, V: 4}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)

	pos := s.Pos(0)
	if pos.H != 3 || pos.V != 4 {
		t.Fatalf("expected absolute position overwrite, got %+v", pos)
	}
	vel := s.Vel(0)
	if vel != (trial.Vec2{}) {
		t.Fatalf("expected velocity zeroed on absolute entry, got %+v", vel)
	}
}

func TestPatternWRTScreenCarriesWindowJumpIntoPattern(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, true, trial.Vec2{H: 10, V: 0}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, true)
	pat := s.PatPos(0)
	if pat.H != 10 {
		t.Fatalf("expected pattern position to absorb window jump, got %+v", pat)
	}
}

type fakePerturber struct {
	dv trial.Vec2
}

func (f fakePerturber) Delta(spec trial.PerturbSpec, tick int, v, vp trial.Vec2) (trial.Vec2, trial.Vec2) {
	return f.dv, trial.Vec2{}
}

func TestPerturbAppliesThenUndoRestoresNominal(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{}, trial.Vec2{H: 10, V: 0}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)

	spec := trial.PerturbSpec{Active: true}
	p := fakePerturber{dv: trial.Vec2{H: 5}}
	s.Perturb(0, spec, 0, p)
	if v := s.Vel(0); v.H != 15 {
		t.Fatalf("expected perturbed velocity 15, got %v", v.H)
	}
	s.UndoPerturb(0)
	if v := s.Vel(0); v.H != 10 {
		t.Fatalf("expected velocity restored to nominal 10, got %v", v.H)
	}
}

func TestApplyVStabSnapsOnFirstOnset(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{H: 100}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)

	trajectory.ApplyVStab(s, 0, trial.VStabOn|trial.VStabSnap, trial.Vec2{H: 2, V: 3}, trial.Vec2{}, trial.Vec2{H: 1})
	pos := s.Pos(0)
	if pos.H != 3 || pos.V != 3 {
		t.Fatalf("expected snap to eyeAvg+delta, got %+v", pos)
	}
}

func TestApplyVStabMaskedAxesAfterOnset(t *testing.T) {
	s := trajectory.NewState(1)
	s.EnterSegment(0, false, trial.Vec2{H: 0}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, trial.Vec2{}, false)

	trajectory.ApplyVStab(s, 0, trial.VStabOn, trial.Vec2{H: 1, V: 1}, trial.Vec2{}, trial.Vec2{})
	trajectory.ApplyVStab(s, 0, trial.VStabOn|trial.VStabH, trial.Vec2{H: 2, V: 5}, trial.Vec2{H: 1, V: 1}, trial.Vec2{})

	pos := s.Pos(0)
	if pos.V != 0 {
		t.Fatalf("expected V axis masked out, got %+v", pos)
	}
	if pos.H == 0 {
		t.Fatalf("expected H axis to move, got %+v", pos)
	}
}
