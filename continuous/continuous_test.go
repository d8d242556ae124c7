package continuous_test

import (
	"math"
	"testing"

	"github.com/cxlab/cxdriver/continuous"
	"github.com/cxlab/cxdriver/trajectory"
	"github.com/cxlab/cxdriver/trial"
)

type fakeChair struct {
	lastCmdVel, lastMeasured, lastExpected float64
	calls                                  int
}

func (f *fakeChair) UpdateChair(cmdVel, measured, expected float64) error {
	f.lastCmdVel, f.lastMeasured, f.lastExpected = cmdVel, measured, expected
	f.calls++
	return nil
}

func TestSineChannelZeroOutsideWindow(t *testing.T) {
	ch := continuous.Channel{Kind: continuous.WaveSine, Amplitude: 5, Period: 1, Cycles: 2}
	v, p := ch.Evaluate(10)
	if v != 0 || p != 0 {
		t.Fatalf("expected zero contribution outside the cycle window, got v=%v p=%v", v, p)
	}
}

func TestSineChannelNonZeroInsideWindow(t *testing.T) {
	ch := continuous.Channel{Kind: continuous.WaveSine, Amplitude: 5, Period: 1, Cycles: 2}
	v, _ := ch.Evaluate(0.25)
	if math.Abs(v-5) > 1e-6 {
		t.Fatalf("expected peak velocity ~5 at quarter period, got %v", v)
	}
}

func TestTrapezoidHoldsAmplitudeDuringHold(t *testing.T) {
	ch := continuous.Channel{Kind: continuous.WaveTrapezoid, Amplitude: 2, RampDur: 0.1, HoldDur: 0.2}
	v, _ := ch.Evaluate(0.15)
	if math.Abs(v-2) > 1e-9 {
		t.Fatalf("expected full amplitude during hold, got %v", v)
	}
}

func TestTrapezoidReturnsToZeroVelocityAfterRampDown(t *testing.T) {
	ch := continuous.Channel{Kind: continuous.WaveTrapezoid, Amplitude: 2, RampDur: 0.1, HoldDur: 0.2}
	v, p := ch.Evaluate(1.0)
	if v != 0 {
		t.Fatalf("expected zero velocity after ramp-down, got %v", v)
	}
	wantP := 2 * (0.1 + 0.2)
	if math.Abs(p-wantP) > 1e-9 {
		t.Fatalf("expected final position A*(R+D)=%v, got %v", wantP, p)
	}
}

func TestReplaceTargetsRejectedWhileRecording(t *testing.T) {
	e := continuous.NewEngine(&fakeChair{}, 10, 5)
	e.SetFlags(true, false, false)
	if err := e.ReplaceTargets(nil); err == nil {
		t.Fatalf("expected wholesale replacement to be rejected while recording")
	}
}

func TestReplaceTargetsAllowedWhenIdle(t *testing.T) {
	e := continuous.NewEngine(&fakeChair{}, 10, 5)
	e.SetFlags(false, false, false)
	targets := []continuous.ActiveTarget{{Target: trial.Target{}, State: trajectory.NewState(1)}}
	if err := e.ReplaceTargets(targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTickDrivesChairWithSummedChannels(t *testing.T) {
	chair := &fakeChair{}
	e := continuous.NewEngine(chair, 10, 5)
	e.SetChannels([]continuous.Channel{
		{Kind: continuous.WaveTrapezoid, Amplitude: 1, RampDur: 0.01, HoldDur: 0.01},
	})
	if err := e.Tick(0.001, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chair.calls != 1 {
		t.Fatalf("expected exactly one chair update call")
	}
}

func TestFixationOKRequiresBothWhenBothDefined(t *testing.T) {
	accuracy := trial.Vec2{H: 1, V: 1}
	fix1 := trial.Vec2{H: 0, V: 0}
	fix2 := trial.Vec2{H: 10, V: 10}
	eye := trial.Vec2{H: 0.5, V: 0.5}
	if continuous.FixationOK(eye, fix1, fix2, true, true, accuracy) {
		t.Fatalf("expected failure: eye is only near fix1, not fix2")
	}
}
