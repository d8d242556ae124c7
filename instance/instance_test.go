package instance_test

import (
	"testing"

	"github.com/cxlab/cxdriver/instance"
)

type tickSource struct{ tick int64 }

func (t *tickSource) CurrentTick() int64 { return t.tick }

func TestNewInstanceSeedsDefaults(t *testing.T) {
	ins := instance.NewInstance(&tickSource{tick: 10}, 100)

	if ins.Tunables.Current().ScanIntervalUs[0] == 0 {
		t.Fatalf("expected non-zero default scan interval")
	}
	if ins.Random == nil || ins.Log == nil {
		t.Fatalf("expected random and logger to be initialised")
	}
}

func TestNormaliseIsReproducible(t *testing.T) {
	a := instance.NewInstance(&tickSource{tick: 5}, 10)
	b := instance.NewInstance(&tickSource{tick: 5}, 10)
	a.Normalise()
	b.Normalise()

	for i := 1; i < 50; i++ {
		if a.Random.Rewindable(i) != b.Random.Rewindable(i) {
			t.Fatalf("expected normalised instances to draw identically at salt %d", i)
		}
	}

	if a.Tunables.Current().WithholdVariableRatio != b.Tunables.Current().WithholdVariableRatio {
		t.Fatalf("expected normalised tunables to match")
	}
}
