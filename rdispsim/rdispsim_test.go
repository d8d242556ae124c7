package rdispsim

import (
	"math"
	"testing"
)

func TestScreenWidthDegMatchesKnownGeometry(t *testing.T) {
	deg := screenWidthDeg(40, 57)
	want := 2 * math.Atan(40.0/(2*57)) * 180 / math.Pi
	if math.Abs(deg-want) > 1e-9 {
		t.Fatalf("expected %v degrees, got %v", want, deg)
	}
}

func TestDegToNDCCenterIsZero(t *testing.T) {
	if v := degToNDC(0, 20); v != 0 {
		t.Fatalf("expected zero NDC at screen center, got %v", v)
	}
}

func TestDegToNDCEdgeIsOne(t *testing.T) {
	if v := degToNDC(20, 20); v != 1 {
		t.Fatalf("expected NDC 1 at the half-width edge, got %v", v)
	}
}

func TestDegToNDCZeroHalfDegIsZero(t *testing.T) {
	if v := degToNDC(5, 0); v != 0 {
		t.Fatalf("expected zero NDC guard when half-degree subtense is zero, got %v", v)
	}
}

func TestInjectDuplicateFrameQueuesEvent(t *testing.T) {
	s := &Sim{}
	s.InjectDuplicateFrame(3, 2)
	if s.NumDuplicateFrames() != 1 {
		t.Fatalf("expected one queued duplicate event")
	}
	idx, count := s.DuplicateFrameEventInfo(0)
	if idx != 3 || count != 2 {
		t.Fatalf("expected (3, 2), got (%d, %d)", idx, count)
	}
}

func TestDuplicateFrameEventInfoOutOfRange(t *testing.T) {
	s := &Sim{}
	idx, count := s.DuplicateFrameEventInfo(0)
	if idx != 0 || count != 0 {
		t.Fatalf("expected zero values for out-of-range index, got (%d, %d)", idx, count)
	}
}

func TestGeometrySetAndGet(t *testing.T) {
	s := &Sim{}
	s.SetGeometry(60, 50, 35)
	d, w, h := s.Geometry()
	if d != 60 || w != 50 || h != 35 {
		t.Fatalf("unexpected geometry (%v, %v, %v)", d, w, h)
	}
}
