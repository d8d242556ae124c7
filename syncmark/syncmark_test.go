package syncmark_test

import (
	"testing"
	"time"

	"github.com/cxlab/cxdriver/device/simdio"
	"github.com/cxlab/cxdriver/syncmark"
)

func TestStartStopSequenceWithFile(t *testing.T) {
	dio := simdio.New()
	w := syncmark.NewWriter(dio, syncmark.DefaultMarkerBit, 900*time.Microsecond)

	w.Start("trial001.dat", true)
	w.Stop()

	got := dio.SyncStream()
	want := append([]byte{syncmark.CharStart}, append([]byte("trial001.dat"), 0, syncmark.CharStop)...)
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if pulses := dio.MarkerPulses(); len(pulses) != 2 {
		t.Fatalf("expected 2 marker pulses (start, stop), got %d", len(pulses))
	}
}

func TestNoFileSentinelWhenDiscarded(t *testing.T) {
	dio := simdio.New()
	w := syncmark.NewWriter(dio, syncmark.DefaultMarkerBit, 900*time.Microsecond)

	w.Start("", false)
	w.Abort()
	w.Stop()

	got := dio.SyncStream()
	want := []byte{syncmark.CharStart, syncmark.CharNoFile, syncmark.CharAbort, syncmark.CharStop}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPulseSpacingEnforced(t *testing.T) {
	dio := simdio.New()
	w := syncmark.NewWriter(dio, syncmark.DefaultMarkerBit, 900*time.Microsecond)

	start := time.Now()
	w.Pulse()
	w.Pulse()
	elapsed := time.Since(start)

	if elapsed < 900*time.Microsecond {
		t.Fatalf("expected at least 900us between pulses, got %v", elapsed)
	}
}
