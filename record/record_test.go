package record_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cxlab/cxdriver/record"
)

func TestOpenStreamCloseProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.dat")

	w, err := record.Open(path, 4, false)
	if err != nil {
		t.Fatalf("unexpected error opening writer: %v", err)
	}
	for i := 0; i < 2000; i++ {
		w.StreamAnalog([]int16{int16(i % 100), int16(-i % 50), 0, 10}, nil)
	}
	if err := w.Close(true); err != nil {
		t.Fatalf("unexpected error closing writer: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty recording file")
	}
}

func TestCloseDiscardRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.dat")

	w, err := record.Open(path, 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.StreamAnalog([]int16{1, 2}, nil)
	if err := w.Close(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected discarded recording to be removed, stat err: %v", err)
	}
}

func TestStreamAnalogRoundTripsThroughDeltaEncoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.dat")

	const nChannels = 2
	const nTicks = 512 // nChannels*nTicks == one full AI record, so no padding is mixed in

	var want [][]int16
	for i := 0; i < nTicks; i++ {
		tick := make([]int16, nChannels)
		for c := 0; c < nChannels; c++ {
			tick[c] = int16((i+c*7)%40 - 20)
		}
		want = append(want, tick)
	}

	w, err := record.Open(path, nChannels, false)
	if err != nil {
		t.Fatalf("unexpected error opening writer: %v", err)
	}
	for _, tick := range want {
		w.StreamAnalog(tick, nil)
	}
	if err := w.Close(true); err != nil {
		t.Fatalf("unexpected error closing writer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading recording: %v", err)
	}
	const headerBytes = 64
	got := record.DecodeAISamples(data[headerBytes:], nChannels)

	if len(got) != len(want) {
		t.Fatalf("expected %d decoded ticks, got %d", len(want), len(got))
	}
	for i := range want {
		for c := 0; c < nChannels; c++ {
			if got[i][c] != want[i][c] {
				t.Fatalf("tick %d channel %d: want %d, got %d", i, c, want[i][c], got[i][c])
			}
		}
	}
}

func TestStreamEventsRoutesByDIBit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.dat")

	w, err := record.Open(path, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	masks := []uint32{1, 1, 2, 4}
	times := []uint32{100, 250, 300, 500}
	w.StreamEvents(masks, times)
	if err := w.Close(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
