package diagnostics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cxlab/cxdriver/diagnostics"
)

func TestLoadTracksAverageAndMax(t *testing.T) {
	var l diagnostics.Load
	l.Observe(100)
	l.Observe(300)
	l.Observe(200)
	if l.MaxNs != 300 {
		t.Fatalf("expected max 300, got %v", l.MaxNs)
	}
	if l.AverageNs != 200 {
		t.Fatalf("expected average 200, got %v", l.AverageNs)
	}
}

func TestLoadResetClearsAccumulation(t *testing.T) {
	var l diagnostics.Load
	l.Observe(500)
	l.Reset()
	if l.MaxNs != 0 || l.AverageNs != 0 {
		t.Fatalf("expected zeroed load after reset, got %+v", l)
	}
}

type fakeTrial struct {
	Segments []string
	Bad      int
}

func TestDumpStructureWritesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trial.dot")

	tr := &fakeTrial{Segments: []string{"seg0", "seg1"}, Bad: -1}
	if err := diagnostics.DumpStructure(path, tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected dot file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty dot file")
	}
}
