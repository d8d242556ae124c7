package display_test

import (
	"testing"

	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/display"
)

type fakeDisplay struct {
	reinitCalled bool
	targets      []device.TargetDef
	started      bool
	shipped      [][]device.FrameRecord
	dupCount     int
	observed     int
}

func (f *fakeDisplay) Reinit() error                       { f.reinitCalled = true; return nil }
func (f *fakeDisplay) AddTarget(def device.TargetDef) error { f.targets = append(f.targets, def); return nil }
func (f *fakeDisplay) LoadTargets() error                  { return nil }
func (f *fakeDisplay) StartAnimation(frame0, frame1 []device.FrameRecord, flash bool) bool {
	f.started = true
	return true
}
func (f *fakeDisplay) UpdateAnimation(frameN []device.FrameRecord, flash bool) (bool, int) {
	f.shipped = append(f.shipped, frameN)
	f.observed++
	return true, f.observed
}
func (f *fakeDisplay) NumDuplicateFrames() int { return f.dupCount }
func (f *fakeDisplay) DuplicateFrameEventInfo(i int) (int, int) {
	return len(f.shipped), f.dupCount
}
func (f *fakeDisplay) StopAnimation() error        { return nil }
func (f *fakeDisplay) FramePeriod() float64        { return 0.0167 }
func (f *fakeDisplay) ScreenWidthPix() int         { return 1024 }
func (f *fakeDisplay) ScreenHeightPix() int        { return 768 }
func (f *fakeDisplay) ScreenWidthDeg() float64     { return 40 }
func (f *fakeDisplay) Geometry() (float64, float64, float64) { return 57, 40, 30 }
func (f *fakeDisplay) SetGeometry(d, w, h float64)           {}
func (f *fakeDisplay) SetBkgColor(r, g, b uint8)             {}
func (f *fakeDisplay) SetSyncFlashParams(size, dur float64)  {}

var _ device.RemoteDisplay = (*fakeDisplay)(nil)

func TestStartPrimesDisplay(t *testing.T) {
	fd := &fakeDisplay{}
	p := display.NewPipeline(fd, 2, 1.0/60.0, 0.001, 0)
	if err := p.Start(nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fd.reinitCalled || !fd.started {
		t.Fatalf("expected display to be reinit and started")
	}
}

func TestShipSendsAccumulatedCellsAndAdvancesSlot(t *testing.T) {
	fd := &fakeDisplay{}
	p := display.NewPipeline(fd, 1, 1.0/60.0, 1.0/60.0, 0)
	deltas := []display.Cell{{On: true, WindowDelta: device.FrameRecord{HWin: 1}}}
	p.Accumulate(deltas)
	if !p.ReadyToShip() {
		t.Fatalf("expected ready to ship after one tick at period==dT")
	}
	if err := p.Ship(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fd.shipped) != 1 {
		t.Fatalf("expected 1 shipped frame, got %d", len(fd.shipped))
	}
}

func TestDuplicateFrameBeyondToleranceAborts(t *testing.T) {
	fd := &fakeDisplay{dupCount: 1}
	p := display.NewPipeline(fd, 1, 1.0/60.0, 1.0/60.0, 0)
	p.Accumulate([]display.Cell{{}})
	if err := p.Ship(false); err == nil {
		t.Fatalf("expected DUP_FRAME abort when dup count exceeds tolerance")
	}
}

func TestDuplicateFrameWithinToleranceSucceeds(t *testing.T) {
	fd := &fakeDisplay{dupCount: 3}
	p := display.NewPipeline(fd, 1, 1.0/60.0, 1.0/60.0, 3)
	p.Accumulate([]display.Cell{{}})
	if err := p.Ship(false); err != nil {
		t.Fatalf("unexpected error within tolerance: %v", err)
	}
	if len(p.DuplicateFrameEvents()) != 1 {
		t.Fatalf("expected one recorded dup event")
	}
}

func TestSkipOnSaccadeAdvancesAccumulatedLead(t *testing.T) {
	fd := &fakeDisplay{}
	p := display.NewPipeline(fd, 1, 1.0/60.0, 1.0/60.0, 0)
	p.SkipOnSaccade(5)
	if !p.ReadyToShip() {
		t.Fatalf("expected skip-on-saccade to push past the next boundary")
	}
}
