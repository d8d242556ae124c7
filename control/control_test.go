package control_test

import (
	"errors"
	"testing"

	"github.com/cxlab/cxdriver/control"
	"github.com/cxlab/cxdriver/logger"
	"github.com/cxlab/cxdriver/sched"
	"github.com/cxlab/cxdriver/tunables"
)

type fakeDevices struct {
	aiErr, dioErr error
	stopped       bool
}

func (f *fakeDevices) StartAI() error  { return f.aiErr }
func (f *fakeDevices) StartDIO() error { return f.dioErr }
func (f *fakeDevices) StopAll()        { f.stopped = true }

func newController(devices *fakeDevices) *control.Controller {
	store := tunables.NewStore()
	suspend := sched.NewSuspendManager(sched.DutyCycle{OnMs: 1, OffMs: 19})
	scheduler := sched.NewScheduler(1000, 10)
	log := logger.NewLogger(64)
	return control.NewController(devices, store, suspend, scheduler, log)
}

func TestStartupSucceedsAndEntersIdle(t *testing.T) {
	devices := &fakeDevices{}
	c := newController(devices)
	if err := c.Startup(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Mode() != control.Idle {
		t.Fatalf("expected Idle mode, got %v", c.Mode())
	}
	if c.ShuttingDown() {
		t.Fatalf("did not expect shutting-down flag set")
	}
}

func TestStartupFailsFatalWhenAIMissing(t *testing.T) {
	devices := &fakeDevices{aiErr: errors.New("no AI board")}
	c := newController(devices)
	if err := c.Startup(); err == nil {
		t.Fatalf("expected fatal error when AI device is missing")
	}
	if !c.ShuttingDown() {
		t.Fatalf("expected shutting-down flag set on fatal startup failure")
	}
}

func TestSwitchModeUpdatesCurrentMode(t *testing.T) {
	c := newController(&fakeDevices{})
	_ = c.Startup()
	c.SwitchMode(control.Trial)
	if c.Mode() != control.Trial {
		t.Fatalf("expected Trial mode, got %v", c.Mode())
	}
}

func TestHandleFailureReturnsToIdle(t *testing.T) {
	c := newController(&fakeDevices{})
	_ = c.Startup()
	c.SwitchMode(control.ContinuousActive)
	c.HandleFailure(errors.New("display comms error"))
	if c.Mode() != control.Idle {
		t.Fatalf("expected Idle after HandleFailure, got %v", c.Mode())
	}
}
