// Package control implements the top-level mode controller of spec.md
// §4.2: the Idle/Test/Trial/ContinuousBetween/ContinuousActive state
// machine, hardware startup/shutdown, and per-mode suspend-duty-cycle
// transitions. The AI scan interval is not changed on a mode switch.
//
// Grounded on the teacher's emulation.State enum plus its main-loop
// dispatch shape in gopher2600.go: a small state value, a narrow
// transition function, and a single top-level switch driving per-state
// setup/teardown rather than a deep inheritance hierarchy of state
// objects.
package control

import (
	"github.com/cxlab/cxdriver/cxerr"
	"github.com/cxlab/cxdriver/logger"
	"github.com/cxlab/cxdriver/sched"
	"github.com/cxlab/cxdriver/tunables"
)

// Mode is the top-level controller state (spec.md §4.2).
type Mode int

const (
	Idle Mode = iota
	Test
	Trial
	ContinuousBetween
	ContinuousActive
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case Test:
		return "Test"
	case Trial:
		return "Trial"
	case ContinuousBetween:
		return "ContinuousBetween"
	case ContinuousActive:
		return "ContinuousActive"
	default:
		return "Unknown"
	}
}

// modeToTunablesMode maps a controller Mode to the tunables.Mode whose
// scan interval and duty cycle apply while in it.
func modeToTunablesMode(m Mode) tunables.Mode {
	switch m {
	case Idle:
		return tunables.ModeIdle
	case Test:
		return tunables.ModeTest
	case Trial:
		return tunables.ModeTrialBetween
	case ContinuousBetween, ContinuousActive:
		return tunables.ModeContinuous
	default:
		return tunables.ModeIdle
	}
}

// DeviceStarter is the narrow startup/shutdown contract the controller
// needs from the device layer, kept separate from the per-actor device
// interfaces in package device so the controller doesn't need to know
// about AI/DIO specifics.
type DeviceStarter interface {
	StartAI() error
	StartDIO() error
	StopAll()
}

// Controller drives the top-level state machine.
type Controller struct {
	mode     Mode
	prevMode Mode

	devices   DeviceStarter
	store     *tunables.Store
	suspend   *sched.SuspendManager
	scheduler *sched.Scheduler
	log       *logger.Logger

	shuttingDown bool
}

// NewController builds a Controller in Idle, wired to the given devices,
// tunables store, suspend manager, scheduler, and logger.
func NewController(devices DeviceStarter, store *tunables.Store, suspend *sched.SuspendManager, scheduler *sched.Scheduler, log *logger.Logger) *Controller {
	return &Controller{mode: Idle, devices: devices, store: store, suspend: suspend, scheduler: scheduler, log: log}
}

// Mode returns the current state.
func (c *Controller) Mode() Mode { return c.mode }

// Startup brings up AI and DIO hardware; failure is Fatal and the
// controller does not enter Idle (spec.md §4.2: "Failure to find AI or
// DIO devices at startup is fatal and logs 'SHUTTING DOWN'").
func (c *Controller) Startup() error {
	if err := c.devices.StartAI(); err != nil {
		c.log.Logf(logger.Allow, "control", "SHUTTING DOWN: AI device not found: %v", err)
		c.shuttingDown = true
		return cxerr.Fatal("AI device not found: " + err.Error())
	}
	if err := c.devices.StartDIO(); err != nil {
		c.log.Logf(logger.Allow, "control", "SHUTTING DOWN: DIO device not found: %v", err)
		c.shuttingDown = true
		return cxerr.Fatal("DIO device not found: " + err.Error())
	}
	c.applyModeSettings(Idle)
	return nil
}

// Shutdown tears down hardware. Safe to call after a failed Startup.
func (c *Controller) Shutdown() {
	c.devices.StopAll()
}

// ShuttingDown reports whether a fatal startup failure is in progress.
func (c *Controller) ShuttingDown() bool { return c.shuttingDown }

// applyModeSettings installs the suspend duty cycle for m. It does not
// change the scheduler's or the AI device's scan interval.
func (c *Controller) applyModeSettings(m Mode) {
	snap := c.store.Current()
	tm := modeToTunablesMode(m)
	if c.suspend != nil {
		d := snap.Duty[tm]
		c.suspend.SetDutyCycle(sched.DutyCycle{OnMs: d.OnMs, OffMs: d.OffMs})
	}
}

// SwitchMode transitions the controller to next on a SWITCH_MODE command
// (spec.md §4.2). It always applies the destination mode's suspend duty
// cycle explicitly rather than diffing against the previous one; the AI
// scan interval is left as it is.
func (c *Controller) SwitchMode(next Mode) {
	c.prevMode = c.mode
	c.mode = next
	c.applyModeSettings(next)
	c.log.Logf(logger.Allow, "control", "switched mode %v -> %v", c.prevMode, c.mode)
}

// TrialCompleted returns the controller to Trial-between, the state a
// completed trial falls back to between trials (spec.md §4.2).
func (c *Controller) TrialCompleted() {
	c.SwitchMode(Trial)
}

// HandleFailure implements spec.md §7's propagation contract for a
// runtime failure during a trial or continuous run: restore the Idle
// suspend duty cycle and return to Idle.
func (c *Controller) HandleFailure(err error) {
	c.log.Logf(logger.Allow, "control", "runtime failure, returning to Idle: %v", err)
	c.SwitchMode(Idle)
}
