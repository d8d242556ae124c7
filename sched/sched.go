// Package sched implements the scan-synchronous scheduler (spec.md §4.1,
// §5): a single periodic event source that marks tick boundaries, paired
// with a duty-cycle suspend manager that approximates the preemption
// budget of the three-priority-tier scheduling model (ISR > suspend
// manager > engine > file writer). Grounded on the teacher's hardware/cpu
// tick/step loop shape (a single goroutine driven by discrete steps) and,
// for the duty-cycle manager, the documented limitation that Go's
// scheduler cannot guarantee hard real-time preemption — this is an
// approximation.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler tracks tick boundaries delivered by a device.AI's
// start-of-scan interrupt (or, in bench harnesses, a plain time.Ticker).
// Everything in (a)-(e) of spec.md §4.1 happens in OnInterrupt, called
// from ISR context; everything else happens in the engine goroutine that
// calls WaitForInterrupt.
type Scheduler struct {
	scanInterval time.Duration

	elapsedTicks  atomic.Int64
	servicedTicks atomic.Int64
	delayedISR    atomic.Bool

	mu        sync.Mutex
	lastEvent time.Time

	interruptPending chan struct{}

	dutyTick    int
	dutyLength  int
	dutyTickMu  sync.Mutex
}

// NewScheduler builds a Scheduler for the given scan interval. dutyLength
// is the modulus for the stimulus duty-cycle tick counter (spec.md §4.1
// step (e)); pass 0 if no duty-cycle run is active.
func NewScheduler(scanInterval time.Duration, dutyLength int) *Scheduler {
	return &Scheduler{
		scanInterval:     scanInterval,
		interruptPending: make(chan struct{}, 1),
		dutyLength:       dutyLength,
	}
}

// OnInterrupt performs the ISR-context bookkeeping of spec.md §4.1 (a)-(e).
// now is the ISR's wall-clock timestamp, injectable for deterministic
// tests.
func (s *Scheduler) OnInterrupt(now time.Time) {
	s.mu.Lock()
	if !s.lastEvent.IsZero() {
		delta := now.Sub(s.lastEvent)
		s.delayedISR.Store(delta > s.scanInterval+500*time.Microsecond)
	}
	s.lastEvent = now
	s.mu.Unlock()

	s.elapsedTicks.Add(1)

	if s.dutyLength > 0 {
		s.dutyTickMu.Lock()
		s.dutyTick = (s.dutyTick + 1) % s.dutyLength
		s.dutyTickMu.Unlock()
	}

	// Set interruptPending without blocking: a pending-but-unconsumed tick
	// is coalesced, matching a size-1 "latest tick" mailbox rather than an
	// unbounded queue of missed ticks.
	select {
	case s.interruptPending <- struct{}{}:
	default:
	}
}

// WaitForInterrupt blocks until the next tick is pending, or until 2x the
// scan interval has elapsed without one (spec.md §5 "Timeouts"), or until
// ctx is cancelled. It reports whether a delayed-ISR condition was latched
// since the previous wait, and clears that latch.
func (s *Scheduler) WaitForInterrupt(ctx context.Context) (delayed bool, timedOut bool) {
	timer := time.NewTimer(2 * s.scanInterval)
	defer timer.Stop()

	select {
	case <-s.interruptPending:
		s.servicedTicks.Add(1)
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		timedOut = true
	}

	delayed = s.delayedISR.Swap(false)
	return delayed, timedOut
}

// ElapsedTicks is the total tick count signalled by the ISR.
func (s *Scheduler) ElapsedTicks() int64 { return s.elapsedTicks.Load() }

// ServicedTicks is the total tick count actually consumed by the engine.
func (s *Scheduler) ServicedTicks() int64 { return s.servicedTicks.Load() }

// FrameLag reports whether elapsedTicks has pulled more than one tick
// ahead of servicedTicks (spec.md §8 invariant on elapsedTicks −
// servicedTicks).
func (s *Scheduler) FrameLag() bool {
	return s.elapsedTicks.Load()-s.servicedTicks.Load() > 1
}

// DutyTick returns the current position of the stimulus duty-cycle tick
// counter, modulo the configured duty length.
func (s *Scheduler) DutyTick() int {
	s.dutyTickMu.Lock()
	defer s.dutyTickMu.Unlock()
	return s.dutyTick
}

// DutyCycle is an on/off pair in milliseconds. A SuspendManager built from
// one forcibly parks the engine for OffMs out of every OnMs+OffMs period.
type DutyCycle struct {
	OnMs  float64
	OffMs float64
}

// SuspendManager forces periodic preemption of the engine goroutine
// according to a configurable duty cycle, modeling the priority-"max-1"
// sibling thread of spec.md §5. Run should be started in its own
// goroutine; the engine calls Hold at the top of its loop (after
// WaitForInterrupt) to cooperate with the current off-phase, if any.
type SuspendManager struct {
	cycle atomic.Pointer[DutyCycle]

	mu   sync.Mutex
	park chan struct{}
}

// NewSuspendManager builds a SuspendManager with the given initial duty
// cycle, starting unparked.
func NewSuspendManager(initial DutyCycle) *SuspendManager {
	m := &SuspendManager{}
	m.SetDutyCycle(initial)
	park := make(chan struct{})
	close(park)
	m.park = park
	return m
}

// SetDutyCycle changes the duty cycle taking effect on the next period;
// called when the mode controller transitions between modes (spec.md
// §4.2: "each state enters with its own suspend duty cycle").
func (m *SuspendManager) SetDutyCycle(d DutyCycle) {
	cp := d
	m.cycle.Store(&cp)
}

// Hold blocks only while the manager is in its off-phase; it returns
// immediately otherwise or once the current off-phase ends.
func (m *SuspendManager) Hold() {
	m.mu.Lock()
	park := m.park
	m.mu.Unlock()
	<-park
}

// Run drives the on/off alternation until ctx is cancelled.
func (m *SuspendManager) Run(ctx context.Context) {
	for {
		d := *m.cycle.Load()

		select {
		case <-time.After(time.Duration(d.OnMs * float64(time.Millisecond))):
		case <-ctx.Done():
			return
		}

		parked := make(chan struct{})
		m.mu.Lock()
		m.park = parked
		m.mu.Unlock()

		select {
		case <-time.After(time.Duration(d.OffMs * float64(time.Millisecond))):
		case <-ctx.Done():
			close(parked)
			return
		}
		close(parked)
	}
}
