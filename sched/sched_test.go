package sched_test

import (
	"context"
	"testing"
	"time"

	"github.com/cxlab/cxdriver/sched"
)

func TestOnInterruptAdvancesElapsedTicks(t *testing.T) {
	s := sched.NewScheduler(time.Millisecond, 0)

	base := time.Now()
	s.OnInterrupt(base)
	s.OnInterrupt(base.Add(time.Millisecond))
	s.OnInterrupt(base.Add(2 * time.Millisecond))

	if got := s.ElapsedTicks(); got != 3 {
		t.Fatalf("got %d", got)
	}
}

func TestWaitForInterruptConsumesPendingTick(t *testing.T) {
	s := sched.NewScheduler(10*time.Millisecond, 0)
	s.OnInterrupt(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	delayed, timedOut := s.WaitForInterrupt(ctx)
	if timedOut {
		t.Fatalf("expected a pending tick, not a timeout")
	}
	if delayed {
		t.Fatalf("expected no delayed-ISR flag on the first tick")
	}
	if s.ServicedTicks() != 1 {
		t.Fatalf("expected serviced ticks to advance")
	}
}

func TestDelayedISRDetected(t *testing.T) {
	s := sched.NewScheduler(time.Millisecond, 0)

	base := time.Now()
	s.OnInterrupt(base)
	// gap well past scanInterval + 500us
	s.OnInterrupt(base.Add(5 * time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	delayed, _ := s.WaitForInterrupt(ctx)
	if !delayed {
		t.Fatalf("expected delayed-ISR flag to be set")
	}
}

func TestFrameLagWhenElapsedOutrunsServiced(t *testing.T) {
	s := sched.NewScheduler(time.Millisecond, 0)
	base := time.Now()
	s.OnInterrupt(base)
	s.OnInterrupt(base.Add(time.Millisecond))
	s.OnInterrupt(base.Add(2 * time.Millisecond))

	if !s.FrameLag() {
		t.Fatalf("expected frame lag with 3 elapsed, 0 serviced ticks")
	}
}

func TestDutyTickWrapsModuloLength(t *testing.T) {
	s := sched.NewScheduler(time.Millisecond, 3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.OnInterrupt(base.Add(time.Duration(i) * time.Millisecond))
	}
	if got := s.DutyTick(); got != 5%3 {
		t.Fatalf("got %d, want %d", got, 5%3)
	}
}

func TestSuspendManagerHoldBlocksDuringOffPhase(t *testing.T) {
	m := sched.NewSuspendManager(sched.DutyCycle{OnMs: 2, OffMs: 20})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// give Run time to enter its off-phase
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Hold()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("expected Hold to block during the off-phase")
	case <-time.After(5 * time.Millisecond):
	}

	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		t.Fatalf("expected Hold to return once the off-phase ends")
	}
}
