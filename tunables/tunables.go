// Package tunables holds the runtime-tunable settings that spec.md places
// "behind the IPC boundary": fixation/reward settings, scan intervals and
// suspend duty cycles per mode, and the handful of thresholds the engine
// consumes once per tick. Grounded on the shape implied by the teacher's
// instance.Prefs.RandomState.Get().(bool) call site: a snapshot object
// that is swapped wholesale rather than mutated field-by-field, so a tick
// in flight never observes a half-updated settings object. Because the
// authoring process updates settings at most once per IPC poll and the
// engine reads them on every tick, the snapshot is published with
// atomic.Pointer rather than a mutex: the tick loop must never block.
//
// Kept distinct from the prefs package (the teacher's own on-disk,
// command-line-overridable value store, adapted unchanged for bench/dev
// configuration): spec.md requires the per-trial settings here to come
// from exactly one place, the IPC mailbox, so file- or flag-sourced
// layering has no legitimate role in this package. See DESIGN.md.
package tunables

import (
	"sync/atomic"
	"time"
)

// DutyCycle is an on/off pair in milliseconds for the periodic-suspend
// manager (spec §4.1).
type DutyCycle struct {
	OnMs  float64
	OffMs float64
}

// Mode indexes the per-mode scan interval / duty cycle tables.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTest
	ModeTrialBetween
	ModeTrialDuring
	ModeContinuous
	numModes
)

// Snapshot is the full set of runtime-tunable settings, authored
// atomically by a single IPC command (FIX_REW_SETTINGS and friends) and
// read without locking on the tick path.
type Snapshot struct {
	// ScanIntervalUs is the AI scan period in microseconds, per mode.
	ScanIntervalUs [numModes]int

	// Duty is the suspend-manager on/off duty cycle, per mode.
	Duty [numModes]DutyCycle

	// GraceDuration is the post-FIXACCURACY grace period before fixation
	// checking resumes.
	GraceDuration time.Duration

	// RewardPulseMs holds the two configurable reward pulse lengths
	// (index 0 = reward #1, index 1 = reward #2).
	RewardPulseMs [2]int

	// WithholdVariableRatio (WHVR): one of every N earned rewards is
	// withheld. 0 or 1 disables withholding.
	WithholdVariableRatio int

	// AudioPulseMs is the length of the audio "beep" played alongside a
	// delivered reward.
	AudioPulseMs int

	// FixationAccuracyDeg is the default rectangular fixation tolerance
	// box (horizontal, vertical), in visual degrees, used when a segment
	// does not override it.
	FixationAccuracyDeg [2]float64

	// PlayBeepRequested mirrors the "play beep" request bit: set by the
	// authoring process to trigger one beep outside of a reward.
	PlayBeepRequested bool

	// EyeSmoothingWindow is the VStab sliding-window length in samples; 1
	// disables smoothing (spec §4.4).
	EyeSmoothingWindow int

	// SaccadeVelocityThreshold is the scalar raw-AI-unit threshold past
	// which horizontal or vertical eye velocity is considered a saccade.
	SaccadeVelocityThreshold float64

	// DuplicateFrameTolerance is the number of duplicate display frames
	// tolerated before the trial aborts with DUP_FRAME (0 or 3 per spec).
	DuplicateFrameTolerance int

	// FrameLagWarningStart is the initial threshold K for the display
	// drift-detection warning (spec §4.5); it grows by one each warning.
	FrameLagWarningStart int

	// MarkerPulseSpacing is the minimum time between successive
	// triggerMarkers invocations (spec §4.9): 900us.
	MarkerPulseSpacing time.Duration

	// Continuous-mode-only designations.
	ContinuousFix1   int
	ContinuousFix2   int
	ContinuousTrack  int
	ContinuousHasFix1 bool
	ContinuousHasFix2 bool
}

// Defaults returns the factory default snapshot. Per SPEC_FULL.md §4.11
// this is a plain literal, not loaded from a config file: the only
// legitimate source of these values at runtime is the IPC mailbox.
func Defaults() *Snapshot {
	return &Snapshot{
		ScanIntervalUs: [numModes]int{
			ModeIdle:         20000,
			ModeTest:         1000,
			ModeTrialBetween: 10000,
			ModeTrialDuring:  1000,
			ModeContinuous:   2000,
		},
		Duty: [numModes]DutyCycle{
			ModeIdle:         {OnMs: 1, OffMs: 19},
			ModeTest:         {OnMs: 0.6, OffMs: 1.4},
			ModeTrialBetween: {OnMs: 0.5, OffMs: 9.5},
			ModeTrialDuring:  {OnMs: 0.8, OffMs: 0.2},
			ModeContinuous:   {OnMs: 1.6, OffMs: 0.4},
		},
		GraceDuration:            0,
		RewardPulseMs:            [2]int{50, 50},
		WithholdVariableRatio:    0,
		AudioPulseMs:             50,
		FixationAccuracyDeg:      [2]float64{1.0, 1.0},
		EyeSmoothingWindow:       1,
		SaccadeVelocityThreshold: 15.0,
		DuplicateFrameTolerance:  0,
		FrameLagWarningStart:     4,
		MarkerPulseSpacing:       900 * time.Microsecond,
	}
}

// Store holds the current Snapshot behind an atomic pointer.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// NewStore creates a Store seeded with Defaults().
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(Defaults())
	return s
}

// Current returns the currently published Snapshot. Never blocks.
func (s *Store) Current() *Snapshot {
	return s.cur.Load()
}

// Publish atomically replaces the published Snapshot. Called exactly once
// per IPC command that authors settings (spec §9: "authored atomically by
// a single IPC command").
func (s *Store) Publish(snap *Snapshot) {
	cp := *snap
	s.cur.Store(&cp)
}

// Scan returns the scan interval for mode as a time.Duration.
func (s *Snapshot) Scan(mode Mode) time.Duration {
	return time.Duration(s.ScanIntervalUs[mode]) * time.Microsecond
}
