// Package trial implements the trial-code interpreter (spec.md §4.3): a
// per-tick VM that consumes an ordered, pre-materialized code stream and
// builds up the segment/target state the trajectory and fixation engines
// read. Grounded on the teacher's hardware/cpu/instructions table-driven
// dispatch idiom: each code number maps to a handler of fixed arity,
// looked up once per code rather than via a long if/else chain.
package trial

import "time"

// TMax and SMax bound the target and segment lists (spec.md §3, §8
// "Segment count at exactly S_MAX succeeds"). The legacy source's actual
// constants were not recovered in the distillation; these values are a
// documented assumption (see DESIGN.md) chosen generously enough not to
// constrain any realistic protocol.
const (
	TMax = 32
	SMax = 128
)

// TargetKind distinguishes a visual display target from a chair
// (vestibular) target (spec.md §3 "Target").
type TargetKind int

const (
	DisplayTarget TargetKind = iota
	ChairTarget
)

// DisplaySubkind further categorizes a DisplayTarget.
type DisplaySubkind int

const (
	RandomDotPatch DisplaySubkind = iota
	FlowField
	Grating
	Plaid
	Bar
	Spot
	Image
	Movie
)

// TargetFlags are the per-target flag bits of spec.md §3.
type TargetFlags uint32

const (
	FlagOrientationAdjust TargetFlags = 1 << iota
	FlagPatternWRTScreen
	FlagIndependentGratings
)

// Target is one entry in the trial-scope target list. Slot is the
// update-slot index assigned in creation order; it is also the animation
// order consumed by the remote display (spec.md §3 invariant).
type Target struct {
	Kind    TargetKind
	Subkind DisplaySubkind
	Flags   TargetFlags
	Slot    int
}

// VStabFlags are the per-target velocity-stabilization subset bits
// (spec.md §3 "VStab flag subset {on, snap, h-component, v-component}").
type VStabFlags uint32

const (
	VStabOn VStabFlags = 1 << iota
	VStabSnap
	VStabH
	VStabV
)

// Vec2 is a window/pattern (horizontal, vertical) pair.
type Vec2 struct {
	H, V float64
}

// NoFix is the sentinel Fix1/Fix2 index meaning "not designated" (spec.md
// §3 "fixation-target indices Fix1, Fix2 (or none)").
const NoFix = -1

// durationFromMs converts a millisecond code argument to a time.Duration.
func durationFromMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Segment is one entry in the trial-scope segment list (spec.md §3).
// Per-target slices are indexed by Target.Slot and are always len(Targets)
// long. Flags and motion parameters inherit from the previous segment
// unless overridden by a code in this segment's entry; position change is
// always cleared to zero at segment entry regardless of inheritance
// (spec.md §3 invariant).
type Segment struct {
	StartTick int

	On             []bool
	Absolute       []bool
	VStab          []VStabFlags
	PosChange      []Vec2
	Velocity       []Vec2
	Accel          []Vec2
	PatVelocity    []Vec2
	PatAccel       []Vec2

	Fix1          int
	Fix2          int
	AccuracyDeg   Vec2
	GraceDuration time.Duration

	MarkerChannel int // -1 if none
	SyncFlash     bool

	CheckResponEnabled bool
	RespCorrectChan    int
	RespIncorrectChan  int

	MidTrialReward    bool
	MTRPeriodicTicks  int // > 0: periodic interval; <= 0: end-of-segment

	SpecialOp    SpecialOp
	SaccadeThreshold float64
	RPDistroKind RPDistroKind

	DurationMinMs int
	DurationMaxMs int

	RewardWindows []RewardWindow

	Failsafe  bool
	PulseOn   bool
	ADConEnabled bool

	Perturb []PerturbSpec
}

// PerturbSpec is one target's installed velocity perturbation (spec.md
// §4.3 "perturbation installation reads a 5-code group and forwards it to
// the perturbation manager"; spec.md §4.4 "velocities are perturbed").
type PerturbSpec struct {
	Active    bool
	Kind      int
	Amplitude float64
	Frequency float64
	Phase     float64
}

// clone returns a deep-enough copy of seg for the next segment's
// inheritance, with PosChange zeroed per spec.md §3's "cleared to zero at
// each segment entry" invariant.
func (seg *Segment) clone(startTick int) *Segment {
	cp := *seg
	cp.StartTick = startTick

	cp.On = append([]bool(nil), seg.On...)
	cp.Absolute = append([]bool(nil), seg.Absolute...)
	cp.VStab = append([]VStabFlags(nil), seg.VStab...)
	cp.Velocity = append([]Vec2(nil), seg.Velocity...)
	cp.Accel = append([]Vec2(nil), seg.Accel...)
	cp.PatVelocity = append([]Vec2(nil), seg.PatVelocity...)
	cp.PatAccel = append([]Vec2(nil), seg.PatAccel...)
	cp.Perturb = append([]PerturbSpec(nil), seg.Perturb...)

	cp.PosChange = make([]Vec2, len(seg.PosChange))

	cp.RewardWindows = nil
	cp.SpecialOp = SpecialOpNone
	cp.RPDistroKind = 0
	cp.DurationMinMs, cp.DurationMaxMs = 0, 0
	cp.Failsafe, cp.PulseOn = false, false

	return &cp
}

// newFirstSegment builds the zero segment for nTargets targets, at
// startTick, with no fixation target and no special op.
func newFirstSegment(startTick, nTargets int) *Segment {
	return &Segment{
		StartTick:   startTick,
		On:          make([]bool, nTargets),
		Absolute:    make([]bool, nTargets),
		VStab:       make([]VStabFlags, nTargets),
		PosChange:   make([]Vec2, nTargets),
		Velocity:    make([]Vec2, nTargets),
		Accel:       make([]Vec2, nTargets),
		PatVelocity: make([]Vec2, nTargets),
		PatAccel:    make([]Vec2, nTargets),
		Perturb:     make([]PerturbSpec, nTargets),
		Fix1:        NoFix,
		Fix2:        NoFix,
		MarkerChannel: -1,
	}
}

// SpecialOp identifies the one special operation active during a trial's
// special segment (spec.md §4.3, §4.6).
type SpecialOp int

const (
	SpecialOpNone SpecialOp = iota
	SpecialOpSkipOnSaccade
	SpecialOpSelectByFix
	SpecialOpSelectByFix2
	SpecialOpSelectDurationByFix
	SpecialOpChooseFix1
	SpecialOpChooseFix2
	SpecialOpSwitchFix
	SpecialOpRPDistro
	SpecialOpSearch
)

// RPDistroKind is the response scalar R/P-distro averages over the
// special segment (spec.md §4.3: "upper byte of the code encodes the
// response type").
type RPDistroKind int

const (
	RPDistroVectorSpeed RPDistroKind = iota
	RPDistroHVelocity
	RPDistroVVelocity
	RPDistroDirection
)

// RewardWindow is one of up to two R/P-distro reward windows (spec.md
// §4.3 "RPDWINDOW defines up to two reward windows").
type RewardWindow struct {
	Lo, Hi float64
}
