// Package fixation implements the fixation and special-operation engine
// of spec.md §4.6: per-tick gaze-in-window checking, the saccade
// detector, the nine special operations, response pushbuttons, and
// mid-trial reward scheduling.
//
// Grounded on the teacher's bots.Bot / bots.Input narrow-interface
// pattern: the eye positions and window sizes passed to each per-tick
// check play the role of bots.Input, driving a state machine that reacts
// to a handful of boolean observations per tick, rather than a monolithic object reaching into
// device state directly.
package fixation

import (
	"math"

	"github.com/cxlab/cxdriver/trial"
)

// Outcome is what the fixation/special-op check decided for one tick.
type Outcome struct {
	LostFix       bool // two consecutive violations: trial must terminate LOSTFIX
	SaccadeNow    bool
	SelectedFix   int  // 0 until a select-style special op resolves, then 1 (Fix1) or 2 (Fix2)
	EndSelected   bool // "nearest chosen at segment end" header bit
	DeliverReward [2]bool
	Marker6       bool // DO<6> marker pulse requested this tick
	SpecialDone   bool // special segment concluded its task
	SkipWarpNow   bool // skip-on-saccade: perform the time warp this tick
}

// Engine tracks the running state the per-tick check needs across ticks:
// consecutive-violation count, dwell counters, and per-segment latches.
type Engine struct {
	accuracy         func() trial.Vec2
	consecutiveLost  int
	dwellTicks       int
	selectLatch      bool
	saccadeLatch     bool // skip-on-saccade: latch set, warp fires next tick
	rpdSum           float64
	rpdCount         int
	switchInitial    int
	searchTriedSaccade bool
}

// New builds an Engine.
func New() *Engine {
	return &Engine{}
}

// Reset clears cross-tick state, called at segment entry.
func (e *Engine) Reset() {
	e.consecutiveLost = 0
	e.dwellTicks = 0
	e.selectLatch = false
	e.saccadeLatch = false
	e.rpdSum, e.rpdCount = 0, 0
	e.searchTriedSaccade = false
}

func within(eye, target, accuracy trial.Vec2) bool {
	return math.Abs(eye.H-target.H) <= accuracy.H && math.Abs(eye.V-target.V) <= accuracy.V
}

// NormalCheck implements spec.md §4.6's default fixation check: with Fix1
// designated, require the eye within a rectangular tolerance box of
// p(Fix1); two consecutive violations terminate the trial.
func (e *Engine) NormalCheck(seg *trial.Segment, eyePos, fix1Pos trial.Vec2) Outcome {
	if seg.Fix1 == trial.NoFix {
		e.consecutiveLost = 0
		return Outcome{}
	}
	if within(eyePos, fix1Pos, seg.AccuracyDeg) {
		e.consecutiveLost = 0
		return Outcome{}
	}
	e.consecutiveLost++
	if e.consecutiveLost >= 2 {
		return Outcome{LostFix: true}
	}
	return Outcome{}
}

// StereoCheck implements the binocular variant: left eye against Fix1,
// right eye against Fix2, both required.
func (e *Engine) StereoCheck(seg *trial.Segment, leftEye, rightEye, fix1Pos, fix2Pos trial.Vec2) Outcome {
	if seg.Fix1 == trial.NoFix || seg.Fix2 == trial.NoFix {
		return Outcome{}
	}
	ok := within(leftEye, fix1Pos, seg.AccuracyDeg) && within(rightEye, fix2Pos, seg.AccuracyDeg)
	if ok {
		e.consecutiveLost = 0
		return Outcome{}
	}
	e.consecutiveLost++
	if e.consecutiveLost >= 2 {
		return Outcome{LostFix: true}
	}
	return Outcome{}
}

// Saccade reports whether either eye-velocity axis exceeds threshold in
// magnitude (spec.md §4.6 "Saccade detector").
func Saccade(eyeVel trial.Vec2, threshold float64) bool {
	return math.Abs(eyeVel.H) > threshold || math.Abs(eyeVel.V) > threshold
}

// SkipOnSaccade implements the one-tick latch described in spec.md §4.6:
// on the tick a saccade is first observed, it latches; the following tick
// performs the time warp and the saccade checking disables (the caller
// should not call this again once SkipWarpNow has fired).
func (e *Engine) SkipOnSaccade(saccadeNow bool) Outcome {
	if e.saccadeLatch {
		e.saccadeLatch = false
		return Outcome{SkipWarpNow: true, Marker6: true}
	}
	if saccadeNow {
		e.saccadeLatch = true
	}
	return Outcome{}
}

// squaredDist returns the squared Euclidean distance between a and b.
func squaredDist(a, b trial.Vec2) float64 {
	dh, dv := a.H-b.H, a.V-b.V
	return dh*dh + dv*dv
}

// SelectByFix implements select-by-fix / select-by-fix-2 (spec.md §4.6).
// ghost is the ghost position (current target pos minus segment-entry
// jump), only consulted when ghostVariant is true.
func (e *Engine) SelectByFix(eye, fix1Pos, fix2Pos trial.Vec2, accuracy trial.Vec2, ghost trial.Vec2, ghostVariant bool, segmentEnding bool) Outcome {
	in1 := within(eye, fix1Pos, accuracy)
	in2 := within(eye, fix2Pos, accuracy) || (ghostVariant && within(eye, ghost, accuracy))

	if in1 || in2 {
		var sel int
		if in1 && in2 {
			if squaredDist(eye, fix1Pos) <= squaredDist(eye, fix2Pos) {
				sel = 1
			} else {
				sel = 2
			}
		} else if in1 {
			sel = 1
		} else {
			sel = 2
		}
		return Outcome{SelectedFix: sel, Marker6: true, SpecialDone: true}
	}

	if segmentEnding {
		sel := 1
		if squaredDist(eye, fix2Pos) < squaredDist(eye, fix1Pos) {
			sel = 2
		}
		return Outcome{SelectedFix: sel, EndSelected: true, Marker6: true, SpecialDone: true}
	}
	return Outcome{}
}

// ChooseFix implements choose-fix-1 / choose-fix-2: fixation checking is
// disabled until the eye enters the correct target's box, at which point
// reward #2 is delivered and the other target turned off.
func (e *Engine) ChooseFix(eye, correctPos trial.Vec2, accuracy trial.Vec2, segmentEnding bool) (Outcome, error) {
	if within(eye, correctPos, accuracy) {
		return Outcome{DeliverReward: [2]bool{false, true}, Marker6: true, SpecialDone: true}, nil
	}
	if segmentEnding {
		return Outcome{LostFix: true}, nil
	}
	return Outcome{}, nil
}

// SwitchFix implements switch-fix: fixation is satisfied while the eye is
// in either box, saccades ignored, for this segment and all later ones.
func (e *Engine) SwitchFix(eye, fix1Pos, fix2Pos, accuracy trial.Vec2) Outcome {
	if within(eye, fix1Pos, accuracy) || within(eye, fix2Pos, accuracy) {
		return Outcome{}
	}
	e.consecutiveLost++
	if e.consecutiveLost >= 2 {
		return Outcome{LostFix: true}
	}
	return Outcome{}
}

// AccumulateRPD feeds one tick's response scalar into the running mean
// for the R/P-distro special op.
func (e *Engine) AccumulateRPD(scalar float64) {
	e.rpdSum += scalar
	e.rpdCount++
}

// RPDMean returns the accumulated mean, or 0 if nothing was accumulated.
func (e *Engine) RPDMean() float64 {
	if e.rpdCount == 0 {
		return 0
	}
	return e.rpdSum / float64(e.rpdCount)
}

// RPDistroResult reports reward pulse #2 (rather than #1) if the mean
// falls inside a configured reward window, or if it falls outside and
// windows were defined.
func RPDistroResult(mean float64, windows []trial.RewardWindow) (rewardNow bool, useRewardTwoAtEnd bool) {
	if len(windows) == 0 {
		return false, false
	}
	for _, w := range windows {
		if mean >= w.Lo && mean <= w.Hi {
			return true, false
		}
	}
	return false, true
}

// SelectDurationByFix computes the adjusted min/max segment durations and
// the length delta to fold into the trial schedule when the minimum
// duration is chosen (spec.md §4.6).
func SelectDurationByFix(selected int, seg *trial.Segment) (usedMs int, deltaMs int) {
	if selected == 0 {
		return seg.DurationMaxMs, 0
	}
	return seg.DurationMinMs, seg.DurationMinMs - seg.DurationMaxMs
}

// Search implements the search task: N = dwell ticks required within a
// target's box; exiting searchBounds ends the task unrewarded. A 2-goal
// segment offers Fix1 and Fix2, both rewarded; a 1-goal segment offers
// Fix1 plus a distractor box, with the distractor rewarded at pulse #2
// and Fix2's box (if dwelt in anyway) unrewarded (spec.md §4.6).
func (e *Engine) Search(eye trial.Vec2, fix1Pos, fix2Pos, distractorPos trial.Vec2, accuracy trial.Vec2, searchBounds trial.Vec2, requiredDwell int, twoGoal bool) Outcome {
	if math.Abs(eye.H) > searchBounds.H || math.Abs(eye.V) > searchBounds.V {
		e.dwellTicks = 0
		return Outcome{SpecialDone: true}
	}

	in1 := within(eye, fix1Pos, accuracy)
	in2 := twoGoal && within(eye, fix2Pos, accuracy)
	inDistractor := !twoGoal && within(eye, distractorPos, accuracy)

	if !in1 && !in2 && !inDistractor {
		e.dwellTicks = 0
		return Outcome{}
	}
	e.dwellTicks++

	if e.dwellTicks < requiredDwell {
		return Outcome{}
	}

	switch {
	case in1:
		return Outcome{SelectedFix: 1, DeliverReward: [2]bool{true, false}, SpecialDone: true}
	case in2:
		return Outcome{SelectedFix: 2, DeliverReward: [2]bool{false, true}, SpecialDone: true}
	default: // inDistractor
		return Outcome{SelectedFix: 2, DeliverReward: [2]bool{false, true}, SpecialDone: true}
	}
}

// MarkSaccadeAttempt records that the eye reached saccadic velocity
// during the search segment (spec.md §4.6 "tried").
func (e *Engine) MarkSaccadeAttempt() { e.searchTriedSaccade = true }

// SearchTried reports whether the subject reached saccadic velocity at
// any point in the search segment.
func (e *Engine) SearchTried() bool { return e.searchTriedSaccade }

// ResponseCheck implements the response-pushbutton check of spec.md §4.6:
// a voltage above 2.0V on the configured channel selects correct or
// incorrect.
func ResponseCheck(correctVolts, incorrectVolts float64) (responded bool, correct bool) {
	const threshold = 2.0
	if incorrectVolts > threshold {
		return true, false
	}
	if correctVolts > threshold {
		return true, true
	}
	return false, false
}

// MidTrialRewardDue reports whether a mid-trial reward delivery is due
// this tick, for both periodic and end-of-segment modes (spec.md §4.6).
// countdown is the caller-owned tick counter; it is decremented and reset
// internally by this call per the periodic-mode contract.
func MidTrialRewardDue(seg *trial.Segment, countdown *int, tickInSegment int, isLastSegment bool, segmentEnding bool) bool {
	if !seg.MidTrialReward {
		return false
	}
	if seg.MTRPeriodicTicks > 0 {
		*countdown--
		if *countdown <= 0 {
			*countdown = seg.MTRPeriodicTicks
			return true
		}
		return false
	}
	return segmentEnding && !isLastSegment
}
