package trial

import (
	"fmt"

	"github.com/cxlab/cxdriver/cxerr"
)

// State is the trial's coarse lifecycle stage (spec.md §4.3).
type State int

const (
	StateInit State = iota
	StatePreprocess
	StateWarmup
	StateRun
	StateFinalize
)

// Terminal identifies why a trial stopped running (spec.md §4.3, §4.6).
type Terminal int

const (
	TerminalNone Terminal = iota
	TerminalCompleted
	TerminalLostFix
	TerminalAbortedByUser
	TerminalError
	TerminalDupFrame
	TerminalEyelinkError
)

// ResultFlags is the bitmask recorded against a finished trial (spec.md
// §4.7 "result code").
type ResultFlags uint32

const (
	ResultDone ResultFlags = 1 << iota
	ResultError
	ResultAborted
	ResultLostFix
	ResultDupFrame
	ResultEyelinkErr
	ResultRewardEarned
	ResultRewardGiven
	ResultFix1Selected
	ResultFix2Selected
	ResultEndSelected
	ResultIsContinuous
	ResultSavedSpikes
)

// Trial is the live interpreter state for one trial: the target list, the
// segment list built up as codes are applied, and the cursor into the
// code stream (spec.md §3, §4.3).
type Trial struct {
	Targets []Target
	Segments []*Segment

	stream CodeStream
	cursor int
	tick   int

	state    State
	terminal Terminal
	Result   ResultFlags

	done bool

	// RewardPulseMs holds the two reward-channel pulse lengths in
	// milliseconds, set by REWARDLEN and read by engine.TrialSession when
	// it delivers a reward (spec.md §4.3, §4.6).
	RewardPulseMs [2]int
}

// NewTrial builds a Trial ready to interpret stream against nTargets
// targets, starting in segment 0 at tick 0.
func NewTrial(targets []Target, stream CodeStream) *Trial {
	t := &Trial{
		Targets: targets,
		stream:  stream,
		state:   StateInit,
	}
	t.Segments = []*Segment{newFirstSegment(0, len(targets))}
	return t
}

// CurrentSegment returns the most recently entered segment.
func (t *Trial) CurrentSegment() *Segment {
	return t.Segments[len(t.Segments)-1]
}

// State returns the trial's current lifecycle stage.
func (t *Trial) State() State { return t.state }

// Terminal returns the trial's stop reason, or TerminalNone while still
// running.
func (t *Trial) Terminal() Terminal { return t.terminal }

// Done reports whether an ENDTRIAL code has been applied.
func (t *Trial) Done() bool { return t.done }

// Abort terminates the trial from outside the code-stream interpreter:
// lost fixation, a user abort, a display duplicate-frame abort, or an
// eye-tracker failure, none of which arrive as a trial code (spec.md
// §4.3's terminal substates). A no-op once the trial is already done.
func (t *Trial) Abort(term Terminal) {
	if t.done {
		return
	}
	t.terminal = term
	t.state = StateFinalize
	t.done = true
	switch term {
	case TerminalLostFix:
		t.Result |= ResultLostFix
	case TerminalAbortedByUser:
		t.Result |= ResultAborted
	case TerminalDupFrame:
		t.Result |= ResultDupFrame
	case TerminalEyelinkError:
		t.Result |= ResultEyelinkErr
	case TerminalError:
		t.Result |= ResultError
	}
}

// ensureSegmentEntry returns the segment whose StartTick == tick, cloning
// the current segment and appending it to Segments if this is the first
// code seen at tick. Enforces the S_MAX segment-count bound (spec.md §8
// "Segment count at exactly S_MAX succeeds; S_MAX+1 is rejected").
func (t *Trial) ensureSegmentEntry(tick int) (*Segment, error) {
	cur := t.CurrentSegment()
	if cur.StartTick == tick {
		return cur, nil
	}
	if len(t.Segments) >= SMax {
		return nil, cxerr.ProtocolError(fmt.Sprintf("trial exceeds maximum segment count %d at tick %d", SMax, tick))
	}
	next := cur.clone(tick)
	t.Segments = append(t.Segments, next)
	return next, nil
}

// ApplyTick drains and applies every code due at tick, in stream order.
// It must be called with non-decreasing tick values; codes are applied
// strictly in the order the stream presents them (spec.md §4.3 "codes are
// applied to the trial in stream order").
func (t *Trial) ApplyTick(tick int) error {
	if t.done {
		return nil
	}
	t.tick = tick
	run, next := t.stream.dueAt(t.cursor, tick)
	t.cursor = next
	for _, code := range run {
		if err := t.applyCode(code); err != nil {
			t.state = StateFinalize
			t.terminal = TerminalError
			t.Result |= ResultError
			return err
		}
		if t.done {
			break
		}
	}
	return nil
}

// applyCode dispatches one code to its handler, special-casing the three
// codes that are not segment-entry field writes: STARTTRIAL (a no-op
// marker consumed only for its timestamp), ENDTRIAL (marks the trial
// done), and FIXACCURACY (applied to the current segment regardless of
// whether this tick opened it — spec.md §9 Open Question, resolved in
// DESIGN.md: fixation accuracy may tighten mid-segment without starting a
// new one).
func (t *Trial) applyCode(code Code) error {
	switch code.ID {
	case CodeStartTrial:
		if t.state == StateInit {
			t.state = StatePreprocess
		}
		return nil
	case CodeEndTrial:
		t.done = true
		if t.terminal == TerminalNone {
			t.terminal = TerminalCompleted
			t.Result |= ResultDone
		}
		t.state = StateFinalize
		return nil
	case CodeFixAccuracy:
		return t.applyFixAccuracy(code)
	}

	fn, ok := dispatch[code.ID]
	if !ok {
		return cxerr.ProtocolError(fmt.Sprintf("unrecognized trial code %d at tick %d", code.ID, code.Time))
	}
	seg, err := t.ensureSegmentEntry(code.Time)
	if err != nil {
		return err
	}
	if t.state == StatePreprocess || t.state == StateInit {
		t.state = StateRun
	}
	return fn(t, seg, code)
}

// applyFixAccuracy sets the fixation-window half-widths and the fixation
// targets on the current segment without requiring a fresh segment entry,
// so an accuracy tightening mid-segment (a "grace period" adjustment)
// takes effect immediately rather than waiting for the next code group.
func (t *Trial) applyFixAccuracy(code Code) error {
	if err := needArgs(code, 4); err != nil {
		return err
	}
	seg := t.CurrentSegment()
	seg.Fix1 = code.Args[0]
	seg.Fix2 = code.Args[1]
	seg.AccuracyDeg = Vec2{
		H: float64(code.Args[2]) / PosScale,
		V: float64(code.Args[3]) / PosScale,
	}
	if len(code.Args) >= 5 {
		seg.GraceDuration = durationFromMs(code.Args[4])
	}
	return nil
}
