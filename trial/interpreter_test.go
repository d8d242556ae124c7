package trial_test

import (
	"testing"

	"github.com/cxlab/cxdriver/cxerr"
	"github.com/cxlab/cxdriver/trial"
)

func twoTargets() []trial.Target {
	return []trial.Target{
		{Kind: trial.DisplayTarget, Subkind: trial.RandomDotPatch, Slot: 0},
		{Kind: trial.DisplayTarget, Subkind: trial.Spot, Slot: 1},
	}
}

func TestSegmentEntryOpensOnNewTick(t *testing.T) {
	stream := trial.CodeStream{
		{ID: trial.CodeStartTrial, Time: 0},
		{ID: trial.CodePosRel, Time: 0, Args: []int{0, 100, 200}},
		{ID: trial.CodePosRel, Time: 5, Args: []int{1, 50, 50}},
		{ID: trial.CodeEndTrial, Time: 10},
	}
	tr := trial.NewTrial(twoTargets(), stream)

	for tick := 0; tick <= 10; tick++ {
		if err := tr.ApplyTick(tick); err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
	}

	if !tr.Done() {
		t.Fatalf("expected trial to be done")
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(tr.Segments))
	}
	if tr.Segments[0].StartTick != 0 || tr.Segments[1].StartTick != 5 {
		t.Fatalf("unexpected segment start ticks: %+v", tr.Segments)
	}
	if tr.Segments[0].PosChange[0].H != 1.0 {
		t.Fatalf("expected target 0 PosChange.H == 1.0, got %v", tr.Segments[0].PosChange[0].H)
	}
}

func TestSegmentInheritsVelocityButClearsPosChange(t *testing.T) {
	stream := trial.CodeStream{
		{ID: trial.CodeStartTrial, Time: 0},
		{ID: trial.CodeVelocity, Time: 0, Args: []int{0, 100, 0, 0}},
		{ID: trial.CodePosRel, Time: 0, Args: []int{0, 100, 0}},
		{ID: trial.CodeSegDurs, Time: 3, Args: []int{0, 0}},
		{ID: trial.CodeEndTrial, Time: 6},
	}
	tr := trial.NewTrial(twoTargets(), stream)
	for tick := 0; tick <= 6; tick++ {
		if err := tr.ApplyTick(tick); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	second := tr.Segments[1]
	if second.Velocity[0].H != 10.0 {
		t.Fatalf("expected velocity to be inherited, got %v", second.Velocity[0].H)
	}
	if second.PosChange[0] != (trial.Vec2{}) {
		t.Fatalf("expected PosChange to be cleared on new segment, got %+v", second.PosChange[0])
	}
}

func TestFixAccuracyAppliesToCurrentSegmentMidSegment(t *testing.T) {
	stream := trial.CodeStream{
		{ID: trial.CodeStartTrial, Time: 0},
		{ID: trial.CodePosRel, Time: 0, Args: []int{0, 0, 0}},
		{ID: trial.CodeFixAccuracy, Time: 3, Args: []int{0, -1, 300, 300}},
		{ID: trial.CodeEndTrial, Time: 6},
	}
	tr := trial.NewTrial(twoTargets(), stream)
	for tick := 0; tick <= 6; tick++ {
		if err := tr.ApplyTick(tick); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	if len(tr.Segments) != 1 {
		t.Fatalf("FIXACCURACY should not open a new segment, got %d segments", len(tr.Segments))
	}
	seg := tr.Segments[0]
	if seg.Fix1 != 0 || seg.Fix2 != -1 {
		t.Fatalf("unexpected fix targets: %d, %d", seg.Fix1, seg.Fix2)
	}
	if seg.AccuracyDeg.H != 3.0 {
		t.Fatalf("expected accuracy 3.0 deg, got %v", seg.AccuracyDeg.H)
	}
}

func TestUnrecognizedCodeAborts(t *testing.T) {
	stream := trial.CodeStream{
		{ID: trial.CodeStartTrial, Time: 0},
		{ID: trial.CodeID(9999), Time: 1, Args: []int{0}},
	}
	tr := trial.NewTrial(twoTargets(), stream)

	if err := tr.ApplyTick(0); err != nil {
		t.Fatalf("unexpected error at tick 0: %v", err)
	}
	err := tr.ApplyTick(1)
	if err == nil {
		t.Fatalf("expected error for unrecognized code")
	}
	if !cxerr.IsProtocolError(err) {
		t.Fatalf("expected a protocol error, got %v", err)
	}
	if tr.Terminal() != trial.TerminalError {
		t.Fatalf("expected terminal error state, got %v", tr.Terminal())
	}
}

func TestSegmentCountAtSMaxSucceedsButSMaxPlusOneFails(t *testing.T) {
	var stream trial.CodeStream
	stream = append(stream, trial.Code{ID: trial.CodeStartTrial, Time: 0})
	for i := 0; i < trial.SMax; i++ {
		stream = append(stream, trial.Code{ID: trial.CodeSegDurs, Time: i, Args: []int{0, 0}})
	}
	tr := trial.NewTrial(twoTargets(), stream)
	for tick := 0; tick < trial.SMax; tick++ {
		if err := tr.ApplyTick(tick); err != nil {
			t.Fatalf("tick %d: unexpected error at exactly S_MAX segments: %v", tick, err)
		}
	}
	if len(tr.Segments) != trial.SMax {
		t.Fatalf("expected %d segments, got %d", trial.SMax, len(tr.Segments))
	}

	// One more segment entry must be rejected.
	over := trial.NewTrial(twoTargets(), append(stream, trial.Code{ID: trial.CodeSegDurs, Time: trial.SMax, Args: []int{0, 0}}))
	for tick := 0; tick < trial.SMax; tick++ {
		if err := over.ApplyTick(tick); err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
	}
	if err := over.ApplyTick(trial.SMax); err == nil {
		t.Fatalf("expected S_MAX+1 segment entry to be rejected")
	}
}

func TestMalformedArgCountAborts(t *testing.T) {
	stream := trial.CodeStream{
		{ID: trial.CodeStartTrial, Time: 0},
		{ID: trial.CodePosRel, Time: 1, Args: []int{0, 100}},
	}
	tr := trial.NewTrial(twoTargets(), stream)
	if err := tr.ApplyTick(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.ApplyTick(1); err == nil {
		t.Fatalf("expected error for malformed POSREL args")
	}
}
