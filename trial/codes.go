package trial

// CodeID identifies a trial-code instruction (spec.md §4.3). Args carries
// whatever parameters that code's handler needs — the Go-native
// equivalent of the legacy "multi-pair group", already assembled by the
// mailbox layer into one materialized Code rather than left as separate
// (code, time) pairs on the wire (see SPEC_FULL.md §3 CodeStream).
type CodeID int

const (
	CodeStartTrial CodeID = iota
	CodeEndTrial
	CodeFixAccuracy
	CodePosRel
	CodePosAbs
	CodeVelocity
	CodeAcceleration
	CodePatVelocity
	CodePatAcceleration
	CodePerturb
	CodeRewardLen
	CodeMidTrialReward
	CodeSpecialOp
	CodeSegDurs
	CodeRPDWindow
	CodeFailsafe
	CodeCheckResponOn
	CodeCheckResponOff
	CodeADCon
	CodePulseOn
)

// Scale factors for the fixed-point code arguments (spec.md §4.3). The
// legacy numeric values were not recovered in the distillation; these are
// documented placeholders (see DESIGN.md) except PosScale, which the spec
// gives explicitly ("positions are in 1/100 degree").
const (
	PosScale      = 100.0
	VelScaleStd   = 10.0
	VelScaleSlow  = 100.0
	AccScaleStd   = 10.0
	AccScaleSlow  = 100.0
)

// Code is one materialized trial-code instruction.
type Code struct {
	ID   CodeID
	Time int // tick at which this code is due
	Args []int
}

// CodeStream is the ordered vector of codes the GUI authors for one trial,
// terminated by a CodeEndTrial (spec.md §4.3).
type CodeStream []Code

// dueAt returns the contiguous run of codes in cs whose Time equals tick,
// starting at index from, and the index just past that run.
func (cs CodeStream) dueAt(from, tick int) (run []Code, next int) {
	i := from
	for i < len(cs) && cs[i].Time == tick {
		i++
	}
	return cs[from:i], i
}
