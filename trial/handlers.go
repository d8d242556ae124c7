package trial

import (
	"fmt"
	"math"

	"github.com/cxlab/cxdriver/cxerr"
)

// handlerFunc applies one segment-entry code to seg, with access to the
// owning Trial for codes whose effect is trial-wide (REWARDLEN).
type handlerFunc func(t *Trial, seg *Segment, code Code) error

// dispatch is the table-driven lookup of spec.md §9's design note: each
// code number maps to a handler of fixed arity, looked up once per code.
var dispatch = map[CodeID]handlerFunc{
	CodePosRel:          handlePos(false),
	CodePosAbs:          handlePos(true),
	CodeVelocity:        handleVelocity,
	CodeAcceleration:    handleAcceleration,
	CodePatVelocity:     handlePatVelocity,
	CodePatAcceleration: handlePatAcceleration,
	CodePerturb:         handlePerturb,
	CodeRewardLen:       handleRewardLen,
	CodeMidTrialReward:  handleMidTrialReward,
	CodeSpecialOp:       handleSpecialOp,
	CodeSegDurs:         handleSegDurs,
	CodeRPDWindow:       handleRPDWindow,
	CodeFailsafe:        handleFailsafe,
	CodeCheckResponOn:   handleCheckResponOn,
	CodeCheckResponOff:  handleCheckResponOff,
	CodeADCon:           handleADCon,
	CodePulseOn:         handlePulseOn,
}

func needArgs(code Code, n int) error {
	if len(code.Args) < n {
		return cxerr.ProtocolError(fmt.Sprintf("trial code %d at tick %d: expected %d args, got %d", code.ID, code.Time, n, len(code.Args)))
	}
	return nil
}

func badIndex(code Code, idx int) error {
	return cxerr.ProtocolError(fmt.Sprintf("trial code %d: target index %d out of range", code.ID, idx))
}

// handlePos builds the POSREL/POSABS handler; the two codes share a
// layout [targetIdx, deltaH*100, deltaV*100] and differ only in whether
// the displacement is relative to the target's current position or an
// absolute overwrite (spec.md §4.3).
func handlePos(absolute bool) handlerFunc {
	return func(t *Trial, seg *Segment, code Code) error {
		if err := needArgs(code, 3); err != nil {
			return err
		}
		idx := code.Args[0]
		if idx < 0 || idx >= len(seg.PosChange) {
			return badIndex(code, idx)
		}
		seg.Absolute[idx] = absolute
		seg.PosChange[idx] = Vec2{
			H: float64(code.Args[1]) / PosScale,
			V: float64(code.Args[2]) / PosScale,
		}
		return nil
	}
}

// scaledVec reads args[1], args[2] as an (H, V) pair and args[3] as the
// std/slow selector (non-zero means slow), per the shared velocity/
// acceleration code layout (spec.md §4.3).
func scaledVec(code Code, stdScale, slowScale float64) (Vec2, error) {
	if err := needArgs(code, 4); err != nil {
		return Vec2{}, err
	}
	divisor := stdScale
	if code.Args[3] != 0 {
		divisor = slowScale
	}
	return Vec2{
		H: float64(code.Args[1]) / divisor,
		V: float64(code.Args[2]) / divisor,
	}, nil
}

func handleVelocity(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	idx := code.Args[0]
	if idx < 0 || idx >= len(seg.Velocity) {
		return badIndex(code, idx)
	}
	v, err := scaledVec(code, VelScaleStd, VelScaleSlow)
	if err != nil {
		return err
	}
	seg.Velocity[idx] = v
	return nil
}

func handleAcceleration(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	idx := code.Args[0]
	if idx < 0 || idx >= len(seg.Accel) {
		return badIndex(code, idx)
	}
	a, err := scaledVec(code, AccScaleStd, AccScaleSlow)
	if err != nil {
		return err
	}
	seg.Accel[idx] = a
	return nil
}

func handlePatVelocity(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	idx := code.Args[0]
	if idx < 0 || idx >= len(seg.PatVelocity) {
		return badIndex(code, idx)
	}
	v, err := scaledVec(code, VelScaleStd, VelScaleSlow)
	if err != nil {
		return err
	}
	seg.PatVelocity[idx] = v
	return nil
}

func handlePatAcceleration(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	idx := code.Args[0]
	if idx < 0 || idx >= len(seg.PatAccel) {
		return badIndex(code, idx)
	}
	a, err := scaledVec(code, AccScaleStd, AccScaleSlow)
	if err != nil {
		return err
	}
	seg.PatAccel[idx] = a
	return nil
}

// handlePerturb consumes the 5-code perturbation-installation group and
// forwards it to the per-target perturbation slot (spec.md §4.3, §4.4).
func handlePerturb(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 5); err != nil {
		return err
	}
	idx := code.Args[0]
	if idx < 0 || idx >= len(seg.Perturb) {
		return badIndex(code, idx)
	}
	seg.Perturb[idx] = PerturbSpec{
		Active:    true,
		Kind:      code.Args[1],
		Amplitude: float64(code.Args[2]) / VelScaleStd,
		Frequency: float64(code.Args[3]) / PosScale,
		Phase:     float64(code.Args[4]) / PosScale,
	}
	return nil
}

// handleRewardLen and handleMidTrialReward touch trial-wide reward state
// rather than per-segment state ("REWARDLEN and MIDTRIALREW update reward
// lengths for the trial" — spec.md §4.3). A zero length is a valid
// withhold marker, not an error.
func handleRewardLen(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 2); err != nil {
		return err
	}
	slot := code.Args[0]
	if slot != 0 && slot != 1 {
		return cxerr.ProtocolError(fmt.Sprintf("REWARDLEN: slot must be 0 or 1, got %d", slot))
	}
	t.RewardPulseMs[slot] = code.Args[1]
	return nil
}

func handleMidTrialReward(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	seg.MidTrialReward = true
	seg.MTRPeriodicTicks = code.Args[0]
	return nil
}

// handleSpecialOp decodes the special-op code number and, for R/P-distro,
// the upper-byte response-type selector (spec.md §4.3).
func handleSpecialOp(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 2); err != nil {
		return err
	}
	opWord := code.Args[0]
	lower := SpecialOp(opWord & 0xFF)
	upper := RPDistroKind((opWord >> 8) & 0xFF)

	if lower < SpecialOpNone || lower > SpecialOpSearch {
		return cxerr.ProtocolError(fmt.Sprintf("SPECIALOP: unrecognized op %d", lower))
	}

	seg.SpecialOp = lower
	seg.SaccadeThreshold = math.Abs(float64(code.Args[1]))
	if lower == SpecialOpRPDistro {
		seg.RPDistroKind = upper
	}
	return nil
}

func handleSegDurs(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 2); err != nil {
		return err
	}
	seg.DurationMinMs = code.Args[0]
	seg.DurationMaxMs = code.Args[1]
	return nil
}

func handleRPDWindow(t *Trial, seg *Segment, code Code) error {
	seg.RewardWindows = nil
	for i := 0; i+1 < len(code.Args); i += 2 {
		seg.RewardWindows = append(seg.RewardWindows, RewardWindow{
			Lo: float64(code.Args[i]) / PosScale,
			Hi: float64(code.Args[i+1]) / PosScale,
		})
		if len(seg.RewardWindows) == 2 {
			break
		}
	}
	return nil
}

func handleFailsafe(t *Trial, seg *Segment, code Code) error {
	seg.Failsafe = true
	return nil
}

func handleCheckResponOn(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 2); err != nil {
		return err
	}
	seg.CheckResponEnabled = true
	seg.RespCorrectChan = code.Args[0]
	seg.RespIncorrectChan = code.Args[1]
	return nil
}

func handleCheckResponOff(t *Trial, seg *Segment, code Code) error {
	seg.CheckResponEnabled = false
	return nil
}

func handleADCon(t *Trial, seg *Segment, code Code) error {
	seg.ADConEnabled = true
	return nil
}

func handlePulseOn(t *Trial, seg *Segment, code Code) error {
	if err := needArgs(code, 1); err != nil {
		return err
	}
	seg.PulseOn = true
	seg.MarkerChannel = code.Args[0]
	return nil
}
