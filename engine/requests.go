package engine

import (
	"github.com/cxlab/cxdriver/continuous"
	"github.com/cxlab/cxdriver/trial"
)

// TrStartRequest is the mailbox Request.Payload shape for CmdTrStart: a
// fully materialized target list and trial-code stream authored ahead of
// time by the GUI and handed to the interpreter whole (spec.md §4.3).
type TrStartRequest struct {
	Targets []trial.Target
	Codes   trial.CodeStream
}

// RecordRequest is the payload for CmdRecOn: where to write the recording
// stream, and whether the spike-waveform channel is present.
type RecordRequest struct {
	Path     string
	HasSpike bool
}

// FixRewSettingsRequest mirrors the subset of tunables.Snapshot settable
// over the mailbox by FIX_REW_SETTINGS (spec.md §4.2).
type FixRewSettingsRequest struct {
	RewardPulseMs            [2]int
	WithholdVariableRatio    int
	AudioPulseMs             int
	FixationAccuracyDeg      [2]float64
	GraceDurationMs          int
	SaccadeVelocityThreshold float64
	EyeSmoothingWindow       int
}

// FixTargetsRequest is the payload for CmdUpdFixTgts: the continuous-mode
// fixation-target designations (spec.md §4.8).
type FixTargetsRequest struct {
	Fix1, Fix2, Track int
	HasFix1, HasFix2  bool
}

// RunStartRequest is the payload for CmdRunStart: the continuous-mode
// active-target list and stimulus channel set (spec.md §4.8).
type RunStartRequest struct {
	Targets  []continuous.ActiveTarget
	Channels []continuous.Channel
}

// ActiveTargetEditRequest is the payload for CmdUpdActiveTgt: a
// single-target edit accepted at any time during a continuous run
// (spec.md §4.8).
type ActiveTargetEditRequest struct {
	Index int
	On    bool
	Pos   trial.Vec2
}

// InitTraceRequest is the payload for CmdInitTrace: the AI board
// reconfiguration a trial's recorded channel set requires before TR_START
// (spec.md §6 "Scan AI").
type InitTraceRequest struct {
	NChannels    int
	ScanUs       int
	SpikeChannel int
}

// InitEvtStreamRequest is the payload for CmdInitEvtStream: the DIO event
// capture reconfiguration (spec.md §6 "digital event timer").
type InitEvtStreamRequest struct {
	ClockUs          int
	EnabledInputMask uint32
}
