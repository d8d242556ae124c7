// Package device defines the narrow contracts the engine uses to talk to
// real-time hardware: analog scan input, chair analog output, the digital
// event timer, the remote display, and the eye-tracker feed. Grounded on
// the teacher's hardware/memory/bus package, which splits the VCS memory
// bus into narrow per-actor interfaces (CPUBus, ChipBus, InputDeviceBus,
// DebuggerBus) rather than one wide interface every caller must satisfy in
// full; here each device category gets its own interface for the same
// reason — the scheduler only ever needs AI, the mode controller only ever
// needs DIO startup, and so on. Reference (simulated) backends implementing
// these live in device/simai, device/simdio, device/simeye, and rdispsim.
package device

import "context"

// AI is the scan analog-input board (spec.md §6 "Scan AI").
type AI interface {
	// Configure arms the board for nChannels regular channels at scanUs
	// microseconds per scan. spikeChannel selects an additional 25kHz
	// spike-waveform channel, or -1 if none. enableStartScanInt controls
	// whether the start-of-scan interrupt fires.
	Configure(nChannels int, scanUs int, spikeChannel int, enableStartScanInt bool) error
	Start() error
	Stop() error

	// Unload retrieves the slow-channel samples accumulated since the last
	// call, plus any fast (spike) samples, blocking until complete if
	// requested. It returns false if the board reports an error.
	Unload(ctx context.Context, slowBuf []int16, fastBuf []int16, blockUntilComplete bool) (nSlow, nFast int, ok bool)

	// InstallISR registers fn to be called, with ctx, once per scan
	// boundary. Mirrors the C contract of a static ISR entry point plus an
	// opaque user context (spec.md §9).
	InstallISR(fn func(ctx any), ctx any)
}

// ChairAO is the analog-output path driving the vestibular chair.
type ChairAO interface {
	InitChair() error
	SettleChair(measuredPosDeg float64) error
	UpdateChair(cmdVelDegPerSec, measuredPosDeg, expectedPosDeg float64) error
	Out(channel int, volts float64) error
}

// DIO is the digital event timer: event capture, marker pulses, reward
// delivery, and the character-writer sync stream.
type DIO interface {
	Configure(clockUs int, enabledInputMask uint32) error
	Start() error
	Stop() error

	// UnloadEvents drains up to len(outMasks) captured (mask, time10us)
	// pairs and returns the count actually written.
	UnloadEvents(outMasks []uint32, outTimes10us []uint32) int

	TriggerMarkers(mask uint32)
	SetDO(value uint32)
	SetFixationStatus()
	ClearFixationStatus()

	// DeliverReward attempts a reward pulse, subject to the variable-ratio
	// withhold; it reports whether a pulse was actually delivered.
	DeliverReward(whvr int, pulseLenMs, audioLenMs int) (delivered bool)

	WriteChar(b byte)
	WriteString(data []byte)

	// SetDOBusyWaitTimes configures the three per-step busy waits in the
	// DO delivery path (spec.md §6), to tolerate slow latched devices.
	SetDOBusyWaitTimes(a, b, c int)
}

// FrameRecord is the fixed per-target record a display-frame update
// carries (spec.md §6).
type FrameRecord struct {
	On   bool
	HWin float64
	VWin float64
	HPat float64
	VPat float64
}

// TargetDef describes a target as authored to the remote display's target
// list (spec.md §3 "Target").
type TargetDef struct {
	Kind  int
	Flags uint32
}

// RemoteDisplay is the frame-accurate network display (spec.md §6).
type RemoteDisplay interface {
	Reinit() error
	AddTarget(def TargetDef) error
	LoadTargets() error

	StartAnimation(frame0, frame1 []FrameRecord, flashOnFrame0 bool) (ok bool)
	UpdateAnimation(frameN []FrameRecord, flashOnNextUpdate bool) (ok bool, nFramesElapsed int)

	NumDuplicateFrames() int
	DuplicateFrameEventInfo(i int) (frameIdx int, count int)

	StopAnimation() error
	FramePeriod() float64

	ScreenWidthPix() int
	ScreenHeightPix() int
	ScreenWidthDeg() float64
	Geometry() (distance, width, height float64)
	SetGeometry(distance, width, height float64)

	SetBkgColor(r, g, b uint8)
	SetSyncFlashParams(size float64, dur float64)
}

// EyeSample is one sample from the eye-tracker feed (spec.md §6).
type EyeSample struct {
	TimestampMs int64
	LeftPos     [2]float64
	LeftVel     [2]float64
	LeftHasEye  bool
	RightPos    [2]float64
	RightVel    [2]float64
	RightHasEye bool
}

// RecordType identifies which eyes an EyeTracker feed provides.
type RecordType int

const (
	MonoLeft RecordType = iota
	MonoRight
	Binocular
)

// EyeTracker is the 1kHz eye-position feed (spec.md §6), delivered via the
// IPC mailbox in the real deployment and consumed here as a plain Go
// interface so that both the mailbox-backed production path and a
// recorded-sample bench fixture (device/simeye) can satisfy it.
type EyeTracker interface {
	// GetNextSample returns the next sample, or ok=false if none is
	// currently available. flush discards any samples older than the
	// most recent on return, matching the teacher's "lazy sequence"
	// flush semantics (spec.md §6).
	GetNextSample(flush bool) (sample EyeSample, isRepeat bool, ok bool)
	RecordType() RecordType
}
