package cxerr

// Sentinel patterns for the error taxonomy in spec §7. Components raise
// errors with one of these patterns so that the mode controller can
// classify a failure without inspecting message text.
const (
	// Fatal: missing required device, can't create the alive mutex, can't
	// open IPC. Causes a clean shutdown without entering Idle.
	FatalPattern = "fatal: %s"

	// RuntimeAbort: ISR latency exceeded, AI read error, display comms
	// error, eye-tracker inter-sample delay exceeded.
	RuntimeAbortPattern = "runtime abort: %s"

	// ProtocolError: ill-formed trial codes, too many segments,
	// unrecognized code.
	ProtocolErrorPattern = "protocol error: %s"

	// UserAbort: TRIAL_ABORT or a SWITCH_MODE received during a trial.
	UserAbortPattern = "user abort: %s"

	// LostFixation: two consecutive fixation violations.
	LostFixationPattern = "lost fixation: %s"

	// DuplicateFrame: display duplicate-frame count exceeded tolerance.
	DuplicateFramePattern = "duplicate frame: %s"

	// FileIoError: the recording stream writer failed to write.
	FileIoErrorPattern = "file io error: %s"
)

// Fatal wraps msg as a Fatal-class error.
func Fatal(msg string) error { return Errorf(FatalPattern, msg) }

// RuntimeAbort wraps msg as a RuntimeAbort-class error.
func RuntimeAbort(msg string) error { return Errorf(RuntimeAbortPattern, msg) }

// ProtocolError wraps msg as a ProtocolError-class error.
func ProtocolError(msg string) error { return Errorf(ProtocolErrorPattern, msg) }

// UserAbort wraps msg as a UserAbort-class error.
func UserAbort(msg string) error { return Errorf(UserAbortPattern, msg) }

// LostFixation wraps msg as a LostFixation-class error.
func LostFixation(msg string) error { return Errorf(LostFixationPattern, msg) }

// DuplicateFrame wraps msg as a DuplicateFrame-class error.
func DuplicateFrame(msg string) error { return Errorf(DuplicateFramePattern, msg) }

// FileIoError wraps msg as a FileIoError-class error.
func FileIoError(msg string) error { return Errorf(FileIoErrorPattern, msg) }

// IsFatal, IsRuntimeAbort, etc. classify an error against the taxonomy.
func IsFatal(err error) bool         { return Has(err, FatalPattern) }
func IsRuntimeAbort(err error) bool  { return Has(err, RuntimeAbortPattern) }
func IsProtocolError(err error) bool { return Has(err, ProtocolErrorPattern) }
func IsUserAbort(err error) bool     { return Has(err, UserAbortPattern) }
func IsLostFixation(err error) bool  { return Has(err, LostFixationPattern) }
func IsDuplicateFrame(err error) bool { return Has(err, DuplicateFramePattern) }
func IsFileIoError(err error) bool   { return Has(err, FileIoErrorPattern) }
