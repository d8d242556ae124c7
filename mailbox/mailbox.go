// Package mailbox implements the IPC command/response channel between the
// non-real-time authoring process and the engine (spec.md §3 "Ownership",
// §6 "IPC mailbox"). The real deployment uses a fixed-layout shared-memory
// region and named mutexes; here the same single-reader/single-writer
// contract is realized with buffered channels of capacity 1, which is the
// Go-native equivalent of a shared memory slot guarded by a mutex — and,
// grounded on the teacher's emulation/requests.go typed request/ack
// channel, the same "exactly one pending command, one pending reply"
// shape. A process-alive flag stands in for the named "process-alive"
// mutex the real engine holds for its lifetime.
package mailbox

import (
	"sync"
	"sync/atomic"

	"github.com/cxlab/cxdriver/device"
)

// Command identifies an authoring-process request (spec.md §6).
type Command int

const (
	CmdNull Command = iota
	CmdSwitchMode
	CmdSaveChans
	CmdSetDisplay
	CmdFixRewSettings
	CmdTrStart
	CmdTrAbort
	CmdInitTrace
	CmdInitEvtStream
	CmdFixOn
	CmdFixOff
	CmdUpdFixTgts
	CmdUpdActiveTgt
	CmdRecOn
	CmdRecOff
	CmdRunStart
	CmdRunStop
	CmdPauseAI
	CmdResumeAI
	CmdGetAI
	CmdAICal
	CmdSetAO
	CmdAOWave
	CmdGetTmrState
	CmdResetTmr
	CmdSetTmrDO
	CmdMediaListFolders
	CmdMediaListFiles
	CmdMediaFileInfo
	CmdMediaDelete
	CmdMediaUpload
)

// Status is the acknowledgement byte attached to every reply.
type Status byte

const (
	StatusOK Status = iota
	StatusUnrecognized
	StatusError
)

// Request is one command plus its command-specific payload.
type Request struct {
	Cmd     Command
	Payload any
}

// Response is one reply: a status byte plus optional payload.
type Response struct {
	Status  Status
	Payload any
}

// Mailbox is the shared command/response slot. Exactly one authoring-side
// goroutine calls Send and exactly one engine-side goroutine calls Poll
// and Reply — matching spec.md §5's "single-writer-per-direction" rule;
// Mailbox does not itself prevent a second caller on either side, by
// design, the same way the real shared-memory region relies on its owning
// processes to respect the protocol rather than enforcing it internally.
type Mailbox struct {
	cmd  chan Request
	resp chan Response

	eyeSamples chan device.EyeSample

	processAlive sync.Mutex
	workerAlive  sync.Mutex
	alive        atomic.Bool
}

// NewMailbox builds a Mailbox with the given eye-tracker sample buffer
// depth (spec.md §6 "1kHz lazy sequence").
func NewMailbox(eyeBuffer int) *Mailbox {
	return &Mailbox{
		cmd:        make(chan Request, 1),
		resp:       make(chan Response, 1),
		eyeSamples: make(chan device.EyeSample, eyeBuffer),
	}
}

// HoldAlive acquires the process-alive mutex for the engine's lifetime;
// call it once at startup and release the returned func at shutdown.
// While held, IsAlive reports true to any caller checking liveness.
func (m *Mailbox) HoldAlive() (release func()) {
	m.processAlive.Lock()
	m.alive.Store(true)
	return func() {
		m.alive.Store(false)
		m.processAlive.Unlock()
	}
}

// IsAlive reports whether the engine currently holds the process-alive
// mutex.
func (m *Mailbox) IsAlive() bool {
	return m.alive.Load()
}

// Send is called by the authoring process. It posts req and blocks for
// the matching Response. Only one Send may be in flight at a time.
func (m *Mailbox) Send(req Request) Response {
	m.cmd <- req
	return <-m.resp
}

// Poll is called by the engine once per tick, outside time-critical inner
// sections (spec.md §6). It never blocks: ok is false if no command is
// currently pending.
func (m *Mailbox) Poll() (Request, bool) {
	select {
	case req := <-m.cmd:
		return req, true
	default:
		return Request{}, false
	}
}

// Reply is called by the engine after handling a polled Request.
func (m *Mailbox) Reply(resp Response) {
	m.resp <- resp
}

// DeliverEyeSample is called by the eye-tracker feed adapter to post a new
// sample into the mailbox's buffer. A full buffer drops the oldest sample,
// keeping the feed "lazy" rather than letting a stalled consumer apply
// unbounded backpressure to the tracker.
func (m *Mailbox) DeliverEyeSample(s device.EyeSample) {
	select {
	case m.eyeSamples <- s:
	default:
		select {
		case <-m.eyeSamples:
		default:
		}
		select {
		case m.eyeSamples <- s:
		default:
		}
	}
}

// NextEyeSample is the engine-side consumer of the eye-tracker feed,
// satisfying device.EyeTracker.GetNextSample's flush semantics: flush
// discards every buffered sample but the most recent before returning it.
func (m *Mailbox) NextEyeSample(flush bool) (device.EyeSample, bool, bool) {
	if !flush {
		select {
		case s := <-m.eyeSamples:
			return s, false, true
		default:
			return device.EyeSample{}, false, false
		}
	}

	var latest device.EyeSample
	got := false
	for {
		select {
		case s := <-m.eyeSamples:
			latest = s
			got = true
		default:
			return latest, false, got
		}
	}
}
