// Package syncmark implements the synchronization-marker stream of
// spec.md §4.9: a dedicated DO-bit pulse marking record start/stop, and a
// character-writer byte stream bracketing a recording with sentinel
// codes (START/STOP/ABORT/LOSTFIX/NOFILE/DATASAVED) for offline merging
// with other acquisition systems. Grounded on the teacher's
// debugger/terminal byte-stream writer shape: a thin component that only
// ever appends bytes to an output sink, with no parsing or buffering
// logic of its own.
package syncmark

import (
	"time"

	"github.com/cxlab/cxdriver/device"
)

// Sentinel bytes bracketing a recording's sync-stream sequence (spec.md
// §4.9). Values are an internal wire convention; the only requirement is
// that they are distinct and stable across a recording.
const (
	CharStart     byte = 0x01
	CharStop      byte = 0x02
	CharAbort     byte = 0x03
	CharLostFix   byte = 0x04
	CharNoFile    byte = 0x05
	CharDataSaved byte = 0x06
)

// DefaultMarkerBit is the DO bit carrying record start/stop pulses (spec.md
// §4.9: "bit 11 by convention").
const DefaultMarkerBit uint32 = 1 << 11

// Writer emits marker pulses and sync-stream characters through a
// device.DIO, enforcing the minimum inter-pulse spacing of spec.md §4.9
// and §8.
type Writer struct {
	dio        device.DIO
	markerBit  uint32
	minSpacing time.Duration

	lastPulse time.Time
	hasPulsed bool

	sleep func(time.Duration)
	now   func() time.Time
}

// NewWriter builds a Writer. minSpacing is the minimum duration between
// successive TriggerMarkers invocations (900us per spec.md §4.9/§8).
func NewWriter(dio device.DIO, markerBit uint32, minSpacing time.Duration) *Writer {
	return &Writer{
		dio:        dio,
		markerBit:  markerBit,
		minSpacing: minSpacing,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Pulse emits a marker pulse on the configured DO bit, first sleeping for
// the remainder if fewer than minSpacing has elapsed since the previous
// pulse (spec.md §4.9).
func (w *Writer) Pulse() {
	now := w.now()
	if w.hasPulsed {
		if wait := w.minSpacing - now.Sub(w.lastPulse); wait > 0 {
			w.sleep(wait)
			now = w.now()
		}
	}
	w.dio.TriggerMarkers(w.markerBit)
	w.lastPulse = now
	w.hasPulsed = true
}

// Start emits the record-start marker pulse and writes the START
// sentinel, followed by either the recorded file's name (null-terminated)
// or the NOFILE sentinel when no file is being retained.
func (w *Writer) Start(filename string, hasFile bool) {
	w.Pulse()
	w.dio.WriteChar(CharStart)
	if hasFile {
		w.dio.WriteString(append([]byte(filename), 0))
	} else {
		w.dio.WriteChar(CharNoFile)
	}
}

// LostFix writes the LOSTFIX sentinel, for a trial that terminated with
// lost fixation.
func (w *Writer) LostFix() {
	w.dio.WriteChar(CharLostFix)
}

// Abort writes the ABORT sentinel, for a trial aborted by protocol error,
// user abort, or device error.
func (w *Writer) Abort() {
	w.dio.WriteChar(CharAbort)
}

// DataSaved writes the DATASAVED sentinel once a recording has been
// successfully closed with its data retained.
func (w *Writer) DataSaved() {
	w.dio.WriteChar(CharDataSaved)
}

// Stop emits the record-stop marker pulse and writes the STOP sentinel,
// closing the bracketed sequence.
func (w *Writer) Stop() {
	w.Pulse()
	w.dio.WriteChar(CharStop)
}
