// Package record implements the recording-stream writer of spec.md §4.7:
// fixed-layout binary records for analog samples, spike waveforms, and
// digital events, delta-compressed and drained by a background worker
// from a bounded queue.
//
// Grounded on the teacher's database.Session lifecycle (Open-style setup,
// a background-owned resource, curated errors on misuse) generalized
// from an in-memory keyed entry table to a file-backed append-only
// stream; the queue/worker split follows the same "bounded channel,
// dedicated goroutine" shape used throughout the teacher's emulation
// package for anything that must not block the caller.
package record

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/cxlab/cxdriver/cxerr"
)

// RecordKind identifies one of the five fixed binary record layouts
// (spec.md §4.7).
type RecordKind byte

const (
	KindHeader RecordKind = iota
	KindAI
	KindSpikeWave
	KindEvent0
	KindEvent1
	KindOther
)

// Fixed record payload sizes in bytes, chosen so that a record always
// fills in a bounded, compile-time-known number of encoded samples.
const (
	aiRecordBytes        = 1024
	spikeWaveRecordBytes = 1024
	eventRecordBytes     = 1024
	otherRecordBytes     = 1024
)

const defaultQueueDepth = 30

// otherPad is the OTHER record's partial-fill sentinel pair (spec.md
// §4.7: "(0, 0x07FFFFFF) pairs for OTHER").
const otherPadTime = 0x07FFFFFF

// intervalPad is the EVENT0/EVENT1 partial-fill sentinel (spec.md §4.7:
// "0x07FFFFFF for interval records").
const intervalPad = 0x07FFFFFF

// record is one fixed-size block ready to enqueue.
type record struct {
	kind RecordKind
	buf  []byte
}

// Header is the rewritable first record, finalized at Close.
type Header struct {
	AIBytes        int
	SpikeBytes     int
	Event0Count    int
	Event1Count    int
	OtherCount     int
	RecordsWritten int
}

func (h *Header) encode() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.AIBytes))
	binary.LittleEndian.PutUint32(buf[4:], uint32(h.SpikeBytes))
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.Event0Count))
	binary.LittleEndian.PutUint32(buf[12:], uint32(h.Event1Count))
	binary.LittleEndian.PutUint32(buf[16:], uint32(h.OtherCount))
	binary.LittleEndian.PutUint32(buf[20:], uint32(h.RecordsWritten))
	return buf
}

// deltaEncodeByte appends the signed-difference encoding of delta = cur -
// prev to out: one byte (bias +64) if |delta| < 64, else two bytes with
// the high byte's bit 7 set and 12 bits of payload (spec.md §4.7).
func deltaEncodeByte(out []byte, delta int) []byte {
	if delta >= -63 && delta <= 63 {
		return append(out, byte(delta+64))
	}
	v := delta & 0x0FFF
	hi := byte(0x80 | (v>>8)&0x0F)
	lo := byte(v & 0xFF)
	return append(out, hi, lo)
}

// DecodeDeltas is the inverse of deltaEncodeByte: it decodes a raw
// encoded byte buffer back into the signed deltas it represents. The
// single-byte range stopping at -63 (not -64) is what keeps a zero byte
// unambiguous as a pad sentinel, since no real single-byte encoding
// ever produces it; zero bytes are skipped.
func DecodeDeltas(buf []byte) []int {
	var out []int
	for i := 0; i < len(buf); {
		b := buf[i]
		if b == 0 {
			i++
			continue
		}
		if b&0x80 == 0 {
			out = append(out, int(b)-64)
			i++
			continue
		}
		if i+1 >= len(buf) {
			break
		}
		v := int(b&0x0F)<<8 | int(buf[i+1])
		if v >= 0x800 {
			v -= 0x1000
		}
		out = append(out, v)
		i += 2
	}
	return out
}

// DecodeAISamples reconstructs the per-tick channel sample sequence
// encoded by aiStream.Encode from a buffer of concatenated AI/spike
// records, for verifying the round-trip property of the delta
// compression (spec.md §4.7). nChannels must match the stream's
// original channel count; any trailing partial tick (from a padded
// final record) is dropped.
func DecodeAISamples(buf []byte, nChannels int) [][]int16 {
	deltas := DecodeDeltas(buf)
	prev := make([]int16, nChannels)
	var out [][]int16
	for i := 0; i+nChannels <= len(deltas); i += nChannels {
		tick := make([]int16, nChannels)
		for c := 0; c < nChannels; c++ {
			prev[c] += int16(deltas[i+c])
			tick[c] = prev[c]
		}
		out = append(out, tick)
	}
	return out
}

// aiStream encodes one tick's worth of retained AI channel samples as
// signed differences from the previous retained sample per channel.
type aiStream struct {
	prev []int16
	buf  []byte
}

func newAIStream(nChannels int) *aiStream {
	return &aiStream{prev: make([]int16, nChannels)}
}

// Encode appends one tick's deltas and returns completed fixed-size
// records, resetting the internal buffer after each.
func (s *aiStream) Encode(samples []int16) [][]byte {
	for i, v := range samples {
		s.buf = deltaEncodeByte(s.buf, int(v)-int(s.prev[i]))
		s.prev[i] = v
	}
	var out [][]byte
	for len(s.buf) >= aiRecordBytes {
		out = append(out, append([]byte(nil), s.buf[:aiRecordBytes]...))
		s.buf = s.buf[aiRecordBytes:]
	}
	return out
}

// Flush pads the remaining partial buffer with zero bytes to a full
// record (spec.md §4.7: "0 for byte records") and returns it, or nil if
// empty.
func (s *aiStream) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	out := append([]byte(nil), s.buf...)
	for len(out) < aiRecordBytes {
		out = append(out, 0)
	}
	s.buf = nil
	return out
}

// eventIntervalStream accumulates inter-event intervals for one DI bit
// (EVENT0 or EVENT1) as 4-byte little-endian intervals in units of 10
// microseconds.
type eventIntervalStream struct {
	lastTime10u uint32
	hasLast     bool
	buf         []byte
	count       int
}

func (s *eventIntervalStream) Push(time10u uint32) [][]byte {
	if s.hasLast {
		interval := time10u - s.lastTime10u
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, interval)
		s.buf = append(s.buf, b...)
		s.count++
	}
	s.lastTime10u = time10u
	s.hasLast = true

	var out [][]byte
	for len(s.buf) >= eventRecordBytes {
		out = append(out, append([]byte(nil), s.buf[:eventRecordBytes]...))
		s.buf = s.buf[eventRecordBytes:]
	}
	return out
}

func (s *eventIntervalStream) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	out := append([]byte(nil), s.buf...)
	for len(out) < eventRecordBytes {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, intervalPad)
		out = append(out, b...)
	}
	return out[:eventRecordBytes]
}

// otherStream accumulates (mask, time) pairs for DI bits other than 0/1.
type otherStream struct {
	buf []byte
}

func (s *otherStream) Push(mask uint32, time10u uint32) [][]byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], mask)
	binary.LittleEndian.PutUint32(b[4:], time10u)
	s.buf = append(s.buf, b...)

	var out [][]byte
	for len(s.buf) >= otherRecordBytes {
		out = append(out, append([]byte(nil), s.buf[:otherRecordBytes]...))
		s.buf = s.buf[otherRecordBytes:]
	}
	return out
}

func (s *otherStream) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	out := append([]byte(nil), s.buf...)
	for len(out) < otherRecordBytes {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[4:], otherPadTime)
		out = append(out, b...)
	}
	return out[:otherRecordBytes]
}

// Writer owns one recording's on-disk state, with a background goroutine
// draining a bounded queue of completed records (spec.md §4.7).
type Writer struct {
	mu     sync.Mutex
	header Header
	ai     *aiStream
	spike  *aiStream
	ev0    eventIntervalStream
	ev1    eventIntervalStream
	other  otherStream

	queue chan record
	done  chan struct{}
	werr  error

	f    *os.File
	path string
}

// Open initializes bookkeeping and writes a placeholder header as the
// first record, to be rewritten at Close (spec.md §4.7).
func Open(path string, nAIChannels int, hasSpike bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, cxerr.FileIoError("record: open " + path + ": " + err.Error())
	}
	w := &Writer{
		ai:    newAIStream(nAIChannels),
		queue: make(chan record, defaultQueueDepth),
		done:  make(chan struct{}),
		f:     f,
		path:  path,
	}
	if hasSpike {
		w.spike = newAIStream(1)
	}
	if _, err := f.Write(w.header.encode()); err != nil {
		f.Close()
		return nil, cxerr.FileIoError("record: write header: " + err.Error())
	}
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	defer close(w.done)
	for rec := range w.queue {
		if _, err := w.f.Write(rec.buf); err != nil {
			w.mu.Lock()
			if w.werr == nil {
				w.werr = cxerr.FileIoError("record: write: " + err.Error())
			}
			w.mu.Unlock()
			continue
		}
		w.mu.Lock()
		w.header.RecordsWritten++
		switch rec.kind {
		case KindAI:
			w.header.AIBytes += len(rec.buf)
		case KindSpikeWave:
			w.header.SpikeBytes += len(rec.buf)
		case KindEvent0:
			w.header.Event0Count++
		case KindEvent1:
			w.header.Event1Count++
		case KindOther:
			w.header.OtherCount++
		}
		w.mu.Unlock()
	}
}

func (w *Writer) enqueue(kind RecordKind, buf []byte) {
	w.queue <- record{kind: kind, buf: buf}
}

// StreamAnalog compresses one tick's AI channel samples (and optional
// spike waveform sample) as signed differences from the previous
// retained value, enqueuing any records that fill (spec.md §4.7).
func (w *Writer) StreamAnalog(samples []int16, spike []int16) {
	for _, buf := range w.ai.Encode(samples) {
		w.enqueue(KindAI, buf)
	}
	if w.spike != nil && spike != nil {
		for _, buf := range w.spike.Encode(spike) {
			w.enqueue(KindSpikeWave, buf)
		}
	}
}

// StreamEvents drains one batch of captured (mask, time10us) pairs,
// routing DI bit 0 to EVENT0 inter-event intervals, DI bit 1 to EVENT1,
// and any other bits to OTHER (spec.md §4.7).
func (w *Writer) StreamEvents(masks []uint32, times10us []uint32) {
	for i, mask := range masks {
		t := times10us[i]
		switch {
		case mask&1 != 0:
			for _, buf := range w.ev0.Push(t) {
				w.enqueue(KindEvent0, buf)
			}
		case mask&2 != 0:
			for _, buf := range w.ev1.Push(t) {
				w.enqueue(KindEvent1, buf)
			}
		default:
			for _, buf := range w.other.Push(mask, t) {
				w.enqueue(KindOther, buf)
			}
		}
	}
}

// StreamEyelinkBlinkEvent writes a synthetic (mask, time) pair into the
// OTHER stream for an eye-tracker blink start/end event.
func (w *Writer) StreamEyelinkBlinkEvent(startOrEnd uint32, time10u uint32) {
	for _, buf := range w.other.Push(startOrEnd, time10u) {
		w.enqueue(KindOther, buf)
	}
}

// Close pads partial records with their sentinels, rewrites the header,
// and drains the queue. save=false discards the file instead.
func (w *Writer) Close(save bool) error {
	if buf := w.ai.Flush(); buf != nil {
		w.enqueue(KindAI, buf)
	}
	if w.spike != nil {
		if buf := w.spike.Flush(); buf != nil {
			w.enqueue(KindSpikeWave, buf)
		}
	}
	if buf := w.ev0.Flush(); buf != nil {
		w.enqueue(KindEvent0, buf)
	}
	if buf := w.ev1.Flush(); buf != nil {
		w.enqueue(KindEvent1, buf)
	}
	if buf := w.other.Flush(); buf != nil {
		w.enqueue(KindOther, buf)
	}
	close(w.queue)
	<-w.done

	w.mu.Lock()
	werr := w.werr
	header := w.header
	w.mu.Unlock()

	if !save {
		w.f.Close()
		os.Remove(w.path)
		return werr
	}

	if _, err := w.f.WriteAt(header.encode(), 0); err != nil {
		w.f.Close()
		return cxerr.FileIoError("record: rewrite header: " + err.Error())
	}
	if err := w.f.Close(); err != nil {
		return cxerr.FileIoError("record: close: " + err.Error())
	}
	return werr
}
