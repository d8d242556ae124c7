package trajectory

import "github.com/cxlab/cxdriver/trial"

// EyeRing is a fixed-capacity ring buffer computing the sliding-window
// mean eye position VStab compensation reads (spec.md §4.4, §9: "the
// sliding-window eye average is a ring buffer sized to the maximum
// supported window length; length 1 bypasses accumulation"). Per-eye (two
// instances: left and right) so the stereo fixation variant can track
// each eye's own window independently.
type EyeRing struct {
	buf    []trial.Vec2
	window int // active window length, <= cap(buf)
	filled int
	next   int
	sum    trial.Vec2
}

// NewEyeRing allocates a ring with capacity maxWindow, initially operating
// at window length 1 (no smoothing).
func NewEyeRing(maxWindow int) *EyeRing {
	if maxWindow < 1 {
		maxWindow = 1
	}
	return &EyeRing{
		buf:    make([]trial.Vec2, maxWindow),
		window: 1,
	}
}

// SetWindow changes the active window length (clamped to the ring's
// capacity) and resets accumulation, since a window-length change mid
// trial invalidates the running sum.
func (r *EyeRing) SetWindow(n int) {
	if n < 1 {
		n = 1
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	r.window = n
	r.filled = 0
	r.next = 0
	r.sum = trial.Vec2{}
}

// Push adds one raw eye sample and returns the current window mean. With
// window length 1 this is just the sample itself, bypassing accumulation
// entirely.
func (r *EyeRing) Push(sample trial.Vec2) trial.Vec2 {
	if r.window == 1 {
		return sample
	}
	if r.filled == r.window {
		old := r.buf[r.next]
		r.sum.H -= old.H
		r.sum.V -= old.V
	} else {
		r.filled++
	}
	r.buf[r.next] = sample
	r.sum.H += sample.H
	r.sum.V += sample.V
	r.next = (r.next + 1) % r.window

	n := float64(r.filled)
	return trial.Vec2{H: r.sum.H / n, V: r.sum.V / n}
}
