// Package display implements the remote-display frame-lead pipeline of
// spec.md §4.5: a three-slot in-advance frame buffer kept a fixed lead
// time ahead of the trial tick loop, with skip-on-saccade time-warp,
// duplicate-frame tolerance, and drift-detection support.
//
// Grounded on the teacher's gui/sdlaudio queue/lead-time regulation
// pattern: a bounded ring of in-flight buffers filled ahead of playback
// and drained by a separate consumer, here the device.RemoteDisplay.
package display

import (
	"github.com/cxlab/cxdriver/cxerr"
	"github.com/cxlab/cxdriver/device"
)

const numSlots = 3

// Cell is one display target's accumulated per-frame deltas (spec.md
// §4.5 "the current tick's computed {window Δ, pattern Δ, on-state}").
type Cell struct {
	WindowDelta  device.FrameRecord
	PatternDelta device.FrameRecord
	On           bool
}

// Pipeline manages the three-slot frame buffer and its lead-time
// bookkeeping for one trial.
type Pipeline struct {
	disp device.RemoteDisplay

	nTargets int
	slots    [numSlots][]Cell
	active   int

	framePeriod   float64 // seconds, P
	dT            float64 // seconds, trial tick period
	leadTicks     int     // round(2P/dT), spec.md §4.5 invariant
	accumulated   int     // ticks accumulated into the active slot so far
	nextBoundary  int     // accumulated-tick count at which to ship

	framesSent     int
	framesObserved int
	dupTolerance   int
	driftThreshold int // K, starts at 4 and grows on each warning

	dupEvents [][2]int // (frameIndex, dupCount) pairs, bounded buffer
}

// NewPipeline builds a Pipeline for nTargets display targets, a refresh
// period P, and a tick period dT, both in seconds.
func NewPipeline(disp device.RemoteDisplay, nTargets int, framePeriod, dT float64, dupTolerance int) *Pipeline {
	p := &Pipeline{
		disp:          disp,
		nTargets:      nTargets,
		framePeriod:   framePeriod,
		dT:            dT,
		dupTolerance:  dupTolerance,
		driftThreshold: 4,
	}
	for i := range p.slots {
		p.slots[i] = make([]Cell, nTargets)
	}
	p.leadTicks = int(roundUp(2 * framePeriod / dT))
	p.nextBoundary = int(roundUp(framePeriod / dT))
	return p
}

func roundUp(x float64) float64 {
	i := float64(int64(x))
	if x-i >= 0.5 {
		return i + 1
	}
	return i
}

// LeadTicks returns the number of ticks the display trajectory
// calculation must stay ahead of the trial tick loop (spec.md §4.5).
func (p *Pipeline) LeadTicks() int { return p.leadTicks }

// Accumulate adds one tick's per-target deltas into the active slot.
func (p *Pipeline) Accumulate(deltas []Cell) {
	active := p.slots[p.active]
	for i := range active {
		active[i].WindowDelta = addFrame(active[i].WindowDelta, deltas[i].WindowDelta)
		active[i].PatternDelta = addFrame(active[i].PatternDelta, deltas[i].PatternDelta)
		active[i].On = deltas[i].On
	}
	p.accumulated++
}

func addFrame(a, b device.FrameRecord) device.FrameRecord {
	return device.FrameRecord{
		On:   a.On || b.On,
		HWin: a.HWin + b.HWin,
		VWin: a.VWin + b.VWin,
		HPat: a.HPat + b.HPat,
		VPat: a.VPat + b.VPat,
	}
}

// ReadyToShip reports whether the accumulated lead time has crossed the
// next-update boundary.
func (p *Pipeline) ReadyToShip() bool {
	return p.accumulated >= p.nextBoundary
}

// Ship sends the completed active slot to the display, advances to the
// next slot, and resets its cells (spec.md §4.5).
func (p *Pipeline) Ship(flashOnNextUpdate bool) error {
	cells := p.slots[p.active]
	ok, observed := p.disp.UpdateAnimation(framesFromCells(cells), flashOnNextUpdate)
	if !ok {
		return cxerr.RuntimeAbort("display update_frame failed")
	}
	p.framesSent++
	p.framesObserved = observed

	dup := p.disp.NumDuplicateFrames()
	if dup > 0 {
		idx, count := p.disp.DuplicateFrameEventInfo(dup - 1)
		p.dupEvents = append(p.dupEvents, [2]int{idx, count})
	}
	if dup > p.dupTolerance {
		return cxerr.DuplicateFrame("duplicate frame count exceeded tolerance")
	}
	if p.framesSent-p.framesObserved > p.driftThreshold {
		p.driftThreshold++
	}

	p.active = (p.active + 1) % numSlots
	for i := range p.slots[p.active] {
		p.slots[p.active][i] = Cell{}
	}
	p.accumulated = 0
	p.nextBoundary = int(roundUp(p.framePeriod / p.dT))
	return nil
}

// Start primes the display with two initial frames via a single start
// call (spec.md §4.5 "Start").
func (p *Pipeline) Start(targets []device.TargetDef, flashOnFrame0 bool) error {
	if err := p.disp.Reinit(); err != nil {
		return cxerr.RuntimeAbort("display reinit failed: " + err.Error())
	}
	for _, t := range targets {
		if err := p.disp.AddTarget(t); err != nil {
			return cxerr.RuntimeAbort("display add target failed: " + err.Error())
		}
	}
	if err := p.disp.LoadTargets(); err != nil {
		return cxerr.RuntimeAbort("display load targets failed: " + err.Error())
	}
	first := framesFromCells(p.slots[p.active])
	second := first
	if !p.disp.StartAnimation(first, second, flashOnFrame0) {
		return cxerr.RuntimeAbort("display start animation failed")
	}
	return nil
}

// Stop ends the animation on the display.
func (p *Pipeline) Stop() error {
	return p.disp.StopAnimation()
}

// SkipOnSaccade re-bases the pipeline's lead-time bookkeeping by
// deltaTicks, the only permitted mid-trial time warp (spec.md §4.5): the
// caller is responsible for separately integrating the trajectory engine
// forward by the same gap and folding the result into the active slot.
func (p *Pipeline) SkipOnSaccade(deltaTicks int) {
	p.accumulated += deltaTicks
}

// DuplicateFrameEvents returns the recorded (frameIndex, dupCount) pairs
// for the trial header (spec.md §4.5 "bounded buffer").
func (p *Pipeline) DuplicateFrameEvents() [][2]int {
	return p.dupEvents
}

func framesFromCells(cells []Cell) []device.FrameRecord {
	out := make([]device.FrameRecord, len(cells))
	for i, c := range cells {
		out[i] = device.FrameRecord{
			On:   c.On,
			HWin: c.WindowDelta.HWin,
			VWin: c.WindowDelta.VWin,
			HPat: c.PatternDelta.HPat,
			VPat: c.PatternDelta.VPat,
		}
	}
	return out
}
