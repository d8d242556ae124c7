// Package simai is a software-simulated analog-input board satisfying
// device.AI, for bench and regression testing without real DAQ hardware.
// Grounded on the teacher's gui/sdlaudio device-lifecycle shape
// (Configure/Start/Stop plus a buffer the caller drains), adapted from an
// audio ring buffer to a scan-sample ring buffer.
package simai

import (
	"context"
	"sync"
)

// Sim is a device.AI that generates deterministic samples: channel c's
// sample at scan n is Gen(c, n), letting tests inject arbitrary signals
// (including synthetic eye-velocity spikes for saccade testing).
type Sim struct {
	Gen func(channel int, scan int) int16

	mu           sync.Mutex
	nChannels    int
	spikeChannel int
	scanCount    int
	running      bool

	isrFn  func(ctx any)
	isrCtx any
}

func New(gen func(channel, scan int) int16) *Sim {
	return &Sim{Gen: gen, spikeChannel: -1}
}

func (s *Sim) Configure(nChannels int, scanUs int, spikeChannel int, enableStartScanInt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nChannels = nChannels
	s.spikeChannel = spikeChannel
	s.scanCount = 0
	return nil
}

func (s *Sim) Start() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// Tick advances the simulated scan counter by one and fires the installed
// ISR, if any — the bench harness's stand-in for the real start-of-scan
// interrupt.
func (s *Sim) Tick() {
	s.mu.Lock()
	s.scanCount++
	fn, ctx := s.isrFn, s.isrCtx
	s.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}

func (s *Sim) Unload(ctx context.Context, slowBuf []int16, fastBuf []int16, blockUntilComplete bool) (nSlow, nFast int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.nChannels
	if n > len(slowBuf) {
		n = len(slowBuf)
	}
	for c := 0; c < n; c++ {
		slowBuf[c] = s.Gen(c, s.scanCount)
	}

	nFast = 0
	if s.spikeChannel >= 0 && len(fastBuf) > 0 {
		fastBuf[0] = s.Gen(s.spikeChannel, s.scanCount)
		nFast = 1
	}

	return n, nFast, true
}

func (s *Sim) InstallISR(fn func(ctx any), ctx any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isrFn, s.isrCtx = fn, ctx
}
