// Package simdio is a software-simulated digital event timer satisfying
// device.DIO, recording every marker pulse and character written so bench
// tests can assert on the sync stream and reward-delivery behaviour
// without real hardware.
package simdio

import "sync"

type Sim struct {
	mu sync.Mutex

	do           uint32
	fixationOn   bool
	chars        []byte
	markerPulses []uint32
	rewardCount  int

	events   []event
	clockUs  int
	inputMsk uint32
}

type event struct {
	mask    uint32
	time10u uint32
}

func New() *Sim {
	return &Sim{}
}

func (s *Sim) Configure(clockUs int, enabledInputMask uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockUs = clockUs
	s.inputMsk = enabledInputMask
	return nil
}

func (s *Sim) Start() error { return nil }
func (s *Sim) Stop() error  { return nil }

// InjectEvent records a captured (mask, time) pair for a later UnloadEvents
// call, simulating the hardware event FIFO.
func (s *Sim) InjectEvent(mask uint32, time10us uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{mask, time10us})
}

func (s *Sim) UnloadEvents(outMasks []uint32, outTimes10us []uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if n > len(outMasks) {
		n = len(outMasks)
	}
	if n > len(outTimes10us) {
		n = len(outTimes10us)
	}
	for i := 0; i < n; i++ {
		outMasks[i] = s.events[i].mask
		outTimes10us[i] = s.events[i].time10u
	}
	s.events = s.events[n:]
	return n
}

func (s *Sim) TriggerMarkers(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markerPulses = append(s.markerPulses, mask)
}

func (s *Sim) SetDO(value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.do = value
}

func (s *Sim) SetFixationStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixationOn = true
}

func (s *Sim) ClearFixationStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixationOn = false
}

func (s *Sim) DeliverReward(whvr int, pulseLenMs, audioLenMs int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pulseLenMs <= 0 {
		return false
	}
	if whvr > 1 {
		s.rewardCount++
		if s.rewardCount%whvr == 0 {
			return false
		}
	}
	return true
}

func (s *Sim) WriteChar(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars = append(s.chars, b)
}

func (s *Sim) WriteString(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars = append(s.chars, data...)
}

func (s *Sim) SetDOBusyWaitTimes(a, b, c int) {}

// SyncStream returns every character written so far, in order — the bench
// assertion point for the marker-code sequence (spec.md §4.9).
func (s *Sim) SyncStream() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.chars))
	copy(out, s.chars)
	return out
}

// MarkerPulses returns every mask passed to TriggerMarkers so far.
func (s *Sim) MarkerPulses() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, len(s.markerPulses))
	copy(out, s.markerPulses)
	return out
}
