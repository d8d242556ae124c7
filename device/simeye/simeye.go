// Package simeye is a scripted eye-tracker feed satisfying device.
// EyeTracker, for driving fixation/saccade tests with a pre-authored
// sequence of samples.
package simeye

import "github.com/cxlab/cxdriver/device"

type Sim struct {
	samples []device.EyeSample
	kind    device.RecordType
	pos     int
}

// New builds a scripted feed that yields samples in order, one per
// GetNextSample call, then repeats the last sample (isRepeat=true)
// once exhausted — mirroring the teacher's "lazy sequence" contract for a
// feed that has momentarily stalled.
func New(kind device.RecordType, samples []device.EyeSample) *Sim {
	return &Sim{samples: samples, kind: kind}
}

func (s *Sim) GetNextSample(flush bool) (device.EyeSample, bool, bool) {
	if len(s.samples) == 0 {
		return device.EyeSample{}, false, false
	}
	if s.pos >= len(s.samples) {
		return s.samples[len(s.samples)-1], true, true
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, false, true
}

func (s *Sim) RecordType() device.RecordType {
	return s.kind
}
