package beep

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/cxlab/cxdriver/logger"
)

// queueWarning is the queued-byte threshold above which Play drops a
// pulse rather than letting reward tones pile up behind a slow device,
// mirroring the teacher's sdlaudio rateDrop regulation.
const queueWarning = 8000

// Player opens a single SDL audio device and queues PCM pulses to it.
// Grounded on the teacher's gui/sdlaudio.Audio device-open and
// queue-regulation shape, reduced to mono 16-bit output since the reward
// tone has no stereo positioning requirement.
type Player struct {
	id         sdl.AudioDeviceID
	sampleRate int
	log        *logger.Logger
}

// NewPlayer opens the default SDL audio output device at sampleRate.
func NewPlayer(sampleRate int, log *logger.Logger) (*Player, error) {
	if err := sdl.Init(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("beep: sdl audio init: %w", err)
	}

	request := &sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_S16SYS,
		Channels: 1,
		Samples:  1024,
	}
	var actual sdl.AudioSpec
	id, err := sdl.OpenAudioDevice("", false, request, &actual, 0)
	if err != nil {
		return nil, fmt.Errorf("beep: open audio device: %w", err)
	}
	sdl.PauseAudioDevice(id, false)

	return &Player{id: id, sampleRate: int(actual.Freq), log: log}, nil
}

// Play queues samples for immediate playback. If the device's queue is
// already backed up past queueWarning bytes, the pulse is dropped rather
// than stacking reward tones atop each other.
func (p *Player) Play(samples []int16) error {
	if p.id == 0 || len(samples) == 0 {
		return nil
	}

	if b := sdl.GetQueuedAudioSize(p.id); b > queueWarning {
		if p.log != nil {
			p.log.Logf(logger.Allow, "beep", "dropped pulse, queue backed up: %d bytes", b)
		}
		return nil
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	if err := sdl.QueueAudio(p.id, buf); err != nil {
		return fmt.Errorf("beep: queue audio: %w", err)
	}
	return nil
}

// SampleRate returns the device's actual sample rate, which may differ
// from the requested rate.
func (p *Player) SampleRate() int { return p.sampleRate }

// Close shuts down the audio device.
func (p *Player) Close() {
	if p.id != 0 {
		sdl.CloseAudioDevice(p.id)
		p.id = 0
	}
}
