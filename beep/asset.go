package beep

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// LoadAsset decodes a WAV or mp3 reward-jingle file into mono 16-bit PCM
// at its native sample rate, as an alternative to a synthesized Tone.
// Stereo sources are downmixed by averaging channels.
func LoadAsset(path string) (samples []int16, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("beep: open asset: %w", err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(strings.ToLower(path), ".wav"):
		return loadWav(f)
	case strings.HasSuffix(strings.ToLower(path), ".mp3"):
		return loadMP3(f)
	default:
		return nil, 0, fmt.Errorf("beep: unsupported reward-jingle asset %q", path)
	}
}

func loadWav(f *os.File) ([]int16, int, error) {
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("beep: decode wav: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels <= 1 {
		out := make([]int16, len(buf.Data))
		for i, v := range buf.Data {
			out[i] = int16(v)
		}
		return out, buf.Format.SampleRate, nil
	}
	n := len(buf.Data) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		out[i] = int16(sum / channels)
	}
	return out, buf.Format.SampleRate, nil
}

func loadMP3(f *os.File) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("beep: decode mp3: %w", err)
	}

	raw := make([]byte, 0, dec.Length())
	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	// go-mp3 always decodes to 16-bit stereo little-endian.
	frames := len(raw) / 4
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[4*i]) | uint16(raw[4*i+1])<<8)
		r := int16(uint16(raw[4*i+2]) | uint16(raw[4*i+3])<<8)
		out[i] = int16((int32(l) + int32(r)) / 2)
	}
	return out, dec.SampleRate(), nil
}
