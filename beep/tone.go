// Package beep synthesizes and plays the reward tone spec.md's
// fixation/reward settings call "audio pulse length" and the "play beep"
// request bit: a short sine-wave pulse of a configured length, queued to
// an SDL audio device the same way the teacher's gui/sdlaudio queues TIA
// output, plus optional WAV/mp3 reward-jingle assets as an alternative to
// the synthesized tone.
package beep

import "math"

const defaultFreqHz = 1000.0

// Tone synthesizes durationMs milliseconds of a sine wave at freqHz,
// sampled at sampleRate, as signed 16-bit PCM. A short linear fade in/out
// (5% of the duration on each end) avoids an audible click at the pulse
// edges.
func Tone(durationMs int, freqHz float64, sampleRate int) []int16 {
	if freqHz <= 0 {
		freqHz = defaultFreqHz
	}
	n := sampleRate * durationMs / 1000
	if n <= 0 {
		return nil
	}
	out := make([]int16, n)
	fade := n / 20
	if fade == 0 {
		fade = 1
	}
	omega := 2 * math.Pi * freqHz / float64(sampleRate)
	for i := 0; i < n; i++ {
		env := 1.0
		switch {
		case i < fade:
			env = float64(i) / float64(fade)
		case i >= n-fade:
			env = float64(n-1-i) / float64(fade)
		}
		v := math.Sin(omega*float64(i)) * env
		out[i] = int16(v * 0.8 * math.MaxInt16)
	}
	return out
}
