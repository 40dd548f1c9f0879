package audioio

import "time"

// Clip is one fixed-duration mono recording owned by a single turn.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// SampleCount returns the exact number of samples d spans at rate.
// Integer arithmetic keeps d × rate exact for whole-sample durations.
func SampleCount(d time.Duration, rate int) int64 {
	if d <= 0 || rate <= 0 {
		return 0
	}
	whole := int64(d/time.Second) * int64(rate)
	frac := int64(d%time.Second) * int64(rate) / int64(time.Second)
	return whole + frac
}

// Duration returns the length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := int64(len(c.Samples) / c.Channels)
	return time.Duration(frames * int64(time.Second) / int64(c.SampleRate))
}

// Bytes returns the clip as little-endian PCM16.
func (c Clip) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// RMS returns the normalized energy of the clip, 0 for silence.
func (c Clip) RMS() float64 {
	return CalculateRMS(c.Samples)
}
