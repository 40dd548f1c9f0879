// Package audioio provides audio capture and playback for the voice loop.
//
// Backends:
//   - PortAudio - default input device (microphone capture)
//   - Speaker - default output device via beep (playback)
//   - Mock - CI/Testing without hardware
//
// Hardware backends need cgo; without it they report ErrBackendUnavailable
// and only the mock backend works.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the hardware backend when built with cgo, otherwise mock.
	BackendAuto Backend = "auto"
	// BackendPortAudio captures from the default input device with PortAudio.
	BackendPortAudio Backend = "portaudio"
	// BackendSpeaker plays through the default output device with beep.
	BackendSpeaker Backend = "speaker"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Capture format. The loop records 16-bit mono only.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	BitDepth          = 16
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels. Capture is always mono.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of device buffers.
	// Default: 64ms (1024 samples at 16kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is a backend-specific device name. Empty selects the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     DefaultSampleRate,
		Channels:       DefaultChannels,
		BufferDuration: 64 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.BufferSize() == 0 {
		return fmt.Errorf("buffer_duration %v is shorter than one sample at %d Hz", c.BufferDuration, c.SampleRate)
	}
	return nil
}

// BufferSize returns the number of frames per device buffer.
func (c *Config) BufferSize() int {
	return int(SampleCount(c.BufferDuration, c.SampleRate))
}

// BufferBytes returns the size of a buffer in bytes (assuming int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2 // 2 bytes per int16 sample
}
