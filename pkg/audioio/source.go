package audioio

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// AudioChunk is one device buffer of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the duration of this audio chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Stop halts audio capture. It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next audio chunk, blocking if necessary.
	// Returns io.EOF once the source is stopped and drained.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns a channel that receives audio chunks.
	// The channel is closed when the source is stopped.
	Stream() <-chan AudioChunk

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases all resources. After Close, Start fails.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// readCounters tracks what a capture loop has delivered.
type readCounters struct {
	chunks   atomic.Int64
	samples  atomic.Int64
	overruns atomic.Int64
}

// pumpChunks calls read until stop closes and sends a copy of buf after
// each read. A read failing with overflow still filled buf: the chunk is
// delivered and counted as an overrun. Any other read error ends the loop.
func pumpChunks(read func() error, overflow error, buf []int16, sampleRate int, out chan<- AudioChunk, stop <-chan struct{}, n *readCounters) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := read(); err != nil {
			if !errors.Is(err, overflow) {
				return err
			}
			n.overruns.Add(1)
		}

		samples := make([]int16, len(buf))
		copy(samples, buf)
		select {
		case out <- AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: 1}:
			n.chunks.Add(1)
			n.samples.Add(int64(len(samples)))
		case <-stop:
			return nil
		}
	}
}
