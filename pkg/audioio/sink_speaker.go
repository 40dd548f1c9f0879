//go:build cgo

package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// SpeakerSink plays PCM16 through the default output device using beep.
// Written chunks are queued and played on Flush.
type SpeakerSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	queue   []int16

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

func newSpeakerSink(cfg Config, logger *slog.Logger) (*SpeakerSink, error) {
	return &SpeakerSink{
		cfg:    cfg,
		logger: logger.With("component", "speaker"),
	}, nil
}

// Start initializes the speaker at the configured sample rate.
func (s *SpeakerSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	sr := beep.SampleRate(s.cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(s.cfg.BufferDuration*2)); err != nil {
		return &DeviceError{Op: "start", Backend: s.Name(), Err: err}
	}
	s.running = true
	s.logger.Debug("speaker initialized", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop halts playback.
func (s *SpeakerSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.queue = nil
	speaker.Clear()
	return nil
}

// Write queues a chunk. Multi-channel chunks are downmixed to mono.
func (s *SpeakerSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	samples := chunk.Samples
	if chunk.Channels == 2 {
		samples = StereoToMono(samples)
	}
	if chunk.SampleRate > 0 && chunk.SampleRate != s.cfg.SampleRate {
		samples = Resample(samples, chunk.SampleRate, s.cfg.SampleRate)
	}
	s.queue = append(s.queue, samples...)

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(samples)))
	return nil
}

// Flush plays everything queued and blocks until playback finishes.
func (s *SpeakerSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	samples := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(samples) == 0 {
		return nil
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(pcmStreamer(samples), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Clear discards queued and playing audio.
func (s *SpeakerSink) Clear() error {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	speaker.Clear()
	return nil
}

// Config returns the audio configuration.
func (s *SpeakerSink) Config() Config {
	return s.cfg
}

// Name returns "speaker".
func (s *SpeakerSink) Name() string {
	return string(BackendSpeaker)
}

// Close stops playback; the sink cannot be restarted.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns sink statistics.
func (s *SpeakerSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	buffered := int64(len(s.queue))
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Running:         running,
		Backend:         s.Name(),
		BufferedSamples: buffered,
	}
}

// pcmStreamer plays mono PCM16 on both speaker channels.
func pcmStreamer(samples []int16) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(out [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for n < len(out) && pos < len(samples) {
			v := float64(samples[pos]) / 32768
			out[n][0], out[n][1] = v, v
			n++
			pos++
		}
		return n, true
	})
}

var _ SinkWithStats = (*SpeakerSink)(nil)
