//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const hardwareAvailable = true

// PortAudioSource captures mono PCM16 from an input device with PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stream   *portaudio.Stream
	buf      []int16
	streamCh chan AudioChunk
	stopCh   chan struct{}
	done     chan struct{}

	counters readCounters
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	cfg.Channels = 1
	return &PortAudioSource{
		cfg:      cfg,
		logger:   logger.With("component", "portaudio"),
		streamCh: make(chan AudioChunk),
	}, nil
}

// Start initializes PortAudio and opens the input stream.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "start", Backend: s.Name(), Err: err}
	}

	s.buf = make([]int16, s.cfg.BufferSize())
	stream, err := s.open()
	if err != nil {
		portaudio.Terminate()
		return &DeviceError{Op: "start", Backend: s.Name(), Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return &DeviceError{Op: "start", Backend: s.Name(), Err: err}
	}

	s.stream = stream
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 4)

	go s.readLoop(s.stream, s.streamCh, s.stopCh, s.done)

	s.logger.Debug("input stream started",
		"sample_rate", s.cfg.SampleRate,
		"frames_per_buffer", len(s.buf),
		"device", s.cfg.Device,
	)
	return nil
}

func (s *PortAudioSource) open() (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		return portaudio.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), len(s.buf), s.buf)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == s.cfg.Device && d.MaxInputChannels > 0 {
			p := portaudio.LowLatencyParameters(d, nil)
			p.Input.Channels = 1
			p.SampleRate = float64(s.cfg.SampleRate)
			p.FramesPerBuffer = len(s.buf)
			return portaudio.OpenStream(p, s.buf)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDevice, s.cfg.Device)
}

// readLoop owns out and closes it when it exits.
func (s *PortAudioSource) readLoop(stream *portaudio.Stream, out chan AudioChunk, stop, done chan struct{}) {
	defer close(done)
	defer close(out)

	if err := pumpChunks(stream.Read, portaudio.InputOverflowed, s.buf, s.cfg.SampleRate, out, stop, &s.counters); err != nil {
		s.logger.Warn("input stream read failed", "error", err)
	}
}

// Stop halts capture and releases the device.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	<-s.done

	var err error
	if stopErr := s.stream.Stop(); stopErr != nil {
		err = stopErr
	}
	if closeErr := s.stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	portaudio.Terminate()
	s.stream = nil

	s.logger.Debug("input stream stopped", "overruns", s.counters.overruns.Load())
	return err
}

// Read reads the next audio chunk.
func (s *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *PortAudioSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return string(BackendPortAudio)
}

// Close stops capture; the source cannot be restarted.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.counters.chunks.Load(),
		SamplesRead: s.counters.samples.Load(),
		Overruns:    s.counters.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)
