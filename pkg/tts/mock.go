package tts

import (
	"context"
	"sync"
	"time"
)

// MockRate is the sample rate of Mock's default output.
const MockRate = 16000

// Mock implements Provider for tests. By default it returns 16kHz PCM
// silence, 10ms per character.
type Mock struct {
	// SynthesizeFunc overrides the default silence generator.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc overrides the default healthy response.
	HealthFunc func(ctx context.Context) error

	// Err, when set, is returned by Synthesize, Stream and Health.
	Err error

	// Latency delays Synthesize, honoring ctx.
	Latency time.Duration

	mu     sync.Mutex
	texts  []string
	closed int
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// NewFailingMock returns a mock whose every call fails with err.
func NewFailingMock(err error) *Mock {
	return &Mock{Err: err}
}

// Synthesize records text and returns audio or the configured error.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	result := Silence(len(text)*MockRate/100, MockRate)
	result.CharCount = len(text)
	return result, nil
}

// Stream wraps Synthesize.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := m.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health returns Err, or HealthFunc's result.
func (m *Mock) Health(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close counts closes.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// Texts returns every text passed to Synthesize, in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Closed returns how many times Close was called.
func (m *Mock) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Silence returns samples of mono PCM16 silence at rate.
func Silence(samples, rate int) *AudioResult {
	enc := EncodingPCM16
	switch rate {
	case 22050:
		enc = EncodingPCM22
	case 24000:
		enc = EncodingPCM24
	case 44100:
		enc = EncodingPCM44
	}
	audio := make([]byte, samples*2)
	return &AudioResult{
		Audio:    audio,
		Format:   AudioFormat{Encoding: enc, SampleRate: rate, Channels: 1, BitDepth: 16},
		Duration: PCMDuration(len(audio), rate),
	}
}

var _ Provider = (*Mock)(nil)
