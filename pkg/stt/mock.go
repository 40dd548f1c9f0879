package stt

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// RecognizeFunc is called when Recognize is invoked.
	// If nil, returns "hello".
	RecognizeFunc func(ctx context.Context, audio Audio) (string, error)

	mu    sync.Mutex
	calls []Audio
}

// NewMock returns a mock that answers each call with the next reply.
// Once replies run out the last one repeats. A reply may be an error.
func NewMock(replies ...any) *Mock {
	m := &Mock{}
	if len(replies) == 0 {
		return m
	}
	var (
		mu sync.Mutex
		i  int
	)
	m.RecognizeFunc = func(ctx context.Context, audio Audio) (string, error) {
		mu.Lock()
		r := replies[min(i, len(replies)-1)]
		i++
		mu.Unlock()
		if err, ok := r.(error); ok {
			return "", err
		}
		s, _ := r.(string)
		return s, nil
	}
	return m
}

// Recognize calls RecognizeFunc and records the call.
func (m *Mock) Recognize(ctx context.Context, audio Audio) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, audio)
	m.mu.Unlock()

	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, audio)
	}
	return "hello", nil
}

// Calls returns all recorded requests.
func (m *Mock) Calls() []Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Audio, len(m.calls))
	copy(out, m.calls)
	return out
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

var _ Provider = (*Mock)(nil)
