package dialogue

import (
	"context"
	"strings"
	"sync"
)

// Mock implements Session for testing.
type Mock struct {
	// ReplyFunc produces the reply for a turn. It receives the number of
	// turns that succeeded before this one. If nil, the reply echoes text.
	ReplyFunc func(ctx context.Context, text string, turn int) (string, error)

	history history

	mu    sync.Mutex
	sent  []string
	closes int
}

// NewMock creates a mock that echoes each turn.
func NewMock() *Mock {
	return &Mock{}
}

// Send records text and returns ReplyFunc's answer.
func (m *Mock) Send(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.sent = append(m.sent, text)
	m.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return "", &Error{Provider: "mock", Kind: KindMalformed, Err: ErrEmptyText}
	}

	turn := len(m.history.snapshot()) / 2
	reply := "You said: " + text
	if m.ReplyFunc != nil {
		var err error
		reply, err = m.ReplyFunc(ctx, text, turn)
		if err != nil {
			return "", classify("mock", 0, err)
		}
	}
	m.history.commit(text, reply)
	return reply, nil
}

// Sent returns every text passed to Send, including failed turns.
func (m *Mock) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// History returns the successful exchanges.
func (m *Mock) History() []Message {
	return m.history.snapshot()
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Close records the call.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	return nil
}

var _ Session = (*Mock)(nil)
