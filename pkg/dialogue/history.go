package dialogue

import (
	"sync"
	"time"
)

// history records completed exchanges. Only whole user/assistant pairs
// are ever appended.
type history struct {
	mu   sync.RWMutex
	msgs []Message
}

func (h *history) commit(user, reply string) {
	now := time.Now()
	h.mu.Lock()
	h.msgs = append(h.msgs,
		Message{Role: RoleUser, Content: user, Time: now},
		Message{Role: RoleAssistant, Content: reply, Time: now},
	)
	h.mu.Unlock()
}

func (h *history) snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}
