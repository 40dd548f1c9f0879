package hub

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-voicechat/internal/log"
)

func TestRunStopsOnCancel(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !h.IsRunning() {
		t.Fatal("hub did not start")
	}

	if err := h.BroadcastJSON(map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	cancel()

	select {
	case <-h.Stopped():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if h.IsRunning() {
		t.Error("hub still reports running")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestNewClientAfterStop(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	if c := NewClient(h, nil); c != nil {
		t.Error("expected nil client from a stopped hub")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New("test", log.Discard())
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Broadcast(Message{Data: []byte("x")})
	}
	if len(h.broadcast) != cap(h.broadcast) {
		t.Errorf("expected full buffer, got %d", len(h.broadcast))
	}
}

func TestNewJSONMessage(t *testing.T) {
	msg, err := NewJSONMessage(map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Data) != `{"n":1}` {
		t.Errorf("unexpected data %s", msg.Data)
	}
	if _, err := NewJSONMessage(make(chan int)); err == nil {
		t.Error("expected error for unencodable value")
	}
}
