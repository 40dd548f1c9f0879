package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/eiannone/keyboard"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/host"
	"github.com/teslashibe/go-voicechat/pkg/turn"
)

// Action is what a key press asks for.
type Action int

const (
	ActionNone Action = iota
	ActionTalk
	ActionQuit
)

// KeySource delivers key actions until closed.
type KeySource interface {
	Open() (<-chan Action, error)
	Close() error
}

// Surface is the responsive-mode conversation the console drives.
type Surface interface {
	Trigger() error
	Events() <-chan turn.Event
}

// Keyboard reads raw keys from the terminal. The zero value is ready to use.
type Keyboard struct {
	mu   sync.Mutex
	done chan struct{}
}

// Open puts the terminal in raw mode and starts reading keys.
func (k *Keyboard) Open() (<-chan Action, error) {
	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	k.mu.Lock()
	k.done = done
	k.mu.Unlock()

	out := make(chan Action)
	go forwardKeys(keys, out, done)
	return out, nil
}

// Close stops forwarding and restores the terminal.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	if k.done != nil {
		close(k.done)
		k.done = nil
	}
	k.mu.Unlock()
	return keyboard.Close()
}

// forwardKeys maps key events to actions until keys ends or done closes.
// A press nobody is reading is dropped once done closes.
func forwardKeys(keys <-chan keyboard.KeyEvent, out chan<- Action, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case ev, ok := <-keys:
			if !ok || ev.Err != nil {
				return
			}
			a := actionFor(ev.Rune, ev.Key)
			if a == ActionNone {
				continue
			}
			select {
			case out <- a:
			case <-done:
				return
			}
		}
	}
}

func actionFor(r rune, k keyboard.Key) Action {
	switch k {
	case keyboard.KeySpace, keyboard.KeyEnter:
		return ActionTalk
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return ActionQuit
	}
	switch r {
	case ' ':
		return ActionTalk
	case 'q', 'Q':
		return ActionQuit
	}
	return ActionNone
}

// Console is the responsive-mode terminal surface.
type Console struct {
	printer *Printer
	keys    KeySource
	logger  *slog.Logger
}

// New creates a Console.
func New(printer *Printer, keys KeySource, logger *slog.Logger) *Console {
	return &Console{
		printer: printer,
		keys:    keys,
		logger:  log.Or(logger).With("component", "console"),
	}
}

// Run renders events and forwards key presses until the user quits, the
// conversation closes, or ctx is done.
func (c *Console) Run(ctx context.Context, s Surface) error {
	actions, err := c.keys.Open()
	if err != nil {
		return err
	}
	defer c.keys.Close()

	events := s.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				c.printer.Ended()
				return nil
			}
			c.printer.Handle(ev)

		case a, ok := <-actions:
			if !ok || a == ActionQuit {
				c.printer.Ended()
				return nil
			}
			switch err := s.Trigger(); {
			case errors.Is(err, host.ErrBusy):
				c.printer.Busy()
			case errors.Is(err, host.ErrClosed):
				c.printer.Ended()
				return nil
			case err != nil:
				c.logger.Warn("trigger failed", "error", err)
			}
		}
	}
}
