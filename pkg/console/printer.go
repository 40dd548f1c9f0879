// Package console is the terminal control surface.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/teslashibe/go-voicechat/pkg/dialogue"
	"github.com/teslashibe/go-voicechat/pkg/turn"
)

// Printer renders controller events as terminal lines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Banner prints the greeting shown before the first turn.
func (p *Printer) Banner(exitPhrase string) {
	p.printf("Voice-enabled AI Assistant\n")
	p.printf("Speak your message or say '%s' to exit\n", exitPhrase)
}

// Hint prints the key bindings for responsive mode.
func (p *Printer) Hint() {
	p.printf("Press space or enter to talk, q or esc to quit\n")
}

// Handle prints one event. State labels for the internal steps that share
// "Processing..." are printed once.
func (p *Printer) Handle(ev turn.Event) {
	switch ev.Kind {
	case turn.EventState:
		switch ev.State {
		case turn.StateCapturing, turn.StateTranscribing, turn.StateDialoguing, turn.StateSynthesizing:
			p.printf("%s\n", ev.Label)
		}
	case turn.EventEntry:
		if ev.Entry == nil {
			return
		}
		if ev.Entry.Role == dialogue.RoleUser {
			p.printf("You said: %s\n", ev.Entry.Text)
		} else {
			p.printf("AI: %s\n", ev.Entry.Text)
		}
	case turn.EventFailure:
		p.printf("! %s\n", ev.Message)
	}
}

// Busy reports a rejected trigger.
func (p *Printer) Busy() {
	p.printf("(busy: wait for the current turn to finish)\n")
}

// Ended prints the closing line.
func (p *Printer) Ended() {
	p.printf("Chat ended.\n")
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
