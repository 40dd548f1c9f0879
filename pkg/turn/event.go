package turn

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicechat/pkg/dialogue"
)

// EventKind identifies what an Event reports.
type EventKind string

const (
	// EventState is emitted once as each step begins.
	EventState EventKind = "state"
	// EventEntry carries a new conversation history entry.
	EventEntry EventKind = "entry"
	// EventFailure reports a contained per-turn failure.
	EventFailure EventKind = "failure"
	// EventTurnDone closes a turn that reached dialogue or the exit check.
	EventTurnDone EventKind = "turn_done"
)

// Entry is one line of conversation history.
type Entry struct {
	Role dialogue.Role `json:"role"`
	Text string        `json:"text"`
	Time time.Time     `json:"time"`
}

// Event is a one-shot notification from the controller.
type Event struct {
	TurnID uuid.UUID `json:"turn_id"`
	Kind   EventKind `json:"kind"`
	Time   time.Time `json:"time"`

	// EventState
	State State  `json:"state"`
	Label string `json:"label,omitempty"`

	// EventEntry
	Entry *Entry `json:"entry,omitempty"`

	// EventFailure
	Failure string `json:"failure,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`

	// EventTurnDone
	Outcome Outcome `json:"outcome"`
}

// Handler receives controller events. Handlers run on the goroutine
// executing the step and must not block.
type Handler func(Event)
