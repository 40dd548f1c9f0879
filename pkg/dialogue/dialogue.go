// Package dialogue holds the single conversation the assistant has with a
// generative model.
//
// A Session owns the conversation context for the lifetime of the process.
// Every turn goes through Send; the backend (or the session itself) keeps
// prior turns so each reply follows on from the last.
//
// Sessions have a single writer: the turn loop guarantees at most one Send
// is in flight, so Send does not lock. History may be read concurrently.
package dialogue

import (
	"context"
	"time"
)

// Role defines message roles in a conversation.
type Role string

const (
	// RoleUser is for the speaker's utterances.
	RoleUser Role = "user"

	// RoleAssistant is for model replies.
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// Session is one long-lived conversation with a dialogue backend.
type Session interface {
	// Send forwards text as the next user turn and returns the reply.
	// A failed Send leaves the conversation as it was before the call.
	Send(ctx context.Context, text string) (string, error)

	// History returns a copy of the successful exchanges so far.
	History() []Message

	// Name identifies the backend in logs.
	Name() string

	// Close releases any resources held by the session.
	Close() error
}
