package dialogue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when API key is required but missing.
	ErrNoAPIKey = errors.New("dialogue: API key required")

	// ErrEmptyText is returned when Send is called with blank text.
	ErrEmptyText = errors.New("dialogue: empty turn text")

	// ErrEmptyReply is returned when the backend answers with no text.
	ErrEmptyReply = errors.New("dialogue: empty reply")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dialogue: session closed")
)

// Kind classifies a dialogue failure.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed"
	KindBackend   Kind = "backend"
)

// Error is a failed turn. The session remains usable.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dialogue [%s]: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dialogue [%s]: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps err in an *Error with the best matching Kind.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}

	kind := KindBackend
	var netErr net.Error
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status == http.StatusTooManyRequests,
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		kind = KindQuota
	case errors.Is(err, ErrEmptyReply):
		kind = KindMalformed
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

// Describe returns a short, speakable description of a failed turn.
// It is never empty.
func Describe(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return "Sorry, something went wrong while talking to the assistant."
	}
	switch de.Kind {
	case KindTimeout:
		return "Sorry, the assistant took too long to answer. Please try again."
	case KindQuota:
		return "Sorry, the assistant is over its usage quota right now. Please try again later."
	case KindMalformed:
		return "Sorry, the assistant sent back a reply I could not read."
	default:
		return "Sorry, I could not reach the assistant. Please try again."
	}
}

// IsKind reports whether err is a dialogue Error of kind k.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}
