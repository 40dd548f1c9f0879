package turn

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once the conversation has ended.
	ErrClosed = errors.New("turn: conversation closed")

	// ErrNotIdle is returned when a turn is started while another is in flight.
	ErrNotIdle = errors.New("turn: a turn is already in flight")

	// ErrNoClip is returned by Process when no captured clip is pending.
	ErrNoClip = errors.New("turn: no captured clip to process")
)

// StepError reports a failure that aborted a turn back to Idle.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("turn: %s failed: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
