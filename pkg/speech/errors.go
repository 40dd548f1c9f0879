package speech

import "fmt"

// Stage names the step of Speak that failed.
type Stage string

const (
	StageSynthesize Stage = "synthesize"
	StageDecode     Stage = "decode"
	StagePlayback   Stage = "playback"
)

// SynthesisError reports a failed Speak. It is never fatal to a
// conversation.
type SynthesisError struct {
	Stage Stage
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech: %s: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
