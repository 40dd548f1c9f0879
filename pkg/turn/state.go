package turn

// State is a step of the turn state machine.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StatePersisting
	StateTranscribing
	StateExitCheck
	StateDialoguing
	StateSynthesizing
	StateClosed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateCapturing:    "capturing",
	StatePersisting:   "persisting",
	StateTranscribing: "transcribing",
	StateExitCheck:    "exit_check",
	StateDialoguing:   "dialoguing",
	StateSynthesizing: "synthesizing",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Label is the text a control surface shows while in s.
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Ready"
	case StateCapturing:
		return "Recording..."
	case StatePersisting, StateTranscribing, StateExitCheck:
		return "Processing..."
	case StateDialoguing:
		return "AI is thinking..."
	case StateSynthesizing:
		return "Speaking..."
	case StateClosed:
		return "Closed"
	}
	return ""
}

// MarshalText encodes s by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of one completed turn.
type Outcome int

const (
	Continue Outcome = iota
	ExitRequested
)

func (o Outcome) String() string {
	if o == ExitRequested {
		return "exit_requested"
	}
	return "continue"
}

// MarshalText encodes o by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
