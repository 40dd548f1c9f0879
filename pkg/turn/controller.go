// Package turn sequences one conversational turn: capture, persist,
// transcribe, exit check, dialogue, and spoken reply.
//
// A Controller is driven either synchronously with Run, or step by step with
// Capture and Process from separate goroutines (see package host). It never
// runs two turns at once and never cancels a turn midway: steps receive a
// context detached from the caller's cancellation, so a turn always runs to
// completion or to a contained failure.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/internal/metrics"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/clipstore"
	"github.com/teslashibe/go-voicechat/pkg/dialogue"
	"github.com/teslashibe/go-voicechat/pkg/speech"
	"github.com/teslashibe/go-voicechat/pkg/stt"
)

// Defaults for Config.
const (
	DefaultCaptureDuration = 5 * time.Second
	DefaultExitPhrase      = "close"
	DefaultFarewell        = "Goodbye!"
	DefaultRetryPause      = time.Second
)

// Recorder captures a fixed-length clip.
type Recorder interface {
	Capture(ctx context.Context, d time.Duration) (audioio.Clip, error)
}

// ClipSaver persists a clip and returns where it was written.
type ClipSaver interface {
	Save(clip audioio.Clip) (string, error)
}

// Transcriber turns a persisted clip into text or placeholder text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) stt.Result
}

// Speaker plays text and blocks until playback ends.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Components are the collaborators a Controller sequences.
type Components struct {
	Recorder    Recorder
	Store       ClipSaver
	Transcriber Transcriber
	Session     dialogue.Session
	Speaker     Speaker
}

func (c Components) validate() error {
	switch {
	case c.Recorder == nil:
		return errors.New("turn: recorder is required")
	case c.Store == nil:
		return errors.New("turn: clip store is required")
	case c.Transcriber == nil:
		return errors.New("turn: transcriber is required")
	case c.Session == nil:
		return errors.New("turn: dialogue session is required")
	case c.Speaker == nil:
		return errors.New("turn: speaker is required")
	}
	return nil
}

// Config tunes the controller.
type Config struct {
	CaptureDuration time.Duration
	ExitPhrase      string
	Farewell        string
	// RetryPause separates a failed capture from the next one in Run.
	RetryPause time.Duration
}

// DefaultConfig returns the standard five-second, "close"-to-exit setup.
func DefaultConfig() Config {
	return Config{
		CaptureDuration: DefaultCaptureDuration,
		ExitPhrase:      DefaultExitPhrase,
		Farewell:        DefaultFarewell,
		RetryPause:      DefaultRetryPause,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller is the turn state machine. The dialogue session it holds is
// written only by the turn in flight, so the single-turn rule is also the
// session's single-writer rule.
type Controller struct {
	cfg     Config
	c       Components
	logger  *slog.Logger
	metrics *metrics.Metrics

	// turnMu covers the start of a turn and the end of the previous one:
	// a turn's final state and its TurnDone go out before the next
	// Capture can begin.
	turnMu sync.Mutex

	mu       sync.Mutex
	state    State
	turnID   uuid.UUID
	pending  string
	history  []Entry
	handlers []Handler
}

// New creates a Controller in the Idle state.
func New(cfg Config, c Components, opts ...Option) (*Controller, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if cfg.CaptureDuration <= 0 {
		cfg.CaptureDuration = DefaultCaptureDuration
	}
	if strings.TrimSpace(cfg.ExitPhrase) == "" {
		cfg.ExitPhrase = DefaultExitPhrase
	}
	if cfg.Farewell == "" {
		cfg.Farewell = DefaultFarewell
	}

	ctl := &Controller{cfg: cfg, c: c}
	for _, opt := range opts {
		opt(ctl)
	}
	ctl.logger = log.Or(ctl.logger).With("component", "turn")
	return ctl, nil
}

// OnEvent registers h for every subsequent event.
func (c *Controller) OnEvent(h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the conversation so far, oldest first.
func (c *Controller) History() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.history...)
}

// IsExit reports whether utterance is exactly phrase, ignoring case and
// surrounding whitespace.
func IsExit(utterance, phrase string) bool {
	return strings.EqualFold(strings.TrimSpace(utterance), strings.TrimSpace(phrase))
}

// Capture starts a turn: it records a clip and persists it, leaving the
// controller in Persisting with the clip ready for Process. A device or
// storage failure is reported, returns the controller to Idle, and comes
// back as a *StepError.
func (c *Controller) Capture(ctx context.Context) (string, error) {
	ctx = context.WithoutCancel(ctx)

	c.turnMu.Lock()
	c.mu.Lock()
	state := c.state
	id := uuid.New()
	if state == StateIdle {
		c.state = StateCapturing
		c.turnID = id
	}
	c.mu.Unlock()
	c.turnMu.Unlock()

	switch state {
	case StateIdle:
	case StateClosed:
		return "", ErrClosed
	default:
		return "", ErrNotIdle
	}

	c.metrics.RecordTurnStarted()
	c.enter(id, StateCapturing)

	start := time.Now()
	clip, err := c.c.Recorder.Capture(ctx, c.cfg.CaptureDuration)
	c.metrics.ObserveStep("capture", time.Since(start))
	if err != nil {
		return "", c.abort(id, StateCapturing, metrics.FailureDevice, fmt.Sprintf("Could not record audio: %v", err), err)
	}

	c.enter(id, StatePersisting)
	start = time.Now()
	path, err := c.c.Store.Save(clip)
	c.metrics.ObserveStep("persist", time.Since(start))
	if err != nil {
		return "", c.abort(id, StatePersisting, metrics.FailureIO, fmt.Sprintf("Could not save the recording: %v", err), err)
	}

	c.mu.Lock()
	c.pending = path
	c.mu.Unlock()
	return path, nil
}

// Process finishes the turn started by Capture. Transcription, dialogue and
// synthesis failures are contained: they are reported as events and the
// turn carries on with placeholder or error text.
func (c *Controller) Process(ctx context.Context, path string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ExitRequested, ErrClosed
	}
	if c.state != StatePersisting || c.pending == "" {
		c.mu.Unlock()
		return Continue, ErrNoClip
	}
	if path == "" {
		path = c.pending
	}
	id := c.turnID
	c.pending = ""
	c.state = StateTranscribing
	c.mu.Unlock()

	c.enter(id, StateTranscribing)
	res := c.c.Transcriber.Transcribe(ctx, path)
	c.metrics.ObserveStep("transcribe", res.Duration)
	switch res.Kind {
	case stt.KindUnavailable:
		c.fail(id, metrics.FailureTranscriptionUnavailable, res.Text, res.Err)
	case stt.KindEmpty:
		c.metrics.RecordFailure(metrics.FailureTranscriptionEmpty)
	}
	utterance := res.Text
	c.record(id, dialogue.RoleUser, utterance)

	c.enter(id, StateExitCheck)
	if IsExit(utterance, c.cfg.ExitPhrase) {
		c.record(id, dialogue.RoleAssistant, c.cfg.Farewell)
		c.speak(ctx, id, c.cfg.Farewell)
		c.finish(id, StateClosed, ExitRequested)
		return ExitRequested, nil
	}

	c.enter(id, StateDialoguing)
	start := time.Now()
	reply, err := c.c.Session.Send(ctx, utterance)
	c.metrics.ObserveStep("dialogue", time.Since(start))
	if err != nil {
		reply = dialogue.Describe(err)
		c.fail(id, metrics.FailureDialogue, reply, err)
	}
	c.record(id, dialogue.RoleAssistant, reply)

	c.enter(id, StateSynthesizing)
	c.speak(ctx, id, reply)

	c.finish(id, StateIdle, Continue)
	return Continue, nil
}

// RunTurn runs one complete turn on the calling goroutine.
func (c *Controller) RunTurn(ctx context.Context) (Outcome, error) {
	path, err := c.Capture(ctx)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return ExitRequested, err
		}
		return Continue, err
	}
	return c.Process(ctx, path)
}

// Run loops turns until the exit phrase is heard or ctx is cancelled.
// Aborted turns are retried after Config.RetryPause.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := c.RunTurn(ctx)
		switch {
		case errors.Is(err, ErrClosed), outcome == ExitRequested:
			return nil
		case err != nil:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryPause):
			}
		}
	}
}

func (c *Controller) speak(ctx context.Context, id uuid.UUID, text string) {
	start := time.Now()
	err := c.c.Speaker.Speak(ctx, text)
	c.metrics.ObserveStep("synthesize", time.Since(start))
	if err != nil {
		c.fail(id, metrics.FailureSynthesis, fmt.Sprintf("Could not speak the reply: %v", err), err)
	}
}

// abort reports a failure that ends the turn early and returns to Idle.
func (c *Controller) abort(id uuid.UUID, state State, kind, msg string, err error) error {
	c.fail(id, kind, msg, err)
	c.enter(id, StateIdle)
	c.metrics.RecordOutcome("aborted")
	return &StepError{State: state, Err: err}
}

func (c *Controller) fail(id uuid.UUID, kind, msg string, err error) {
	c.metrics.RecordFailure(kind)
	c.logger.Warn("turn step failed", "turn_id", id, "kind", kind, "error", err)
	c.emit(Event{TurnID: id, Kind: EventFailure, Failure: kind, Message: msg, Err: err})
}

func (c *Controller) enter(id uuid.UUID, s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("state", "turn_id", id, "state", s.String())
	c.emit(Event{TurnID: id, Kind: EventState, State: s, Label: s.Label()})
}

func (c *Controller) record(id uuid.UUID, role dialogue.Role, text string) {
	e := Entry{Role: role, Text: text, Time: time.Now()}
	c.mu.Lock()
	c.history = append(c.history, e)
	c.mu.Unlock()
	c.emit(Event{TurnID: id, Kind: EventEntry, Entry: &e})
}

// finish enters the turn's final state and reports its outcome before any
// new turn can start.
func (c *Controller) finish(id uuid.UUID, s State, o Outcome) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	c.enter(id, s)
	c.done(id, s, o)
}

func (c *Controller) done(id uuid.UUID, s State, o Outcome) {
	c.metrics.RecordOutcome(o.String())
	c.logger.Info("turn complete", "turn_id", id, "outcome", o.String())
	c.emit(Event{TurnID: id, Kind: EventTurnDone, State: s, Label: s.Label(), Outcome: o})
}

// emit delivers ev to every handler. Events carry the ID of the turn that
// produced them, never the controller's latest one.
func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()

	ev.Time = time.Now()
	for _, h := range handlers {
		h(ev)
	}
}

var (
	_ Recorder    = (*audioio.Recorder)(nil)
	_ ClipSaver   = (*clipstore.Store)(nil)
	_ Transcriber = (*stt.Transcriber)(nil)
	_ Speaker     = (*speech.Synthesizer)(nil)
)
