// Package host runs a turn.Controller in responsive mode: capture and
// processing happen on worker goroutines while the control surface only
// triggers turns and consumes events.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/internal/metrics"
	"github.com/teslashibe/go-voicechat/pkg/turn"
)

var (
	// ErrBusy is returned by Trigger while a turn is in flight.
	ErrBusy = errors.New("host: a turn is already in flight")

	// ErrClosed is returned by Trigger once the conversation has ended.
	ErrClosed = turn.ErrClosed

	// ErrNotRunning is returned by Trigger before Start or after shutdown.
	ErrNotRunning = errors.New("host: not running")
)

// Status is a snapshot of the host for control surfaces.
type Status struct {
	State  turn.State `json:"state"`
	Label  string     `json:"label"`
	Busy   bool       `json:"busy"`
	Closed bool       `json:"closed"`
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithMetrics counts rejected triggers.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// Host owns the capture and processing workers for one Controller.
// Exactly one turn is in flight at a time.
type Host struct {
	ctl     *turn.Controller
	logger  *slog.Logger
	metrics *metrics.Metrics

	triggers chan struct{}
	clips    chan string
	events   chan turn.Event
	done     chan struct{}

	mu      sync.Mutex
	running bool
	busy    bool
	closed  bool
	cancel  context.CancelFunc
	err     error

	queueMu sync.Mutex
	queue   []turn.Event
	wake    chan struct{}
	stopped bool
}

// New creates a Host and subscribes it to ctl's events.
func New(ctl *turn.Controller, opts ...Option) *Host {
	h := &Host{
		ctl:      ctl,
		triggers: make(chan struct{}, 1),
		clips:    make(chan string, 1),
		events:   make(chan turn.Event, 64),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.Or(h.logger).With("component", "host")
	h.closed = ctl.State() == turn.StateClosed
	ctl.OnEvent(h.onEvent)
	return h
}

// Start launches the workers. They stop when ctx is cancelled or the
// conversation closes; a turn in flight always runs to completion first.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running || h.cancel != nil {
		h.mu.Unlock()
		return errors.New("host: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.mu.Unlock()

	go h.dispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.captureWorker(gctx) })
	g.Go(func() error { return h.processWorker(gctx) })

	go func() {
		err := g.Wait()
		h.mu.Lock()
		h.running = false
		h.err = err
		h.mu.Unlock()
		cancel()
		h.queueMu.Lock()
		h.stopped = true
		close(h.wake)
		h.queueMu.Unlock()
		close(h.done)
	}()

	h.logger.Info("host started")
	return nil
}

// Trigger begins a turn. It never blocks.
func (h *Host) Trigger() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return ErrClosed
	case !h.running:
		return ErrNotRunning
	case h.busy:
		h.metrics.RecordRejectedTrigger()
		return ErrBusy
	}
	h.busy = true
	h.triggers <- struct{}{}
	return nil
}

// Status returns the current state and trigger availability.
func (h *Host) Status() Status {
	state := h.ctl.State()
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		State:  state,
		Label:  state.Label(),
		Busy:   h.busy,
		Closed: h.closed,
	}
}

// History returns the conversation so far.
func (h *Host) History() []turn.Entry {
	return h.ctl.History()
}

// Controller returns the controller the host drives.
func (h *Host) Controller() *turn.Controller {
	return h.ctl
}

// Events delivers every controller event in order. It is closed after the
// workers stop and the remaining events have been delivered.
func (h *Host) Events() <-chan turn.Event {
	return h.events
}

// Done is closed once the host has fully stopped.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the host stops and returns the first worker error.
func (h *Host) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Shutdown stops accepting triggers and waits for the turn in flight.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-h.done:
		return h.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) captureWorker(ctx context.Context) error {
	defer close(h.clips)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.triggers:
		}
		if ctx.Err() != nil {
			h.release()
			return nil
		}

		path, err := h.ctl.Capture(ctx)
		switch {
		case errors.Is(err, turn.ErrClosed):
			h.markClosed()
			return nil
		case err != nil:
			var stepErr *turn.StepError
			if !errors.As(err, &stepErr) {
				h.release()
			}
			h.logger.Warn("capture failed", "error", err)
			continue
		}
		h.clips <- path
	}
}

func (h *Host) processWorker(ctx context.Context) error {
	for path := range h.clips {
		outcome, err := h.ctl.Process(ctx, path)
		if err != nil {
			h.logger.Error("process failed", "error", err)
			h.release()
			continue
		}
		if outcome == turn.ExitRequested {
			h.markClosed()
			h.mu.Lock()
			cancel := h.cancel
			h.mu.Unlock()
			cancel()
		}
	}
	return nil
}

// onEvent runs on worker goroutines; it must not block.
func (h *Host) onEvent(ev turn.Event) {
	if ev.Kind == turn.EventState {
		switch ev.State {
		case turn.StateIdle:
			h.release()
		case turn.StateClosed:
			h.markClosed()
		}
	}

	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	if h.stopped {
		h.logger.Debug("event after stop dropped", "kind", ev.Kind, "turn_id", ev.TurnID)
		return
	}
	h.queue = append(h.queue, ev)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// dispatch moves queued events to the events channel so slow consumers
// never stall a worker.
func (h *Host) dispatch() {
	defer close(h.events)
	for {
		_, ok := <-h.wake
		h.queueMu.Lock()
		batch := h.queue
		h.queue = nil
		h.queueMu.Unlock()

		for _, ev := range batch {
			h.events <- ev
		}
		if !ok {
			return
		}
	}
}

func (h *Host) release() {
	h.mu.Lock()
	h.busy = false
	h.mu.Unlock()
}

func (h *Host) markClosed() {
	h.mu.Lock()
	h.busy = false
	h.closed = true
	h.mu.Unlock()
}
