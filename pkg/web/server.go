// Package web serves the voice chat dashboard API: turn triggers, status,
// conversation history, metrics, and live websocket feeds.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/host"
	"github.com/teslashibe/go-voicechat/pkg/hub"
	"github.com/teslashibe/go-voicechat/pkg/turn"
)

// DefaultAddr is the dashboard listen address.
const DefaultAddr = ":8181"

// Backend is the conversation the server controls.
type Backend interface {
	Trigger() error
	Status() host.Status
	History() []turn.Entry
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Server is the dashboard HTTP server.
type Server struct {
	app      *fiber.App
	addr     string
	backend  Backend
	logger   *slog.Logger
	gatherer prometheus.Gatherer

	statusHub       *hub.Hub
	conversationHub *hub.Hub
}

// NewServer creates a server for backend listening on addr.
func NewServer(addr string, backend Backend, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:     addr,
		backend:  backend,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With("component", "web")
	s.statusHub = hub.New("status", s.logger)
	s.conversationHub = hub.New("conversation", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "Voice Chat",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Post("/turn", s.handleTurn)
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/conversation", websocket.New(s.handleConversationWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs until ctx is done and listens on the configured
// address. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.conversationHub.Run(ctx)

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Consume forwards controller events to websocket clients until events is
// closed or ctx is done.
func (s *Server) Consume(ctx context.Context, events <-chan turn.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.publish(ev)
		}
	}
}

func (s *Server) publish(ev turn.Event) {
	var err error
	switch ev.Kind {
	case turn.EventEntry:
		err = s.conversationHub.BroadcastJSON(ev.Entry)
	case turn.EventState, turn.EventTurnDone:
		u := s.update(ev)
		u.State = &ev.State
		u.Label = ev.Label
		if ev.Kind == turn.EventTurnDone {
			u.Outcome = ev.Outcome.String()
		}
		err = s.statusHub.BroadcastJSON(u)
	case turn.EventFailure:
		u := s.update(ev)
		u.Failure = ev.Failure
		u.Message = ev.Message
		err = s.statusHub.BroadcastJSON(u)
	}
	if err != nil {
		s.logger.Warn("failed to publish event", "kind", ev.Kind, "error", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("dashboard shutdown timed out")
	}
	return err
}

// update starts a frame for ev. State, Label and Outcome describe the event
// itself; Status is the backend's view at send time and may be newer.
func (s *Server) update(ev turn.Event) statusUpdate {
	u := statusUpdate{Event: string(ev.Kind), Status: s.backend.Status(), Time: ev.Time}
	if ev.TurnID != uuid.Nil {
		u.TurnID = ev.TurnID.String()
	}
	return u
}

// statusUpdate is the /ws/status frame.
type statusUpdate struct {
	Event   string      `json:"event"`
	TurnID  string      `json:"turn_id,omitempty"`
	State   *turn.State `json:"state,omitempty"`
	Label   string      `json:"label,omitempty"`
	Outcome string      `json:"outcome,omitempty"`
	Status  host.Status `json:"status"`
	Failure string      `json:"failure,omitempty"`
	Message string      `json:"message,omitempty"`
	Time    time.Time   `json:"time"`
}
