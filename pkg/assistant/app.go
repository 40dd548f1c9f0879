// Package assistant assembles the voice conversation loop from
// configuration and runs it in one of three modes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-voicechat/internal/gcp"
	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/internal/metrics"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/clipstore"
	"github.com/teslashibe/go-voicechat/pkg/console"
	"github.com/teslashibe/go-voicechat/pkg/dialogue"
	"github.com/teslashibe/go-voicechat/pkg/host"
	"github.com/teslashibe/go-voicechat/pkg/speech"
	"github.com/teslashibe/go-voicechat/pkg/stt"
	"github.com/teslashibe/go-voicechat/pkg/tts"
	"github.com/teslashibe/go-voicechat/pkg/turn"
	"github.com/teslashibe/go-voicechat/pkg/web"
)

// ShutdownTimeout bounds how long Run waits for a turn in flight after the
// surface stops.
const ShutdownTimeout = time.Minute

// Option configures an App.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithOutput sets where conversation lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.registry = reg
	}
}

// WithKeySource replaces the terminal keyboard in cli mode.
func WithKeySource(k console.KeySource) Option {
	return func(a *App) {
		a.keys = k
	}
}

// WithRecognizer uses p instead of the configured stt provider.
func WithRecognizer(p stt.Provider) Option {
	return func(a *App) {
		a.recognizer = p
	}
}

// WithSession uses s instead of the configured dialogue provider.
func WithSession(s dialogue.Session) Option {
	return func(a *App) {
		a.session = s
	}
}

// WithVoice uses p instead of the configured tts providers.
func WithVoice(p tts.Provider) Option {
	return func(a *App) {
		a.voice = p
	}
}

// App is the assistant orchestrator. It owns every component and their
// lifecycle.
type App struct {
	config   Config
	logger   *slog.Logger
	out      io.Writer
	registry *prometheus.Registry
	keys     console.KeySource

	// Pipeline
	source     audioio.Source
	sink       audioio.Sink
	recognizer stt.Provider
	session    dialogue.Session
	voice      tts.Provider
	speaker    *speech.Synthesizer

	metrics *metrics.Metrics
	printer *console.Printer
	ctl     *turn.Controller

	// Responsive modes
	host *host.Host
	web  *web.Server
}

// New creates an App from a validated configuration.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.Or(a.logger).With("component", "assistant")
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if a.keys == nil {
		a.keys = &console.Keyboard{}
	}
	a.printer = console.NewPrinter(a.out)
	return a, nil
}

// Init builds every component. Call it after New and before Run.
// Components built before a failure are released by Shutdown.
func (a *App) Init(ctx context.Context) error {
	a.metrics = metrics.New(a.registry)

	if err := a.initAudio(ctx); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	if err := a.initSTT(ctx); err != nil {
		return fmt.Errorf("stt init: %w", err)
	}
	if err := a.initDialogue(ctx); err != nil {
		return fmt.Errorf("dialogue init: %w", err)
	}
	if err := a.initTTS(ctx); err != nil {
		return fmt.Errorf("tts init: %w", err)
	}

	cfg := a.config
	ctl, err := turn.New(turn.Config{
		CaptureDuration: cfg.Audio.CaptureDuration,
		ExitPhrase:      cfg.ExitPhrase,
		Farewell:        cfg.Farewell,
		RetryPause:      turn.DefaultRetryPause,
	}, turn.Components{
		Recorder:    audioio.NewRecorder(a.source, cfg.Audio.TimeoutMargin, a.logger),
		Store:       clipstore.New(cfg.Audio.ClipPath, clipstore.WithLogger(a.logger), clipstore.WithMetrics(a.metrics)),
		Transcriber: stt.NewTranscriber(a.recognizer, a.logger),
		Session:     a.session,
		Speaker:     a.speaker,
	}, turn.WithLogger(a.logger), turn.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("controller init: %w", err)
	}
	a.ctl = ctl

	a.logger.Info("assistant initialized",
		"mode", cfg.Mode,
		"stt", a.recognizer.Name(),
		"dialogue", a.session.Name(),
		"capture", cfg.Audio.CaptureDuration,
	)
	return nil
}

// Controller returns the turn controller built by Init.
func (a *App) Controller() *turn.Controller {
	return a.ctl
}

// Run drives the conversation in the configured mode. It returns when the
// exit phrase is heard, the user quits, or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.ctl == nil {
		return errors.New("assistant: Run called before Init")
	}
	a.printer.Banner(a.config.ExitPhrase)

	var err error
	switch a.config.Mode {
	case ModeCLI:
		err = a.runCLI(ctx)
	case ModeWeb:
		err = a.runWeb(ctx)
	default:
		err = a.runSync(ctx)
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (a *App) runSync(ctx context.Context) error {
	a.ctl.OnEvent(a.printer.Handle)
	if err := a.ctl.Run(ctx); err != nil {
		return err
	}
	a.printer.Ended()
	return nil
}

func (a *App) runCLI(ctx context.Context) error {
	a.host = host.New(a.ctl, host.WithLogger(a.logger), host.WithMetrics(a.metrics))
	if err := a.host.Start(ctx); err != nil {
		return err
	}
	a.printer.Hint()

	runErr := console.New(a.printer, a.keys, a.logger).Run(ctx, a.host)
	return errors.Join(runErr, a.stopHost())
}

func (a *App) runWeb(ctx context.Context) error {
	a.ctl.OnEvent(a.printer.Handle)
	a.host = host.New(a.ctl, host.WithLogger(a.logger), host.WithMetrics(a.metrics))
	a.web = web.NewServer(a.config.Web.Addr, a.host, web.WithLogger(a.logger), web.WithGatherer(a.registry))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.host.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.web.Consume(gctx, a.host.Events())
		return nil
	})
	g.Go(func() error {
		return a.web.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.host.Done():
			a.printer.Ended()
		}
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer scancel()
		return errors.Join(a.stopHost(), a.web.Shutdown(sctx))
	})
	return g.Wait()
}

func (a *App) stopHost() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return a.host.Shutdown(ctx)
}

// Shutdown releases every component. It is safe to call after a failed
// Init.
func (a *App) Shutdown() {
	var errs []error
	if a.speaker != nil {
		errs = append(errs, a.speaker.Close())
	} else if a.voice != nil {
		errs = append(errs, a.voice.Close())
	}
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.recognizer != nil {
		errs = append(errs, a.recognizer.Close())
	}
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
	a.logger.Info("assistant stopped")
}

func (a *App) initAudio(ctx context.Context) error {
	source, err := audioio.NewSource(a.config.Audio.Config, a.logger)
	if err != nil {
		return err
	}
	a.source = source

	sink, err := audioio.NewSink(a.config.Audio.Config, a.logger)
	if err != nil {
		return err
	}
	a.sink = sink
	return sink.Start(ctx)
}

func (a *App) initSTT(ctx context.Context) error {
	if a.recognizer != nil {
		return nil
	}
	cfg := a.config
	opts := []stt.Option{
		stt.WithLanguage(cfg.STT.Language),
		stt.WithModel(cfg.STT.Model),
		stt.WithLogger(a.logger),
	}

	var err error
	switch cfg.STT.Provider {
	case ProviderWhisper:
		// Whisper wants a bare ISO-639-1 code.
		if len(cfg.STT.Language) > 2 {
			opts = append(opts, stt.WithLanguage(cfg.STT.Language[:2]))
		}
		opts = append(opts, stt.WithAPIKey(cfg.Keys.OpenAIKey), stt.WithBaseURL(cfg.Keys.OpenAIBaseURL))
		a.recognizer, err = stt.NewWhisper(opts...)
	case ProviderMock:
		a.recognizer = stt.NewMock()
	default:
		opts = append(opts, stt.WithCredentials(a.googleCredentials()))
		a.recognizer, err = stt.NewGoogle(ctx, opts...)
	}
	return err
}

func (a *App) initDialogue(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	cfg := a.config.Dialogue
	opts := []dialogue.Option{
		dialogue.WithModel(cfg.Model),
		dialogue.WithSystemPrompt(cfg.SystemPrompt),
		dialogue.WithTemperature(cfg.Temperature),
		dialogue.WithMaxTokens(cfg.MaxTokens),
		dialogue.WithTimeout(cfg.Timeout),
		dialogue.WithLogger(a.logger),
	}

	var err error
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.Model == dialogue.DefaultGeminiModel {
			opts = append(opts, dialogue.WithModel(dialogue.DefaultOpenAIModel))
		}
		opts = append(opts, dialogue.WithAPIKey(a.config.Keys.OpenAIKey), dialogue.WithBaseURL(a.config.Keys.OpenAIBaseURL))
		a.session, err = dialogue.NewOpenAI(opts...)
	case ProviderMock:
		a.session = dialogue.NewMock()
	default:
		opts = append(opts, dialogue.WithAPIKey(a.config.Keys.GoogleAPIKey))
		a.session, err = dialogue.NewGemini(ctx, opts...)
	}
	return err
}

func (a *App) initTTS(ctx context.Context) error {
	if a.voice == nil {
		providers := make([]tts.Provider, 0, len(a.config.TTS.Providers))
		for _, name := range a.config.TTS.Providers {
			p, err := a.newVoice(ctx, name)
			if err != nil {
				for _, built := range providers {
					built.Close()
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			providers = append(providers, p)
		}
		if len(providers) == 1 {
			a.voice = providers[0]
		} else {
			chain, err := tts.NewChain(a.logger, providers...)
			if err != nil {
				return err
			}
			a.voice = chain
		}
	}
	a.speaker = speech.New(a.voice, a.sink, a.logger)
	return nil
}

func (a *App) newVoice(ctx context.Context, name string) (tts.Provider, error) {
	cfg := a.config.TTS
	opts := []tts.Option{
		tts.WithLanguage(cfg.Language),
		tts.WithSpeakingRate(cfg.SpeakingRate),
		tts.WithLogger(a.logger),
	}
	if cfg.Voice != "" {
		opts = append(opts, tts.WithVoice(cfg.Voice))
	}

	switch name {
	case ProviderOpenAI:
		opts = append(opts, tts.WithAPIKey(a.config.Keys.OpenAIKey), tts.WithBaseURL(a.config.Keys.OpenAIBaseURL))
		return tts.NewOpenAI(opts...)
	case ProviderMock:
		return tts.NewMock(), nil
	default:
		opts = append(opts, tts.WithOutputFormat(tts.EncodingWAV), tts.WithCredentials(a.googleCredentials()))
		return tts.NewGoogle(ctx, opts...)
	}
}

// googleCredentials prefers a service account file over the API key.
func (a *App) googleCredentials() gcp.Credentials {
	if a.config.Keys.GoogleCredentials != "" {
		return gcp.Credentials{CredentialsFile: a.config.Keys.GoogleCredentials}
	}
	return gcp.Credentials{APIKey: a.config.Keys.GoogleAPIKey}
}
