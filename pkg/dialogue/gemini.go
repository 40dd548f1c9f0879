package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/teslashibe/go-voicechat/internal/httpc"
)

const geminiName = "gemini"

// chatSender is the part of *genai.Chat a Gemini session uses.
type chatSender interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini is a Session backed by a genai chat. The chat keeps the
// conversation context server-side between turns.
type Gemini struct {
	cfg     *Config
	chat    chatSender
	history history
	logger  *slog.Logger
	closed  bool
}

// NewGemini creates the client and opens the chat.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Model = DefaultGeminiModel
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(0)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, classify(geminiName, 0, err)
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	chat, err := client.Chats.Create(ctx, cfg.Model, gc, nil)
	if err != nil {
		return nil, classify(geminiName, 0, err)
	}
	return newGemini(cfg, chat), nil
}

func newGemini(cfg *Config, chat chatSender) *Gemini {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		cfg:    cfg,
		chat:   chat,
		logger: logger.With("component", "dialogue", "provider", geminiName, "model", cfg.Model),
	}
}

// Send forwards one user turn to the chat.
func (g *Gemini) Send(ctx context.Context, text string) (string, error) {
	if g.closed {
		return "", &Error{Provider: geminiName, Kind: KindBackend, Err: ErrClosed}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Provider: geminiName, Kind: KindMalformed, Err: ErrEmptyText}
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", classify(geminiName, 0, err)
	}
	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Text())
	}
	if reply == "" {
		return "", classify(geminiName, 0, ErrEmptyReply)
	}

	g.history.commit(text, reply)
	g.logger.Debug("reply received", "chars", len(reply))
	return reply, nil
}

// History returns the exchanges so far.
func (g *Gemini) History() []Message {
	return g.history.snapshot()
}

// Name returns "gemini".
func (g *Gemini) Name() string {
	return geminiName
}

// Close marks the session closed. The genai client holds no connections
// beyond the shared HTTP client.
func (g *Gemini) Close() error {
	g.closed = true
	return nil
}

var _ Session = (*Gemini)(nil)
