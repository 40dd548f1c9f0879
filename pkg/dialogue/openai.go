package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-voicechat/internal/httpc"
)

const openAIName = "openai"

// OpenAI is a Session backed by chat completions. The backend is
// stateless, so the session carries the message list itself and only
// extends it after a successful reply.
type OpenAI struct {
	cfg      *Config
	client   *openai.Client
	messages []openai.ChatCompletionMessage
	history  history
	logger   *slog.Logger
	closed   bool
}

// NewOpenAI creates an OpenAI-compatible session.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = DefaultOpenAIModel
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = cfg.HTTPClient
	if oc.HTTPClient == nil {
		oc.HTTPClient = httpc.NewClient(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &OpenAI{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
		logger: logger.With("component", "dialogue", "provider", openAIName, "model", cfg.Model),
	}
	if cfg.SystemPrompt != "" {
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: cfg.SystemPrompt,
		})
	}
	return s, nil
}

// Send forwards one user turn with the full prior context.
func (s *OpenAI) Send(ctx context.Context, text string) (string, error) {
	if s.closed {
		return "", &Error{Provider: openAIName, Kind: KindBackend, Err: ErrClosed}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Provider: openAIName, Kind: KindMalformed, Err: ErrEmptyText}
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	msgs := make([]openai.ChatCompletionMessage, 0, len(s.messages)+1)
	msgs = append(append(msgs, s.messages...), user)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		Temperature: float32(s.cfg.Temperature),
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", classify(openAIName, apiErr.HTTPStatusCode, err)
		}
		return "", classify(openAIName, 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", classify(openAIName, 0, ErrEmptyReply)
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", classify(openAIName, 0, ErrEmptyReply)
	}

	s.messages = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
	s.history.commit(text, reply)
	s.logger.Debug("reply received", "chars", len(reply), "context_messages", len(s.messages))
	return reply, nil
}

// History returns the exchanges so far.
func (s *OpenAI) History() []Message {
	return s.history.snapshot()
}

// Name returns "openai".
func (s *OpenAI) Name() string {
	return openAIName
}

// Close marks the session closed.
func (s *OpenAI) Close() error {
	s.closed = true
	return nil
}

var _ Session = (*OpenAI)(nil)
