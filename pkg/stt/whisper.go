package stt

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-voicechat/internal/httpc"
)

const whisperName = "whisper"

// Whisper transcribes clips with the OpenAI audio transcription endpoint.
// The container on disk is uploaded as-is.
type Whisper struct {
	cfg    *Config
	client *openai.Client
}

// NewWhisper creates a Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Language = DefaultWhisperLang
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = httpc.NewClient(cfg.Timeout)
	}

	return &Whisper{cfg: cfg, client: openai.NewClientWithConfig(oc)}, nil
}

// Recognize uploads audio.Path and returns the transcript text.
func (w *Whisper) Recognize(ctx context.Context, audio Audio) (string, error) {
	if audio.Path == "" {
		return "", WrapError(whisperName, ErrEmptyAudio)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: audio.Path,
		Language: w.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", WrapError(whisperName, &APIError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				Provider:   whisperName,
			})
		}
		return "", WrapError(whisperName, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Name returns "whisper".
func (w *Whisper) Name() string {
	return whisperName
}

// Close is a no-op.
func (w *Whisper) Close() error {
	return nil
}

var _ Provider = (*Whisper)(nil)
