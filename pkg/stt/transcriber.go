package stt

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/clipstore"
)

// Placeholder texts substituted for a missing transcript.
const (
	NotUnderstoodText = "Speech recognition could not understand the audio"
	UnavailablePrefix = "Could not request results from speech recognition service; "
)

// Kind classifies a transcription outcome.
type Kind int

const (
	// KindRecognized carries a real utterance.
	KindRecognized Kind = iota
	// KindEmpty means the backend heard nothing intelligible.
	KindEmpty
	// KindUnavailable means the backend could not be reached or failed.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindRecognized:
		return "recognized"
	case KindEmpty:
		return "empty"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of one transcription. Text is never empty: for
// KindEmpty and KindUnavailable it holds placeholder text that the turn
// loop treats as if the user had said it.
type Result struct {
	Kind     Kind
	Text     string
	Err      error
	Duration time.Duration
}

// Unavailable reports whether the backend failed, as opposed to hearing silence.
func (r Result) Unavailable() bool {
	return r.Kind == KindUnavailable
}

// Transcriber reads a persisted clip and asks a Provider for its text.
// It never retries.
type Transcriber struct {
	provider Provider
	logger   *slog.Logger
}

// NewTranscriber wraps provider.
func NewTranscriber(provider Provider, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		provider: provider,
		logger:   logger.With("component", "transcriber", "provider", provider.Name()),
	}
}

// Transcribe recognizes the clip at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string) Result {
	start := time.Now()

	clip, err := clipstore.Load(path)
	if err != nil {
		return t.unavailable(err, start)
	}

	text, err := t.provider.Recognize(ctx, Audio{
		Path:       path,
		PCM:        audioio.SamplesToBytes(clip.Samples),
		SampleRate: clip.SampleRate,
	})
	switch {
	case errors.Is(err, ErrNoSpeech):
		t.logger.Info("no speech recognized", "elapsed", time.Since(start).Round(time.Millisecond))
		return Result{Kind: KindEmpty, Text: NotUnderstoodText, Duration: time.Since(start)}
	case err != nil:
		return t.unavailable(err, start)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Kind: KindEmpty, Text: NotUnderstoodText, Duration: time.Since(start)}
	}
	t.logger.Debug("transcribed", "chars", len(text), "elapsed", time.Since(start).Round(time.Millisecond))
	return Result{Kind: KindRecognized, Text: text, Duration: time.Since(start)}
}

func (t *Transcriber) unavailable(err error, start time.Time) Result {
	t.logger.Warn("speech recognition unavailable", "error", err)
	return Result{
		Kind:     KindUnavailable,
		Text:     UnavailablePrefix + err.Error(),
		Err:      err,
		Duration: time.Since(start),
	}
}
