// Package speech turns reply text into audible speech: sanitize, synthesize
// through a tts.Provider, decode, and play on an audioio.Sink.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

// Synthesizer speaks text and blocks until playback has finished.
type Synthesizer struct {
	provider tts.Provider
	sink     audioio.Sink
	logger   *slog.Logger
}

// New returns a Synthesizer. The sink must already be started.
func New(provider tts.Provider, sink audioio.Sink, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		sink:     sink,
		logger:   log.Or(logger).With("component", "speech"),
	}
}

// Speak sanitizes text and plays it. Text that sanitizes to nothing is
// silently skipped.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	clean := strings.TrimSpace(tts.Sanitize(text))
	if clean == "" {
		s.logger.Debug("nothing to speak after sanitizing", "chars", len(text))
		return nil
	}

	start := time.Now()
	res, err := s.provider.Synthesize(ctx, clean)
	if err != nil {
		return &SynthesisError{Stage: StageSynthesize, Err: err}
	}

	samples, rate, err := Decode(res)
	if err != nil {
		return &SynthesisError{Stage: StageDecode, Err: err}
	}
	if len(samples) == 0 {
		return nil
	}

	sinkRate := s.sink.Config().SampleRate
	if sinkRate > 0 && rate != sinkRate {
		samples = audioio.Resample(samples, rate, sinkRate)
		rate = sinkRate
	}

	chunk := audioio.AudioChunk{Samples: samples, SampleRate: rate, Channels: 1}
	if err := s.sink.Write(ctx, chunk); err != nil {
		return &SynthesisError{Stage: StagePlayback, Err: err}
	}
	if err := s.sink.Flush(ctx); err != nil {
		return &SynthesisError{Stage: StagePlayback, Err: err}
	}

	s.logger.Debug("spoke reply",
		"chars", len(clean),
		"audio_ms", int64(chunk.Duration()*1000),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close releases the provider. The sink is owned by the caller.
func (s *Synthesizer) Close() error {
	return s.provider.Close()
}
