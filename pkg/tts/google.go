package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teslashibe/go-voicechat/internal/gcp"
	"github.com/teslashibe/go-voicechat/internal/log"
)

const providerGoogle = "google"

// DefaultGoogleVoice is a standard US English voice.
const DefaultGoogleVoice = "en-US-Standard-C"

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// Google implements Provider with Cloud Text-to-Speech. Audio is requested
// as LINEAR16, which the service returns inside a WAV container.
type Google struct {
	config     *Config
	synthesize synthesizeFunc
	close      func() error
	logger     *slog.Logger
}

// NewGoogle dials the Text-to-Speech service. Credentials come from
// WithCredentials, falling back to application default credentials.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	clientOpts, err := gcp.ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}
	client, err := texttospeech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	return newGoogle(cfg, func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, client.Close), nil
}

func newGoogle(cfg *Config, fn synthesizeFunc, closeFn func() error) *Google {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.VoiceID == "" && strings.HasPrefix(cfg.LanguageCode, "en-US") {
		cfg.VoiceID = DefaultGoogleVoice
	}
	if cfg.OutputFormat == "" || cfg.OutputFormat.IsPCM() {
		cfg.OutputFormat = EncodingWAV
	}
	return &Google{
		config:     cfg,
		synthesize: fn,
		close:      closeFn,
		logger:     log.Or(cfg.Logger).With("component", "tts.google"),
	}
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}
	start := time.Now()

	encoding := texttospeechpb.AudioEncoding_LINEAR16
	if g.config.OutputFormat == EncodingMP3 {
		encoding = texttospeechpb.AudioEncoding_MP3
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         g.config.VoiceID,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: encoding,
			SpeakingRate:  g.config.SpeakingRate,
		},
	}

	resp, err := g.synthesize(ctx, req)
	if err != nil {
		return nil, g.wrap(err)
	}
	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, fmt.Errorf("empty audio content"))
	}
	latency := time.Since(start).Milliseconds()

	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", g.config.VoiceID,
	)

	format := AudioFormat{Encoding: g.config.OutputFormat, Channels: 1}
	if format.Encoding == EncodingWAV {
		format.BitDepth = 16
	}
	format.SampleRate = SampleRateFromEncoding(format.Encoding)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Stream falls back to Synthesize; Cloud TTS v1 returns one buffer.
func (g *Google) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := g.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health reports whether the client was constructed.
func (g *Google) Health(ctx context.Context) error {
	if g.synthesize == nil {
		return WrapError(providerGoogle, ErrProviderUnavailable)
	}
	return ctx.Err()
}

// Close closes the gRPC connection.
func (g *Google) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

func (g *Google) wrap(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return &APIError{
			StatusCode: grpcHTTPStatus(st.Code()),
			Message:    st.Message(),
			Code:       st.Code().String(),
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// grpcHTTPStatus maps the codes APIError helpers care about.
func grpcHTTPStatus(c codes.Code) int {
	switch c {
	case codes.ResourceExhausted:
		return 429
	case codes.Unauthenticated, codes.PermissionDenied:
		return 401
	case codes.InvalidArgument:
		return 400
	case codes.DeadlineExceeded:
		return 504
	case codes.Unavailable:
		return 503
	default:
		return 500
	}
}

var _ Provider = (*Google)(nil)
