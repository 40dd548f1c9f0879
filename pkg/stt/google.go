package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teslashibe/go-voicechat/internal/gcp"
)

const googleName = "google"

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Google recognizes speech with the Cloud Speech-to-Text v1 Recognize API.
type Google struct {
	cfg       *Config
	recognize recognizeFunc
	close     func() error
}

// NewGoogle dials the Speech-to-Text service.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	clientOpts, err := gcp.ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, WrapError(googleName, err)
	}
	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(googleName, err)
	}

	return newGoogle(cfg, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, client.Close), nil
}

func newGoogle(cfg *Config, fn recognizeFunc, closeFn func() error) *Google {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Google{cfg: cfg, recognize: fn, close: closeFn}
}

// Recognize sends the clip as LINEAR16 and returns the top alternative of
// every result, joined with spaces.
func (g *Google) Recognize(ctx context.Context, audio Audio) (string, error) {
	if len(audio.PCM) == 0 {
		return "", WrapError(googleName, ErrEmptyAudio)
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(audio.SampleRate),
			AudioChannelCount:          1,
			LanguageCode:               g.cfg.Language,
			Model:                      g.cfg.Model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.PCM},
		},
	}

	resp, err := g.recognize(ctx, req)
	if err != nil {
		return "", g.wrap(err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

func (g *Google) wrap(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return WrapError(googleName, &APIError{
			StatusCode: int(st.Code()),
			Message:    fmt.Sprintf("%s: %s", st.Code(), st.Message()),
			Provider:   googleName,
		})
	}
	return WrapError(googleName, err)
}

// Name returns "google".
func (g *Google) Name() string {
	return googleName
}

// Close closes the gRPC connection.
func (g *Google) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

var _ Provider = (*Google)(nil)
