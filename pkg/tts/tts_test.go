package tts_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/tts"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, world!", "Hello, world!"},
		{"**Bold** and _italic_", "Bold and italic"},
		{"line one\nline two", "line oneline two"},
		{"It's \"quoted\"?", "It's \"quoted\"?"},
		{"café 3€", "caf 3"},
		{"#$%^&*()", ""},
		{"", ""},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := tts.Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeIdempotentAndClosed(t *testing.T) {
	inputs := []string{
		"Sure! Here's a list:\n- one\n- two",
		"```go\nfmt.Println(\"hi\")\n```",
		"emoji 😀 and ümlauts",
		"plain sentence.",
	}
	const allowed = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 \t.,?!'\""
	for _, in := range inputs {
		once := tts.Sanitize(in)
		if twice := tts.Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		for _, r := range once {
			if !strings.ContainsRune(allowed, r) {
				t.Errorf("Sanitize(%q) kept %q", in, r)
			}
		}
	}
}

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns silence", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Format.SampleRate != tts.MockRate {
			t.Errorf("expected %d sample rate, got %d", tts.MockRate, result.Format.SampleRate)
		}
		if want := 11 * tts.MockRate / 100 * 2; len(result.Audio) != want {
			t.Errorf("expected %d bytes, got %d", want, len(result.Audio))
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
	})

	t.Run("Stream returns one chunk then nil", func(t *testing.T) {
		stream, err := mock.Stream(ctx, "Test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer stream.Close()

		chunk, err := stream.Read()
		if err != nil || len(chunk) == 0 {
			t.Fatalf("first read = %d bytes, %v", len(chunk), err)
		}
		chunk, err = stream.Read()
		if err != nil || chunk != nil {
			t.Errorf("second read = %v, %v; want nil, nil", chunk, err)
		}
	})

	t.Run("records texts", func(t *testing.T) {
		texts := mock.Texts()
		if len(texts) != 2 || texts[0] != "Hello world" || texts[1] != "Test" {
			t.Errorf("unexpected texts: %v", texts)
		}
	})
}

func TestMockLatencyHonorsContext(t *testing.T) {
	mock := tts.NewMock()
	mock.Latency = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Synthesize(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestChainFallback(t *testing.T) {
	failing := tts.NewFailingMock(&tts.APIError{StatusCode: 503, Message: "down", Provider: "a"})
	healthy := tts.NewMock()

	chain, err := tts.NewChain(nil, failing, healthy)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected audio from fallback provider")
	}
	if len(failing.Texts()) != 1 || len(healthy.Texts()) != 1 {
		t.Errorf("expected both providers tried once")
	}
	if err := chain.Health(context.Background()); err != nil {
		t.Errorf("chain should be healthy: %v", err)
	}
}

func TestChainAllFail(t *testing.T) {
	first := errors.New("first")
	second := &tts.APIError{StatusCode: 429, Message: "slow down", Provider: "b"}

	chain, _ := tts.NewChain(nil, tts.NewFailingMock(first), tts.NewFailingMock(second))

	_, err := chain.Synthesize(context.Background(), "hi")
	var chainErr *tts.ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, first) {
		t.Error("expected first error reachable via errors.Is")
	}
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsRateLimited() {
		t.Error("expected rate-limited APIError reachable via errors.As")
	}
	if err := chain.Health(context.Background()); err == nil {
		t.Error("expected unhealthy chain")
	}
}

func TestChainStopsOnEmptyText(t *testing.T) {
	first := tts.NewFailingMock(tts.WrapError("a", tts.ErrEmptyText))
	second := tts.NewMock()
	chain, _ := tts.NewChain(nil, first, second)

	_, err := chain.Synthesize(context.Background(), "")
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if len(second.Texts()) != 0 {
		t.Error("second provider should not be tried")
	}
}

func TestNewChainEmpty(t *testing.T) {
	if _, err := tts.NewChain(nil); !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChainClose(t *testing.T) {
	a, b := tts.NewMock(), tts.NewMock()
	chain, _ := tts.NewChain(nil, a, b)
	if err := chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.Closed() != 1 || b.Closed() != 1 {
		t.Error("expected every provider closed once")
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		rateLimit bool
		unauth    bool
		server    bool
		temporary bool
	}{
		{429, true, false, false, true},
		{401, false, true, false, false},
		{403, false, true, false, false},
		{500, false, false, true, true},
		{503, false, false, true, true},
		{400, false, false, false, false},
	}
	for _, tt := range tests {
		err := &tts.APIError{StatusCode: tt.status}
		if err.IsRateLimited() != tt.rateLimit {
			t.Errorf("%d: IsRateLimited = %v", tt.status, err.IsRateLimited())
		}
		if err.IsUnauthorized() != tt.unauth {
			t.Errorf("%d: IsUnauthorized = %v", tt.status, err.IsUnauthorized())
		}
		if err.IsServerError() != tt.server {
			t.Errorf("%d: IsServerError = %v", tt.status, err.IsServerError())
		}
		if err.Temporary() != tt.temporary {
			t.Errorf("%d: Temporary = %v", tt.status, err.Temporary())
		}
		if tts.IsTemporary(tts.WrapError("x", err)) != tt.temporary {
			t.Errorf("%d: IsTemporary through wrap = %v", tt.status, !tt.temporary)
		}
	}
}

func TestWrapError(t *testing.T) {
	if tts.WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
	err := tts.WrapError("openai", tts.ErrNoAPIKey)
	if !errors.Is(err, tts.ErrNoAPIKey) {
		t.Error("wrapped error should match sentinel")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error should name provider: %v", err)
	}
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := map[tts.Encoding]int{
		tts.EncodingPCM16: 16000,
		tts.EncodingPCM22: 22050,
		tts.EncodingPCM24: 24000,
		tts.EncodingPCM44: 44100,
		tts.EncodingWAV:   24000,
		tts.EncodingMP3:   44100,
	}
	for enc, want := range tests {
		if got := tts.SampleRateFromEncoding(enc); got != want {
			t.Errorf("SampleRateFromEncoding(%s) = %d, want %d", enc, got, want)
		}
	}
	if !tts.EncodingPCM16.IsPCM() || tts.EncodingWAV.IsPCM() {
		t.Error("IsPCM mismatch")
	}
}

func TestPCMDuration(t *testing.T) {
	if got := tts.PCMDuration(32000, 16000); got != time.Second {
		t.Errorf("PCMDuration = %v, want 1s", got)
	}
	if got := tts.PCMDuration(100, 0); got != 0 {
		t.Errorf("PCMDuration with zero rate = %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := tts.DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
	cfg.Apply(tts.WithAPIKey("k"), tts.WithVoice(tts.VoiceNova), tts.WithSpeakingRate(1.25))
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.VoiceID != tts.VoiceNova || cfg.SpeakingRate != 1.25 {
		t.Errorf("options not applied: %+v", cfg)
	}
}
