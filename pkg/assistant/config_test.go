package assistant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-voicechat/pkg/audioio"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeSync, cfg.Mode)
	assert.Equal(t, "close", cfg.ExitPhrase)
	assert.Equal(t, "Goodbye!", cfg.Farewell)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 5*time.Second, cfg.Audio.CaptureDuration)
	assert.Equal(t, "temp.wav", cfg.Audio.ClipPath)
	assert.Equal(t, ProviderGoogle, cfg.STT.Provider)
	assert.Equal(t, ProviderGemini, cfg.Dialogue.Provider)
	assert.Equal(t, []string{ProviderGoogle}, cfg.TTS.Providers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"defaults with key", func(c *Config) {}, ""},
		{"mock everything", func(c *Config) {
			c.Keys = Keys{}
			c.STT.Provider, c.Dialogue.Provider, c.TTS.Providers = ProviderMock, ProviderMock, []string{ProviderMock}
		}, ""},
		{"gemini without key", func(c *Config) { c.Keys.GoogleAPIKey = "" }, "GoogleAPIKey"},
		{"openai dialogue without key", func(c *Config) { c.Dialogue.Provider = ProviderOpenAI }, "OpenAIKey"},
		{"whisper without key", func(c *Config) { c.STT.Provider = ProviderWhisper }, "OpenAIKey"},
		{"openai tts without key", func(c *Config) { c.TTS.Providers = []string{ProviderGoogle, ProviderOpenAI} }, "OpenAIKey"},
		{"unknown mode", func(c *Config) { c.Mode = "batch" }, "Mode"},
		{"unknown stt", func(c *Config) { c.STT.Provider = "vosk" }, "STT.Provider"},
		{"unknown dialogue", func(c *Config) { c.Dialogue.Provider = "llama" }, "Dialogue.Provider"},
		{"unknown tts", func(c *Config) { c.TTS.Providers = []string{"espeak"} }, "TTS.Providers"},
		{"no tts", func(c *Config) { c.TTS.Providers = nil }, "TTS.Providers"},
		{"blank exit phrase", func(c *Config) { c.ExitPhrase = "  " }, "ExitPhrase"},
		{"zero capture", func(c *Config) { c.Audio.CaptureDuration = 0 }, "Audio.CaptureDuration"},
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "Audio"},
		{"web without addr", func(c *Config) { c.Mode, c.Web.Addr = ModeWeb, "" }, "Web.Addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Keys.GoogleAPIKey = "test-key"
			tt.edit(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.NotEmpty(t, cerr.Error())
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: web
exit_phrase: stop
audio:
  backend: mock
  sample_rate: 22050
  capture_duration: 3s
  buffer_duration: 32ms
stt:
  provider: whisper
dialogue:
  provider: openai
  model: gpt-4o
  temperature: 0.2
tts:
  providers: [openai, google]
  voice: nova
web:
  addr: 127.0.0.1:9000
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, ModeWeb, cfg.Mode)
	assert.Equal(t, "stop", cfg.ExitPhrase)
	assert.Equal(t, "Goodbye!", cfg.Farewell, "absent fields keep defaults")
	assert.Equal(t, audioio.BackendMock, cfg.Audio.Backend)
	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 3*time.Second, cfg.Audio.CaptureDuration)
	assert.Equal(t, 32*time.Millisecond, cfg.Audio.BufferDuration)
	assert.Equal(t, "temp.wav", cfg.Audio.ClipPath)
	assert.Equal(t, ProviderWhisper, cfg.STT.Provider)
	assert.Equal(t, "gpt-4o", cfg.Dialogue.Model)
	assert.InDelta(t, 0.2, cfg.Dialogue.Temperature, 1e-9)
	assert.Equal(t, []string{ProviderOpenAI, ProviderGoogle}, cfg.TTS.Providers)
	assert.Equal(t, "nova", cfg.TTS.Voice)
	assert.Equal(t, "127.0.0.1:9000", cfg.Web.Addr)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unterminated"), 0o644))
	assert.Error(t, cfg.LoadFile(path))
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("VOICECHAT_MODE", "cli")
	t.Setenv("VOICECHAT_CAPTURE_DURATION", "2.5")
	t.Setenv("VOICECHAT_TTS_PROVIDERS", " openai , mock ,")
	t.Setenv("VOICECHAT_EXIT_PHRASE", "bye")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	assert.Equal(t, "gemini-key", cfg.Keys.GoogleAPIKey)
	assert.Equal(t, "openai-key", cfg.Keys.OpenAIKey)
	assert.Equal(t, ModeCLI, cfg.Mode)
	assert.Equal(t, 2500*time.Millisecond, cfg.Audio.CaptureDuration)
	assert.Equal(t, []string{ProviderOpenAI, ProviderMock}, cfg.TTS.Providers)
	assert.Equal(t, "bye", cfg.ExitPhrase)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ProviderGoogle, cfg.STT.Provider, "unset variables keep the current value")
	assert.NoError(t, cfg.Validate())
}
