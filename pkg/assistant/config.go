package assistant

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-voicechat/internal/config"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/clipstore"
	"github.com/teslashibe/go-voicechat/pkg/dialogue"
	"github.com/teslashibe/go-voicechat/pkg/turn"
	"github.com/teslashibe/go-voicechat/pkg/web"
)

// Mode selects how turns are driven.
type Mode string

const (
	// ModeSync runs turns back to back on the main goroutine.
	ModeSync Mode = "sync"
	// ModeCLI starts a turn on each key press.
	ModeCLI Mode = "cli"
	// ModeWeb starts turns from the web dashboard.
	ModeWeb Mode = "web"
)

// Provider names accepted in the stt, dialogue and tts sections.
const (
	ProviderGoogle  = "google"
	ProviderWhisper = "whisper"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderMock    = "mock"
)

// DefaultSystemPrompt keeps replies short enough to be spoken.
const DefaultSystemPrompt = `You are a friendly voice assistant. Answer in one to three short sentences of plain text. Do not use markdown, lists, code, or emoji.`

// AudioConfig holds device and capture settings.
type AudioConfig struct {
	audioio.Config `yaml:",inline"`

	CaptureDuration time.Duration `yaml:"capture_duration"`
	TimeoutMargin   time.Duration `yaml:"timeout_margin"`
	ClipPath        string        `yaml:"clip_path"`
}

// STTConfig selects the speech-to-text backend.
type STTConfig struct {
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

// DialogueConfig selects the chat backend.
type DialogueConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// TTSConfig selects the speech synthesis backends. Providers are tried in
// order until one succeeds.
type TTSConfig struct {
	Providers    []string `yaml:"providers"`
	Voice        string   `yaml:"voice"`
	Language     string   `yaml:"language"`
	SpeakingRate float64  `yaml:"speaking_rate"`
}

// WebConfig configures the dashboard used in web mode.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Keys are credentials. They are read from the environment only.
type Keys struct {
	GoogleAPIKey      string `yaml:"-"`
	GoogleCredentials string `yaml:"-"`
	OpenAIKey         string `yaml:"-"`
	OpenAIBaseURL     string `yaml:"-"`
}

// Config holds all assistant configuration.
type Config struct {
	Mode       Mode   `yaml:"mode"`
	ExitPhrase string `yaml:"exit_phrase"`
	Farewell   string `yaml:"farewell"`

	Audio    AudioConfig    `yaml:"audio"`
	STT      STTConfig      `yaml:"stt"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	TTS      TTSConfig      `yaml:"tts"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`

	Keys Keys `yaml:"-"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeSync,
		ExitPhrase: turn.DefaultExitPhrase,
		Farewell:   turn.DefaultFarewell,
		Audio: AudioConfig{
			Config:          audioio.DefaultConfig(),
			CaptureDuration: turn.DefaultCaptureDuration,
			TimeoutMargin:   audioio.DefaultTimeoutMargin,
			ClipPath:        clipstore.DefaultPath,
		},
		STT: STTConfig{
			Provider: ProviderGoogle,
			Language: "en-US",
		},
		Dialogue: DialogueConfig{
			Provider:     ProviderGemini,
			Model:        dialogue.DefaultGeminiModel,
			SystemPrompt: DefaultSystemPrompt,
			Temperature:  0.7,
			Timeout:      30 * time.Second,
		},
		TTS: TTSConfig{
			Providers:    []string{ProviderGoogle},
			Language:     "en-US",
			SpeakingRate: 1.0,
		},
		Web: WebConfig{Addr: web.DefaultAddr},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile overlays the YAML file at path onto c. Fields absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnvConfig loads configuration from environment variables.
func (c *Config) LoadEnvConfig() {
	c.Keys.GoogleAPIKey = config.String(c.Keys.GoogleAPIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	c.Keys.GoogleCredentials = config.String(c.Keys.GoogleCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	c.Keys.OpenAIKey = config.String(c.Keys.OpenAIKey, "OPENAI_API_KEY")
	c.Keys.OpenAIBaseURL = config.String(c.Keys.OpenAIBaseURL, "OPENAI_BASE_URL")

	c.Mode = Mode(config.String(string(c.Mode), "VOICECHAT_MODE"))
	c.ExitPhrase = config.String(c.ExitPhrase, "VOICECHAT_EXIT_PHRASE")
	c.Farewell = config.String(c.Farewell, "VOICECHAT_FAREWELL")

	c.Audio.Backend = audioio.Backend(config.String(string(c.Audio.Backend), "VOICECHAT_AUDIO_BACKEND"))
	c.Audio.SampleRate = config.Int("VOICECHAT_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.CaptureDuration = config.Duration("VOICECHAT_CAPTURE_DURATION", c.Audio.CaptureDuration)
	c.Audio.ClipPath = config.String(c.Audio.ClipPath, "VOICECHAT_CLIP_PATH")

	c.STT.Provider = config.String(c.STT.Provider, "VOICECHAT_STT_PROVIDER")
	c.STT.Language = config.String(c.STT.Language, "VOICECHAT_STT_LANGUAGE")

	c.Dialogue.Provider = config.String(c.Dialogue.Provider, "VOICECHAT_DIALOGUE_PROVIDER")
	c.Dialogue.Model = config.String(c.Dialogue.Model, "VOICECHAT_DIALOGUE_MODEL")
	c.Dialogue.SystemPrompt = config.String(c.Dialogue.SystemPrompt, "VOICECHAT_SYSTEM_PROMPT")
	c.Dialogue.Temperature = config.Float("VOICECHAT_TEMPERATURE", c.Dialogue.Temperature)

	if v := os.Getenv("VOICECHAT_TTS_PROVIDERS"); v != "" {
		c.TTS.Providers = splitList(v)
	}
	c.TTS.Voice = config.String(c.TTS.Voice, "VOICECHAT_TTS_VOICE")

	c.Web.Addr = config.String(c.Web.Addr, "VOICECHAT_WEB_ADDR")

	c.Log.Level = config.String(c.Log.Level, "LOG_LEVEL")
	c.Log.Format = config.String(c.Log.Format, "LOG_FORMAT")
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSync, ModeCLI, ModeWeb:
	default:
		return &ConfigError{Field: "Mode", Message: fmt.Sprintf("unknown mode %q (want sync, cli or web)", c.Mode)}
	}
	if strings.TrimSpace(c.ExitPhrase) == "" {
		return &ConfigError{Field: "ExitPhrase", Message: "exit phrase must not be empty"}
	}
	if c.Audio.CaptureDuration <= 0 {
		return &ConfigError{Field: "Audio.CaptureDuration", Message: "capture duration must be positive"}
	}
	if err := c.Audio.Config.Validate(); err != nil {
		return &ConfigError{Field: "Audio", Message: err.Error()}
	}

	switch c.STT.Provider {
	case ProviderGoogle, ProviderMock:
	case ProviderWhisper:
		if c.Keys.OpenAIKey == "" {
			return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for Whisper transcription"}
		}
	default:
		return &ConfigError{Field: "STT.Provider", Message: fmt.Sprintf("unknown stt provider %q", c.STT.Provider)}
	}

	switch c.Dialogue.Provider {
	case ProviderMock:
	case ProviderGemini:
		if c.Keys.GoogleAPIKey == "" {
			return &ConfigError{Field: "GoogleAPIKey", Message: "GOOGLE_API_KEY or GEMINI_API_KEY environment variable is required for Gemini"}
		}
	case ProviderOpenAI:
		if c.Keys.OpenAIKey == "" {
			return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for OpenAI dialogue"}
		}
	default:
		return &ConfigError{Field: "Dialogue.Provider", Message: fmt.Sprintf("unknown dialogue provider %q", c.Dialogue.Provider)}
	}

	if len(c.TTS.Providers) == 0 {
		return &ConfigError{Field: "TTS.Providers", Message: "at least one tts provider is required"}
	}
	for _, p := range c.TTS.Providers {
		switch p {
		case ProviderGoogle, ProviderMock:
		case ProviderOpenAI:
			if c.Keys.OpenAIKey == "" {
				return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for OpenAI speech"}
			}
		default:
			return &ConfigError{Field: "TTS.Providers", Message: fmt.Sprintf("unknown tts provider %q", p)}
		}
	}

	if c.Mode == ModeWeb && c.Web.Addr == "" {
		return &ConfigError{Field: "Web.Addr", Message: "web mode needs a listen address"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
