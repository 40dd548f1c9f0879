// voicechat - turn-based voice conversation with a cloud AI assistant
// Records a clip, transcribes it, asks the model, and speaks the reply.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-voicechat/internal/config"
	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/assistant"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	log.InitWith(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	app, err := assistant.New(cfg, assistant.WithLogger(log.L()))
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		app.Shutdown()
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		app.Shutdown()
		os.Exit(1)
	}
}

// parseFlags layers defaults, the optional YAML file, the environment and
// finally any flags given on the command line.
func parseFlags() (assistant.Config, error) {
	cfg := assistant.DefaultConfig()

	configPath := flag.String("config", "", "YAML configuration file")
	mode := flag.String("mode", string(cfg.Mode), "Run mode: sync, cli, web")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	backend := flag.String("audio", string(cfg.Audio.Backend), "Audio backend: auto, portaudio, mock")
	duration := flag.Duration("duration", cfg.Audio.CaptureDuration, "Recording length per turn")
	clipPath := flag.String("clip", cfg.Audio.ClipPath, "Where each recording is written")
	sttProvider := flag.String("stt", cfg.STT.Provider, "Speech-to-text provider: google, whisper, mock")
	dialogueProvider := flag.String("dialogue", cfg.Dialogue.Provider, "Dialogue provider: gemini, openai, mock")
	model := flag.String("model", "", "Dialogue model name")
	ttsVoice := flag.String("tts-voice", "", "Voice name for speech synthesis")
	addr := flag.String("addr", cfg.Web.Addr, "Dashboard listen address (web mode)")
	flag.Parse()

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return cfg, err
		}
	}
	cfg.LoadEnvConfig()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = assistant.Mode(*mode)
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		case "audio":
			cfg.Audio.Backend = audioio.Backend(*backend)
		case "duration":
			cfg.Audio.CaptureDuration = *duration
		case "clip":
			cfg.Audio.ClipPath = *clipPath
		case "stt":
			cfg.STT.Provider = *sttProvider
		case "dialogue":
			cfg.Dialogue.Provider = *dialogueProvider
		case "model":
			cfg.Dialogue.Model = *model
		case "tts-voice":
			cfg.TTS.Voice = *ttsVoice
		case "addr":
			cfg.Web.Addr = *addr
		}
	})
	return cfg, nil
}
