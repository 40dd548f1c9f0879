package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
// BackendAuto and BackendSpeaker resolve to PortAudio when available.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == BackendSpeaker {
		backend = detectCaptureBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates an audio sink for cfg.Backend.
// BackendAuto and BackendPortAudio resolve to the beep speaker when available.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == BackendPortAudio {
		backend = detectPlaybackBackend()
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendSpeaker:
		return newSpeakerSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func detectCaptureBackend() Backend {
	if hardwareAvailable {
		return BackendPortAudio
	}
	return BackendMock
}

func detectPlaybackBackend() Backend {
	if hardwareAvailable {
		return BackendSpeaker
	}
	return BackendMock
}

// AvailableBackends returns the backends compiled into this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if hardwareAvailable {
		backends = append(backends, BackendPortAudio, BackendSpeaker)
	}
	return backends
}
