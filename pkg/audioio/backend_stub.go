//go:build !cgo

package audioio

import "log/slog"

const hardwareAvailable = false

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, &DeviceError{Op: "start", Backend: string(BackendPortAudio), Err: ErrBackendUnavailable}
}

func newSpeakerSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, &DeviceError{Op: "start", Backend: string(BackendSpeaker), Err: ErrBackendUnavailable}
}
