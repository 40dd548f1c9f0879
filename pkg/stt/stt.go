// Package stt turns persisted clips into text.
//
// Providers wrap a speech-recognition backend (Google Cloud Speech, OpenAI
// Whisper, or a mock). The Transcriber sits in front of a Provider and
// folds every outcome into a Result so the turn loop never has to handle
// a transcription error directly.
package stt

import "context"

// Audio is one clip ready for recognition. Path names the container on
// disk; PCM holds the same samples as little-endian 16-bit mono.
type Audio struct {
	Path       string
	PCM        []byte
	SampleRate int
}

// Provider recognizes speech in a single clip.
type Provider interface {
	// Recognize returns the transcript, or ErrNoSpeech when the backend
	// heard nothing it could understand.
	Recognize(ctx context.Context, audio Audio) (string, error)

	// Name identifies the backend in logs.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}
