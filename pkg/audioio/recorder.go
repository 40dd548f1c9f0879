package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeoutMargin is how long past the requested duration Capture
// waits for the device before giving up.
const DefaultTimeoutMargin = 2 * time.Second

// Recorder captures fixed-duration clips from a Source.
type Recorder struct {
	src    Source
	margin time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	busy bool
}

// NewRecorder wraps src. A non-positive margin selects DefaultTimeoutMargin.
func NewRecorder(src Source, margin time.Duration, logger *slog.Logger) *Recorder {
	if margin <= 0 {
		margin = DefaultTimeoutMargin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		src:    src,
		margin: margin,
		logger: logger.With("component", "recorder"),
	}
}

// Capture records exactly SampleCount(d, rate) mono samples. It blocks
// for about d and never returns a partial clip: a device that stops early
// or stalls past d plus the timeout margin yields a *DeviceError.
func (r *Recorder) Capture(ctx context.Context, d time.Duration) (Clip, error) {
	if d <= 0 {
		return Clip{}, ErrInvalidDuration
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return Clip{}, &DeviceError{Op: "start", Backend: r.src.Name(), Err: ErrDeviceBusy}
	}
	r.busy = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()
	}()

	cfg := r.src.Config()
	want := SampleCount(d, cfg.SampleRate)

	ctx, cancel := context.WithTimeout(ctx, d+r.margin)
	defer cancel()

	if err := r.src.Start(ctx); err != nil {
		if IsDeviceError(err) {
			return Clip{}, err
		}
		return Clip{}, &DeviceError{Op: "start", Backend: r.src.Name(), Err: err}
	}
	defer func() {
		if err := r.src.Stop(); err != nil {
			r.logger.Warn("failed to stop source", "error", err)
		}
	}()

	started := time.Now()
	samples := make([]int16, 0, want)
	for int64(len(samples)) < want {
		chunk, err := r.src.Read(ctx)
		if err != nil {
			return Clip{}, r.readError(err, int64(len(samples)), want)
		}
		mono := chunk.Samples
		if chunk.Channels == 2 {
			mono = StereoToMono(mono)
		}
		need := want - int64(len(samples))
		if int64(len(mono)) > need {
			mono = mono[:need]
		}
		samples = append(samples, mono...)
	}

	clip := Clip{Samples: samples, SampleRate: cfg.SampleRate, Channels: 1}
	r.logger.Debug("clip captured",
		"samples", len(samples),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"rms", fmt.Sprintf("%.4f", clip.RMS()),
	)
	return clip, nil
}

func (r *Recorder) readError(err error, got, want int64) error {
	switch {
	case errors.Is(err, io.EOF):
		err = fmt.Errorf("%w: got %d of %d samples", ErrShortRead, got, want)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: got %d of %d samples", ErrCaptureTimeout, got, want)
	}
	return &DeviceError{Op: "read", Backend: r.src.Name(), Err: err}
}
