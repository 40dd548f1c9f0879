package audioio

import (
	"errors"
	"fmt"
)

// Sentinel errors for audio device failures.
var (
	ErrNoDevice           = errors.New("audioio: no audio device available")
	ErrBackendUnavailable = errors.New("audioio: backend not available in this build")
	ErrShortRead          = errors.New("audioio: device stopped before the clip was complete")
	ErrCaptureTimeout     = errors.New("audioio: device did not complete capture in time")
	ErrDeviceBusy         = errors.New("audioio: capture already in progress")
	ErrInvalidDuration    = errors.New("audioio: capture duration must be positive")
)

// DeviceError reports a capture or playback device failure.
// It is fatal to the current turn only.
type DeviceError struct {
	Op      string // "start", "read", "write", "flush"
	Backend string
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err is or wraps a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
