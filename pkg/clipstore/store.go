// Package clipstore persists captured clips as canonical WAV files.
//
// A Store owns a single reusable slot on disk. Each Save replaces the slot
// atomically by writing a temporary file in the same directory and renaming
// it over the slot, so a reader never observes a partially written clip.
package clipstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/teslashibe/go-voicechat/internal/metrics"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
)

// DefaultPath is the slot used when none is configured.
const DefaultPath = "temp.wav"

const wavFormatPCM = 1

// ErrInvalidClip is returned for clips that cannot be encoded.
var ErrInvalidClip = errors.New("clipstore: invalid clip")

// IOError reports a persistence failure. It is fatal to the current turn only.
type IOError struct {
	Op   string // "create", "encode", "sync", "rename", "open", "decode"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("clip %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Store writes clips to a single path.
type Store struct {
	path    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records clip sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store for path. An empty path selects DefaultPath.
func New(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "clipstore")
	return s
}

// Path returns the slot path.
func (s *Store) Path() string {
	return s.path
}

// Save encodes clip as 16-bit mono PCM WAV and replaces the slot.
func (s *Store) Save(clip audioio.Clip) (string, error) {
	if clip.SampleRate <= 0 || clip.Channels != 1 {
		return "", &IOError{Op: "encode", Path: s.path, Err: fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidClip, clip.SampleRate, clip.Channels)}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return "", &IOError{Op: "create", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := encode(tmp, clip); err != nil {
		return "", &IOError{Op: "encode", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return "", &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	info, err := tmp.Stat()
	if err != nil {
		return "", &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		committed = true
		return "", &IOError{Op: "rename", Path: s.path, Err: err}
	}
	committed = true

	s.metrics.RecordClip(info.Size())
	s.logger.Debug("audio saved", "path", s.path, "bytes", info.Size(), "samples", len(clip.Samples))
	return s.path, nil
}

// Load decodes the slot.
func (s *Store) Load() (audioio.Clip, error) {
	return Load(s.path)
}

func encode(f *os.File, clip audioio.Clip) error {
	enc := wav.NewEncoder(f, clip.SampleRate, audioio.BitDepth, 1, wavFormatPCM)
	data := make([]int, len(clip.Samples))
	for i, v := range clip.Samples {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: clip.SampleRate},
		Data:           data,
		SourceBitDepth: audioio.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
