package clipstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/teslashibe/go-voicechat/pkg/audioio"
)

// ErrNotPCM16 is returned for containers that are not 16-bit PCM.
var ErrNotPCM16 = errors.New("clipstore: not a 16-bit PCM wav")

// Load decodes a 16-bit PCM WAV file into a Clip. Stereo files are
// downmixed to mono.
func Load(path string) (audioio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return audioio.Clip{}, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return audioio.Clip{}, &IOError{Op: "decode", Path: path, Err: errors.New("invalid wav container")}
	}
	if dec.BitDepth != audioio.BitDepth || dec.WavAudioFormat != wavFormatPCM {
		return audioio.Clip{}, &IOError{Op: "decode", Path: path, Err: fmt.Errorf("%w: format=%d bits=%d", ErrNotPCM16, dec.WavAudioFormat, dec.BitDepth)}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audioio.Clip{}, &IOError{Op: "decode", Path: path, Err: err}
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	if dec.NumChans == 2 {
		samples = audioio.StereoToMono(samples)
	}
	return audioio.Clip{Samples: samples, SampleRate: int(dec.SampleRate), Channels: 1}, nil
}
