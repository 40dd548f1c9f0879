package speech

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

// ErrUnsupportedEncoding is returned for audio Decode cannot read.
var ErrUnsupportedEncoding = errors.New("speech: unsupported audio encoding")

// Decode converts a synthesis result into mono PCM16 samples and their rate.
func Decode(res *tts.AudioResult) ([]int16, int, error) {
	if res == nil || len(res.Audio) == 0 {
		return nil, 0, nil
	}

	switch enc := res.Format.Encoding; {
	case enc.IsPCM():
		rate := res.Format.SampleRate
		if rate == 0 {
			rate = tts.SampleRateFromEncoding(enc)
		}
		samples := audioio.BytesToSamples(res.Audio)
		if res.Format.Channels == 2 {
			samples = audioio.StereoToMono(samples)
		}
		return samples, rate, nil

	case enc == tts.EncodingWAV:
		streamer, format, err := wav.Decode(bytes.NewReader(res.Audio))
		if err != nil {
			return nil, 0, fmt.Errorf("decode wav: %w", err)
		}
		defer streamer.Close()
		return drain(streamer), int(format.SampleRate), nil

	case enc == tts.EncodingMP3:
		streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(res.Audio)))
		if err != nil {
			return nil, 0, fmt.Errorf("decode mp3: %w", err)
		}
		defer streamer.Close()
		return drain(streamer), int(format.SampleRate), nil

	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}
}

// drain reads s to the end, averaging the two beep channels.
func drain(s beep.Streamer) []int16 {
	var out []int16
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, audioio.FloatToPCM16((frame[0]+frame[1])/2))
		}
		if !ok {
			return out
		}
	}
}
