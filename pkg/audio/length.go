package audio

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// Format is the kind of music file, chosen by extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatMIDI
	FormatWAV
)

// FormatOf returns the format of name by its extension.
func FormatOf(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".mid", ".midi":
		return FormatMIDI
	case ".wav":
		return FormatWAV
	default:
		return FormatUnknown
	}
}

// Length returns the playing time of a music file without playing it.
func Length(name string, data []byte) (time.Duration, error) {
	switch FormatOf(name) {
	case FormatMIDI:
		info, err := ParseSMF(data)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return info.Duration(), nil
	case FormatWAV:
		stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrWAVInvalidFormat, name, err)
		}
		return pcmDuration(stream.Length()), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func pcmDuration(n int64) time.Duration {
	return time.Duration(n) * time.Second / bytesPerSecond
}
