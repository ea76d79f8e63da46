package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/flowrun/pkg/fileutil"
)

// MIDIStream implements io.Reader for Ebitengine/audio.
// It renders audio samples from the MIDI sequencer.
type MIDIStream struct {
	sequencer   *meltysynth.MidiFileSequencer
	sampleCount int64
	stopped     bool
	mu          sync.Mutex
}

// Read renders 16-bit little-endian stereo samples. A stopped stream
// returns silence.
func (s *MIDIStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.sequencer == nil {
		clear(p)
		return len(p), nil
	}

	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.sequencer.Render(left, right)
	s.sampleCount += int64(samples)

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return samples * 4, nil
}

// Stop marks the stream as stopped, causing Read to return silence.
func (s *MIDIStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// SampleCount returns the total number of samples rendered.
func (s *MIDIStream) SampleCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleCount
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DevicePlayer plays MIDI through the meltysynth software synthesizer and
// WAV through the Ebitengine decoder, both on an Ebitengine audio context.
type DevicePlayer struct {
	fs       fileutil.FileSystem
	audioCtx *audio.Context
	synth    *meltysynth.Synthesizer

	mu      sync.Mutex
	player  *audio.Player
	stream  *MIDIStream
	length  time.Duration
	playing bool
	muted   bool
}

// NewDevicePlayer creates a DevicePlayer. soundFont holds the .sf2 data;
// without it MIDI tracks fail with ErrNoSoundFont while WAV still plays.
// audioCtx may be nil, in which case a context is created.
func NewDevicePlayer(fsys fileutil.FileSystem, audioCtx *audio.Context, soundFont []byte) (*DevicePlayer, error) {
	if audioCtx == nil {
		audioCtx = audio.CurrentContext()
	}
	if audioCtx == nil {
		audioCtx = audio.NewContext(SampleRate)
	}

	p := &DevicePlayer{fs: fsys, audioCtx: audioCtx}
	if len(soundFont) > 0 {
		sf, err := meltysynth.NewSoundFont(bytes.NewReader(soundFont))
		if err != nil {
			return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
		}
		settings := meltysynth.NewSynthesizerSettings(SampleRate)
		synth, err := meltysynth.NewSynthesizer(sf, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create synthesizer: %w", err)
		}
		p.synth = synth
	}
	return p, nil
}

func (p *DevicePlayer) Play(name string) (time.Duration, error) {
	data, err := p.fs.ReadFile(name)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopInternal()

	var src io.Reader
	var length time.Duration
	switch FormatOf(name) {
	case FormatMIDI:
		if p.synth == nil {
			return 0, ErrNoSoundFont
		}
		midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMIDIInvalidFormat, err)
		}
		sequencer := meltysynth.NewMidiFileSequencer(p.synth)
		sequencer.Play(midi, false)
		p.stream = &MIDIStream{sequencer: sequencer}
		src = p.stream
		length = midi.GetLength()
	case FormatWAV:
		stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrWAVInvalidFormat, err)
		}
		src = stream
		length = pcmDuration(stream.Length())
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	player, err := p.audioCtx.NewPlayer(src)
	if err != nil {
		return 0, fmt.Errorf("failed to create audio player: %w", err)
	}
	if p.muted {
		player.SetVolume(0)
	}
	player.Play()

	p.player = player
	p.length = length
	p.playing = true
	return length, nil
}

func (p *DevicePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopInternal()
}

// stopInternal must be called with p.mu held.
func (p *DevicePlayer) stopInternal() {
	if p.stream != nil {
		p.stream.Stop()
		p.stream = nil
	}
	if p.player != nil {
		p.player.Close()
		p.player = nil
	}
	p.playing = false
}

func (p *DevicePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetMuted silences output without affecting end-of-track timing.
func (p *DevicePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	if p.player != nil {
		if muted {
			p.player.SetVolume(0)
		} else {
			p.player.SetVolume(1)
		}
	}
}

// Update ignores dt: the position comes from the audio device.
func (p *DevicePlayer) Update(time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing || p.player == nil {
		return false
	}
	if p.player.Position() >= p.length {
		p.stopInternal()
		return true
	}
	return false
}

func (p *DevicePlayer) Close() error {
	p.Stop()
	return nil
}
