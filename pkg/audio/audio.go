// Package audio plays the music of a flowchart. A Player renders tracks;
// the Jukebox sits on top of it and notifies waiting commands when the
// current track ends.
package audio

import (
	"errors"
	"log/slog"
	"time"

	"github.com/zurustar/flowrun/pkg/logger"
)

// SampleRate is the audio sample rate used for synthesis and decoding.
const SampleRate = 44100

// bytesPerSecond of 16-bit stereo PCM at SampleRate.
const bytesPerSecond = SampleRate * 4

var (
	// ErrNoSoundFont is returned when a MIDI track is played without a SoundFont.
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

	// ErrMIDIInvalidFormat is returned when a MIDI file cannot be parsed.
	ErrMIDIInvalidFormat = errors.New("invalid MIDI file format")

	// ErrWAVInvalidFormat is returned when a WAV file cannot be decoded.
	ErrWAVInvalidFormat = errors.New("invalid WAV file format")

	// ErrUnsupportedFormat is returned for files that are neither MIDI nor WAV.
	ErrUnsupportedFormat = errors.New("unsupported music format")
)

// Player renders one track at a time.
type Player interface {
	// Play starts name, replacing the current track, and returns its length.
	Play(name string) (time.Duration, error)
	Stop()
	IsPlaying() bool
	// Update advances playback by dt. It returns true once, on the update
	// in which the current track ends.
	Update(dt time.Duration) bool
	Close() error
}

type waiter struct {
	id int
	fn func()
}

// Jukebox wraps a Player with end-of-track notification. All methods run
// on the driver goroutine.
type Jukebox struct {
	player  Player
	log     *slog.Logger
	track   string
	waiters []waiter
	nextID  int
}

// NewJukebox creates a Jukebox. A nil logger means logger.GetLogger().
func NewJukebox(p Player, log *slog.Logger) *Jukebox {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Jukebox{player: p, log: log}
}

// Play starts name. Waiters of the replaced track are released first.
// onFinish, if non-nil, runs when this track ends or is stopped; the
// returned cancel removes it.
func (j *Jukebox) Play(name string, onFinish func()) (cancel func(), err error) {
	if j.track != "" {
		j.log.Debug("Music replaced", "from", j.track, "to", name)
		j.release()
	}

	length, err := j.player.Play(name)
	if err != nil {
		j.track = ""
		return func() {}, err
	}
	j.track = name
	j.log.Info("Music started", "file", name, "length", length)

	if onFinish == nil {
		return func() {}, nil
	}
	id := j.nextID
	j.nextID++
	j.waiters = append(j.waiters, waiter{id: id, fn: onFinish})
	return func() {
		for i, w := range j.waiters {
			if w.id == id {
				j.waiters = append(j.waiters[:i], j.waiters[i+1:]...)
				return
			}
		}
	}, nil
}

// Stop ends the current track and releases its waiters.
func (j *Jukebox) Stop() {
	if j.track == "" {
		return
	}
	j.log.Info("Music stopped", "file", j.track)
	j.player.Stop()
	j.release()
}

// Track returns the current track name, or "" when nothing plays.
func (j *Jukebox) Track() string { return j.track }

// Busy reports whether a track is playing and someone waits for its end.
func (j *Jukebox) Busy() bool { return j.track != "" && len(j.waiters) > 0 }

// Update advances the player and releases waiters when the track ends.
func (j *Jukebox) Update(dt time.Duration) {
	if j.track == "" {
		return
	}
	if j.player.Update(dt) {
		j.log.Debug("Music finished", "file", j.track)
		j.release()
	}
}

// Close stops playback and releases the player.
func (j *Jukebox) Close() error {
	j.Stop()
	return j.player.Close()
}

func (j *Jukebox) release() {
	j.track = ""
	ws := j.waiters
	j.waiters = nil
	for _, w := range ws {
		w.fn()
	}
}
