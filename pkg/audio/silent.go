package audio

import (
	"sync"
	"time"

	"github.com/zurustar/flowrun/pkg/fileutil"
)

// SilentPlayer plays nothing but keeps time on the driver clock, so a
// track ends after its real length has passed. Used in headless mode and
// when no audio device is available.
type SilentPlayer struct {
	fs fileutil.FileSystem

	mu       sync.Mutex
	playing  bool
	current  string
	length   time.Duration
	position time.Duration
}

// NewSilentPlayer creates a SilentPlayer reading files from fsys.
func NewSilentPlayer(fsys fileutil.FileSystem) *SilentPlayer {
	return &SilentPlayer{fs: fsys}
}

func (p *SilentPlayer) Play(name string) (time.Duration, error) {
	data, err := p.fs.ReadFile(name)
	if err != nil {
		return 0, err
	}
	length, err := Length(name, data)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.current = name
	p.length = length
	p.position = 0
	return length, nil
}

func (p *SilentPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.current = ""
}

func (p *SilentPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Position returns the elapsed time of the current track.
func (p *SilentPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *SilentPlayer) Update(dt time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return false
	}
	p.position += dt
	if p.position >= p.length {
		p.playing = false
		p.current = ""
		return true
	}
	return false
}

func (p *SilentPlayer) Close() error { return nil }
