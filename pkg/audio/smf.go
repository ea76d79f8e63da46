package audio

import (
	"fmt"
	"slices"
	"time"
)

// TempoEvent represents a tempo change in a MIDI file.
type TempoEvent struct {
	Tick          int // MIDI tick position
	MicrosPerBeat int // Microseconds per quarter note
}

// defaultTempo is 120 BPM.
const defaultTempo = 500000

// SMFInfo is the timing information of a Standard MIDI File.
type SMFInfo struct {
	PPQ     int          // Ticks per quarter note (from MIDI header)
	Tempo   []TempoEvent // Tempo changes, starting at tick 0
	EndTick int          // Tick of the last event of the longest track
}

// ParseSMF extracts the tempo map and end tick from MIDI data.
func ParseSMF(data []byte) (*SMFInfo, error) {
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return nil, fmt.Errorf("%w: missing MThd header", ErrMIDIInvalidFormat)
	}

	info := &SMFInfo{PPQ: 480}
	timeDivision := int(data[12])<<8 | int(data[13])
	if timeDivision&0x8000 == 0 && timeDivision > 0 {
		info.PPQ = timeDivision
	}

	headerLen := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
	offset := 8 + headerLen
	for offset+8 <= len(data) && string(data[offset:offset+4]) == "MTrk" {
		trackLen := int(data[offset+4])<<24 | int(data[offset+5])<<16 | int(data[offset+6])<<8 | int(data[offset+7])
		trackEnd := min(offset+8+trackLen, len(data))
		if end := info.scanTrack(data[offset+8 : trackEnd]); end > info.EndTick {
			info.EndTick = end
		}
		offset = trackEnd
	}

	// テンポ変化はトラックごとに集めたので tick 順に整列する
	slices.SortStableFunc(info.Tempo, func(a, b TempoEvent) int { return a.Tick - b.Tick })
	if len(info.Tempo) == 0 || info.Tempo[0].Tick > 0 {
		info.Tempo = append([]TempoEvent{{Tick: 0, MicrosPerBeat: defaultTempo}}, info.Tempo...)
	}
	return info, nil
}

// scanTrack records tempo events of one track and returns its last tick.
func (info *SMFInfo) scanTrack(track []byte) int {
	pos := 0
	tick := 0
	lastStatus := byte(0)

	for pos < len(track) {
		delta, n := readVarLen(track[pos:])
		pos += n
		tick += delta
		if pos >= len(track) {
			break
		}

		status := track[pos]
		if status < 0x80 {
			// running status
			status = lastStatus
		} else {
			pos++
			if status < 0xF0 {
				lastStatus = status
			}
		}

		switch {
		case status == 0xFF:
			if pos >= len(track) {
				return tick
			}
			metaType := track[pos]
			pos++
			length, n := readVarLen(track[pos:])
			pos += n
			if metaType == 0x51 && length == 3 && pos+3 <= len(track) {
				micros := int(track[pos])<<16 | int(track[pos+1])<<8 | int(track[pos+2])
				info.Tempo = append(info.Tempo, TempoEvent{Tick: tick, MicrosPerBeat: micros})
			}
			pos += length
			if metaType == 0x2F {
				return tick
			}
		case status == 0xF0 || status == 0xF7:
			length, n := readVarLen(track[pos:])
			pos += n + length
		case status >= 0xC0 && status < 0xE0:
			pos++
		case status >= 0x80:
			pos += 2
		default:
			// data byte without a running status
			pos++
		}
	}
	return tick
}

// Duration returns the playing time up to EndTick.
func (info *SMFInfo) Duration() time.Duration {
	if info.PPQ <= 0 {
		return 0
	}
	var micros float64
	for i, t := range info.Tempo {
		if t.Tick >= info.EndTick {
			break
		}
		end := info.EndTick
		if i+1 < len(info.Tempo) && info.Tempo[i+1].Tick < end {
			end = info.Tempo[i+1].Tick
		}
		micros += float64(end-t.Tick) * float64(t.MicrosPerBeat) / float64(info.PPQ)
	}
	return time.Duration(micros * float64(time.Microsecond))
}

// readVarLen reads a variable-length quantity from MIDI data.
func readVarLen(data []byte) (int, int) {
	value := 0
	n := 0
	for i := 0; i < len(data) && i < 4; i++ {
		n++
		value = (value << 7) | int(data[i]&0x7F)
		if data[i]&0x80 == 0 {
			break
		}
	}
	return value, n
}
