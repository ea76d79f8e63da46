package window

import (
	"github.com/zurustar/flowrun/pkg/commands"
)

// historySize は表示する既読行の数
const historySize = 4

type pendingLine struct {
	id   int
	line commands.Line
	done func()
}

// Board は表示待ちの台詞を順番に保持する。commands.Dialogue を実装する。
// すべてのメソッドはドライバのゴルーチンから呼ぶこと。
type Board struct {
	queue   []*pendingLine
	history []commands.Line
	nextID  int
}

// NewBoard Boardを作成
func NewBoard() *Board {
	return &Board{}
}

// Say queues line. done runs when the line is advanced.
func (b *Board) Say(line commands.Line, done func()) (cancel func()) {
	p := &pendingLine{id: b.nextID, line: line, done: done}
	b.nextID++
	b.queue = append(b.queue, p)
	return func() { b.remove(p.id) }
}

func (b *Board) remove(id int) {
	for i, p := range b.queue {
		if p.id == id {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
}

// Current returns the line being shown.
func (b *Board) Current() (commands.Line, bool) {
	if len(b.queue) == 0 {
		return commands.Line{}, false
	}
	return b.queue[0].line, true
}

// Pending returns the number of lines waiting, the current one included.
func (b *Board) Pending() int { return len(b.queue) }

// History returns the most recently advanced lines, oldest first.
func (b *Board) History() []commands.Line { return b.history }

// Advance acknowledges the current line. It reports false when no line
// was shown.
func (b *Board) Advance() bool {
	if len(b.queue) == 0 {
		return false
	}
	p := b.queue[0]
	b.queue = b.queue[1:]
	b.history = append(b.history, p.line)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	if p.done != nil {
		p.done()
	}
	return true
}
