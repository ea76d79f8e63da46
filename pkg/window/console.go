package window

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/zurustar/flowrun/pkg/commands"
	"github.com/zurustar/flowrun/pkg/flow"
)

// Console is the headless dialogue: lines go to a writer and each line
// waits for a line of input. Input is read on its own goroutine and handed
// to the driver through flow.Registry.Invoke.
type Console struct {
	reg         *flow.Registry
	in          io.Reader
	out         io.Writer
	autoAdvance bool

	board  *Board
	closed bool
	once   sync.Once
}

// NewConsole creates a Console. With autoAdvance every line is
// acknowledged at once and in is never read.
func NewConsole(reg *flow.Registry, in io.Reader, out io.Writer, autoAdvance bool) *Console {
	return &Console{reg: reg, in: in, out: out, autoAdvance: autoAdvance, board: NewBoard()}
}

// Say prints line and acknowledges it on the next input line.
func (c *Console) Say(line commands.Line, done func()) (cancel func()) {
	fmt.Fprintf(c.out, "[%s/%s] %s\n", line.Flowchart, line.Block, line.Text)
	if c.autoAdvance || c.closed {
		done()
		return func() {}
	}
	cancel = c.board.Say(line, done)
	c.once.Do(func() { go c.read() })
	return cancel
}

// Pending returns the number of lines waiting for input.
func (c *Console) Pending() int { return c.board.Pending() }

// read 入力を1行ずつドライバに渡す
func (c *Console) read() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.reg.Invoke(func() { c.board.Advance() })
	}
	// 入力が閉じたら以降の台詞は自動で進める
	c.reg.Invoke(func() {
		c.closed = true
		for c.board.Advance() {
		}
	})
}
