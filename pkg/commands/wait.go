package commands

import (
	"time"

	"github.com/zurustar/flowrun/pkg/flow"
)

// Wait suspends the block for Duration on the registry clock.
type Wait struct {
	flow.Base
	Duration time.Duration

	cancel func()
}

// NewWait creates a Wait.
func NewWait(d time.Duration) *Wait { return &Wait{Duration: d} }

func (c *Wait) OnEnter() {
	c.cancel = c.Flowchart().After(c.Duration, func() {
		c.cancel = nil
		c.Continue()
	})
}

func (c *Wait) OnStop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
