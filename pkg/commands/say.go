package commands

import (
	"github.com/zurustar/flowrun/pkg/flow"
)

// Say shows a line of dialogue with {$Key} tokens substituted. With
// WaitForInput the block waits until the reader acknowledges the line.
type Say struct {
	flow.Base
	Text         string
	WaitForInput bool

	env    *Env
	cancel func()
}

// NewSay creates a Say using the dialogue service of env.
func NewSay(env *Env, text string, wait bool) *Say {
	return &Say{Text: text, WaitForInput: wait, env: env}
}

func (c *Say) OnEnter() {
	fc := c.Flowchart()
	line := Line{
		Flowchart: fc.Name(),
		Block:     c.ParentBlock().Name(),
		Text:      fc.SubstituteVariables(c.Text),
	}

	if c.env == nil || c.env.Dialogue == nil {
		fc.Registry().Logger().Info("Say", "flowchart", line.Flowchart, "block", line.Block, "text", line.Text)
		c.Continue()
		return
	}

	if !c.WaitForInput {
		c.env.Dialogue.Say(line, func() {})
		c.Continue()
		return
	}
	acknowledged := false
	cancel := c.env.Dialogue.Say(line, func() {
		acknowledged = true
		c.cancel = nil
		c.Continue()
	})
	if !acknowledged {
		c.cancel = cancel
	}
}

func (c *Say) OnStop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
