package commands

import (
	"github.com/zurustar/flowrun/pkg/flow"
)

// SendMessage sends a message trigger to the own flowchart, or to every
// flowchart of the registry with All.
type SendMessage struct {
	flow.Base
	Message string
	All     bool
}

// NewSendMessage creates a SendMessage.
func NewSendMessage(message string, all bool) *SendMessage {
	return &SendMessage{Message: message, All: all}
}

func (c *SendMessage) OnEnter() {
	fc := c.Flowchart()
	msg := fc.SubstituteVariables(c.Message)
	if msg == "" {
		c.SetError("empty message")
		c.Continue()
		return
	}
	if c.All {
		fc.Registry().Broadcast(msg)
	} else {
		fc.SendMessage(msg)
	}
	c.Continue()
}

// StopBlock stops a block. Flowchart empty means the own flowchart; a
// block stopping itself ends there.
type StopBlock struct {
	flow.Base
	TargetFlowchart string
	TargetBlock     string
}

func (c *StopBlock) OnEnter() {
	fc, err := lookupFlowchart(c.Flowchart(), c.TargetFlowchart)
	if err != nil {
		c.SetError("%v", err)
		c.Continue()
		return
	}
	target := fc.FindBlock(c.TargetBlock)
	if target == nil {
		c.SetError("%v", flow.NewBlockNotFoundError(fc.Name(), c.TargetBlock))
		c.Continue()
		return
	}
	if target == c.ParentBlock() {
		c.StopParentBlock()
		return
	}
	target.Stop()
	c.Continue()
}

// StopFlowchart stops every block of the named flowcharts, and of the own
// flowchart when StopParent is set.
type StopFlowchart struct {
	flow.Base
	Flowcharts []string
	StopParent bool
}

func (c *StopFlowchart) OnEnter() {
	own := c.Flowchart()
	var blocks []*flow.Block
	seen := map[*flow.Flowchart]bool{own: true}
	for _, name := range c.Flowcharts {
		fc, err := lookupFlowchart(own, name)
		if err != nil {
			c.SetError("%v", err)
			continue
		}
		if !seen[fc] {
			seen[fc] = true
			blocks = append(blocks, fc.Blocks()...)
		}
	}
	if c.StopParent {
		blocks = append(blocks, own.Blocks()...)
	}
	flow.StopBlocks(blocks)
	if c.StopParent {
		// このブロックも停止済み
		return
	}
	c.Continue()
}

func lookupFlowchart(own *flow.Flowchart, name string) (*flow.Flowchart, error) {
	if name == "" || name == own.Name() {
		return own, nil
	}
	fc, ok := own.Registry().Flowchart(name)
	if !ok {
		return nil, flow.NewFlowchartNotFoundError(name)
	}
	return fc, nil
}
