package flow

import "fmt"

// CallMode selects what the calling block does after starting the target.
type CallMode int

const (
	// CallStop stops the calling block.
	CallStop CallMode = iota
	// CallContinue continues the calling block immediately.
	CallContinue
	// CallWaitUntilFinished suspends the calling block until the target
	// block reaches Idle.
	CallWaitUntilFinished
)

func (m CallMode) String() string {
	switch m {
	case CallStop:
		return "Stop"
	case CallContinue:
		return "Continue"
	case CallWaitUntilFinished:
		return "WaitUntilFinished"
	default:
		return fmt.Sprintf("CallMode(%d)", int(m))
	}
}

// BusyPolicy decides what CallWaitUntilFinished does when the target block
// is already executing.
type BusyPolicy int

const (
	// BusyContinue continues the caller at once without starting the target.
	BusyContinue BusyPolicy = iota
	// BusyWait waits for the target to become Idle, then starts it and
	// waits for that run.
	BusyWait
)

func (p BusyPolicy) String() string {
	if p == BusyWait {
		return "Wait"
	}
	return "Continue"
}

// Call starts another block, in this flowchart or in another flowchart of
// the same registry.
type Call struct {
	Base
	// TargetFlowchart names the target flowchart. Empty means the caller's own.
	TargetFlowchart string
	TargetBlock     string
	StartIndex      int
	Mode            CallMode
	OnBusy          BusyPolicy

	cancelIdle func()
}

// NewCall creates a Call for a block of the caller's flowchart.
func NewCall(block string, mode CallMode) *Call {
	return &Call{TargetBlock: block, Mode: mode}
}

func (c *Call) resolve() (*Flowchart, *Block, error) {
	fc := c.Flowchart()
	if fc == nil {
		return nil, nil, NewRuntimeError(ErrorInvalidOperation, "call outside a flowchart")
	}
	if c.TargetFlowchart != "" && c.TargetFlowchart != fc.name {
		other, ok := fc.registry.Flowchart(c.TargetFlowchart)
		if !ok {
			return nil, nil, NewFlowchartNotFoundError(c.TargetFlowchart)
		}
		fc = other
	}
	target := fc.FindBlock(c.TargetBlock)
	if target == nil {
		return nil, nil, NewBlockNotFoundError(fc.name, c.TargetBlock)
	}
	return fc, target, nil
}

func (c *Call) OnEnter() {
	fc, target, err := c.resolve()
	if err != nil {
		c.SetError("%v", err)
		c.Continue()
		return
	}

	if target == c.parent {
		c.ContinueAt(c.StartIndex)
		return
	}

	switch c.Mode {
	case CallStop:
		fc.ExecuteBlock(target, c.StartIndex, nil)
		c.StopParentBlock()
	case CallContinue:
		fc.ExecuteBlock(target, c.StartIndex, nil)
		fc.SetSelectedBlock(target)
		c.Continue()
	case CallWaitUntilFinished:
		if target.IsExecuting() && c.OnBusy == BusyContinue {
			c.parent.flowchart.logger().Debug("Call target busy, continuing",
				"flowchart", c.parent.flowchart.name, "block", c.parent.name, "target", target.name)
			c.Continue()
			return
		}
		c.startAndWait(fc, target)
	default:
		c.SetError("unknown call mode %d", int(c.Mode))
		c.Continue()
	}
}

// startAndWait starts target with a completion callback that continues the
// caller, or waits for target to go idle first when it is busy.
func (c *Call) startAndWait(fc *Flowchart, target *Block) {
	caller := c.parent
	run := caller.executionCount
	stillWaiting := func() bool {
		return caller.executionCount == run && caller.active == Command(c) && c.executing
	}

	if target.IsExecuting() {
		c.cancelIdle = target.NotifyIdle(func() {
			c.cancelIdle = nil
			if stillWaiting() {
				c.startAndWait(fc, target)
			}
		})
		return
	}

	fc.ExecuteBlock(target, c.StartIndex, func() {
		if !stillWaiting() {
			return
		}
		caller.flowchart.SetSelectedBlock(caller)
		c.Continue()
	})
}

func (c *Call) OnStop() {
	if c.cancelIdle != nil {
		c.cancelIdle()
		c.cancelIdle = nil
	}
}
