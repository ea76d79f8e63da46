package flow

import (
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	ErrorBlockBusy          ErrorType = "BLOCK_BUSY"
	ErrorBlockNotFound      ErrorType = "BLOCK_NOT_FOUND"
	ErrorFlowchartNotFound  ErrorType = "FLOWCHART_NOT_FOUND"
	ErrorLabelNotFound      ErrorType = "LABEL_NOT_FOUND"
	ErrorUnmatchedControl   ErrorType = "UNMATCHED_CONTROL"
	ErrorVariableNotFound   ErrorType = "VARIABLE_NOT_FOUND"
	ErrorInvalidOperation   ErrorType = "INVALID_OPERATION"
	ErrorDuplicateFlowchart ErrorType = "DUPLICATE_FLOWCHART"
)

// RuntimeError describes a failure inside the engine. Engine errors never
// cross block boundaries; they are returned from authoring calls or
// recorded on the failing command.
type RuntimeError struct {
	Type      ErrorType
	Message   string
	Flowchart string
	Block     string
	Index     int // Command index if available, -1 otherwise
	Context   string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	loc := e.Block
	if e.Flowchart != "" && e.Block != "" {
		loc = e.Flowchart + "/" + e.Block
	} else if e.Flowchart != "" {
		loc = e.Flowchart
	}
	switch {
	case loc != "" && e.Index >= 0:
		return fmt.Sprintf("[%s] %s at %s:%d", e.Type, e.Message, loc, e.Index)
	case loc != "":
		return fmt.Sprintf("[%s] %s in %s", e.Type, e.Message, loc)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
}

// IsFatal reports whether execution of the whole system must stop.
// No engine error is fatal; hosts may still inspect the type.
func (e *RuntimeError) IsFatal() bool {
	return false
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, message string) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: message,
		Index:   -1,
	}
}

func (e *RuntimeError) at(b *Block, index int) *RuntimeError {
	if b != nil {
		e.Block = b.name
		if b.flowchart != nil {
			e.Flowchart = b.flowchart.name
		}
	}
	e.Index = index
	return e
}

// NewBlockBusyError creates an error for starting an executing block.
func NewBlockBusyError(b *Block) *RuntimeError {
	return NewRuntimeError(ErrorBlockBusy, "block is already executing").at(b, -1)
}

// NewBlockNotFoundError creates a block lookup error.
func NewBlockNotFoundError(flowchart, block string) *RuntimeError {
	e := NewRuntimeError(ErrorBlockNotFound, fmt.Sprintf("block not found: %s", block))
	e.Flowchart = flowchart
	return e
}

// NewFlowchartNotFoundError creates a flowchart lookup error.
func NewFlowchartNotFoundError(name string) *RuntimeError {
	return NewRuntimeError(ErrorFlowchartNotFound, fmt.Sprintf("flowchart not found: %s", name))
}

// NewLabelNotFoundError creates an error for a Jump with no matching Label.
func NewLabelNotFoundError(label string) *RuntimeError {
	return NewRuntimeError(ErrorLabelNotFound, fmt.Sprintf("label not found: %s", label))
}

// NewUnmatchedControlError creates an error for a control command without
// its terminator.
func NewUnmatchedControlError(command, want string) *RuntimeError {
	return NewRuntimeError(ErrorUnmatchedControl, fmt.Sprintf("%s has no matching %s", command, want))
}

// NewVariableNotFoundError creates a variable lookup error.
func NewVariableNotFoundError(key string) *RuntimeError {
	return NewRuntimeError(ErrorVariableNotFound, fmt.Sprintf("variable not found: %s", key))
}
