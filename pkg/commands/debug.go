package commands

import (
	"context"
	"log/slog"

	"github.com/zurustar/flowrun/pkg/flow"
)

// DebugLog writes a substituted message to the registry logger.
type DebugLog struct {
	flow.Base
	Text  string
	Level slog.Level
}

// NewDebugLog creates a DebugLog at info level.
func NewDebugLog(text string) *DebugLog { return &DebugLog{Text: text, Level: slog.LevelInfo} }

func (c *DebugLog) OnEnter() {
	fc := c.Flowchart()
	fc.Registry().Logger().Log(context.Background(), c.Level, fc.SubstituteVariables(c.Text),
		"flowchart", fc.Name(), "block", c.ParentBlock().Name(), "index", c.Index())
	c.Continue()
}
