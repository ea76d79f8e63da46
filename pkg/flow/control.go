package flow

// findSibling scans forward from index from for the first command on the
// given indent level that satisfies match. Disabled commands, comments and
// labels are skipped, deeper commands are skipped, and a shallower command
// ends the scan without a match.
func (b *Block) findSibling(from, indent int, match func(Command) bool) Command {
	for i := from; i < len(b.commands); i++ {
		c := b.commands[i]
		if skippable(c) || c.Indent() > indent {
			continue
		}
		if c.Indent() < indent {
			return nil
		}
		if match(c) {
			return c
		}
	}
	return nil
}

// findSiblingBackward is findSibling scanning toward the start of the list.
func (b *Block) findSiblingBackward(from, indent int, match func(Command) bool) Command {
	for i := from; i >= 0 && i < len(b.commands); i-- {
		c := b.commands[i]
		if skippable(c) || c.Indent() > indent {
			continue
		}
		if c.Indent() < indent {
			return nil
		}
		if match(c) {
			return c
		}
	}
	return nil
}

func isKind(kinds ...Kind) func(Command) bool {
	return func(c Command) bool {
		k := KindOf(c)
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

// continueAfter continues at target+1, stopping the block when that is
// past the end of the list.
func (b *Base) continueAfter(target Command) {
	if target.Index()+1 >= b.parent.Len() {
		b.StopParentBlock()
		return
	}
	b.ContinueAt(target.Index() + 1)
}

// Comment is a no-op annotation.
type Comment struct {
	Base
	Text string
}

// NewComment creates a Comment.
func NewComment(text string) *Comment { return &Comment{Text: text} }

// Label marks a Jump target.
type Label struct {
	Base
	Key string
}

// NewLabel creates a Label.
func NewLabel(key string) *Label { return &Label{Key: key} }

// Jump continues after the Label with the matching key, searching the whole
// block. A missing label is reported and execution falls through.
type Jump struct {
	Base
	Target string
}

// NewJump creates a Jump.
func NewJump(target string) *Jump { return &Jump{Target: target} }

func (j *Jump) OnEnter() {
	for _, c := range j.parent.commands {
		if l, ok := c.(*Label); ok && l.Key == j.Target {
			j.ContinueAt(l.Index() + 1)
			return
		}
	}
	j.SetError("%s", NewLabelNotFoundError(j.Target).Message)
	j.Continue()
}

// Else skips to the End closing its If chain.
type Else struct {
	Base
}

// NewElse creates an Else.
func NewElse() *Else { return &Else{} }

func (e *Else) OnEnter() {
	end := e.parent.findSibling(e.index+1, e.indent, isKind(KindEnd))
	if end == nil {
		e.SetError("%s", NewUnmatchedControlError("Else", "End").Message)
		e.StopParentBlock()
		return
	}
	e.continueAfter(end)
}

func (e *Else) OpenBlock() bool  { return true }
func (e *Else) CloseBlock() bool { return true }

// End closes an If chain or a While body. When armed by its While it jumps
// back to that While instead of falling through.
type End struct {
	Base
	loop bool
}

// NewEnd creates an End.
func NewEnd() *End { return &End{} }

// Looping reports whether the End will jump back to its While.
func (e *End) Looping() bool { return e.loop }

func (e *End) OnEnter() {
	if e.loop {
		e.loop = false
		w := e.parent.findSiblingBackward(e.index-1, e.indent, isKind(KindWhile))
		if w != nil {
			e.ContinueAt(w.Index())
			return
		}
	}
	e.Continue()
}

func (e *End) OnReset()         { e.loop = false }
func (e *End) CloseBlock() bool { return true }

// Break leaves the innermost enclosing While and continues after its End.
type Break struct {
	Base
}

// NewBreak creates a Break.
func NewBreak() *Break { return &Break{} }

func (br *Break) OnEnter() {
	if end := br.enclosingLoopEnd(); end != nil {
		end.loop = false
		br.continueAfter(end)
		return
	}

	// No enclosing While: the End one level out, if any.
	for i := br.index + 1; i < br.parent.Len(); i++ {
		c := br.parent.commands[i]
		if e, ok := c.(*End); ok && e.Enabled() && e.Indent() == br.indent-1 {
			e.loop = false
			br.continueAfter(e)
			return
		}
	}
	br.Continue()
}

// enclosingLoopEnd walks outward through the enclosing structures until it
// reaches a While, then returns that While's End.
func (br *Break) enclosingLoopEnd() *End {
	level := br.indent
	for i := br.index - 1; i >= 0 && level > 0; i-- {
		c := br.parent.commands[i]
		if skippable(c) || c.Indent() >= level {
			continue
		}
		level = c.Indent()
		if w, ok := c.(*While); ok {
			if end, ok := br.parent.findSibling(w.Index()+1, w.Indent(), isKind(KindEnd)).(*End); ok {
				return end
			}
			return nil
		}
	}
	return nil
}
