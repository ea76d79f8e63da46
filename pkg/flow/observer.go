package flow

// Observer receives execution notifications from every flowchart of a
// registry. Callbacks run on the driver thread and must not block.
type Observer interface {
	BlockStarted(b *Block)
	BlockFinished(b *Block)
	CommandStarted(c Command)
	CommandError(c Command, message string)
}

// NopObserver implements Observer with empty methods. Embed it to
// implement only the callbacks you need.
type NopObserver struct{}

func (NopObserver) BlockStarted(*Block)          {}
func (NopObserver) BlockFinished(*Block)         {}
func (NopObserver) CommandStarted(Command)       {}
func (NopObserver) CommandError(Command, string) {}
