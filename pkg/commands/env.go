// Package commands implements the payload commands of a flowchart: the
// actions a block performs between its control-flow commands.
//
// Commands that need the outside world reach it through Env. Service
// callbacks must run on the driver goroutine; services that wait on other
// goroutines hand their results back with flow.Registry.Invoke.
package commands

// Line is one line of dialogue.
type Line struct {
	Flowchart string
	Block     string
	Text      string
}

// Dialogue shows lines of text to the reader.
type Dialogue interface {
	// Say shows line and calls done once the reader has acknowledged it.
	// The returned function withdraws the line; done is then never called.
	Say(line Line, done func()) (cancel func())
}

// Music plays one track at a time. *audio.Jukebox implements it.
type Music interface {
	// Play starts file. onFinish, if non-nil, runs when the track ends or
	// is replaced or stopped. cancel removes onFinish.
	Play(file string, onFinish func()) (cancel func(), err error)
	Stop()
}

// Env holds the services available to commands. Nil services are allowed:
// Say then logs the line and continues, music commands record an error.
type Env struct {
	Dialogue Dialogue
	Music    Music
}
