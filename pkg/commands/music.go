package commands

import (
	"github.com/zurustar/flowrun/pkg/flow"
)

// PlayMusic starts a track. With Wait the block continues when the track
// ends, is replaced or is stopped.
type PlayMusic struct {
	flow.Base
	File string
	Wait bool

	env    *Env
	cancel func()
}

// NewPlayMusic creates a PlayMusic using the music service of env.
func NewPlayMusic(env *Env, file string, wait bool) *PlayMusic {
	return &PlayMusic{File: file, Wait: wait, env: env}
}

func (c *PlayMusic) OnEnter() {
	if c.env == nil || c.env.Music == nil {
		c.SetError("no music service")
		c.Continue()
		return
	}

	file := c.Flowchart().SubstituteVariables(c.File)
	var onFinish func()
	if c.Wait {
		onFinish = func() {
			c.cancel = nil
			c.Continue()
		}
	}
	cancel, err := c.env.Music.Play(file, onFinish)
	if err != nil {
		c.SetError("play %s: %v", file, err)
		c.Continue()
		return
	}
	if !c.Wait {
		c.Continue()
		return
	}
	c.cancel = cancel
}

func (c *PlayMusic) OnStop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// StopMusic stops the current track.
type StopMusic struct {
	flow.Base
	env *Env
}

// NewStopMusic creates a StopMusic using the music service of env.
func NewStopMusic(env *Env) *StopMusic { return &StopMusic{env: env} }

func (c *StopMusic) OnEnter() {
	if c.env == nil || c.env.Music == nil {
		c.SetError("no music service")
	} else {
		c.env.Music.Stop()
	}
	c.Continue()
}
