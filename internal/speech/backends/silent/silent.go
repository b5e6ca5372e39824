// Package silent provides a platform without speech support. Every Speak
// call is skipped by the player.
package silent

import (
	"github.com/cheamigo/cheamigo/internal/registry"
	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

func init() {
	registry.Synthesizers.Register("silent", func(map[string]string) (engine.Synthesizer, error) {
		return Synthesizer{}, nil
	})
}

// Synthesizer reports no capability.
type Synthesizer struct{}

func (Synthesizer) Available() bool        { return false }
func (Synthesizer) Voices() []engine.Voice { return nil }
func (Synthesizer) CancelAll()             {}
func (Synthesizer) Close() error           { return nil }

func (Synthesizer) OnVoicesChanged(func()) func() { return func() {} }

func (Synthesizer) Speak(u engine.Utterance) <-chan error {
	ch := make(chan error, 1)
	ch <- engine.NewSynthesisError(engine.CodeSynthesisUnavailable, u, nil)
	return ch
}
