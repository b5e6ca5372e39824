// Package browser drives the Web Speech API of a connected browser. The
// browser owns the audio; this side owns sequencing, voice selection and
// error typing. Commands travel through a Sender, usually a websocket.
package browser

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

// Sender delivers a command to the browser.
type Sender func(msg any) error

// SpeakCommand asks the browser to speak one utterance.
type SpeakCommand struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  string  `json:"voice,omitempty"`
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
}

// CancelCommand asks the browser to cancel every queued utterance.
type CancelCommand struct {
	Type string `json:"type"`
}

// Bridge is an engine.Synthesizer backed by a remote browser.
type Bridge struct {
	send      Sender
	available bool

	mu        sync.Mutex
	voices    []engine.Voice
	listeners map[int]func()
	nextID    int
	pending   map[string]pendingUtterance
	closed    bool
}

type pendingUtterance struct {
	u    engine.Utterance
	done chan error
}

// New creates a bridge. available is what the browser reported for
// window.speechSynthesis.
func New(send Sender, available bool) *Bridge {
	return &Bridge{
		send:      send,
		available: available,
		listeners: make(map[int]func()),
		pending:   make(map[string]pendingUtterance),
	}
}

func (b *Bridge) Available() bool { return b.available }

func (b *Bridge) Voices() []engine.Voice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]engine.Voice, len(b.voices))
	copy(out, b.voices)
	return out
}

// SetVoices records a voices report from the browser and fires the
// voices-changed listeners.
func (b *Bridge) SetVoices(voices []engine.Voice) {
	b.mu.Lock()
	b.voices = append([]engine.Voice(nil), voices...)
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (b *Bridge) OnVoicesChanged(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *Bridge) Speak(u engine.Utterance) <-chan error {
	done := make(chan error, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		done <- engine.NewSynthesisError(engine.CodeSynthesisUnavailable, u, fmt.Errorf("browser disconnected"))
		return done
	}
	b.pending[u.ID] = pendingUtterance{u: u, done: done}
	b.mu.Unlock()

	cmd := SpeakCommand{
		Type:   "speak",
		ID:     u.ID,
		Text:   u.Text,
		Lang:   u.Language,
		Volume: u.Volume,
		Rate:   u.Rate,
		Pitch:  u.Pitch,
	}
	if u.Voice != nil {
		cmd.Voice = u.Voice.ID
		if cmd.Voice == "" {
			cmd.Voice = u.Voice.Name
		}
	}

	if err := b.send(cmd); err != nil {
		b.resolve(u.ID, func(u engine.Utterance) error {
			return engine.NewSynthesisError(engine.CodeNetwork, u, err)
		})
	}
	return done
}

// Ended resolves utterance id successfully.
func (b *Bridge) Ended(id string) {
	if !b.resolve(id, func(engine.Utterance) error { return nil }) {
		slog.Debug("browser ended an unknown utterance", slog.String("utterance", id))
	}
}

// Failed resolves utterance id with the raw error code the browser reported.
func (b *Bridge) Failed(id, code string) {
	ok := b.resolve(id, func(u engine.Utterance) error {
		return engine.NewSynthesisError(engine.ParseErrorCode(code), u, nil)
	})
	if !ok {
		slog.Debug("browser failed an unknown utterance",
			slog.String("utterance", id), slog.String("code", code))
	}
}

// CancelAll resolves pending utterances as canceled and tells the browser
// to stop. The browser's own cancel notifications for them arrive later
// and are ignored.
func (b *Bridge) CancelAll() {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]pendingUtterance)
	closed := b.closed
	b.mu.Unlock()

	for _, p := range pending {
		p.done <- engine.NewSynthesisError(engine.CodeCanceled, p.u, nil)
	}
	if closed {
		return
	}
	if err := b.send(CancelCommand{Type: "cancel"}); err != nil {
		slog.Debug("browser cancel not delivered", slog.String("error", err.Error()))
	}
}

// Close cancels pending utterances. Later Speak calls fail immediately.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[string]pendingUtterance)
	b.mu.Unlock()

	for _, p := range pending {
		p.done <- engine.NewSynthesisError(engine.CodeCanceled, p.u, nil)
	}
	return nil
}

func (b *Bridge) resolve(id string, result func(engine.Utterance) error) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if !ok {
		return false
	}
	p.done <- result(p.u)
	return true
}
