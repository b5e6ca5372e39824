// Package enginetest provides an in-memory speech platform for tests.
package enginetest

import (
	"sync"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

// Fake is a controllable engine.Synthesizer. Utterances stay pending until
// Finish or Fail is called, or until CancelAll resolves them as canceled.
type Fake struct {
	mu sync.Mutex

	unavailable bool
	voices      []engine.Voice
	listeners   map[int]func()
	nextID      int

	pending  map[string]chan error
	spoken   []engine.Utterance
	canceled []string
	cancels  int

	// AutoFinish resolves every utterance successfully as soon as it is
	// submitted.
	AutoFinish bool

	submitted chan engine.Utterance
}

// NewFake returns an available platform reporting voices.
func NewFake(voices ...engine.Voice) *Fake {
	return &Fake{
		voices:    voices,
		listeners: make(map[int]func()),
		pending:   make(map[string]chan error),
		submitted: make(chan engine.Utterance, 64),
	}
}

// NewUnavailable returns a platform without speech support.
func NewUnavailable() *Fake {
	f := NewFake()
	f.unavailable = true
	return f
}

func (f *Fake) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *Fake) Voices() []engine.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Voice, len(f.voices))
	copy(out, f.voices)
	return out
}

// SetVoices replaces the voice list and notifies listeners.
func (f *Fake) SetVoices(voices ...engine.Voice) {
	f.mu.Lock()
	f.voices = voices
	fns := make([]func(), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// NotifyVoicesChanged fires the change listeners without changing voices.
func (f *Fake) NotifyVoicesChanged() {
	f.SetVoices(f.Voices()...)
}

// DropListeners forgets every voices-changed listener, modelling a
// platform that populates its list without notifying.
func (f *Fake) DropListeners() {
	f.mu.Lock()
	f.listeners = make(map[int]func())
	f.mu.Unlock()
}

// Listeners returns the number of registered voices-changed listeners.
func (f *Fake) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Fake) OnVoicesChanged(fn func()) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *Fake) Speak(u engine.Utterance) <-chan error {
	ch := make(chan error, 1)

	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	if f.AutoFinish {
		ch <- nil
	} else {
		f.pending[u.ID] = ch
	}
	f.mu.Unlock()

	select {
	case f.submitted <- u:
	default:
	}
	return ch
}

// Submitted delivers utterances in submission order.
func (f *Fake) Submitted() <-chan engine.Utterance { return f.submitted }

func (f *Fake) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	for id, ch := range f.pending {
		ch <- engine.NewSynthesisError(engine.CodeCanceled, engine.Utterance{ID: id}, nil)
		f.canceled = append(f.canceled, id)
		delete(f.pending, id)
	}
}

// Finish completes the utterance with the given ID.
func (f *Fake) Finish(id string) bool {
	return f.resolve(id, nil)
}

// Fail resolves the utterance with a platform error code.
func (f *Fake) Fail(id string, code engine.ErrorCode) bool {
	f.mu.Lock()
	var u engine.Utterance
	for _, s := range f.spoken {
		if s.ID == id {
			u = s
		}
	}
	f.mu.Unlock()
	return f.resolve(id, engine.NewSynthesisError(code, u, nil))
}

func (f *Fake) resolve(id string, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.pending[id]
	if !ok {
		return false
	}
	ch <- err
	delete(f.pending, id)
	return true
}

// Spoken returns every submitted utterance.
func (f *Fake) Spoken() []engine.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Utterance, len(f.spoken))
	copy(out, f.spoken)
	return out
}

// Canceled returns IDs of utterances resolved by CancelAll.
func (f *Fake) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

// Pending returns the number of unresolved utterances.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Cancels returns how many times CancelAll was called.
func (f *Fake) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func (f *Fake) Close() error {
	f.CancelAll()
	return nil
}
