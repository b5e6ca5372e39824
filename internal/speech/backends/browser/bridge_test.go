package browser

import (
	"errors"
	"sync"
	"testing"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

type recorder struct {
	mu   sync.Mutex
	msgs []any
	err  error
}

func (r *recorder) send(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) sent() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func utterance(id string) engine.Utterance {
	return engine.Utterance{
		ID:       id,
		Text:     "Hola",
		Language: "es-419",
		Volume:   1,
		Rate:     1,
		Pitch:    1,
		Voice:    &engine.Voice{ID: "Google español de Estados Unidos", Name: "Google español", Language: "es-US"},
	}
}

func TestBridgeSpeakAndEnd(t *testing.T) {
	rec := &recorder{}
	b := New(rec.send, true)

	done := b.Speak(utterance("u1"))

	msgs := rec.sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	cmd, ok := msgs[0].(SpeakCommand)
	if !ok {
		t.Fatalf("sent %T, want SpeakCommand", msgs[0])
	}
	if cmd.Type != "speak" || cmd.ID != "u1" || cmd.Voice != "Google español de Estados Unidos" || cmd.Lang != "es-419" {
		t.Errorf("command = %+v", cmd)
	}

	b.Ended("u1")
	if err := <-done; err != nil {
		t.Fatalf("utterance error: %v", err)
	}
}

func TestBridgeFailedMapsCode(t *testing.T) {
	b := New((&recorder{}).send, true)

	done := b.Speak(utterance("u1"))
	b.Failed("u1", "audio-busy")

	err := <-done
	if engine.CodeOf(err) != engine.CodeAudioBusy {
		t.Fatalf("code = %q, want audio-busy", engine.CodeOf(err))
	}

	done = b.Speak(utterance("u2"))
	b.Failed("u2", "something-new")
	if code := engine.CodeOf(<-done); code != engine.CodeUnknown {
		t.Fatalf("code = %q, want unknown", code)
	}
}

func TestBridgeCancelAll(t *testing.T) {
	rec := &recorder{}
	b := New(rec.send, true)

	done := b.Speak(utterance("u1"))
	b.CancelAll()

	if err := <-done; engine.CodeOf(err) != engine.CodeCanceled {
		t.Fatalf("code = %q, want canceled", engine.CodeOf(err))
	}
	msgs := rec.sent()
	if _, ok := msgs[len(msgs)-1].(CancelCommand); !ok {
		t.Errorf("last message = %T, want CancelCommand", msgs[len(msgs)-1])
	}

	// The browser's late interrupted notification is ignored.
	b.Failed("u1", "interrupted")
}

func TestBridgeSendFailure(t *testing.T) {
	rec := &recorder{err: errors.New("socket closed")}
	b := New(rec.send, true)

	err := <-b.Speak(utterance("u1"))
	if engine.CodeOf(err) != engine.CodeNetwork {
		t.Fatalf("code = %q, want network", engine.CodeOf(err))
	}
}

func TestBridgeVoicesChanged(t *testing.T) {
	b := New((&recorder{}).send, true)

	calls := 0
	unsubscribe := b.OnVoicesChanged(func() { calls++ })

	b.SetVoices([]engine.Voice{{Name: "A", Language: "es-419"}})
	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
	if v := b.Voices(); len(v) != 1 || v[0].Name != "A" {
		t.Errorf("voices = %+v", v)
	}

	unsubscribe()
	b.SetVoices(nil)
	if calls != 1 {
		t.Error("listener fired after unsubscribe")
	}
}

func TestBridgeClose(t *testing.T) {
	b := New((&recorder{}).send, true)

	pending := b.Speak(utterance("u1"))
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !engine.IsCanceled(<-pending) {
		t.Error("pending utterance should be canceled on close")
	}
	if code := engine.CodeOf(<-b.Speak(utterance("u2"))); code != engine.CodeSynthesisUnavailable {
		t.Errorf("code after close = %q", code)
	}
}
