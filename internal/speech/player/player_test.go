package player

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/speech/enginetest"
	"github.com/cheamigo/cheamigo/internal/speech/voices"
)

func newTestPlayer(fake *enginetest.Fake, delay time.Duration) *Player {
	return New(fake, voices.NewCatalog(fake, 20*time.Millisecond), Config{SubmitDelay: delay})
}

func nextSubmitted(t *testing.T, fake *enginetest.Fake) engine.Utterance {
	t.Helper()
	select {
	case u := <-fake.Submitted():
		return u
	case <-time.After(time.Second):
		t.Fatal("no utterance submitted")
		return engine.Utterance{}
	}
}

func TestSpeakUnavailablePlatform(t *testing.T) {
	fake := enginetest.NewUnavailable()
	p := newTestPlayer(fake, -1)

	if err := p.Speak(context.Background(), NewRequest("Hola", "es-419")); err != nil {
		t.Fatalf("Speak on unsupported platform should resolve cleanly, got %v", err)
	}
	if len(fake.Spoken()) != 0 {
		t.Error("nothing should be submitted to an unsupported platform")
	}
}

func TestSpeakEmptyText(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	p := newTestPlayer(fake, -1)

	err := p.Speak(context.Background(), NewRequest("", "es-419"))
	if engine.CodeOf(err) != engine.CodeInvalidArgument {
		t.Fatalf("code = %q, want %q", engine.CodeOf(err), engine.CodeInvalidArgument)
	}
}

func TestSpeakSelectsVoiceAndCompletes(t *testing.T) {
	fake := enginetest.NewFake(
		engine.Voice{Name: "A", Language: "es-ES"},
		engine.Voice{Name: "B", Language: "es-419", Default: true},
	)
	p := newTestPlayer(fake, time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- p.Speak(context.Background(), NewRequest("Hola", "es-419")) }()

	u := nextSubmitted(t, fake)
	if u.Voice == nil || u.Voice.Name != "B" {
		t.Fatalf("voice = %+v, want B", u.Voice)
	}
	if u.ID == "" {
		t.Error("utterance must carry an ID")
	}
	if !p.Speaking() {
		t.Error("Speaking should report true while the utterance is pending")
	}

	fake.Finish(u.ID)
	if err := <-errc; err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if p.Speaking() {
		t.Error("Speaking should report false after completion")
	}
}

func TestSpeakPreemptsPrevious(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "B", Language: "es-419", Default: true})
	p := newTestPlayer(fake, time.Millisecond)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- p.Speak(ctx, NewRequest("Hola", "es-419")) }()
	hola := nextSubmitted(t, fake)

	second := make(chan error, 1)
	go func() { second <- p.Speak(ctx, NewRequest("Adiós", "es-419")) }()

	select {
	case err := <-first:
		if engine.CodeOf(err) != engine.CodeCanceled {
			t.Fatalf("first call: code = %q, want canceled", engine.CodeOf(err))
		}
	case <-time.After(time.Second):
		t.Fatal("first call was not preempted")
	}

	adios := nextSubmitted(t, fake)
	if adios.Text != "Adiós" {
		t.Fatalf("second submission = %q, want Adiós", adios.Text)
	}
	if fake.Pending() != 1 {
		t.Errorf("pending = %d, want only the second utterance", fake.Pending())
	}

	fake.Finish(adios.ID)
	if err := <-second; err != nil {
		t.Fatalf("second call: %v", err)
	}

	canceled := fake.Canceled()
	if len(canceled) != 1 || canceled[0] != hola.ID {
		t.Errorf("canceled = %v, want [%s]", canceled, hola.ID)
	}
}

func TestSpeakSupersededDuringDelay(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "B", Language: "es-419"})
	fake.AutoFinish = true
	p := newTestPlayer(fake, 50*time.Millisecond)
	ctx := context.Background()

	// Warm the catalog so both calls reach the delay promptly.
	if _, err := p.Voices(ctx); err != nil {
		t.Fatal(err)
	}

	first := make(chan error, 1)
	go func() { first <- p.Speak(ctx, NewRequest("uno", "es-419")) }()
	time.Sleep(10 * time.Millisecond)

	if err := p.Speak(ctx, NewRequest("dos", "es-419")); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if err := <-first; engine.CodeOf(err) != engine.CodeCanceled {
		t.Fatalf("first call: code = %q, want canceled", engine.CodeOf(err))
	}

	spoken := fake.Spoken()
	if len(spoken) != 1 || spoken[0].Text != "dos" {
		t.Errorf("spoken = %+v, want only the second utterance", spoken)
	}
}

func TestSpeakBackToBack(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "B", Language: "es-419"})
	fake.AutoFinish = true
	p := newTestPlayer(fake, time.Millisecond)

	for _, text := range []string{"uno", "dos", "tres"} {
		if err := p.Speak(context.Background(), NewRequest(text, "es-419")); err != nil {
			t.Fatalf("Speak(%q): %v", text, err)
		}
	}
	if n := len(fake.Spoken()); n != 3 {
		t.Errorf("spoken = %d, want 3", n)
	}
	if n := fake.Cancels(); n != 3 {
		t.Errorf("CancelAll calls = %d, want one per Speak", n)
	}
}

func TestSpeakEmptyCatalogUsesPlatformDefault(t *testing.T) {
	fake := enginetest.NewFake()
	fake.AutoFinish = true
	p := newTestPlayer(fake, -1)

	if err := p.Speak(context.Background(), NewRequest("Hola", "es-419")); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	spoken := fake.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("spoken = %d, want 1", len(spoken))
	}
	if spoken[0].Voice != nil {
		t.Errorf("voice = %+v, want platform default", spoken[0].Voice)
	}
	if spoken[0].Language != "es-419" {
		t.Errorf("lang = %q", spoken[0].Language)
	}
}

func TestSpeakClampsParameters(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	fake.AutoFinish = true
	p := newTestPlayer(fake, -1)

	req := Request{Text: "Hola", Volume: 3, Rate: 25, Pitch: -1}
	if err := p.Speak(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	req = Request{Text: "Hola", Volume: -2, Rate: 0, Pitch: math.NaN()}
	if err := p.Speak(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	spoken := fake.Spoken()
	high, low := spoken[0], spoken[1]
	if high.Volume != 1 || high.Rate != MaxRate || high.Pitch != MinPitch {
		t.Errorf("high = %+v", high)
	}
	if low.Volume != 0 || low.Rate != MinRate || low.Pitch != DefaultPitch {
		t.Errorf("low = %+v", low)
	}
	if high.Language != DefaultLanguage {
		t.Errorf("empty language should default to %s, got %q", DefaultLanguage, high.Language)
	}
}

func TestSpeakPlatformErrorCarriesContext(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "Paulina", Language: "es-MX"})
	p := newTestPlayer(fake, -1)

	errc := make(chan error, 1)
	go func() { errc <- p.Speak(context.Background(), NewRequest("Hola", "es-419")) }()

	u := nextSubmitted(t, fake)
	fake.Fail(u.ID, engine.CodeAudioBusy)

	err := <-errc
	var se *engine.SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not a SynthesisError", err)
	}
	if se.Code != engine.CodeAudioBusy {
		t.Errorf("code = %q", se.Code)
	}
	msg := err.Error()
	for _, want := range []string{"audio-busy", "es-419", "Paulina"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestSpeakContextCancelStopsPlayback(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	p := newTestPlayer(fake, -1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Speak(ctx, NewRequest("Hola", "es-419")) }()

	nextSubmitted(t, fake)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if fake.Pending() != 0 {
		t.Error("abandoned utterance should be cancelled on the platform")
	}
}

func TestStop(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	p := newTestPlayer(fake, -1)

	errc := make(chan error, 1)
	go func() { errc <- p.Speak(context.Background(), NewRequest("Hola", "es-419")) }()
	nextSubmitted(t, fake)

	p.Stop()
	if err := <-errc; !engine.IsCanceled(err) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if p.Speaking() {
		t.Error("Speaking should be false after Stop")
	}
}

func TestSelectedVoice(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-ES", Default: true})
	p := newTestPlayer(fake, -1)

	v, m, err := p.SelectedVoice(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Name != "A" || m != voices.MatchBroad {
		t.Errorf("got %s (%s), want A via broad match", v.Name, m)
	}
}

func TestSpeakingDuringSubmitDelay(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	p := newTestPlayer(fake, 200*time.Millisecond)
	ctx := context.Background()
	if _, err := p.Voices(ctx); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() { errc <- p.Speak(ctx, NewRequest("Hola", "es-419")) }()

	deadline := time.Now().Add(150 * time.Millisecond)
	for !p.Speaking() {
		if time.Now().After(deadline) {
			t.Fatal("Speaking is false while the utterance waits to be submitted")
		}
		time.Sleep(time.Millisecond)
	}
	if n := len(fake.Spoken()); n != 0 {
		t.Fatalf("submitted %d utterances before the delay elapsed", n)
	}

	u := nextSubmitted(t, fake)
	if !p.Speaking() {
		t.Error("Speaking should stay true after submission")
	}
	fake.Finish(u.ID)
	if err := <-errc; err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if p.Speaking() {
		t.Error("Speaking should be false after completion")
	}
}

func TestSpeakingClearedWhenContextEndsDuringDelay(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-419"})
	p := newTestPlayer(fake, time.Second)
	if _, err := p.Voices(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Speak(ctx, NewRequest("Hola", "es-419")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if p.Speaking() {
		t.Error("Speaking should be false after the caller gave up")
	}
}
