package voices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/speech/enginetest"
)

func TestCatalogUnavailablePlatform(t *testing.T) {
	c := NewCatalog(enginetest.NewUnavailable(), time.Hour)

	v, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(v) != 0 {
		t.Errorf("got %d voices, want 0", len(v))
	}
}

func TestCatalogSynchronousVoices(t *testing.T) {
	fake := enginetest.NewFake(engine.Voice{Name: "A", Language: "es-ES"})
	c := NewCatalog(fake, time.Hour)

	v, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(v) != 1 || v[0].Name != "A" {
		t.Errorf("voices = %+v, want [A]", v)
	}
	if fake.Listeners() != 0 {
		t.Error("no voices-changed listener should be registered when voices are ready")
	}
}

func TestCatalogWaitsForVoicesChanged(t *testing.T) {
	fake := enginetest.NewFake()
	c := NewCatalog(fake, time.Hour)

	result := make(chan []engine.Voice, 1)
	go func() {
		v, _ := c.Voices(context.Background())
		result <- v
	}()

	waitFor(t, func() bool { return fake.Listeners() == 1 })
	if c.Loaded() {
		t.Fatal("catalog must not resolve while the platform list is empty")
	}

	// An empty notification keeps the catalog waiting.
	fake.NotifyVoicesChanged()
	time.Sleep(20 * time.Millisecond)
	if c.Loaded() {
		t.Fatal("catalog resolved on an empty change notification")
	}

	fake.SetVoices(engine.Voice{Name: "B", Language: "es-419", Default: true})

	select {
	case v := <-result:
		if len(v) != 1 || v[0].Name != "B" {
			t.Errorf("voices = %+v, want [B]", v)
		}
	case <-time.After(time.Second):
		t.Fatal("catalog did not resolve after voices changed")
	}

	waitFor(t, func() bool { return fake.Listeners() == 0 })
}

func TestCatalogFallbackTimerGivesUp(t *testing.T) {
	fake := enginetest.NewFake()
	c := NewCatalog(fake, 20*time.Millisecond)

	v, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(v) != 0 {
		t.Errorf("got %d voices, want 0", len(v))
	}

	// Voices appearing later never replace the resolved catalog.
	fake.SetVoices(engine.Voice{Name: "late", Language: "es-419"})
	v, _ = c.Voices(context.Background())
	if len(v) != 0 {
		t.Errorf("catalog was replaced after resolving: %+v", v)
	}
}

func TestCatalogFallbackTimerFindsVoices(t *testing.T) {
	fake := enginetest.NewFake()
	c := NewCatalog(fake, 30*time.Millisecond)

	done := make(chan []engine.Voice, 1)
	go func() {
		v, _ := c.Voices(context.Background())
		done <- v
	}()

	waitFor(t, func() bool { return fake.Listeners() == 1 })

	// Simulate a platform that populates without notifying.
	fake.DropListeners()
	fake.SetVoices(engine.Voice{Name: "quiet", Language: "es-MX"})

	select {
	case v := <-done:
		if len(v) != 1 || v[0].Name != "quiet" {
			t.Errorf("voices = %+v, want [quiet]", v)
		}
	case <-time.After(time.Second):
		t.Fatal("fallback timer did not resolve the catalog")
	}
}

func TestCatalogConcurrentCallersShareOneLoad(t *testing.T) {
	fake := enginetest.NewFake()
	c := NewCatalog(fake, time.Hour)

	var wg sync.WaitGroup
	results := make([][]engine.Voice, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Voices(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return fake.Listeners() > 0 })
	if n := fake.Listeners(); n != 1 {
		t.Errorf("listeners = %d, want a single shared load", n)
	}

	fake.SetVoices(engine.Voice{Name: "A", Language: "es-419"})
	wg.Wait()

	for i, v := range results {
		if len(v) != 1 || v[0].Name != "A" {
			t.Errorf("caller %d got %+v", i, v)
		}
	}
}

func TestCatalogContextCancelledWait(t *testing.T) {
	fake := enginetest.NewFake()
	c := NewCatalog(fake, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Voices(ctx); err == nil {
		t.Fatal("expected context error")
	}

	waitFor(t, func() bool { return fake.Listeners() == 1 })
	fake.SetVoices(engine.Voice{Name: "A", Language: "es-419"})
	v, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(v) != 1 {
		t.Errorf("load should survive an abandoned wait, got %+v", v)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
