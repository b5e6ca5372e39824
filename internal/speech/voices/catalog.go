package voices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

// DefaultFallbackDelay is how long the catalog waits for a voices-changed
// notification before re-querying the platform one last time.
const DefaultFallbackDelay = time.Second

// Catalog lazily loads the platform voice list exactly once. All callers,
// including concurrent first callers, observe the same result.
type Catalog struct {
	synth    engine.Synthesizer
	fallback time.Duration

	once   sync.Once
	done   chan struct{}
	voices []engine.Voice
}

// NewCatalog creates a catalog for synth. A non-positive fallback uses
// DefaultFallbackDelay.
func NewCatalog(synth engine.Synthesizer, fallback time.Duration) *Catalog {
	if fallback <= 0 {
		fallback = DefaultFallbackDelay
	}
	return &Catalog{
		synth:    synth,
		fallback: fallback,
		done:     make(chan struct{}),
	}
}

// Voices triggers the load on first use and waits for it. ctx only bounds
// the caller's wait; an abandoned wait does not stop the load.
func (c *Catalog) Voices(ctx context.Context) ([]engine.Voice, error) {
	c.once.Do(func() { go c.load() })

	select {
	case <-c.done:
		return c.voices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether the catalog has resolved.
func (c *Catalog) Loaded() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Catalog) load() {
	defer close(c.done)

	if c.synth == nil || !c.synth.Available() {
		return
	}

	if v := c.synth.Voices(); len(v) > 0 {
		c.voices = v
		return
	}

	changed := make(chan struct{}, 1)
	unsubscribe := c.synth.OnVoicesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// The list may have populated between the first query and registration.
	if v := c.synth.Voices(); len(v) > 0 {
		c.voices = v
		return
	}

	timer := time.NewTimer(c.fallback)
	defer timer.Stop()

	for {
		select {
		case <-changed:
			if v := c.synth.Voices(); len(v) > 0 {
				c.voices = v
				return
			}
		case <-timer.C:
			c.voices = c.synth.Voices()
			if len(c.voices) == 0 {
				slog.Warn("speech voices still unavailable after fallback delay, using platform defaults",
					slog.Duration("delay", c.fallback))
			}
			return
		}
	}
}
