package player

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/speech/voices"
)

// Defaults applied to zero or invalid request fields.
const (
	DefaultLanguage    = "es-419"
	DefaultVolume      = 1.0
	DefaultRate        = 1.0
	DefaultPitch       = 1.0
	DefaultSubmitDelay = 100 * time.Millisecond
)

// Platform ranges.
const (
	MinRate  = 0.1
	MaxRate  = 10.0
	MinPitch = 0.0
	MaxPitch = 2.0
)

// Request is one call to Speak.
type Request struct {
	Text     string
	Language string
	Volume   float64
	Rate     float64
	Pitch    float64
}

// NewRequest returns a request with default acoustic parameters.
func NewRequest(text, lang string) Request {
	return Request{
		Text:     text,
		Language: lang,
		Volume:   DefaultVolume,
		Rate:     DefaultRate,
		Pitch:    DefaultPitch,
	}
}

// Config holds Player settings.
type Config struct {
	// SubmitDelay is waited between cancelling the previous utterance and
	// submitting the new one. Some platforms report spurious cancel or
	// interrupt errors without it. Negative disables the delay.
	SubmitDelay time.Duration

	// SystemLocale is the ambient locale used by the third voice fallback.
	SystemLocale string
}

// Player speaks one utterance at a time. Every call to Speak supersedes the
// previous one; nothing is ever queued.
type Player struct {
	synth   engine.Synthesizer
	catalog *voices.Catalog
	cfg     Config

	mu      sync.Mutex
	gen     uint64
	current string
}

// New creates a Player over synth, loading voices through catalog.
func New(synth engine.Synthesizer, catalog *voices.Catalog, cfg Config) *Player {
	if cfg.SubmitDelay == 0 {
		cfg.SubmitDelay = DefaultSubmitDelay
	}
	if catalog == nil {
		catalog = voices.NewCatalog(synth, 0)
	}
	return &Player{
		synth:   synth,
		catalog: catalog,
		cfg:     cfg,
	}
}

// Speak cancels whatever is playing and speaks req. It returns nil when
// playback completes or the platform cannot speak at all, and a
// *engine.SynthesisError when the platform reports a failure. A call that
// gets superseded by a later call resolves with a canceled error.
func (p *Player) Speak(ctx context.Context, req Request) error {
	if p.synth == nil || !p.synth.Available() {
		slog.WarnContext(ctx, "speech synthesis not supported, skipping utterance")
		return nil
	}

	u := buildUtterance(req)
	if u.Text == "" {
		return engine.NewSynthesisError(engine.CodeInvalidArgument, u, nil)
	}

	catalog, err := p.catalog.Voices(ctx)
	if err != nil {
		return err
	}

	if v, match := voices.SelectWithMatch(catalog, u.Language, p.cfg.SystemLocale); match != voices.MatchNone {
		u.Voice = &v
		slog.DebugContext(ctx, "speech voice selected",
			slog.String("voice", v.Name),
			slog.String("voice_lang", v.Language),
			slog.Bool("default", v.Default),
			slog.String("match", string(match)),
		)
	} else {
		slog.WarnContext(ctx, "no speech voices available, using platform default",
			slog.String("lang", u.Language))
	}

	p.mu.Lock()
	p.synth.CancelAll()
	p.gen++
	gen := p.gen
	p.current = u.ID
	p.mu.Unlock()

	if p.cfg.SubmitDelay > 0 {
		timer := time.NewTimer(p.cfg.SubmitDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			p.finish(gen)
			return ctx.Err()
		}
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return engine.NewSynthesisError(engine.CodeCanceled, u, nil)
	}
	done := p.synth.Speak(u)
	p.current = u.ID
	p.mu.Unlock()

	select {
	case err := <-done:
		p.finish(gen)
		if err != nil {
			slog.WarnContext(ctx, "speech utterance failed",
				slog.String("error", err.Error()),
				slog.String("code", string(engine.CodeOf(err))),
				slog.String("lang", u.Language),
				slog.String("voice", u.VoiceName()),
				slog.String("text", truncate(u.Text, 100)),
			)
			return err
		}
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		if p.gen == gen {
			p.synth.CancelAll()
			p.current = ""
		}
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Stop cancels the current utterance, if any.
func (p *Player) Stop() {
	if p.synth == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.current = ""
	p.synth.CancelAll()
}

// Available reports whether the platform can speak.
func (p *Player) Available() bool {
	return p.synth != nil && p.synth.Available()
}

// Speaking reports whether an utterance is waiting out the submit delay or
// is submitted and unresolved.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != ""
}

// SelectedVoice returns the voice Speak would use for lang.
func (p *Player) SelectedVoice(ctx context.Context, lang string) (engine.Voice, voices.Match, error) {
	catalog, err := p.catalog.Voices(ctx)
	if err != nil {
		return engine.Voice{}, voices.MatchNone, err
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	v, m := voices.SelectWithMatch(catalog, lang, p.cfg.SystemLocale)
	return v, m, nil
}

// Voices returns the loaded voice catalog.
func (p *Player) Voices(ctx context.Context) ([]engine.Voice, error) {
	return p.catalog.Voices(ctx)
}

func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if p.gen == gen {
		p.current = ""
	}
	p.mu.Unlock()
}

func buildUtterance(req Request) engine.Utterance {
	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	return engine.Utterance{
		ID:       xid.New().String(),
		Text:     req.Text,
		Language: lang,
		Volume:   clamp(req.Volume, 0, 1, DefaultVolume),
		Rate:     clamp(req.Rate, MinRate, MaxRate, DefaultRate),
		Pitch:    clamp(req.Pitch, MinPitch, MaxPitch, DefaultPitch),
	}
}

func clamp(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return math.Max(lo, math.Min(hi, v))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
