// Package assistant implements the detection loop: describe a camera frame,
// speak the description, and keep detection and speech single-flight.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/speech/player"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
	"github.com/cheamigo/cheamigo/pkg/events"
	"github.com/cheamigo/cheamigo/pkg/phrases"
)

var (
	// ErrBusy is returned while a detection or speech is in flight.
	ErrBusy = errors.New("assistant busy")
	// ErrEmptyDescription is returned when the describer answers with no text.
	ErrEmptyDescription = errors.New("empty description")
)

// Audio settings ranges, matching the settings sliders.
const (
	MinVolume = 0.0
	MaxVolume = 1.0
	MinRate   = 0.5
	MaxRate   = 2.0
)

// Notice variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Speaker speaks text. *player.Player implements it.
type Speaker interface {
	Speak(ctx context.Context, req player.Request) error
	Stop()
}

// Settings are the user-adjustable audio parameters.
type Settings struct {
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
}

// DefaultSettings returns full volume at normal rate.
func DefaultSettings() Settings {
	return Settings{Volume: 1, Rate: 1}
}

// Status is a snapshot of the assistant state.
type Status struct {
	Detecting       bool     `json:"detecting"`
	Speaking        bool     `json:"speaking"`
	LastDescription string   `json:"lastDescription,omitempty"`
	LastError       string   `json:"lastError,omitempty"`
	Settings        Settings `json:"settings"`
}

// Result is the outcome of a detection.
type Result struct {
	Description string `json:"description"`
	// Suppressed is set when the description repeated the previous one and
	// was not spoken.
	Suppressed bool `json:"suppressed"`
	// SpeechErr is the playback failure of a good description, if any.
	SpeechErr error `json:"-"`
}

// Notice is a user-visible message.
type Notice = events.NoticeData

// Options configure an Assistant.
type Options struct {
	Language  string
	SessionID string
	Phrases   phrases.Set
	Emitter   events.Emitter
	// Pitch applies to every utterance; zero uses the player default.
	Pitch float64

	// OnNotice receives user-visible notices.
	OnNotice func(ctx context.Context, n Notice)
	// OnStatus receives a snapshot after every state change.
	OnStatus func(s Status)
}

// Assistant runs the detection loop for one user session.
type Assistant struct {
	speaker   Speaker
	describer describe.Describer
	opts      Options

	mu        sync.Mutex
	detecting bool
	speaking  uint64
	nextToken uint64
	previous  string
	lastDesc  string
	lastErr   string
	settings  Settings
}

// New creates an Assistant.
func New(speaker Speaker, describer describe.Describer, opts Options) *Assistant {
	if opts.Language == "" {
		opts.Language = player.DefaultLanguage
	}
	if opts.Phrases.Language == "" {
		opts.Phrases = phrases.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = events.Discard{}
	}
	return &Assistant{
		speaker:   speaker,
		describer: describer,
		opts:      opts,
		settings:  DefaultSettings(),
	}
}

// Detect describes the photo and speaks the description unless it repeats
// the previous one. It returns ErrBusy while a detection or speech is in
// flight.
func (a *Assistant) Detect(ctx context.Context, photoDataURI string) (Result, error) {
	a.mu.Lock()
	if a.detecting || a.speaking != 0 {
		a.mu.Unlock()
		return Result{}, ErrBusy
	}
	a.detecting = true
	a.lastErr = ""
	a.mu.Unlock()
	a.statusChanged()

	defer func() {
		a.mu.Lock()
		a.detecting = false
		a.mu.Unlock()
		a.statusChanged()
	}()

	a.emit(ctx, events.DetectionStarted, events.DetectionStartedData{Bytes: len(photoDataURI)})

	start := time.Now()
	desc, err := a.describer.Describe(ctx, photoDataURI)
	if err != nil {
		msg := fmt.Sprintf(a.opts.Phrases.Notices.DetectionError, err.Error())
		a.mu.Lock()
		a.lastDesc = ""
		a.previous = ""
		a.lastErr = msg
		a.mu.Unlock()

		slog.ErrorContext(ctx, "object detection failed", slog.String("error", err.Error()))
		a.notify(ctx, Notice{Title: a.opts.Phrases.Notices.DetectionErrorTitle, Message: msg, Variant: VariantDestructive})
		a.emit(ctx, events.DetectionFailed, events.DetectionFailedData{Error: err.Error()})
		return Result{}, fmt.Errorf("describe: %w", err)
	}

	text := strings.TrimSpace(desc.ObjectDescription)
	if text == "" {
		msg := a.opts.Phrases.Notices.EmptyDescription
		a.mu.Lock()
		a.lastErr = msg
		a.mu.Unlock()

		a.notify(ctx, Notice{Title: a.opts.Phrases.Notices.DetectionErrorTitle, Message: msg, Variant: VariantDestructive})
		a.emit(ctx, events.DetectionFailed, events.DetectionFailedData{Error: ErrEmptyDescription.Error()})
		return Result{}, ErrEmptyDescription
	}

	a.mu.Lock()
	a.lastDesc = text
	suppressed := text == a.previous
	if !suppressed {
		a.previous = text
	}
	a.mu.Unlock()

	completed := events.DetectionCompletedData{
		Description: text,
		Suppressed:  suppressed,
		LatencyMs:   time.Since(start).Milliseconds(),
	}
	res := Result{Description: text, Suppressed: suppressed}
	if suppressed {
		slog.DebugContext(ctx, "description unchanged, not speaking it again")
		a.emit(ctx, events.DetectionCompleted, completed)
		return res, nil
	}

	err = a.speak(ctx, text, false, true)
	switch {
	case err == nil:
		completed.Spoken = true
	case errors.Is(err, ErrBusy):
	default:
		res.SpeechErr = err
		completed.SpeechError = err.Error()
	}
	a.emit(ctx, events.DetectionCompleted, completed)
	return res, nil
}

// Say speaks text. It returns ErrBusy while a detection is running, or
// while speech is in flight unless greeting is set; a greeting preempts the
// current speech. Greeting failures are logged and not returned.
func (a *Assistant) Say(ctx context.Context, text string, greeting bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return a.speak(ctx, text, greeting, false)
}

// CameraReady speaks the greeting.
func (a *Assistant) CameraReady(ctx context.Context) error {
	return a.Say(ctx, a.opts.Phrases.GreetingText(), true)
}

// CameraFailed reports a camera start failure. Permission denials are shown
// but not spoken; other failures speak the camera error phrase.
func (a *Assistant) CameraFailed(ctx context.Context, reason string) error {
	a.mu.Lock()
	a.lastErr = reason
	a.mu.Unlock()
	a.statusChanged()

	a.notify(ctx, Notice{Title: a.opts.Phrases.Notices.CameraErrorTitle, Message: reason, Variant: VariantDestructive})

	if IsPermissionDenied(reason) {
		return nil
	}
	return a.Say(ctx, a.opts.Phrases.CameraError, true)
}

// IsPermissionDenied reports whether a camera error is a permission denial.
func IsPermissionDenied(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "permission denied") || strings.Contains(r, "notallowederror")
}

// UpdateSettings clamps and stores the audio settings, returning the
// stored values.
func (a *Assistant) UpdateSettings(s Settings) Settings {
	s.Volume = clamp(s.Volume, MinVolume, MaxVolume, DefaultSettings().Volume)
	s.Rate = clamp(s.Rate, MinRate, MaxRate, DefaultSettings().Rate)

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	a.statusChanged()
	return s
}

// Status returns a snapshot of the assistant state.
func (a *Assistant) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked()
}

// Close stops any speech in flight.
func (a *Assistant) Close() {
	a.speaker.Stop()
}

func (a *Assistant) statusLocked() Status {
	return Status{
		Detecting:       a.detecting,
		Speaking:        a.speaking != 0,
		LastDescription: a.lastDesc,
		LastError:       a.lastErr,
		Settings:        a.settings,
	}
}

// speak holds the speaking flag for the duration of one utterance. The flag
// belongs to the call that set it; a preempted call finishing late leaves
// the newer call's flag alone.
func (a *Assistant) speak(ctx context.Context, text string, greeting, fromDetect bool) error {
	a.mu.Lock()
	if a.detecting && !fromDetect {
		a.mu.Unlock()
		return ErrBusy
	}
	if a.speaking != 0 && !greeting {
		a.mu.Unlock()
		slog.DebugContext(ctx, "already speaking, skipping non-greeting text")
		return ErrBusy
	}
	a.nextToken++
	token := a.nextToken
	a.speaking = token
	settings := a.settings
	a.mu.Unlock()
	a.statusChanged()

	defer func() {
		a.mu.Lock()
		if a.speaking == token {
			a.speaking = 0
		}
		a.mu.Unlock()
		a.statusChanged()
	}()

	req := player.NewRequest(text, a.opts.Language)
	req.Volume = settings.Volume
	req.Rate = settings.Rate
	if a.opts.Pitch != 0 {
		req.Pitch = a.opts.Pitch
	}

	data := events.TTSEventData{Text: text, Language: a.opts.Language, Greeting: greeting}
	a.emit(ctx, events.TTSStarted, data)

	err := a.speaker.Speak(ctx, req)
	if err == nil {
		a.emit(ctx, events.TTSCompleted, data)
		return nil
	}

	data.Code = string(engine.CodeOf(err))
	data.Error = err.Error()
	a.emit(ctx, events.TTSFailed, data)

	switch {
	case greeting:
		slog.WarnContext(ctx, "failed to speak greeting", slog.String("error", err.Error()))
		return nil
	case engine.IsCanceled(err):
		slog.DebugContext(ctx, "speech superseded", slog.String("error", err.Error()))
		return err
	}

	slog.ErrorContext(ctx, "error speaking text", slog.String("error", err.Error()))
	a.notify(ctx, Notice{
		Title:   a.opts.Phrases.Notices.AudioErrorTitle,
		Message: fmt.Sprintf(a.opts.Phrases.Notices.AudioErrorMessage, err.Error()),
		Variant: VariantDestructive,
	})
	return err
}

func (a *Assistant) notify(ctx context.Context, n Notice) {
	if a.opts.OnNotice != nil {
		a.opts.OnNotice(ctx, n)
	}
	a.emit(ctx, events.Notice, n)
}

func (a *Assistant) statusChanged() {
	if a.opts.OnStatus == nil {
		return
	}
	a.opts.OnStatus(a.Status())
}

func (a *Assistant) emit(ctx context.Context, et events.EventType, data any) {
	if err := a.opts.Emitter.Emit(ctx, et, a.opts.SessionID, data); err != nil {
		slog.WarnContext(ctx, "event publish failed",
			slog.String("event_type", string(et)), slog.String("error", err.Error()))
	}
}

func clamp(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return math.Max(lo, math.Min(hi, v))
}
