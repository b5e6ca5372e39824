package engine

// Voice describes a speech persona offered by a synthesis platform.
// Voices are owned by the platform; callers only read and rank them.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"lang"`
	Default  bool   `json:"default"`
}

// Utterance is a single, already clamped request submitted to a platform.
type Utterance struct {
	ID       string
	Text     string
	Language string
	Volume   float64
	Rate     float64
	Pitch    float64

	// Voice is nil when the platform should pick its own default voice
	// for Language.
	Voice *Voice
}

// VoiceName returns the selected voice name or an empty string.
func (u Utterance) VoiceName() string {
	if u.Voice == nil {
		return ""
	}
	return u.Voice.Name
}

// Synthesizer is the host speech platform: a single output queue, a voice
// list that may populate asynchronously, and per-utterance completion.
type Synthesizer interface {
	// Available reports whether the platform can speak at all.
	Available() bool

	// Voices returns the voices known right now. The list may be empty
	// until the platform signals a change.
	Voices() []Voice

	// OnVoicesChanged registers fn to be called whenever the voice list
	// changes. The returned function removes the registration.
	OnVoicesChanged(fn func()) (unsubscribe func())

	// Speak queues u and returns a channel that receives exactly one value:
	// nil on normal completion or a *SynthesisError.
	Speak(u Utterance) <-chan error

	// CancelAll stops the current utterance and drops anything queued.
	// Pending Speak channels resolve with a canceled error.
	CancelAll()

	Close() error
}
