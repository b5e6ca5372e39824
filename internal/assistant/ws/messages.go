package ws

import (
	"github.com/cheamigo/cheamigo/internal/assistant"
	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

// Client message types.
const (
	TypeHello          = "hello"
	TypeVoices         = "voices"
	TypeUtteranceEnd   = "utterance_end"
	TypeUtteranceError = "utterance_error"
	TypeCamera         = "camera"
	TypeDetect         = "detect"
	TypeSettings       = "settings"
)

// Server message types. The browser bridge adds "speak" and "cancel".
const (
	TypeWelcome = "welcome"
	TypeStatus  = "status"
	TypeResult  = "result"
	TypeNotice  = "notice"
	TypeError   = "error"
)

// ClientMessage is any message a browser sends. Fields are populated per
// Type.
type ClientMessage struct {
	Type string `json:"type"`

	// hello
	Speech bool   `json:"speech,omitempty"`
	Locale string `json:"locale,omitempty"`

	// hello, voices
	Voices []engine.Voice `json:"voices,omitempty"`

	// utterance_end, utterance_error
	ID string `json:"id,omitempty"`

	// utterance_error, camera
	Error string `json:"error,omitempty"`

	// camera
	Ready bool `json:"ready,omitempty"`

	// detect
	PhotoDataURI string `json:"photoDataUri,omitempty"`

	// settings; absent values keep the current setting.
	Volume *float64 `json:"volume,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
}

type welcomeMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type statusMessage struct {
	Type   string           `json:"type"`
	Status assistant.Status `json:"status"`
}

type resultMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Suppressed  bool   `json:"suppressed"`
	SpeechError string `json:"speechError,omitempty"`
}

type noticeMessage struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Variant string `json:"variant"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
