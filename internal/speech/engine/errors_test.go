package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseErrorCode(t *testing.T) {
	tests := []struct {
		raw  string
		want ErrorCode
	}{
		{"canceled", CodeCanceled},
		{"interrupted", CodeInterrupted},
		{"audio-busy", CodeAudioBusy},
		{"language-unavailable", CodeLanguageUnavailable},
		{"voice-unavailable", CodeVoiceUnavailable},
		{"not-allowed", CodeNotAllowed},
		{"", CodeUnknown},
		{"something-new", CodeUnknown},
	}

	for _, tt := range tests {
		if got := ParseErrorCode(tt.raw); got != tt.want {
			t.Errorf("ParseErrorCode(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSynthesisErrorMessageCarriesContext(t *testing.T) {
	u := Utterance{Language: "es-419", Voice: &Voice{Name: "Paulina", Language: "es-MX"}}

	for _, code := range []ErrorCode{CodeNetwork, CodeLanguageUnavailable, CodeVoiceUnavailable, CodeUnknown} {
		err := NewSynthesisError(code, u, nil)
		msg := err.Error()
		if !strings.Contains(msg, string(code)) {
			t.Errorf("%s: message %q lacks code", code, msg)
		}
		if !strings.Contains(msg, "es-419") {
			t.Errorf("%s: message %q lacks language tag", code, msg)
		}
		if !strings.Contains(msg, "Paulina") {
			t.Errorf("%s: message %q lacks voice name", code, msg)
		}
	}
}

func TestSynthesisErrorWithoutVoice(t *testing.T) {
	err := NewSynthesisError(CodeSynthesisFailed, Utterance{Language: "es-419"}, nil)
	if !strings.Contains(err.Error(), "predeterminada") {
		t.Errorf("message %q should mention the default voice", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	se := NewSynthesisError(CodeCanceled, Utterance{}, nil)
	wrapped := fmt.Errorf("speak: %w", se)

	if got := CodeOf(wrapped); got != CodeCanceled {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, CodeCanceled)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Errorf("CodeOf(plain) = %q, want %q", got, CodeUnknown)
	}
	if !IsCanceled(wrapped) {
		t.Error("IsCanceled should be true for a wrapped canceled error")
	}
}

func TestSynthesisErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewSynthesisError(CodeSynthesisFailed, Utterance{}, cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}
