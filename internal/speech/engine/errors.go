package engine

import (
	"errors"
	"fmt"
)

// ErrorCode is a platform-reported synthesis failure code. Values match the
// codes reported by the Web Speech API so browser clients pass them through.
type ErrorCode string

const (
	CodeCanceled             ErrorCode = "canceled"
	CodeInterrupted          ErrorCode = "interrupted"
	CodeAudioBusy            ErrorCode = "audio-busy"
	CodeAudioHardware        ErrorCode = "audio-hardware"
	CodeNetwork              ErrorCode = "network"
	CodeSynthesisFailed      ErrorCode = "synthesis-failed"
	CodeSynthesisUnavailable ErrorCode = "synthesis-unavailable"
	CodeLanguageUnavailable  ErrorCode = "language-unavailable"
	CodeVoiceUnavailable     ErrorCode = "voice-unavailable"
	CodeTextTooLong          ErrorCode = "text-too-long"
	CodeInvalidArgument      ErrorCode = "invalid-argument"
	CodeNotAllowed           ErrorCode = "not-allowed"
	CodeServiceNotAllowed    ErrorCode = "service-not-allowed"
	CodeUnknown              ErrorCode = "unknown"
)

var codeDetails = map[ErrorCode]string{
	CodeCanceled:             "El habla fue cancelada.",
	CodeInterrupted:          "El habla fue interrumpida.",
	CodeAudioBusy:            "El sistema de audio está ocupado.",
	CodeAudioHardware:        "Error de hardware de audio.",
	CodeNetwork:              "Error de red para la síntesis de voz.",
	CodeSynthesisFailed:      "Falló la síntesis.",
	CodeSynthesisUnavailable: "Motor de síntesis no disponible.",
	CodeTextTooLong:          "El texto a sintetizar es demasiado largo.",
	CodeInvalidArgument:      "Argumento inválido proporcionado a la síntesis de voz.",
	CodeNotAllowed:           "Permiso denegado para la síntesis de voz.",
	CodeServiceNotAllowed:    "Servicio de síntesis de voz no permitido (podría ser por políticas del navegador o del sistema).",
	CodeUnknown:              "Ocurrió un error desconocido durante la síntesis de voz.",
}

// ParseErrorCode maps a raw platform code onto the taxonomy. Unrecognised
// or empty codes become CodeUnknown.
func ParseErrorCode(raw string) ErrorCode {
	c := ErrorCode(raw)
	switch c {
	case CodeLanguageUnavailable, CodeVoiceUnavailable:
		return c
	}
	if _, ok := codeDetails[c]; ok {
		return c
	}
	return CodeUnknown
}

// SynthesisError is a typed platform failure with the request context
// needed to diagnose it.
type SynthesisError struct {
	Code     ErrorCode
	Language string
	Voice    string
	Err      error
}

// NewSynthesisError builds a SynthesisError for the given utterance.
func NewSynthesisError(code ErrorCode, u Utterance, cause error) *SynthesisError {
	return &SynthesisError{
		Code:     code,
		Language: u.Language,
		Voice:    u.VoiceName(),
		Err:      cause,
	}
}

func (e *SynthesisError) Error() string {
	voice := e.Voice
	if voice == "" {
		voice = "predeterminada"
	}

	msg := fmt.Sprintf("Error de síntesis de voz: %s.", e.Code)
	switch e.Code {
	case CodeLanguageUnavailable:
		msg += fmt.Sprintf(" El idioma '%s' no está disponible o no es soportado por la voz seleccionada ('%s').", e.Language, voice)
	case CodeVoiceUnavailable:
		msg += fmt.Sprintf(" La voz seleccionada ('%s') para el idioma '%s' no está disponible.", voice, e.Language)
	default:
		detail, ok := codeDetails[e.Code]
		if !ok {
			detail = codeDetails[CodeUnknown]
		}
		msg += " " + detail + fmt.Sprintf(" (idioma '%s', voz '%s')", e.Language, voice)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// CodeOf extracts the taxonomy code from err. It returns an empty code when
// err is nil and CodeUnknown when err carries no SynthesisError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// IsCanceled reports whether err is a cancellation or interruption of a
// superseded utterance.
func IsCanceled(err error) bool {
	code := CodeOf(err)
	return code == CodeCanceled || code == CodeInterrupted
}
