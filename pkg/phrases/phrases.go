// Package phrases holds the user-facing texts the assistant speaks and
// shows, one set per language.
package phrases

import "strings"

// Set is the phrase set for one language.
type Set struct {
	Language      string `yaml:"language"`
	AssistantName string `yaml:"assistant_name"`

	// Greeting is spoken when the camera becomes ready. "{name}" is
	// replaced with AssistantName.
	Greeting            string `yaml:"greeting"`
	CameraError         string `yaml:"camera_error"`
	DescribePrompt      string `yaml:"describe_prompt"`
	FallbackDescription string `yaml:"fallback_description"`

	Notices Notices `yaml:"notices"`
}

// Notices are toast titles and message templates. Templates use a single
// %s verb for the error detail.
type Notices struct {
	AudioErrorTitle     string `yaml:"audio_error_title"`
	AudioErrorMessage   string `yaml:"audio_error_message"`
	DetectionErrorTitle string `yaml:"detection_error_title"`
	DetectionError      string `yaml:"detection_error"`
	EmptyDescription    string `yaml:"empty_description"`
	CameraErrorTitle    string `yaml:"camera_error_title"`
}

// Default returns the built-in Latin American Spanish set.
func Default() Set {
	return Set{
		Language:            "es-419",
		AssistantName:       "Che Amigo",
		Greeting:            "Hola, soy {name}. Para saber qué hay enfrente, presiona el botón grande que se encuentra en la parte central de la pantalla.",
		CameraError:         "Error al acceder a la cámara. Por favor, verifica los permisos e intenta recargar la página.",
		FallbackDescription: "No se pudo obtener una descripción de la imagen.",
		Notices: Notices{
			AudioErrorTitle:     "Error de Audio",
			AudioErrorMessage:   "No se pudo reproducir el audio: %s",
			DetectionErrorTitle: "Error de Detección",
			DetectionError:      "Error en detección: %s.",
			EmptyDescription:    "No se pudo obtener una descripción.",
			CameraErrorTitle:    "Error de Cámara",
		},
	}
}

// GreetingText returns the greeting with the assistant name filled in.
func (s Set) GreetingText() string {
	return strings.ReplaceAll(s.Greeting, "{name}", s.AssistantName)
}

// merge fills empty fields of s from def.
func (s Set) merge(def Set) Set {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&s.Language, def.Language)
	fill(&s.AssistantName, def.AssistantName)
	fill(&s.Greeting, def.Greeting)
	fill(&s.CameraError, def.CameraError)
	fill(&s.DescribePrompt, def.DescribePrompt)
	fill(&s.FallbackDescription, def.FallbackDescription)
	fill(&s.Notices.AudioErrorTitle, def.Notices.AudioErrorTitle)
	fill(&s.Notices.AudioErrorMessage, def.Notices.AudioErrorMessage)
	fill(&s.Notices.DetectionErrorTitle, def.Notices.DetectionErrorTitle)
	fill(&s.Notices.DetectionError, def.Notices.DetectionError)
	fill(&s.Notices.EmptyDescription, def.Notices.EmptyDescription)
	fill(&s.Notices.CameraErrorTitle, def.Notices.CameraErrorTitle)
	return s
}
