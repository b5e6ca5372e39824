package registry

import (
	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
)

// Synthesizers is the global speech platform registry.
var Synthesizers = New[engine.Synthesizer]()

// Describers is the global multimodal model registry.
var Describers = New[describe.Model]()
