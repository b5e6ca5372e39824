// Package describe turns camera frames into spoken-language descriptions
// using a pluggable multimodal model.
package describe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FallbackDescription is returned when the model answers with nothing usable.
const FallbackDescription = "No se pudo obtener una descripción de la imagen."

// Prompt is the instruction sent with every frame.
const Prompt = `You are an AI assistant that analyzes images and describes what it sees in Latin American Spanish.
Your task is to describe the contents of the image provided.
- If you clearly identify one or more objects, list them and provide a brief description in Latin American Spanish.
- If the image is blurry, dark, or if you cannot confidently identify any specific objects, state that you cannot make out clear objects but describe any general shapes, colors, or textures you perceive, in Latin American Spanish. For example: "La imagen es un poco borrosa, pero parece haber una forma oscura en el centro." or "No logro distinguir objetos específicos, se ve mayormente una superficie azul."
- If the image appears to be empty or of a uniform surface (e.g., a wall, the sky with no distinct features), describe that. For example: "La imagen muestra una superficie blanca uniforme."
Always answer in Latin American Spanish with a JSON object of the form {"objectDescription": "..."} and never leave objectDescription empty.`

// Description is the structured model answer.
type Description struct {
	ObjectDescription string `json:"objectDescription"`
}

// Describer describes a photo given as a data URI.
type Describer interface {
	Describe(ctx context.Context, photoDataURI string) (Description, error)
}

// Model is a multimodal backend. It returns the raw model text, which is
// expected to be a JSON Description but may be plain prose.
type Model interface {
	Generate(ctx context.Context, img Image, prompt string) (string, error)
	Name() string
}

// Texts are the language-dependent strings a Flow uses.
type Texts struct {
	Prompt   string
	Fallback string
}

// Flow validates the photo, queries the model and normalizes the answer.
type Flow struct {
	model Model
	texts func() Texts

	// Timeout bounds each model call. Zero means no bound.
	Timeout time.Duration
}

// NewFlow creates a Flow over model. An empty prompt uses Prompt.
func NewFlow(model Model, prompt string) *Flow {
	return NewFlowWithTexts(model, func() Texts { return Texts{Prompt: prompt} })
}

// NewFlowWithTexts creates a Flow that asks texts for the prompt and the
// fallback on every call, so reloaded phrases apply to the next frame.
// Empty fields use Prompt and FallbackDescription.
func NewFlowWithTexts(model Model, texts func() Texts) *Flow {
	return &Flow{model: model, texts: texts}
}

// Describe returns the model's description of the photo. Empty or
// unparseable answers become the fallback text.
func (f *Flow) Describe(ctx context.Context, photoDataURI string) (Description, error) {
	img, err := ParseDataURI(photoDataURI)
	if err != nil {
		return Description{}, err
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	t := f.texts()
	if t.Prompt == "" {
		t.Prompt = Prompt
	}

	start := time.Now()
	text, err := f.model.Generate(ctx, img, t.Prompt)
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", f.model.Name(), err)
	}

	desc := parseOutput(text, t.Fallback)
	slog.DebugContext(ctx, "image described",
		slog.String("model", f.model.Name()),
		slog.String("mime", img.MIMEType),
		slog.Int("bytes", len(img.Data)),
		slog.Duration("latency", time.Since(start)),
	)
	return desc, nil
}

// ParseOutput extracts the description from a model answer. JSON answers,
// optionally wrapped in a markdown code fence, are decoded; anything else is
// taken as prose.
func ParseOutput(text string) Description {
	return parseOutput(text, "")
}

func parseOutput(text, fallback string) Description {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		var d Description
		if err := json.Unmarshal([]byte(text), &d); err == nil {
			text = strings.TrimSpace(d.ObjectDescription)
		} else {
			text = ""
		}
	}
	if text == "" {
		if fallback == "" {
			fallback = FallbackDescription
		}
		return Description{ObjectDescription: fallback}
	}
	return Description{ObjectDescription: text}
}
