// Package gemini describes images with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/cheamigo/cheamigo/internal/registry"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

func init() {
	registry.Describers.Register("gemini", func(config map[string]string) (describe.Model, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key required (set VISION_API_KEY)")
		}
		return New(context.Background(), apiKey, config["model"])
	})
}

// Model is a Gemini vision model constrained to answer with a JSON
// description.
type Model struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// New connects to the Gemini API.
func New(ctx context.Context, apiKey, name string) (*Model, error) {
	if name == "" {
		name = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(name)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = DescriptionSchema()

	return &Model{client: client, model: model, name: name}, nil
}

// DescriptionSchema is the structured output schema for describe.Description.
func DescriptionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"objectDescription": {
				Type:        genai.TypeString,
				Description: "Description of what is detected in the image in Latin American Spanish. Never empty.",
			},
		},
		Required: []string{"objectDescription"},
	}
}

func (m *Model) Name() string { return "gemini/" + m.name }

func (m *Model) Generate(ctx context.Context, img describe.Image, prompt string) (string, error) {
	resp, err := m.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// Close releases the client connection.
func (m *Model) Close() error {
	return m.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}
