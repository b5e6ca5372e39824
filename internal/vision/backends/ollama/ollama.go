// Package ollama describes images with a local multimodal model served by
// Ollama.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cheamigo/cheamigo/internal/registry"
	"github.com/cheamigo/cheamigo/internal/vision/backends/restutil"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

func init() {
	registry.Describers.Register("ollama", func(config map[string]string) (describe.Model, error) {
		return New(config["base_url"], config["model"]), nil
	})
}

// Model calls /api/generate with the frame in the images field.
type Model struct {
	baseURL string
	model   string
}

// New creates an Ollama vision model. Empty values use defaults.
func New(baseURL, model string) *Model {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Model{baseURL: baseURL, model: model}
}

func (m *Model) Name() string { return "ollama/" + m.model }

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Images  []string `json:"images"`
	Format  string   `json:"format"`
	Stream  bool     `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (m *Model) Generate(ctx context.Context, img describe.Image, prompt string) (string, error) {
	req := generateRequest{
		Model:  m.model,
		Prompt: prompt,
		Images: []string{img.Base64()},
		Format: "json",
	}
	req.Options.Temperature = 0.2

	var resp generateResponse
	if err := restutil.DoJSON(ctx, http.MethodPost, m.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama vision: %w", err)
	}
	if resp.Error != "" {
		return "", errors.New("ollama vision: " + resp.Error)
	}
	return resp.Response, nil
}
