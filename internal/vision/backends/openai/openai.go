// Package openai describes images through an OpenAI-compatible chat
// completions endpoint.
package openai

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
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

func init() {
	registry.Describers.Register("openai", func(config map[string]string) (describe.Model, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key required (set VISION_API_KEY)")
		}
		return New(config["base_url"], apiKey, config["model"]), nil
	})
}

// Model calls /chat/completions with the frame as an image_url part.
type Model struct {
	apiKey  string
	baseURL string
	model   string
}

// New creates an OpenAI-compatible vision model. Empty values use defaults.
func New(baseURL, apiKey, model string) *Model {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Model{apiKey: apiKey, baseURL: baseURL, model: model}
}

func (m *Model) Name() string { return "openai/" + m.model }

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (m *Model) Generate(ctx context.Context, img describe.Image, prompt string) (string, error) {
	req := chatRequest{
		Model: m.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: img.URI}},
			},
		}},
		ResponseFormat: responseFormat{Type: "json_object"},
		Temperature:    0.2,
	}

	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}

	var resp chatResponse
	if err := restutil.DoJSON(ctx, http.MethodPost, m.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("openai vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai vision: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
