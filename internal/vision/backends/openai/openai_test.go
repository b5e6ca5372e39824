package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheamigo/cheamigo/internal/vision/describe"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		parts := req.Messages[0].Content
		if len(parts) != 2 || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,AAAA" {
			t.Errorf("content = %+v", parts)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response format = %q", req.ResponseFormat.Type)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"objectDescription\":\"Una planta.\"}"}}]}`))
	}))
	defer srv.Close()

	img, err := describe.ParseDataURI("data:image/png;base64,AAAA")
	if err != nil {
		t.Fatal(err)
	}
	m := New(srv.URL, "secret", "")
	text, err := m.Generate(context.Background(), img, "describe")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := describe.ParseOutput(text).ObjectDescription; got != "Una planta." {
		t.Errorf("description = %q", got)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	img, _ := describe.ParseDataURI("data:image/png;base64,AAAA")
	if _, err := New(srv.URL, "k", "m").Generate(context.Background(), img, "p"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
