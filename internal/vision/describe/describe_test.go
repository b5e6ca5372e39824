package describe

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubModel struct {
	text   string
	err    error
	got    Image
	prompt string
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Generate(_ context.Context, img Image, prompt string) (string, error) {
	m.got = img
	m.prompt = prompt
	return m.text, m.err
}

const photo = "data:image/jpeg;base64,/9j/4AAQ"

func TestParseDataURI(t *testing.T) {
	img, err := ParseDataURI(photo)
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", img.MIMEType)
	}
	if len(img.Data) != 6 || img.Data[0] != 0xff || img.Data[1] != 0xd8 {
		t.Errorf("data = %x", img.Data)
	}
	if img.Base64() != "/9j/4AAQ" {
		t.Errorf("Base64 = %q", img.Base64())
	}
}

func TestParseDataURIInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"http://example.com/a.jpg",
		"data:image/jpeg;base64",
		"data:image/jpeg,AAAA",
		"data:;base64,AAAA",
		"data:image/jpeg;base64,",
		"data:image/jpeg;base64,@@@",
	} {
		if _, err := ParseDataURI(uri); !errors.Is(err, ErrInvalidDataURI) {
			t.Errorf("ParseDataURI(%q) err = %v, want ErrInvalidDataURI", uri, err)
		}
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"json", `{"objectDescription": "Una taza roja."}`, "Una taza roja."},
		{"fenced json", "```json\n{\"objectDescription\": \"Una silla.\"}\n```", "Una silla."},
		{"prose", "  Veo una mesa de madera. ", "Veo una mesa de madera."},
		{"empty", "", FallbackDescription},
		{"empty field", `{"objectDescription": ""}`, FallbackDescription},
		{"broken json", `{"objectDescription": `, FallbackDescription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseOutput(tt.text).ObjectDescription; got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlowDescribe(t *testing.T) {
	m := &stubModel{text: `{"objectDescription": "Un gato negro."}`}
	f := NewFlow(m, "")

	d, err := f.Describe(context.Background(), photo)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.ObjectDescription != "Un gato negro." {
		t.Errorf("description = %q", d.ObjectDescription)
	}
	if m.prompt != Prompt {
		t.Error("default prompt not used")
	}
	if m.got.MIMEType != "image/jpeg" {
		t.Errorf("model got mime %q", m.got.MIMEType)
	}
}

func TestFlowRejectsInvalidPhoto(t *testing.T) {
	m := &stubModel{}
	f := NewFlow(m, "")

	if _, err := f.Describe(context.Background(), "not a uri"); !errors.Is(err, ErrInvalidDataURI) {
		t.Fatalf("err = %v, want ErrInvalidDataURI", err)
	}
	if m.prompt != "" {
		t.Error("model must not be called for an invalid photo")
	}
}

func TestFlowModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	f := NewFlow(&stubModel{err: boom}, "describe")

	if _, err := f.Describe(context.Background(), photo); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped model error", err)
	}
}

type blockingModel struct{}

func (blockingModel) Name() string { return "blocking" }

func (blockingModel) Generate(ctx context.Context, _ Image, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestFlowTimeout(t *testing.T) {
	f := NewFlow(blockingModel{}, "")
	f.Timeout = 10 * time.Millisecond

	_, err := f.Describe(context.Background(), photo)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestFlowTextsFollowReload(t *testing.T) {
	m := &stubModel{text: "```json\n{\"objectDescription\": \"\"}\n```"}
	texts := Texts{Prompt: "describe en español", Fallback: "Sin descripción."}
	f := NewFlowWithTexts(m, func() Texts { return texts })

	d, err := f.Describe(context.Background(), photo)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.ObjectDescription != "Sin descripción." || m.prompt != "describe en español" {
		t.Errorf("description = %q, prompt = %q", d.ObjectDescription, m.prompt)
	}

	texts = Texts{Prompt: "otra instrucción", Fallback: "Nada que ver."}
	d, _ = f.Describe(context.Background(), photo)
	if d.ObjectDescription != "Nada que ver." || m.prompt != "otra instrucción" {
		t.Errorf("after reload: description = %q, prompt = %q", d.ObjectDescription, m.prompt)
	}

	texts = Texts{}
	d, _ = f.Describe(context.Background(), photo)
	if d.ObjectDescription != FallbackDescription || m.prompt != Prompt {
		t.Errorf("empty texts should use the defaults, got %q", d.ObjectDescription)
	}
}
