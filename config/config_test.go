package config

import (
	"reflect"
	"testing"
	"time"
)

func TestSubmitDelay(t *testing.T) {
	c := ServiceConfig{SubmitDelayMs: 250}
	if got := c.SubmitDelay(); got != 250*time.Millisecond {
		t.Errorf("SubmitDelay = %v", got)
	}

	c.SubmitDelayMs = 0
	if got := c.SubmitDelay(); got >= 0 {
		t.Errorf("zero delay should disable the pause, got %v", got)
	}
}

func TestOrigins(t *testing.T) {
	c := ServiceConfig{AllowedOrigins: " https://a.example , ,https://b.example"}
	want := []string{"https://a.example", "https://b.example"}
	if got := c.Origins(); !reflect.DeepEqual(got, want) {
		t.Errorf("Origins = %v, want %v", got, want)
	}
	if got := (&ServiceConfig{}).Origins(); got != nil {
		t.Errorf("empty Origins = %v", got)
	}
}

func TestBackendOptions(t *testing.T) {
	c := ServiceConfig{VisionAPIKey: "k", VisionModel: "m", EspeakBinaryPath: "/usr/bin/espeak-ng"}
	if o := c.VisionOptions(); o["api_key"] != "k" || o["model"] != "m" {
		t.Errorf("VisionOptions = %v", o)
	}
	if o := c.SynthOptions(); o["binary_path"] != "/usr/bin/espeak-ng" {
		t.Errorf("SynthOptions = %v", o)
	}
}
