package config

import (
	"strings"
	"time"

	"github.com/pitabwire/frame/config"
)

// ServiceConfig holds configuration for the assistant service.
type ServiceConfig struct {
	config.ConfigurationDefault

	// Speech
	Language           string  `envDefault:"es-419" env:"SPEECH_LANGUAGE"`
	SystemLocale       string  `envDefault:""       env:"SPEECH_SYSTEM_LOCALE"`
	Volume             float64 `envDefault:"1"      env:"SPEECH_VOLUME"`
	Rate               float64 `envDefault:"1"      env:"SPEECH_RATE"`
	Pitch              float64 `envDefault:"1"      env:"SPEECH_PITCH"`
	SubmitDelayMs      int     `envDefault:"100"    env:"SPEECH_SUBMIT_DELAY_MS"`
	VoicesFallbackMs   int     `envDefault:"1000"   env:"SPEECH_VOICES_FALLBACK_MS"`
	SynthBackend       string  `envDefault:"espeak" env:"SYNTH_BACKEND"`
	EspeakBinaryPath   string  `envDefault:""       env:"ESPEAK_BINARY_PATH"`
	EspeakDefaultVoice string  `envDefault:""       env:"ESPEAK_DEFAULT_VOICE"`

	// Vision
	VisionBackend      string `envDefault:"gemini" env:"VISION_BACKEND"`
	VisionAPIKey       string `envDefault:""       env:"VISION_API_KEY"`
	VisionBaseURL      string `envDefault:""       env:"VISION_BASE_URL"`
	VisionModel        string `envDefault:""       env:"VISION_MODEL"`
	DescribeTimeoutSec int    `envDefault:"30"     env:"DESCRIBE_TIMEOUT_SEC"`

	// Phrases
	PhrasesDir    string `envDefault:"./phrases" env:"PHRASES_DIR"`
	PhrasesReload bool   `envDefault:"true"      env:"PHRASES_RELOAD"`

	// Sessions and storage
	HistoryEnabled   bool   `envDefault:"true"  env:"HISTORY_ENABLED"`
	HistoryMemoryMax int    `envDefault:"1000"  env:"HISTORY_MEMORY_MAX"`
	RPCAuthEnabled   bool   `envDefault:"false" env:"RPC_AUTH_ENABLED"`
	AllowedOrigins   string `envDefault:""      env:"WS_ALLOWED_ORIGINS"`

	// Webhooks
	WebhookMaxRetries int `envDefault:"5"   env:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeoutSec int `envDefault:"10"  env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookBackoffSec int `envDefault:"1"   env:"WEBHOOK_BACKOFF_INITIAL_SEC"`
	WebhookBackoffMax int `envDefault:"300" env:"WEBHOOK_BACKOFF_MAX_SEC"`
	CBFailThreshold   int `envDefault:"5"   env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec int `envDefault:"60"  env:"CB_RESET_TIMEOUT_SEC"`
}

// SubmitDelay is the pause between cancelling and submitting an utterance.
// A zero setting disables the pause.
func (c *ServiceConfig) SubmitDelay() time.Duration {
	if c.SubmitDelayMs <= 0 {
		return -1
	}
	return time.Duration(c.SubmitDelayMs) * time.Millisecond
}

// VoicesFallback is how long a catalog waits for a voices-changed signal.
func (c *ServiceConfig) VoicesFallback() time.Duration {
	return time.Duration(c.VoicesFallbackMs) * time.Millisecond
}

// DescribeTimeout bounds a single describer call.
func (c *ServiceConfig) DescribeTimeout() time.Duration {
	if c.DescribeTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.DescribeTimeoutSec) * time.Second
}

// SynthOptions is the backend configuration map for the speech registry.
func (c *ServiceConfig) SynthOptions() map[string]string {
	return map[string]string{
		"binary_path":   c.EspeakBinaryPath,
		"default_voice": c.EspeakDefaultVoice,
	}
}

// VisionOptions is the backend configuration map for the describer registry.
func (c *ServiceConfig) VisionOptions() map[string]string {
	return map[string]string{
		"api_key":  c.VisionAPIKey,
		"base_url": c.VisionBaseURL,
		"model":    c.VisionModel,
	}
}

// Origins returns the allowed WebSocket origins. An empty list allows all.
func (c *ServiceConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
