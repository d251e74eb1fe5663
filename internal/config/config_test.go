package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("PUBLIC_BASE_URL", "https://bot.example.com/")
	t.Setenv("SOURCE_NUMBERS", "+15550001, +15550002")
}

func TestLoad_DefaultsAndRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("CEREBRAS_MODEL_ID", "")
	t.Setenv("TTS_PROVIDER", "")
	t.Setenv("DIAL_CONCURRENCY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress != ":8080" {
		t.Errorf("http address = %q", cfg.HTTPAddress)
	}
	if cfg.PublicBaseURL != "https://bot.example.com" {
		t.Errorf("base url not trimmed: %q", cfg.PublicBaseURL)
	}
	if len(cfg.SourceNumbers) != 2 || cfg.SourceNumbers[1] != "+15550002" {
		t.Errorf("source numbers = %v", cfg.SourceNumbers)
	}
	if cfg.DialConcurrency != 10 {
		t.Errorf("dial concurrency = %d", cfg.DialConcurrency)
	}
	if cfg.CerebrasModelID == "" {
		t.Errorf("expected default cerebras model id")
	}
	if cfg.TTSProvider != "deepgram" {
		t.Errorf("tts provider = %q", cfg.TTSProvider)
	}
	if cfg.SilenceDebounce != 700*time.Millisecond {
		t.Errorf("silence debounce = %v", cfg.SilenceDebounce)
	}
	if !cfg.AllowInterruptions {
		t.Errorf("interruptions should default on")
	}
}

func TestLoad_MissingTwilioCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without auth token")
	}
}

func TestLoad_MissingSources(t *testing.T) {
	setRequired(t)
	t.Setenv("SOURCE_NUMBERS", " , ")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without source numbers")
	}
}

func TestLoad_BadTTSProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("TTS_PROVIDER", "espeak")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown tts provider")
	}
}

func TestLoad_OverridesParsed(t *testing.T) {
	setRequired(t)
	t.Setenv("DIAL_CONCURRENCY", "4")
	t.Setenv("SILENCE_DEBOUNCE_MS", "250")
	t.Setenv("ALLOW_INTERRUPTIONS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DialConcurrency != 4 {
		t.Errorf("dial concurrency = %d", cfg.DialConcurrency)
	}
	if cfg.SilenceDebounce != 250*time.Millisecond {
		t.Errorf("silence debounce = %v", cfg.SilenceDebounce)
	}
	if cfg.AllowInterruptions {
		t.Errorf("interruptions should be off")
	}
}
