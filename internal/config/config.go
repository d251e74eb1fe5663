package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSystemPrompt = "You are a friendly phone assistant. Your output will be " +
	"converted to audio, so avoid special characters and keep answers short and conversational."

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	PublicBaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	SourceNumbers    []string
	DialConcurrency  int

	AssemblyAIKey     string
	CerebrasKey       string
	CerebrasModelID   string
	DeepgramKey       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	TTSProvider       string // "deepgram" or "elevenlabs"

	SystemPrompt       string
	SilenceDebounce    time.Duration
	AllowInterruptions bool

	CallLogPath   string
	RecordingsDir string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string
}

// Load reads environment variables (and a .env file when present) and
// validates the credentials the telephony leg cannot run without. Speech and
// LLM keys only warn: a partially configured instance still serves health
// checks and webhooks.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	cfg := Config{
		HTTPAddress:            getEnv("HTTP_ADDRESS", ":8080"),
		PublicBaseURL:          strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		TwilioAccountSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		SourceNumbers:          splitList(os.Getenv("SOURCE_NUMBERS")),
		DialConcurrency:        getEnvInt("DIAL_CONCURRENCY", 10),
		AssemblyAIKey:          os.Getenv("ASSEMBLYAI_API_KEY"),
		CerebrasKey:            os.Getenv("CEREBRAS_API_KEY"),
		CerebrasModelID:        getEnv("CEREBRAS_MODEL_ID", "gpt-oss-120b"),
		DeepgramKey:            os.Getenv("DEEPGRAM_API_KEY"),
		ElevenLabsKey:          os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:      os.Getenv("ELEVENLABS_VOICE_ID"),
		TTSProvider:            getEnv("TTS_PROVIDER", "deepgram"),
		SystemPrompt:           getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
		SilenceDebounce:        time.Duration(getEnvInt("SILENCE_DEBOUNCE_MS", 700)) * time.Millisecond,
		AllowInterruptions:     getEnv("ALLOW_INTERRUPTIONS", "true") != "false",
		CallLogPath:            getEnv("CALL_LOG_PATH", "call_log.csv"),
		RecordingsDir:          getEnv("RECORDINGS_DIR", "recordings"),
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:         getEnv("SUPABASE_BUCKET", "voice-recording"),
	}

	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if cfg.PublicBaseURL == "" {
		return Config{}, fmt.Errorf("PUBLIC_BASE_URL is required for carrier webhooks")
	}
	if len(cfg.SourceNumbers) == 0 {
		return Config{}, fmt.Errorf("SOURCE_NUMBERS is required (comma-separated caller IDs)")
	}
	switch cfg.TTSProvider {
	case "deepgram", "elevenlabs":
	default:
		return Config{}, fmt.Errorf("TTS_PROVIDER must be deepgram or elevenlabs, got %q", cfg.TTSProvider)
	}

	if cfg.AssemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}
	if cfg.CerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - LLM will not work")
	}
	if cfg.TTSProvider == "deepgram" && cfg.DeepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}
	if cfg.TTSProvider == "elevenlabs" && cfg.ElevenLabsKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - TTS will not work")
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceRoleKey == "" {
		log.Println("Warning: Supabase not configured - recordings stay local only")
	}

	log.Printf("config: HTTP_ADDRESS=%s base=%s sources=%d tts=%s",
		cfg.HTTPAddress, cfg.PublicBaseURL, len(cfg.SourceNumbers), cfg.TTSProvider)
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: %s=%q is not a positive integer, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
