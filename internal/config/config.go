package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the consultation service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// BrainProvider picks the generative backend: auto, gemini, openai or
	// mock. Auto prefers Gemini and falls back to OpenAI.
	BrainProvider string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string

	// SpeechProvider picks recognition and synthesis: auto, cloud or mock.
	SpeechProvider string

	DeepgramAPIKey    string
	DeepgramWSBaseURL string
	DeepgramModel     string
	DeepgramLanguage  string
	// DeepgramSilenceWindow ends an activation that heard nothing, so the
	// capture loop can restart it.
	DeepgramSilenceWindow time.Duration

	ElevenLabsAPIKey          string
	ElevenLabsWSBaseURL       string
	ElevenLabsTTSVoice        string
	ElevenLabsTTSModel        string
	ElevenLabsTTSOutputFormat string

	// CallConnectDelay is the pause before the brain channel opens,
	// preserving the "connecting" beat of the call screen.
	CallConnectDelay time.Duration
	// CallSilenceRestartDelay spaces capture restarts during silence.
	CallSilenceRestartDelay time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "jyotiline"),
		AllowAnyOrigin:      false,
		BrainProvider:       envOrDefault("BRAIN_PROVIDER", "auto"),
		GeminiAPIKey:        trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:         envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:        trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		SpeechProvider:      envOrDefault("SPEECH_PROVIDER", "auto"),
		DeepgramAPIKey:      trimmedEnv("DEEPGRAM_API_KEY"),
		DeepgramWSBaseURL:   envOrDefault("DEEPGRAM_WS_BASE_URL", "wss://api.deepgram.com"),
		DeepgramModel:       envOrDefault("DEEPGRAM_MODEL", "nova-2-general"),
		DeepgramLanguage:    envOrDefault("DEEPGRAM_LANGUAGE", "en-IN"),
		ElevenLabsAPIKey:    trimmedEnv("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		// Warm multilingual premade voice suited to Hinglish consultations.
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		// Low-latency PCM so chunks can be relayed to the client as they land.
		ElevenLabsTTSOutputFormat: envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "pcm_16000"),
		DatabaseURL:               trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:           15 * time.Second,
		SessionInactivityTimeout:  2 * time.Minute,
		DeepgramSilenceWindow:     8 * time.Second,
		CallConnectDelay:          1500 * time.Millisecond,
		CallSilenceRestartDelay:   100 * time.Millisecond,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DeepgramSilenceWindow, err = durationFromEnv("DEEPGRAM_SILENCE_WINDOW", cfg.DeepgramSilenceWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.CallConnectDelay, err = durationFromEnv("CALL_CONNECT_DELAY", cfg.CallConnectDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.CallSilenceRestartDelay, err = durationFromEnv("CALL_SILENCE_RESTART_DELAY", cfg.CallSilenceRestartDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch cfg.BrainProvider {
	case "auto", "gemini", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("BRAIN_PROVIDER must be auto, gemini, openai or mock")
	}
	switch cfg.SpeechProvider {
	case "auto", "cloud", "mock":
	default:
		return Config{}, fmt.Errorf("SPEECH_PROVIDER must be auto, cloud or mock")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.CallConnectDelay < 0 {
		return Config{}, fmt.Errorf("CALL_CONNECT_DELAY must not be negative")
	}
	if cfg.CallSilenceRestartDelay < 0 {
		return Config{}, fmt.Errorf("CALL_SILENCE_RESTART_DELAY must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
