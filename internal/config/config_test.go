package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"BRAIN_PROVIDER",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"SPEECH_PROVIDER",
		"DEEPGRAM_API_KEY",
		"DEEPGRAM_WS_BASE_URL",
		"DEEPGRAM_MODEL",
		"DEEPGRAM_LANGUAGE",
		"DEEPGRAM_SILENCE_WINDOW",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_WS_BASE_URL",
		"ELEVENLABS_TTS_VOICE_ID",
		"ELEVENLABS_TTS_MODEL_ID",
		"ELEVENLABS_TTS_OUTPUT_FORMAT",
		"CALL_CONNECT_DELAY",
		"CALL_SILENCE_RESTART_DELAY",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.MetricsNamespace != "jyotiline" {
		t.Fatalf("MetricsNamespace = %q", cfg.MetricsNamespace)
	}
	if cfg.BrainProvider != "auto" || cfg.SpeechProvider != "auto" {
		t.Fatalf("providers = %q/%q, want auto/auto", cfg.BrainProvider, cfg.SpeechProvider)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.SessionInactivityTimeout != 2*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v", cfg.SessionInactivityTimeout)
	}
	if cfg.CallConnectDelay != 1500*time.Millisecond {
		t.Fatalf("CallConnectDelay = %v", cfg.CallConnectDelay)
	}
	if cfg.CallSilenceRestartDelay != 100*time.Millisecond {
		t.Fatalf("CallSilenceRestartDelay = %v", cfg.CallSilenceRestartDelay)
	}
	if cfg.DeepgramSilenceWindow != 8*time.Second {
		t.Fatalf("DeepgramSilenceWindow = %v", cfg.DeepgramSilenceWindow)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin defaulted true")
	}
	if cfg.ElevenLabsTTSOutputFormat != "pcm_16000" {
		t.Fatalf("ElevenLabsTTSOutputFormat = %q", cfg.ElevenLabsTTSOutputFormat)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "45s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")
	t.Setenv("BRAIN_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "  key-with-padding  ")
	t.Setenv("SPEECH_PROVIDER", "mock")
	t.Setenv("CALL_CONNECT_DELAY", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.SessionInactivityTimeout != 45*time.Second {
		t.Fatalf("SessionInactivityTimeout = %v", cfg.SessionInactivityTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.BrainProvider != "gemini" || cfg.SpeechProvider != "mock" {
		t.Fatalf("providers = %q/%q", cfg.BrainProvider, cfg.SpeechProvider)
	}
	if cfg.GeminiAPIKey != "key-with-padding" {
		t.Fatalf("GeminiAPIKey = %q, want trimmed", cfg.GeminiAPIKey)
	}
	if cfg.CallConnectDelay != 0 {
		t.Fatalf("CallConnectDelay = %v, want 0", cfg.CallConnectDelay)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"BRAIN_PROVIDER", "bard"},
		{"SPEECH_PROVIDER", "local"},
		{"APP_SHUTDOWN_TIMEOUT", "soon"},
		{"APP_SESSION_INACTIVITY_TIMEOUT", "1s"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"CALL_CONNECT_DELAY", "-1s"},
		{"CALL_SILENCE_RESTART_DELAY", "-5ms"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", tc.key, tc.value)
			}
		})
	}
}
