package app

import (
	"fmt"
	"strings"

	"github.com/dhruvmehra/jyotiline/internal/brain"
	"github.com/dhruvmehra/jyotiline/internal/config"
	"github.com/dhruvmehra/jyotiline/internal/speech"
)

type brainSetup struct {
	client   brain.Client
	resolved string
	detail   string
}

// resolveBrain picks the generative backend. Auto prefers Gemini, keeps
// OpenAI as in-band fallback when both keys are present, and refuses to
// silently run keyless: that case still builds, and sessions surface the
// fixed unable-to-connect message.
func resolveBrain(cfg config.Config) (brainSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.BrainProvider))
	hasGemini := strings.TrimSpace(cfg.GeminiAPIKey) != ""
	hasOpenAI := strings.TrimSpace(cfg.OpenAIAPIKey) != ""

	switch mode {
	case "gemini":
		return brainSetup{
			client:   brain.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel),
			resolved: "gemini",
			detail:   cfg.GeminiModel,
		}, nil
	case "openai":
		return brainSetup{
			client:   brain.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel),
			resolved: "openai",
			detail:   cfg.OpenAIModel,
		}, nil
	case "mock":
		return brainSetup{client: brain.NewMockClient(), resolved: "mock", detail: "scripted"}, nil
	case "auto", "":
		switch {
		case hasGemini && hasOpenAI:
			return brainSetup{
				client: brain.NewFallbackClient(
					brain.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel),
					brain.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel),
				),
				resolved: "gemini+openai",
				detail:   fmt.Sprintf("%s with %s fallback", cfg.GeminiModel, cfg.OpenAIModel),
			}, nil
		case hasGemini:
			return brainSetup{
				client:   brain.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel),
				resolved: "gemini",
				detail:   cfg.GeminiModel,
			}, nil
		case hasOpenAI:
			return brainSetup{
				client:   brain.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel),
				resolved: "openai",
				detail:   cfg.OpenAIModel,
			}, nil
		default:
			// Keyless: the Gemini client reports the missing credential on
			// first use and sessions fail with the fixed message.
			return brainSetup{
				client:   brain.NewGeminiClient("", cfg.GeminiModel),
				resolved: "gemini",
				detail:   "no credential configured",
			}, nil
		}
	default:
		return brainSetup{}, fmt.Errorf("unknown BRAIN_PROVIDER %q", cfg.BrainProvider)
	}
}

type speechSetup struct {
	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	resolved    string
}

// resolveSpeech picks recognition and synthesis. Cloud needs both keys;
// auto degrades to the mock pair so the service stays demoable without
// any accounts.
func resolveSpeech(cfg config.Config) (speechSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	hasDeepgram := strings.TrimSpace(cfg.DeepgramAPIKey) != ""
	hasEleven := strings.TrimSpace(cfg.ElevenLabsAPIKey) != ""

	cloud := func() speechSetup {
		return speechSetup{
			recognizer: speech.NewDeepgramRecognizer(speech.DeepgramConfig{
				APIKey:         cfg.DeepgramAPIKey,
				WSBaseURL:      cfg.DeepgramWSBaseURL,
				Model:          cfg.DeepgramModel,
				Language:       cfg.DeepgramLanguage,
				SilenceTimeout: cfg.DeepgramSilenceWindow,
			}),
			synthesizer: speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
				APIKey:       cfg.ElevenLabsAPIKey,
				WSBaseURL:    cfg.ElevenLabsWSBaseURL,
				VoiceID:      cfg.ElevenLabsTTSVoice,
				ModelID:      cfg.ElevenLabsTTSModel,
				OutputFormat: cfg.ElevenLabsTTSOutputFormat,
			}),
			resolved: "cloud",
		}
	}

	mock := func() speechSetup {
		rec := speech.NewMockRecognizer()
		// Let the mock commit a result after a burst of audio so voice
		// calls are exercisable end to end without cloud accounts.
		rec.AutoResultEvery = 25
		synth := speech.NewMockSynthesizer()
		synth.AutoFinish = true
		return speechSetup{recognizer: rec, synthesizer: synth, resolved: "mock"}
	}

	switch mode {
	case "cloud":
		if !hasDeepgram || !hasEleven {
			return speechSetup{}, fmt.Errorf("SPEECH_PROVIDER=cloud requires DEEPGRAM_API_KEY and ELEVENLABS_API_KEY")
		}
		return cloud(), nil
	case "mock":
		return mock(), nil
	case "auto", "":
		if hasDeepgram && hasEleven {
			return cloud(), nil
		}
		return mock(), nil
	default:
		return speechSetup{}, fmt.Errorf("unknown SPEECH_PROVIDER %q", cfg.SpeechProvider)
	}
}
