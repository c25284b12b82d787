// Package app assembles the service from its parts.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/config"
	"github.com/dhruvmehra/jyotiline/internal/consult"
	"github.com/dhruvmehra/jyotiline/internal/history"
	"github.com/dhruvmehra/jyotiline/internal/httpapi"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/playback"
	"github.com/dhruvmehra/jyotiline/internal/pooja"
	"github.com/dhruvmehra/jyotiline/internal/session"
)

// Info summarizes what the build resolved, for the startup log line.
type Info struct {
	BrainProvider  string
	BrainDetail    string
	SpeechProvider string
	HistoryBackend string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Player   *playback.Controller
	Metrics  *observability.Metrics
	Info     Info

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	cat := catalog.New()

	store, backend, err := buildHistory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	brainSetup, err := resolveBrain(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	speechSetup, err := resolveSpeech(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	element := playback.NewRemoteElement()
	player := playback.NewController(element, metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	guard := consult.NewResourceGuard()

	api := httpapi.New(cfg, httpapi.Deps{
		Catalog:  cat,
		Sessions: sessions,
		Metrics:  metrics,
		Player:   player,
		Element:  element,
		Pooja:    pooja.NewService(cat, player, metrics),
		Voice: consult.VoiceDeps{
			Brain:       brainSetup.client,
			Recognizer:  speechSetup.recognizer,
			Synthesizer: speechSetup.synthesizer,
			Guard:       guard,
			History:     store,
			Metrics:     metrics,
		},
		Chat: consult.ChatDeps{
			Brain:   brainSetup.client,
			History: store,
			Metrics: metrics,
		},
		VoiceCfg: consult.VoiceConfig{
			ConnectDelay:        cfg.CallConnectDelay,
			SilenceRestartDelay: cfg.CallSilenceRestartDelay,
		},
	})

	cleanup := func() error {
		player.Shutdown()
		if err := store.Close(); err != nil {
			return err
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Player:   player,
		Metrics:  metrics,
		Info: Info{
			BrainProvider:  brainSetup.resolved,
			BrainDetail:    brainSetup.detail,
			SpeechProvider: speechSetup.resolved,
			HistoryBackend: backend,
		},
		Cleanup: cleanup,
	}, nil
}

func buildHistory(ctx context.Context, cfg config.Config) (history.Store, string, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return history.NoopStore{}, "none", nil
	}
	store, err := history.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, "postgres", nil
}
