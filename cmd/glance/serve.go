package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-glance/internal/config"
	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/activity"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/hub"
	"github.com/teslashibe/go-glance/pkg/idle"
	"github.com/teslashibe/go-glance/pkg/inference"
	"github.com/teslashibe/go-glance/pkg/location"
	"github.com/teslashibe/go-glance/pkg/narration"
	"github.com/teslashibe/go-glance/pkg/photo"
	"github.com/teslashibe/go-glance/pkg/prefs"
	"github.com/teslashibe/go-glance/pkg/session"
	"github.com/teslashibe/go-glance/pkg/tts"
	"github.com/teslashibe/go-glance/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the device hub and web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := log.Init(cfg.LogLevel)
	logger.Info("starting glance", "version", version, "port", cfg.Port, "speech_mode", cfg.Speech.Mode)

	store, err := prefs.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer store.Close()

	events := hub.New(logger)
	go events.Run(ctx)
	publisher := hub.NewEvents(events)

	llm, err := newLLM(cfg, logger)
	if err != nil {
		return err
	}
	defer llm.Close()
	if !llm.Configured() {
		logger.Warn("no LLM API key set, city and nearby narration disabled")
	}

	prompts, err := narration.LoadPrompts(cfg.Narration.PromptDir)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	registry := session.NewRegistry()
	tracker := activity.NewTracker()
	guards := idle.NewGuards()
	photos := photo.NewStore()

	speakerOpts := []session.SpeakerOption{session.WithSpeakerLogger(logger)}
	var clips *tts.ClipCache
	if cfg.Speech.Mode == config.SpeechModeServer {
		synth, err := tts.NewOpenAI(
			tts.WithAPIKey(cfg.Speech.APIKey),
			tts.WithVoice(cfg.Speech.Voice),
			tts.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("server speech unavailable, using device speech", "error", err)
		} else {
			defer synth.Close()
			clips = tts.NewClipCache(0)
			speakerOpts = append(speakerOpts, session.WithServerSpeech(synth, clips, cfg.BaseURL()+"/api/audio"))
		}
	}
	speaker := session.NewSpeaker(registry, tracker, guards, speakerOpts...)

	geocoder := location.NewNominatim(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent)
	orch := session.NewOrchestrator(session.Deps{
		Registry: registry,
		Tracker:  tracker,
		Guards:   guards,
		History:  narration.NewHistory(cfg.Narration.ResponseWindow),
		Resolver: location.NewResolver(geocoder,
			location.WithTTL(cfg.Narration.LocationTTL),
			location.WithLogger(logger)),
		Narrator: narration.NewProvider(llm, prompts,
			narration.WithMaxTokens(cfg.LLM.MaxTokens),
			narration.WithLogger(logger)),
		Capturer: photo.NewCapturer(photos, publisher, logger),
		Photos:   photos,
		Analyzer: photo.NewAnalyzer(photo.AnalyzerConfig{
			BaseURL:          cfg.Analysis.BaseURL,
			APIKey:           cfg.Analysis.APIKey,
			PersonaVersionID: cfg.Analysis.PersonaVersionID,
		}, logger),
		Speaker:  speaker,
		Notifier: publisher,
		Logger:   logger,
	}, session.Config{
		IdleTick:           cfg.Narration.IdleTick,
		IdleThreshold:      cfg.Narration.IdleThreshold,
		WelcomeDelay:       cfg.Narration.WelcomeDelay,
		CityDelay:          cfg.Narration.CityDelay,
		ClearHistoryOnStop: cfg.Narration.HistoryScope == config.HistoryScopeSession,
	})

	devices := device.NewHub(device.WithLogger(logger))
	devices.OnConnect(func(s device.Session) { orch.Start(ctx, s) })
	devices.OnDisconnect(orch.Stop)

	srv := web.NewServer(web.Config{
		Port:      cfg.Port,
		StaticDir: cfg.StaticDir,
		Debug:     log.ParseLevel(cfg.LogLevel) <= slog.LevelDebug,
	}, web.Deps{
		Events:   events,
		Registry: registry,
		Speaker:  speaker,
		Photos:   photos,
		Prefs:    store,
		Clips:    clips,
		Devices:  devices,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		orch.StopAll()
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	orch.StopAll()

	done := make(chan error, 1)
	go func() { done <- srv.Shutdown() }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("web server shutdown", "error", err)
		}
	case <-time.After(5 * time.Second):
		logger.Warn("web server shutdown timed out")
	}
	return nil
}

func newLLM(cfg config.Config, logger *slog.Logger) (inference.Provider, error) {
	opts := []inference.Option{
		inference.WithBaseURL(cfg.LLM.BaseURL),
		inference.WithAPIKey(cfg.LLM.APIKey),
		inference.WithModel(cfg.LLM.Model),
		inference.WithMaxTokens(cfg.LLM.MaxTokens),
		// A failed narration is retried by the next idle tick.
		inference.WithRetry(0, 0),
		inference.WithLogger(logger),
	}
	if cfg.LLM.Provider == "sdk" {
		return inference.NewSDKClient(opts...)
	}
	return inference.NewClient(opts...)
}
