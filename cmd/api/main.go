package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/pipeline"
	"server/internal/providers/genai"
	"server/internal/providers/speech"
	"server/internal/providers/story"
	"server/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	storyRepo := repo.NewStoryRepo(runner)

	gemini, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	generator, err := story.NewGenerator(story.Options{
		Client:        gemini,
		PrimaryModel:  cfg.GeminiTextModel,
		FallbackModel: cfg.GeminiTextFallback,
		Retry: infra.RetryPolicy{
			MaxAttempts: cfg.AIMaxAttempts,
			BaseDelay:   cfg.AIBaseRetryDelay,
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build story generator")
	}

	synthesizer, err := speech.NewSynthesizer(speech.Options{
		Client: gemini,
		Model:  cfg.GeminiTTSModel,
		Voice:  cfg.GeminiTTSVoice,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build speech synthesizer")
	}

	store, err := storage.New(storage.Options{
		Provider:       cfg.StorageProvider,
		BasePath:       cfg.StoragePath,
		BaseURL:        cfg.StorageBaseURL,
		SupabaseURL:    cfg.SupabaseURL,
		SupabaseKey:    cfg.SupabaseKey,
		SupabaseBucket: cfg.SupabaseBucket,
		SQL:            runner,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build audio store")
	}
	logger.Info().Str("provider", store.ProviderName()).Msg("audio store ready")

	notifier := notify.NewSendgrid(notify.SendgridOptions{
		APIKey:            cfg.SendgridAPIKey,
		FromEmail:         cfg.SendgridFromEmail,
		AdminEmail:        cfg.AdminEmail,
		SendSuccessEmails: cfg.SendSuccessEmails,
		Logger:            &logger,
	})

	orchestrator, err := pipeline.NewOrchestrator(pipeline.Options{
		Repo:        storyRepo,
		Generator:   generator,
		Synthesizer: synthesizer,
		Store:       store,
		Notifier:    notifier,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	spawner := pipeline.NewSpawner(&logger, 0)

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		Repo:    storyRepo,
		Runner:  orchestrator,
		Spawner: spawner,
		Store:   store,
		Logger:  logger,
		Cfg:     cfg,
	}
	router := httpapi.NewRouter(app, cfg, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// let in-flight generations reach a terminal state
	spawner.Wait()
	logger.Info().Msg("server stopped")
}
