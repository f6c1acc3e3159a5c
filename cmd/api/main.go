package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"mediaforge/internal/adapter/memstore"
	"mediaforge/internal/adapter/repo"
	"mediaforge/internal/domain"
	"mediaforge/internal/http/handlers"
	"mediaforge/internal/http/httpapi"
	"mediaforge/internal/infra"
	"mediaforge/internal/infra/geoip"
	"mediaforge/internal/jobs"
	"mediaforge/internal/ledger"
	"mediaforge/internal/middleware"
	"mediaforge/internal/plancfg"
	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/genai"
	"mediaforge/internal/providers/image"
	"mediaforge/internal/providers/shotplan"
	"mediaforge/internal/providers/video"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	plans := plancfg.Defaults()
	if cfg.PlanConfigPath != "" {
		plans, err = plancfg.Load(cfg.PlanConfigPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.PlanConfigPath).Msg("failed to load plan config")
		}
	}

	ctx := context.Background()

	var (
		jobStore    domain.JobStore
		ledgerStore domain.LedgerStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx, pool); err != nil {
				logger.Fatal().Err(err).Msg("failed to run migrations")
			}
		}
		jobStore = repo.NewJobRepository(pool)
		ledgerStore = repo.NewLedgerRepository(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		jobStore = memstore.NewJobStore()
		ledgerStore = memstore.NewLedgerStore()
	}

	images, videos, planner := buildChains(cfg, logger)

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country tagging disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	creditLedger := ledger.New(ledgerStore, logger)

	manager := jobs.NewManager(jobs.ManagerOptions{
		Jobs:          jobStore,
		Ledger:        creditLedger,
		Plans:         plans,
		Engine:        jobs.NewChainEngine(images, videos, logger),
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		JobTimeout:    cfg.JobTimeout,
		SweepInterval: cfg.SweepInterval,
		RequeueAfter:  cfg.RequeueAfter,
		Logger:        logger,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	manager.Start(runCtx)

	app := handlers.NewApp(manager, creditLedger, plans, planner, logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
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

	// Let in-flight jobs reach a terminal state before the process exits so
	// no reservation is left without its matching refund.
	manager.Shutdown()
	cancelRun()

	logger.Info().Msg("server stopped")
}

// buildChains assembles the provider fallback chains from whichever
// credentials are configured. Synthetic providers join the chain tails only
// in development; the local shot planner is always the final planning
// strategy so planning cannot fail outright.
func buildChains(cfg *infra.Config, logger zerolog.Logger) (
	*chain.Chain[image.Request, image.Artifact],
	*chain.Chain[video.Request, video.Artifact],
	*chain.Chain[shotplan.Request, shotplan.Plan],
) {
	retries := uint64(cfg.RetryMaxAttempts)

	var imageStrategies []chain.Strategy[image.Request, image.Artifact]
	var videoStrategies []chain.Strategy[video.Request, video.Artifact]
	var planStrategies []chain.Strategy[shotplan.Request, shotplan.Plan]

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(genai.Options{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build gemini client")
		}
		imageStrategies = append(imageStrategies, image.NewGeminiGenerator(client))
		planStrategies = append(planStrategies, shotplan.NewGeminiPlanner(client))

		veoClient, err := genai.NewClient(genai.Options{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.VeoModel,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build veo client")
		}
		videoStrategies = append(videoStrategies, video.NewVeoGenerator(veoClient))
	}

	if cfg.QwenAPIKey != "" {
		qwen, err := image.NewQwenGenerator(image.QwenOptions{
			APIKey:  cfg.QwenAPIKey,
			BaseURL: cfg.QwenBaseURL,
			Model:   cfg.QwenModel,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build qwen generator")
		}
		imageStrategies = append(imageStrategies, qwen)
	}

	if cfg.OpenAIAPIKey != "" {
		planner, err := shotplan.NewOpenAIPlanner(shotplan.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build openai planner")
		}
		planStrategies = append(planStrategies, planner)
	}

	if cfg.AppEnv == "development" {
		imageStrategies = append(imageStrategies, image.NewSyntheticGenerator(cfg.SyntheticBaseURL))
		videoStrategies = append(videoStrategies, video.NewSyntheticGenerator(cfg.SyntheticBaseURL))
	}

	planStrategies = append(planStrategies, shotplan.NewLocalPlanner())

	if len(imageStrategies) == 0 {
		logger.Fatal().Msg("no image providers configured; set GEMINI_API_KEY or QWEN_API_KEY")
	}
	if len(videoStrategies) == 0 {
		logger.Fatal().Msg("no video providers configured; set GEMINI_API_KEY")
	}

	images := chain.New("image", logger, retries, imageStrategies...)
	videos := chain.New("video", logger, retries, videoStrategies...)
	planner := chain.New("shotplan", logger, retries, planStrategies...)
	return images, videos, planner
}
