package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrivo-ai/scrivo/internal/api"
	"github.com/scrivo-ai/scrivo/internal/audit"
	"github.com/scrivo-ai/scrivo/internal/config"
	"github.com/scrivo-ai/scrivo/internal/content"
	"github.com/scrivo-ai/scrivo/internal/crawler"
	"github.com/scrivo-ai/scrivo/internal/database"
	"github.com/scrivo-ai/scrivo/internal/images"
	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/media"
	"github.com/scrivo-ai/scrivo/internal/orchestrator"
	"github.com/scrivo-ai/scrivo/internal/security"
	"github.com/scrivo-ai/scrivo/internal/session"
	"github.com/scrivo-ai/scrivo/internal/tools"
	"github.com/scrivo-ai/scrivo/internal/topic"
)

// defaultFetchTimeout bounds one outbound page fetch when the config
// leaves the crawl timeout unset.
const defaultFetchTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()
	logger.Info("starting scrivo", "version", AppVersion, "provider", cfg.Provider)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Provider dispatch. The default settings come from the configured
	// thinking degree; per-request overrides win.
	dispatcher := llm.NewDispatcher(llm.SettingsFromDegree(cfg.ThinkingDegree), logger)
	dispatcher.Register(llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:   cfg.OpenAI.APIKey,
		Model:    cfg.OpenAI.Model,
		Endpoint: cfg.OpenAI.Endpoint,
	}, logger))
	dispatcher.Register(llm.NewGemini(llm.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.Endpoint,
	}, logger))
	if cfg.Custom.Endpoint != "" {
		dispatcher.Register(llm.NewCustom(llm.CustomConfig{
			Endpoint: cfg.Custom.Endpoint,
			APIKey:   cfg.Custom.APIKey,
			Model:    cfg.Custom.Model,
		}, logger))
	}

	// Stores.
	sessions := session.NewStore(pool, logger)
	posts := content.NewStore(pool, logger)
	topics := topic.NewStore(pool, logger)
	mediaStore := media.NewStore(pool, logger)
	auditor := audit.NewRecorder(pool, logger)

	// Outbound web access goes through the SSRF guard.
	validator := security.NewURLValidator()
	fetchTimeout := cfg.CrawlTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	fetcher := crawler.NewFetcher(validator, validator.SafeClient(fetchTimeout), logger)
	walker := crawler.NewSiteCrawler(validator, logger)
	walker.DefaultMaxPages = cfg.CrawlMaxPages

	var backends []images.Searcher
	if cfg.UnsplashKey != "" {
		backends = append(backends, images.NewUnsplash(cfg.UnsplashKey, "", nil))
	}
	if cfg.PexelsKey != "" {
		backends = append(backends, images.NewPexels(cfg.PexelsKey, "", nil))
	}
	finder := images.NewFinder(logger, backends...)
	generator := images.NewGenerator(cfg.OpenAI.APIKey, "", "", nil)

	registry := tools.NewRegistry(auditor, logger)
	registry.RegisterAll(
		tools.NewContentToolset(posts, logger),
		tools.NewResearchToolset(fetcher, walker, dispatcher, posts, mediaStore, cfg.Provider, logger),
		tools.NewMediaToolset(finder, generator, mediaStore, logger),
	)

	orch := orchestrator.New(orchestrator.Config{
		Completer:    dispatcher,
		Tools:        registry,
		History:      sessions,
		Topics:       topics,
		Provider:     cfg.Provider,
		SystemPrompt: cfg.SystemPrompt,
		Logger:       logger,
	})

	srv := api.NewServer(api.Config{
		Runner:      orch,
		Sessions:    sessions,
		Topics:      topics,
		Posts:       posts,
		Media:       mediaStore,
		Providers:   dispatcher,
		Audit:       auditor,
		DB:          pool,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		Logger:      logger,
	})
	return srv.Run(ctx, cfg.ListenAddr)
}
