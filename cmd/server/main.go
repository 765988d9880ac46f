// Package main provides the entry point for the literature assistant server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/config"
	"github.com/helixir/literature-assistant/internal/conversation"
	"github.com/helixir/literature-assistant/internal/database"
	"github.com/helixir/literature-assistant/internal/delivery"
	"github.com/helixir/literature-assistant/internal/nlu"
	"github.com/helixir/literature-assistant/internal/observability"
	"github.com/helixir/literature-assistant/internal/query"
	"github.com/helixir/literature-assistant/internal/repository"
	"github.com/helixir/literature-assistant/internal/retrieval/pubmed"
	"github.com/helixir/literature-assistant/internal/search"
	httpserver "github.com/helixir/literature-assistant/internal/server"
	"github.com/helixir/literature-assistant/internal/synthesis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("literature-assistant server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics are optional; all components accept a nil Metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("litassist")
	}

	// Connect to PostgreSQL for the delivery audit log when enabled.
	var db *database.DB
	var auditor conversation.DeliveryAuditor
	if cfg.Database.Enabled {
		db, err = database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			if err := runMigrations(db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}

		auditor = repository.NewPgDeliveryLogRepository(db)
	}

	// NLU analyzer for query classification and expansion.
	analyzer, err := nlu.NewAnalyzer(nlu.FactoryConfig{
		Provider:    cfg.NLU.Provider,
		Temperature: cfg.NLU.Temperature,
		Timeout:     cfg.NLU.Timeout,
		MaxRetries:  cfg.NLU.MaxRetries,
		OpenAI: nlu.OpenAIConfig{
			APIKey:  cfg.NLU.OpenAI.APIKey,
			Model:   cfg.NLU.OpenAI.Model,
			BaseURL: cfg.NLU.OpenAI.BaseURL,
		},
		Anthropic: nlu.AnthropicConfig{
			APIKey:  cfg.NLU.Anthropic.APIKey,
			Model:   cfg.NLU.Anthropic.Model,
			BaseURL: cfg.NLU.Anthropic.BaseURL,
		},
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("create NLU analyzer: %w", err)
	}

	normalizer := query.NewNormalizer(analyzer, query.Config{
		MaxExpansionTerms: cfg.NLU.MaxExpansionTerms,
	}, logger)

	// PubMed retrieval behind the search orchestrator.
	source := pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxResults: cfg.Search.MaxResults,
		Enabled:    cfg.PubMed.Enabled,
	})

	orchestrator := search.NewOrchestrator(source, search.Config{
		MaxResults:    cfg.Search.MaxResults,
		RetryAttempts: cfg.Search.RetryAttempts,
		Timeout:       cfg.Search.Timeout,
	}, logger, metrics)

	synthesizer := synthesis.NewSynthesizer(synthesis.Config{
		CitationThreshold: cfg.Synthesis.CitationThreshold,
	}, logger, metrics)

	// SMTP delivery.
	transport, err := delivery.NewSMTPTransport(delivery.SMTPConfig{
		Host:     cfg.Delivery.SMTPHost,
		Port:     cfg.Delivery.SMTPPort,
		Username: cfg.Delivery.SMTPUser,
		Password: cfg.Delivery.SMTPPassword,
	})
	if err != nil {
		return fmt.Errorf("create SMTP transport: %w", err)
	}

	coordinator := delivery.NewCoordinator(transport, delivery.Config{
		From:    cfg.Delivery.From,
		Timeout: cfg.Delivery.Timeout,
	}, logger, metrics)

	// Session store with TTL sweeping.
	store := conversation.NewStore(conversation.StoreConfig{
		SessionTTL:    cfg.Conversation.SessionTTL,
		SweepInterval: cfg.Conversation.SweepInterval,
	}, logger)
	go store.Run(ctx)

	machine := conversation.NewMachine(
		store,
		normalizer,
		orchestrator,
		synthesizer,
		coordinator,
		auditor,
		conversation.Config{
			DefaultRecipient: cfg.Delivery.DefaultRecipient,
		},
		logger,
		metrics,
	)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, machine, db, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("audit_log", cfg.Database.Enabled).
		Msg("literature-assistant is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down literature-assistant")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("literature-assistant shutdown complete")
	return nil
}

// runMigrations applies pending schema migrations on startup.
func runMigrations(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
