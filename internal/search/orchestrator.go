// Package search coordinates literature searches against an article source.
//
// The orchestrator applies the search policy around a retrieval.ArticleSource:
// an overall deadline, a bounded retry on transient provider failures, and
// truncation of oversized result sets. Its outcome is a tagged value rather
// than an (articles, error) pair because "no articles" and "provider down"
// drive different conversation paths and neither is an internal failure.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/observability"
	"github.com/helixir/literature-assistant/internal/retrieval"
)

// Default policy values.
const (
	DefaultMaxResults    = 20
	DefaultRetryAttempts = 1
	DefaultTimeout       = 30 * time.Second
)

// OutcomeKind discriminates the three ways a search can end.
type OutcomeKind string

const (
	// OutcomeResults means the search returned at least one article.
	OutcomeResults OutcomeKind = "results"

	// OutcomeEmpty means the search succeeded but matched nothing.
	OutcomeEmpty OutcomeKind = "empty"

	// OutcomeProviderError means the source failed after retries.
	OutcomeProviderError OutcomeKind = "provider_error"
)

// Outcome is the result of one orchestrated search.
type Outcome struct {
	// Kind discriminates which of the remaining fields are meaningful.
	Kind OutcomeKind

	// Articles holds the retrieved articles. Populated only for
	// OutcomeResults, truncated to the configured maximum.
	Articles []*domain.Article

	// TotalResults is the source's total match count, which may exceed
	// len(Articles) when results were truncated or paginated.
	TotalResults int

	// Truncated is true when the source matched more articles than the
	// configured maximum.
	Truncated bool

	// Err holds the provider failure for OutcomeProviderError.
	Err error
}

// Config holds the search policy.
type Config struct {
	// MaxResults caps the number of articles returned.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// RetryAttempts is the number of immediate retries after a transient
	// provider failure. Negative values are treated as zero.
	RetryAttempts int

	// Timeout is the overall deadline for one search, covering retries.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Orchestrator executes searches against a single article source with
// retry, deadline, and truncation policy applied.
type Orchestrator struct {
	source  retrieval.ArticleSource
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewOrchestrator creates an Orchestrator for the given source.
// metrics may be nil when metrics collection is disabled.
func NewOrchestrator(source retrieval.ArticleSource, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		source:  source,
		config:  cfg,
		logger:  logger.With().Str("component", "search_orchestrator").Logger(),
		metrics: metrics,
	}
}

// Run executes one search for the enhanced query and classifies the result.
//
// The whole call, including retries, runs under the configured timeout.
// A transient provider failure is retried up to the configured attempt
// count; a non-transient failure or exhausted retries produce
// OutcomeProviderError with Err wrapping domain.ErrProviderUnavailable.
func (o *Orchestrator) Run(ctx context.Context, query string) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	startTime := time.Now()
	logger := observability.WithSearchContext(o.logger, query, o.source.Name())
	if sessionID := observability.SessionIDFromContext(ctx); sessionID != "" {
		logger = observability.WithTurnContext(logger, sessionID, observability.TurnFromContext(ctx))
	}

	var lastErr error
	for attempt := 0; attempt <= o.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("retrying search after transient failure")
			if o.metrics != nil {
				o.metrics.SearchRetries.Inc()
			}
		}

		result, err := o.source.Search(ctx, retrieval.SearchParams{
			Query:      query,
			MaxResults: o.config.MaxResults,
		})
		if err == nil {
			return o.classify(result, startTime, logger)
		}

		lastErr = err
		if !isTransient(err) {
			break
		}
	}

	logger.Error().Err(lastErr).Dur("duration", time.Since(startTime)).Msg("search failed")
	o.observe(OutcomeProviderError, startTime, 0)

	return &Outcome{
		Kind: OutcomeProviderError,
		Err:  errors.Join(domain.ErrProviderUnavailable, lastErr),
	}
}

// classify maps a successful source result to an Outcome, truncating
// oversized result sets.
func (o *Orchestrator) classify(result *retrieval.SearchResult, startTime time.Time, logger zerolog.Logger) *Outcome {
	if len(result.Articles) == 0 {
		logger.Info().Dur("duration", time.Since(startTime)).Msg("search matched no articles")
		o.observe(OutcomeEmpty, startTime, 0)
		return &Outcome{
			Kind:         OutcomeEmpty,
			TotalResults: result.TotalResults,
		}
	}

	articles := result.Articles
	truncated := false
	if len(articles) > o.config.MaxResults {
		articles = articles[:o.config.MaxResults]
		truncated = true
	}
	if result.TotalResults > len(articles) {
		truncated = true
	}

	logger.Info().
		Int("articles", len(articles)).
		Int("total_results", result.TotalResults).
		Bool("truncated", truncated).
		Dur("duration", time.Since(startTime)).
		Msg("search completed")
	o.observe(OutcomeResults, startTime, len(articles))

	return &Outcome{
		Kind:         OutcomeResults,
		Articles:     articles,
		TotalResults: result.TotalResults,
		Truncated:    truncated,
	}
}

// observe records search metrics when metrics are enabled.
func (o *Orchestrator) observe(kind OutcomeKind, startTime time.Time, articleCount int) {
	if o.metrics == nil {
		return
	}
	o.metrics.SearchesTotal.WithLabelValues(string(kind)).Inc()
	o.metrics.SearchDuration.Observe(time.Since(startTime).Seconds())
	if kind == OutcomeResults {
		o.metrics.ArticlesPerSearch.Observe(float64(articleCount))
	}
}

// isTransient reports whether a source failure is worth one more attempt.
// Rate limiting, server errors, and network failures qualify; context
// expiry and client errors do not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0 ||
			apiErr.StatusCode == 429 ||
			apiErr.StatusCode >= 500
	}

	// Errors without an HTTP status are treated as network-level failures.
	return true
}
