// Package retrieval provides interfaces and types for literature source clients.
//
// This package defines the foundational abstractions that article source
// implementations follow. Each literature database (PubMed today, others
// later) implements the ArticleSource interface, allowing the assistant to
// search sources with a unified API.
//
// Example usage:
//
//	source := pubmed.New(cfg)
//	params := retrieval.SearchParams{
//		Query:      "type 2 diabetes metformin",
//		MaxResults: 20,
//	}
//	result, err := source.Search(ctx, params)
package retrieval

import (
	"context"
	"time"

	"github.com/helixir/literature-assistant/internal/domain"
)

// SearchParams defines the parameters for searching a literature source.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the search query string (required). Sources may interpret
	// boolean operators or field tags in their own way.
	Query string

	// DateFrom filters articles published on or after this date.
	// If nil, no lower date bound is applied.
	DateFrom *time.Time

	// DateTo filters articles published on or before this date.
	// If nil, no upper date bound is applied.
	DateTo *time.Time

	// MaxResults limits the number of articles returned in a single request.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// Offset specifies the starting position for paginated results.
	Offset int
}

// SearchResult contains the results from a source search operation.
type SearchResult struct {
	// Articles contains the articles returned by the search.
	// May be empty if no articles match the search criteria.
	Articles []*domain.Article

	// TotalResults is the total number of articles matching the query,
	// regardless of pagination limits. This value is provided by the
	// source API and may be an estimate for large result sets.
	TotalResults int

	// HasMore indicates whether additional results are available
	// beyond the current page.
	HasMore bool

	// NextOffset is the offset value to use for fetching the next page
	// of results. Only meaningful when HasMore is true.
	NextOffset int

	// Source identifies which literature source provided these results.
	Source string

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// ArticleSource defines the interface that literature source clients implement.
type ArticleSource interface {
	// Search queries the source for articles matching the given parameters.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform source-specific responses to domain.Article
	//   - Include appropriate error wrapping with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific article by its source-specific identifier.
	// The id format is source-specific (e.g., a PMID for PubMed).
	GetByID(ctx context.Context, id string) (*domain.Article, error)

	// Name returns a human-readable name for this source.
	// Used for logging, metrics, and error attribution.
	Name() string

	// IsEnabled returns whether this source is currently enabled and
	// available for searches. A source may be disabled by configuration
	// or a missing API key.
	IsEnabled() bool
}
