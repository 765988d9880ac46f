package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/observability"
	"github.com/helixir/literature-assistant/internal/retrieval"
)

// fakeSource is a scripted retrieval.ArticleSource: each call to Search
// consumes the next scripted response.
type fakeSource struct {
	responses []fakeResponse
	calls     int
	lastQuery string
}

type fakeResponse struct {
	result *retrieval.SearchResult
	err    error
}

func (f *fakeSource) Search(ctx context.Context, params retrieval.SearchParams) (*retrieval.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.lastQuery = params.Query
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.result, r.err
}

func (f *fakeSource) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSource) Name() string    { return "FakeSource" }
func (f *fakeSource) IsEnabled() bool { return true }

func makeArticles(n int) []*domain.Article {
	articles := make([]*domain.Article, 0, n)
	for i := 0; i < n; i++ {
		articles = append(articles, &domain.Article{
			ID:    fmt.Sprintf("pubmed:%d", i+1),
			Title: fmt.Sprintf("Article %d", i+1),
		})
	}
	return articles
}

func newTestOrchestrator(source retrieval.ArticleSource, cfg Config) *Orchestrator {
	return NewOrchestrator(source, cfg, zerolog.Nop(), nil)
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("results outcome", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{result: &retrieval.SearchResult{Articles: makeArticles(5), TotalResults: 5}},
		}}
		o := newTestOrchestrator(source, Config{MaxResults: 20})

		outcome := o.Run(context.Background(), "type 2 diabetes metformin")

		assert.Equal(t, OutcomeResults, outcome.Kind)
		assert.Len(t, outcome.Articles, 5)
		assert.Equal(t, 5, outcome.TotalResults)
		assert.False(t, outcome.Truncated)
		assert.NoError(t, outcome.Err)
		assert.Equal(t, "type 2 diabetes metformin", source.lastQuery)
	})

	t.Run("empty outcome", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{result: &retrieval.SearchResult{Articles: nil, TotalResults: 0}},
		}}
		o := newTestOrchestrator(source, Config{})

		outcome := o.Run(context.Background(), "xyzzy nonsense query")

		assert.Equal(t, OutcomeEmpty, outcome.Kind)
		assert.Empty(t, outcome.Articles)
		assert.NoError(t, outcome.Err)
	})

	t.Run("oversized result set is truncated", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{result: &retrieval.SearchResult{Articles: makeArticles(30), TotalResults: 120}},
		}}
		o := newTestOrchestrator(source, Config{MaxResults: 20})

		outcome := o.Run(context.Background(), "hypertension")

		assert.Equal(t, OutcomeResults, outcome.Kind)
		assert.Len(t, outcome.Articles, 20)
		assert.Equal(t, 120, outcome.TotalResults)
		assert.True(t, outcome.Truncated)
		assert.Equal(t, "pubmed:1", outcome.Articles[0].ID)
		assert.Equal(t, "pubmed:20", outcome.Articles[19].ID)
	})

	t.Run("transient failure is retried once and succeeds", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{err: domain.NewExternalAPIError("PubMed", 503, "unavailable", nil)},
			{result: &retrieval.SearchResult{Articles: makeArticles(2), TotalResults: 2}},
		}}
		o := newTestOrchestrator(source, Config{RetryAttempts: 1})

		outcome := o.Run(context.Background(), "asthma")

		assert.Equal(t, OutcomeResults, outcome.Kind)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("persistent transient failure exhausts single retry", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{err: domain.NewExternalAPIError("PubMed", 500, "boom", nil)},
		}}
		o := newTestOrchestrator(source, Config{RetryAttempts: 1})

		outcome := o.Run(context.Background(), "asthma")

		assert.Equal(t, OutcomeProviderError, outcome.Kind)
		assert.Equal(t, 2, source.calls)
		assert.True(t, errors.Is(outcome.Err, domain.ErrProviderUnavailable))

		var apiErr *domain.ExternalAPIError
		assert.True(t, errors.As(outcome.Err, &apiErr))
	})

	t.Run("non-transient failure is not retried", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{err: domain.NewExternalAPIError("PubMed", 400, "bad query", nil)},
		}}
		o := newTestOrchestrator(source, Config{RetryAttempts: 3})

		outcome := o.Run(context.Background(), "bad[[query")

		assert.Equal(t, OutcomeProviderError, outcome.Kind)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("timeout surfaces as provider error", func(t *testing.T) {
		source := &fakeSource{responses: []fakeResponse{
			{err: context.DeadlineExceeded},
		}}
		o := newTestOrchestrator(source, Config{Timeout: time.Millisecond, RetryAttempts: 1})

		outcome := o.Run(context.Background(), "slow query")

		require.Equal(t, OutcomeProviderError, outcome.Kind)
		assert.True(t, errors.Is(outcome.Err, domain.ErrProviderUnavailable))
		// Deadline expiry is not transient, so no retry happened.
		assert.Equal(t, 1, source.calls)
	})
}

func TestOrchestrator_Run_LogsSessionAndTurnFromContext(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{result: &retrieval.SearchResult{Articles: nil, TotalResults: 0}},
	}}

	var buf bytes.Buffer
	o := NewOrchestrator(source, Config{}, zerolog.New(&buf), nil)

	ctx := observability.WithSessionID(context.Background(), "sess-42")
	ctx = observability.WithTurn(ctx, 3)
	o.Run(ctx, "rare condition query")

	logs := buf.String()
	assert.Contains(t, logs, `"session_id":"sess-42"`)
	assert.Contains(t, logs, `"turn":3`)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", domain.NewExternalAPIError("PubMed", 429, "slow down", nil), true},
		{"server error", domain.NewExternalAPIError("PubMed", 503, "unavailable", nil), true},
		{"network error", domain.NewExternalAPIError("PubMed", 0, "connection refused", nil), true},
		{"client error", domain.NewExternalAPIError("PubMed", 404, "not found", nil), false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
