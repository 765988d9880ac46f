// Package query turns raw user questions into search-ready queries.
//
// Normalization validates that a question is a searchable medical query,
// then enhances it with related terms from two sources: the NLU provider's
// expansion and a built-in vocabulary of MeSH-style synonyms. The merge is
// deterministic: terms are lowercased, deduplicated, sorted, and capped, so
// a given query plus a given set of provider terms always yields the same
// enhanced query.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/nlu"
)

// DefaultMaxExpansionTerms caps appended terms when no limit is configured.
const DefaultMaxExpansionTerms = 8

// Result is the outcome of normalizing a raw query.
type Result struct {
	// RawQuery is the user's question, trimmed.
	RawQuery string

	// EnhancedQuery is the query sent to literature sources: the raw query
	// followed by the appended expansion terms. Equal to RawQuery when no
	// terms were added.
	EnhancedQuery string

	// ExpansionTerms are the terms appended to the raw query, sorted.
	ExpansionTerms []string

	// NeedsClarification is true when the query is medical but too vague
	// to search. ClarifyingQuestion holds the follow-up to ask.
	NeedsClarification bool
	ClarifyingQuestion string
}

// Config holds normalizer settings.
type Config struct {
	// MaxExpansionTerms caps the number of appended terms.
	// Defaults to DefaultMaxExpansionTerms if zero.
	MaxExpansionTerms int

	// Vocabulary overrides the built-in trigger vocabulary. Nil uses the
	// built-in table; an empty non-nil map disables vocabulary expansion.
	Vocabulary map[string][]string
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.MaxExpansionTerms <= 0 {
		c.MaxExpansionTerms = DefaultMaxExpansionTerms
	}
	if c.Vocabulary == nil {
		c.Vocabulary = builtinVocabulary
	}
}

// Normalizer validates and enhances raw user queries.
type Normalizer struct {
	analyzer nlu.Analyzer
	config   Config
	logger   zerolog.Logger
}

// NewNormalizer creates a Normalizer backed by the given NLU analyzer.
func NewNormalizer(analyzer nlu.Analyzer, cfg Config, logger zerolog.Logger) *Normalizer {
	cfg.applyDefaults()
	return &Normalizer{
		analyzer: analyzer,
		config:   cfg,
		logger:   logger.With().Str("component", "query_normalizer").Logger(),
	}
}

// Normalize validates the raw query and produces an enhanced query.
//
// Returns domain.InvalidQueryError (wrapping domain.ErrInvalidQuery) when the
// query is empty or off-topic, and a Result with NeedsClarification set when
// the query is medical but too vague. Classification failures surface as
// domain.ErrProviderUnavailable so callers can distinguish "bad query" from
// "cannot judge the query right now".
//
// Expansion is best-effort: if the NLU expansion call fails, the built-in
// vocabulary still applies and the query remains searchable.
func (n *Normalizer) Normalize(ctx context.Context, rawQuery string) (*Result, error) {
	raw := strings.TrimSpace(rawQuery)
	if raw == "" {
		return nil, domain.NewInvalidQueryError(domain.ReasonEmpty)
	}

	cls, err := n.analyzer.Classify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("query classification failed: %w: %w", domain.ErrProviderUnavailable, err)
	}

	if !cls.IsMedical {
		return nil, domain.NewInvalidQueryError(domain.ReasonOffTopic)
	}

	if cls.IsAmbiguous {
		return &Result{
			RawQuery:           raw,
			EnhancedQuery:      raw,
			NeedsClarification: true,
			ClarifyingQuestion: cls.ClarifyingQuestion,
		}, nil
	}

	terms := n.expansionTerms(ctx, raw)

	enhanced := raw
	if len(terms) > 0 {
		enhanced = raw + " " + strings.Join(terms, " ")
	}

	return &Result{
		RawQuery:       raw,
		EnhancedQuery:  enhanced,
		ExpansionTerms: terms,
	}, nil
}

// expansionTerms merges NLU expansion terms with built-in vocabulary terms
// into a deterministic, capped term list.
func (n *Normalizer) expansionTerms(ctx context.Context, raw string) []string {
	lowered := strings.ToLower(raw)

	candidates := vocabularyTerms(lowered, n.config.Vocabulary)

	exp, err := n.analyzer.Expand(ctx, raw, n.config.MaxExpansionTerms)
	if err != nil {
		n.logger.Warn().Err(err).Msg("NLU expansion failed, continuing with vocabulary terms only")
	} else {
		candidates = append(candidates, exp.Terms...)
	}

	seen := make(map[string]bool, len(candidates))
	terms := make([]string, 0, len(candidates))
	for _, t := range candidates {
		term := strings.ToLower(strings.TrimSpace(t))
		if term == "" || seen[term] {
			continue
		}
		// Terms already present in the query add nothing.
		if containsPhrase(lowered, term) {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}

	sort.Strings(terms)

	if len(terms) > n.config.MaxExpansionTerms {
		terms = terms[:n.config.MaxExpansionTerms]
	}

	return terms
}

// containsPhrase reports whether the lowered text contains the phrase.
func containsPhrase(loweredText, phrase string) bool {
	return strings.Contains(loweredText, phrase)
}
