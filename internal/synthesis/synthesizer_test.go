package synthesis

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-assistant/internal/domain"
)

func newTestSynthesizer(t *testing.T, cfg Config) *Synthesizer {
	t.Helper()
	return NewSynthesizer(cfg, zerolog.Nop(), nil)
}

func structuredArticle(id string) *domain.Article {
	return &domain.Article{
		ID:    id,
		Title: "Metformin and Glycemic Control in Type 2 Diabetes",
		Authors: []string{
			"Maria Santos", "James Chen", "Anna Kowalski",
		},
		Abstract: "BACKGROUND: Glycemic control remains challenging. " +
			"PARTICIPANTS: 412 adults with type 2 diabetes. " +
			"INTERVENTION: Metformin 1000mg twice daily for 24 weeks. " +
			"RESULTS: Mean HbA1c decreased by 1.2 percentage points. " +
			"CONCLUSIONS: Metformin remains an effective first-line therapy.",
		PublicationYear: 2023,
		Journal:         "Diabetes Care",
		MeshTerms:       []string{"Diabetes Mellitus, Type 2", "Metformin"},
	}
}

func unstructuredArticle(id string) *domain.Article {
	return &domain.Article{
		ID:    id,
		Title: "Lifestyle Modification in Prediabetes",
		Authors: []string{
			"Laura Berg",
		},
		Abstract: "We enrolled 200 participants with prediabetes across three clinics. " +
			"Each participant received a structured diet and exercise program. " +
			"Progression to diabetes showed a significant reduction in the program group. " +
			"These results suggest lifestyle modification delays disease onset.",
		PublicationYear: 2022,
		MeshTerms:       []string{"Prediabetic State", "Life Style"},
	}
}

func TestSynthesize_NoArticles(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	report, err := s.Synthesize("diabetes treatment", nil)

	require.ErrorIs(t, err, domain.ErrNoArticles)
	assert.Nil(t, report)
}

func TestSynthesize_StructuredAbstract(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	report, err := s.Synthesize("type 2 diabetes treatment", []*domain.Article{structuredArticle("pubmed:1")})
	require.NoError(t, err)

	require.Len(t, report.Matrix.Rows, 1)
	row := report.Matrix.Rows[0]
	assert.Equal(t, "pubmed:1", row.ArticleID)
	assert.False(t, row.Unparsed)
	assert.Equal(t, "412 adults with type 2 diabetes.", row.Population)
	assert.Equal(t, "Metformin 1000mg twice daily for 24 weeks.", row.Intervention)
	assert.Equal(t, "Mean HbA1c decreased by 1.2 percentage points.", row.Outcome)
	assert.Equal(t, "Metformin remains an effective first-line therapy.", row.KeyFinding)

	assert.Equal(t, "type 2 diabetes treatment", report.Query)
	assert.WithinDuration(t, time.Now().UTC(), report.CreatedAt, 5*time.Second)
}

func TestSynthesize_UnstructuredAbstract(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	report, err := s.Synthesize("prediabetes", []*domain.Article{unstructuredArticle("pubmed:2")})
	require.NoError(t, err)

	row := report.Matrix.Rows[0]
	assert.False(t, row.Unparsed)
	assert.Contains(t, row.Population, "200 participants")
	assert.Contains(t, row.Intervention, "diet and exercise program")
	assert.Contains(t, row.Outcome, "significant reduction")
	assert.Contains(t, row.KeyFinding, "suggest lifestyle modification")
}

func TestSynthesize_EmptyAbstractIsUnparsed(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	articles := []*domain.Article{
		structuredArticle("pubmed:1"),
		{ID: "pubmed:2", Title: "No Abstract Available"},
	}

	report, err := s.Synthesize("diabetes", articles)
	require.NoError(t, err)

	require.Len(t, report.Matrix.Rows, 2)
	assert.False(t, report.Matrix.Rows[0].Unparsed)
	assert.True(t, report.Matrix.Rows[1].Unparsed)
	assert.Equal(t, "No Abstract Available", report.Matrix.Rows[1].Title)
	assert.Equal(t, 1, report.Matrix.UnparsedCount())

	assert.Contains(t, report.Narrative, "1 article could not be summarized")
}

func TestSynthesize_UnmatchableAbstractIsUnparsed(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	article := &domain.Article{
		ID:       "pubmed:3",
		Title:    "Editorial Note",
		Abstract: "This issue marks the journal's fiftieth anniversary",
	}

	report, err := s.Synthesize("diabetes", []*domain.Article{article})
	require.NoError(t, err)
	assert.True(t, report.Matrix.Rows[0].Unparsed)
}

func TestSynthesize_RowOrderMatchesInput(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	articles := []*domain.Article{
		unstructuredArticle("pubmed:10"),
		structuredArticle("pubmed:11"),
		{ID: "pubmed:12", Title: "Empty"},
	}

	report, err := s.Synthesize("diabetes", articles)
	require.NoError(t, err)

	require.Len(t, report.Matrix.Rows, 3)
	assert.Equal(t, "pubmed:10", report.Matrix.Rows[0].ArticleID)
	assert.Equal(t, "pubmed:11", report.Matrix.Rows[1].ArticleID)
	assert.Equal(t, "pubmed:12", report.Matrix.Rows[2].ArticleID)
}

func TestSynthesize_CitedNarrative(t *testing.T) {
	s := newTestSynthesizer(t, Config{CitationThreshold: 10})

	articles := []*domain.Article{
		structuredArticle("pubmed:1"),
		unstructuredArticle("pubmed:2"),
	}

	report, err := s.Synthesize("diabetes prevention", articles)
	require.NoError(t, err)

	assert.Contains(t, report.Narrative, `Evidence summary for "diabetes prevention", based on 2 articles.`)
	assert.Contains(t, report.Narrative, "Santos et al. (2023) [pubmed:1]")
	assert.Contains(t, report.Narrative, "Metformin remains an effective first-line therapy.")
	assert.Contains(t, report.Narrative, "Berg (2022) [pubmed:2]")
}

func TestSynthesize_CitedNarrativeCarriesEveryIdentifier(t *testing.T) {
	s := newTestSynthesizer(t, Config{CitationThreshold: 10})

	articles := []*domain.Article{
		structuredArticle("pubmed:11111"),
		unstructuredArticle("doi:10.1000/xyz123"),
		structuredArticle("pmc:PMC777"),
	}

	report, err := s.Synthesize("diabetes", articles)
	require.NoError(t, err)

	// Below the threshold the narrative references each parsed article by
	// the same identifier its matrix row carries.
	for _, row := range report.Matrix.Rows {
		require.False(t, row.Unparsed)
		assert.Contains(t, report.Narrative, "["+row.ArticleID+"]")
	}
}

func TestSynthesize_AggregateNarrative(t *testing.T) {
	s := newTestSynthesizer(t, Config{CitationThreshold: 3})

	articles := make([]*domain.Article, 0, 6)
	for i := 0; i < 6; i++ {
		a := structuredArticle(fmt.Sprintf("pubmed:%d", i+1))
		a.PublicationYear = 2018 + i
		articles = append(articles, a)
	}

	report, err := s.Synthesize("diabetes", articles)
	require.NoError(t, err)

	assert.Contains(t, report.Narrative, "6 summarized studies")
	assert.Contains(t, report.Narrative, "between 2018 and 2023")
	assert.Contains(t, report.Narrative, "Diabetes Mellitus, Type 2")
	// No per-article citations in aggregate mode.
	assert.NotContains(t, report.Narrative, "Santos et al.")
}

func TestSynthesize_DefaultThresholdBoundary(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	articles := make([]*domain.Article, 0, DefaultCitationThreshold)
	for i := 0; i < DefaultCitationThreshold; i++ {
		articles = append(articles, structuredArticle(fmt.Sprintf("pubmed:%d", i+1)))
	}

	report, err := s.Synthesize("diabetes", articles)
	require.NoError(t, err)

	// Exactly at the threshold, every parsed article is still cited.
	assert.Contains(t, report.Narrative, "Santos et al. (2023)")
}

func TestSplitLabeledSections(t *testing.T) {
	tests := []struct {
		name     string
		abstract string
		want     map[string]string
	}{
		{
			name:     "no labels",
			abstract: "A plain abstract with no section markers.",
			want:     nil,
		},
		{
			name:     "two sections",
			abstract: "METHODS: A randomized trial. RESULTS: Outcomes improved.",
			want: map[string]string{
				"METHODS": "A randomized trial.",
				"RESULTS": "Outcomes improved.",
			},
		},
		{
			name:     "multi-word label",
			abstract: "MAIN OUTCOME MEASURES: Change in HbA1c at 24 weeks.",
			want: map[string]string{
				"MAIN OUTCOME MEASURES": "Change in HbA1c at 24 weeks.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitLabeledSections(tt.abstract))
		})
	}
}

func TestFormatCitation(t *testing.T) {
	tests := []struct {
		name    string
		article *domain.Article
		title   string
		want    string
	}{
		{
			name: "multiple authors with year",
			article: &domain.Article{
				Authors:         []string{"Maria Santos", "James Chen"},
				PublicationYear: 2023,
			},
			want: "Santos et al. (2023)",
		},
		{
			name: "single author no year",
			article: &domain.Article{
				Authors: []string{"Laura Berg"},
			},
			want: "Berg",
		},
		{
			name:    "no authors falls back to title",
			article: &domain.Article{},
			title:   "Anonymous Report",
			want:    `"Anonymous Report"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCitation(tt.article, tt.title))
		})
	}
}
