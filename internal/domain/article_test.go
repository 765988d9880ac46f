package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalArticleID(t *testing.T) {
	tests := []struct {
		name     string
		ids      ArticleIdentifiers
		expected string
	}{
		{
			name:     "DOI takes priority",
			ids:      ArticleIdentifiers{DOI: "10.1000/XYZ123", PubMedID: "12345"},
			expected: "doi:10.1000/xyz123",
		},
		{
			name:     "pubmed ID when no DOI",
			ids:      ArticleIdentifiers{PubMedID: "12345", PMCID: "PMC99"},
			expected: "pubmed:12345",
		},
		{
			name:     "PMC ID as last resort",
			ids:      ArticleIdentifiers{PMCID: "PMC99"},
			expected: "pmc:PMC99",
		},
		{
			name:     "whitespace-only identifiers are skipped",
			ids:      ArticleIdentifiers{DOI: "  ", PubMedID: "678"},
			expected: "pubmed:678",
		},
		{
			name:     "no identifiers",
			ids:      ArticleIdentifiers{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalArticleID(tt.ids))
		})
	}
}

func TestArticle_AuthorLine(t *testing.T) {
	tests := []struct {
		name     string
		authors  []string
		expected string
	}{
		{
			name:     "no authors",
			authors:  nil,
			expected: "",
		},
		{
			name:     "short list joined",
			authors:  []string{"A Smith", "B Jones"},
			expected: "A Smith, B Jones",
		},
		{
			name:     "long list truncated",
			authors:  []string{"A Smith", "B Jones", "C Lee", "D Park"},
			expected: "A Smith, B Jones, C Lee, et al.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Article{Authors: tt.authors}
			assert.Equal(t, tt.expected, a.AuthorLine())
		})
	}
}

func TestEvidenceMatrix_Accounting(t *testing.T) {
	m := EvidenceMatrix{Rows: []MatrixRow{
		{ArticleID: "pubmed:1"},
		{ArticleID: "pubmed:2", Unparsed: true},
		{ArticleID: "pubmed:3"},
	}}

	assert.Len(t, m.ParsedRows(), 2)
	assert.Equal(t, 1, m.UnparsedCount())
}
