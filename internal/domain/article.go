// Package domain provides domain models and business logic for the Literature Assistant.
package domain

import (
	"strings"
	"time"
)

// ArticleIdentifiers holds the possible identifiers for a retrieved article.
type ArticleIdentifiers struct {
	DOI      string
	PubMedID string
	PMCID    string
}

// CanonicalArticleID generates a canonical identifier from article identifiers.
// Priority order: DOI > PubMed > PMC. Returns empty string if no identifier
// is available.
func CanonicalArticleID(ids ArticleIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// Normalize DOI to lowercase
		return "doi:" + strings.ToLower(doi)
	}

	if pmid := strings.TrimSpace(ids.PubMedID); pmid != "" {
		return "pubmed:" + pmid
	}

	if pmcid := strings.TrimSpace(ids.PMCID); pmcid != "" {
		return "pmc:" + pmcid
	}

	return ""
}

// Article represents one retrieved publication. Articles are immutable once
// retrieved and are owned exclusively by the Session that fetched them.
type Article struct {
	ID              string
	Title           string
	Authors         []string
	Abstract        string
	PublicationDate *time.Time
	PublicationYear int
	Journal         string
	URL             string
	MeshTerms       []string
}

// HasIdentifier returns true if the article carries a resolvable identifier.
func (a *Article) HasIdentifier() bool {
	return a.ID != ""
}

// HasAbstract returns true if the article has a non-empty abstract.
func (a *Article) HasAbstract() bool {
	return strings.TrimSpace(a.Abstract) != ""
}

// AuthorLine formats the author list for display. Long author lists are
// truncated with "et al." after the third name.
func (a *Article) AuthorLine() string {
	if len(a.Authors) == 0 {
		return ""
	}
	if len(a.Authors) <= 3 {
		return strings.Join(a.Authors, ", ")
	}
	return strings.Join(a.Authors[:3], ", ") + ", et al."
}
