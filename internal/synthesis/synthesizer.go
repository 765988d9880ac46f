// Package synthesis builds evidence reports from retrieved articles.
//
// The synthesizer extracts study attributes (population, intervention,
// outcome, key finding) from each article's abstract into an evidence matrix,
// then writes a narrative summary over the parsed rows. Extraction is purely
// lexical: structured-abstract labels are used when present, with sentence
// heuristics as the fallback. Articles whose abstracts defeat both passes are
// kept in the matrix as unparsed rows so the report accounts for every input.
package synthesis

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/observability"
)

// DefaultCitationThreshold is the article count at or below which the
// narrative cites every parsed article individually. Above it, the
// narrative summarizes in aggregate.
const DefaultCitationThreshold = 10

// Config holds the synthesis policy.
type Config struct {
	// CitationThreshold controls when the narrative switches from
	// per-article citations to an aggregate summary.
	// Defaults to DefaultCitationThreshold if zero.
	CitationThreshold int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.CitationThreshold <= 0 {
		c.CitationThreshold = DefaultCitationThreshold
	}
}

// Synthesizer builds reports from article sets.
type Synthesizer struct {
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewSynthesizer creates a Synthesizer.
// metrics may be nil when metrics collection is disabled.
func NewSynthesizer(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Synthesizer {
	cfg.applyDefaults()
	return &Synthesizer{
		config:  cfg,
		logger:  logger.With().Str("component", "synthesizer").Logger(),
		metrics: metrics,
	}
}

// Synthesize builds a report for the query over the given articles.
// The matrix contains exactly one row per input article, in input order.
// Returns domain.ErrNoArticles when the article set is empty.
func (s *Synthesizer) Synthesize(query string, articles []*domain.Article) (*domain.Report, error) {
	if len(articles) == 0 {
		return nil, domain.ErrNoArticles
	}

	rows := make([]domain.MatrixRow, 0, len(articles))
	for _, article := range articles {
		rows = append(rows, extractRow(article))
	}

	matrix := domain.EvidenceMatrix{Rows: rows}
	narrative := s.buildNarrative(query, articles, &matrix)

	if s.metrics != nil {
		s.metrics.SynthesesTotal.Inc()
		s.metrics.UnparsedRows.Add(float64(matrix.UnparsedCount()))
	}
	s.logger.Info().
		Int("articles", len(articles)).
		Int("unparsed", matrix.UnparsedCount()).
		Msg("report synthesized")

	return &domain.Report{
		Query:     query,
		Matrix:    matrix,
		Narrative: narrative,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Structured-abstract label groups. PubMed labels vary across journals;
// each group lists the variants observed in practice.
var (
	populationLabels   = []string{"PARTICIPANTS", "POPULATION", "PATIENTS", "SUBJECTS", "SETTING"}
	interventionLabels = []string{"INTERVENTION", "INTERVENTIONS", "EXPOSURE", "TREATMENT", "METHODS", "METHOD"}
	outcomeLabels      = []string{"OUTCOME", "OUTCOMES", "MAIN OUTCOME MEASURES", "RESULTS", "FINDINGS"}
	findingLabels      = []string{"CONCLUSION", "CONCLUSIONS", "INTERPRETATION", "DISCUSSION"}
)

// labelPattern matches "LABEL: " section markers produced when structured
// abstracts are flattened. Labels are uppercase words, possibly multi-word.
var labelPattern = regexp.MustCompile(`([A-Z][A-Z /&-]{2,}?):\s+`)

// extractRow builds the matrix row for one article.
func extractRow(article *domain.Article) domain.MatrixRow {
	row := domain.MatrixRow{
		ArticleID: article.ID,
		Title:     article.Title,
	}

	abstract := strings.TrimSpace(article.Abstract)
	if abstract == "" {
		row.Unparsed = true
		return row
	}

	sections := splitLabeledSections(abstract)
	if len(sections) > 0 {
		row.Population = firstSection(sections, populationLabels)
		row.Intervention = firstSection(sections, interventionLabels)
		row.Outcome = firstSection(sections, outcomeLabels)
		row.KeyFinding = firstSection(sections, findingLabels)
	}

	// Sentence heuristics fill whatever the labels left blank.
	sentences := splitSentences(abstract)
	if row.Population == "" {
		row.Population = firstSentenceMatching(sentences, populationKeywords)
	}
	if row.Intervention == "" {
		row.Intervention = firstSentenceMatching(sentences, interventionKeywords)
	}
	if row.Outcome == "" {
		row.Outcome = firstSentenceMatching(sentences, outcomeKeywords)
	}
	if row.KeyFinding == "" {
		row.KeyFinding = firstSentenceMatching(sentences, findingKeywords)
	}

	if row.Population == "" && row.Intervention == "" && row.Outcome == "" && row.KeyFinding == "" {
		row.Unparsed = true
	}

	return row
}

// splitLabeledSections parses "LABEL: text" segments out of a flattened
// structured abstract. Returns nil when the abstract carries no labels.
func splitLabeledSections(abstract string) map[string]string {
	matches := labelPattern.FindAllStringSubmatchIndex(abstract, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		label := abstract[m[2]:m[3]]
		start := m[1]
		end := len(abstract)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(abstract[start:end])
		if text != "" {
			sections[strings.ToUpper(label)] = text
		}
	}
	return sections
}

// firstSection returns the first section matching any of the labels.
func firstSection(sections map[string]string, labels []string) string {
	for _, label := range labels {
		if text, ok := sections[label]; ok {
			return text
		}
	}
	return ""
}

// sentenceBoundary splits on sentence-ending punctuation followed by a space.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// splitSentences splits an abstract into trimmed sentences.
func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimRight(p, ".!?"))
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// Keyword sets for the sentence-heuristic pass, checked lowercase.
var (
	populationKeywords = []string{
		"patients", "participants", "adults", "children", "subjects",
		"women", "individuals", "cohort", "enrolled",
	}
	interventionKeywords = []string{
		"randomized to", "received", "treated with", "administered",
		"intervention", "therapy", "treatment", "compared with", "versus",
	}
	outcomeKeywords = []string{
		"primary outcome", "reduction", "increase", "improved", "risk",
		"mortality", "efficacy", "significant", "incidence", "response rate",
	}
	findingKeywords = []string{
		"conclude", "conclusion", "suggest", "demonstrate", "demonstrated",
		"indicate", "support the use", "was associated with", "found that",
	}
)

// firstSentenceMatching returns the first sentence containing any keyword.
func firstSentenceMatching(sentences []string, keywords []string) string {
	for _, sentence := range sentences {
		lowered := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				return sentence
			}
		}
	}
	return ""
}

// buildNarrative writes the narrative summary over the matrix.
//
// At or below the citation threshold every parsed article is cited
// individually. Above it, the narrative aggregates: article count, year
// range, and the most common MeSH terms. Unparsed rows are always
// acknowledged by count.
func (s *Synthesizer) buildNarrative(query string, articles []*domain.Article, matrix *domain.EvidenceMatrix) string {
	var sb strings.Builder

	parsed := matrix.ParsedRows()
	unparsed := matrix.UnparsedCount()

	fmt.Fprintf(&sb, "Evidence summary for %q, based on %d article", query, len(articles))
	if len(articles) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(".\n\n")

	if len(parsed) <= s.config.CitationThreshold {
		s.writeCitedNarrative(&sb, parsed, articles)
	} else {
		s.writeAggregateNarrative(&sb, parsed, articles)
	}

	if unparsed > 0 {
		fmt.Fprintf(&sb, "\n%d article", unparsed)
		if unparsed != 1 {
			sb.WriteString("s")
		}
		sb.WriteString(" could not be summarized into the evidence matrix; see the article list for details.\n")
	}

	return sb.String()
}

// writeCitedNarrative cites each parsed article individually. Every citation
// carries the article's identifier so narrative statements can be traced back
// to their matrix row.
func (s *Synthesizer) writeCitedNarrative(sb *strings.Builder, parsed []domain.MatrixRow, articles []*domain.Article) {
	byID := make(map[string]*domain.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	for _, row := range parsed {
		article := byID[row.ArticleID]
		citation := formatCitation(article, row.Title)
		if row.ArticleID != "" {
			citation = fmt.Sprintf("%s [%s]", citation, row.ArticleID)
		}

		finding := row.KeyFinding
		if finding == "" {
			finding = row.Outcome
		}
		if finding == "" {
			fmt.Fprintf(sb, "%s examined this question; see the matrix for extracted attributes.\n", citation)
			continue
		}
		fmt.Fprintf(sb, "%s: %s\n", citation, ensureSentence(finding))
	}
}

// writeAggregateNarrative summarizes parsed articles without individual citations.
func (s *Synthesizer) writeAggregateNarrative(sb *strings.Builder, parsed []domain.MatrixRow, articles []*domain.Article) {
	minYear, maxYear := yearRange(articles)
	if minYear > 0 {
		if minYear == maxYear {
			fmt.Fprintf(sb, "The %d summarized studies were published in %d.\n", len(parsed), minYear)
		} else {
			fmt.Fprintf(sb, "The %d summarized studies were published between %d and %d.\n", len(parsed), minYear, maxYear)
		}
	} else {
		fmt.Fprintf(sb, "%d studies were summarized.\n", len(parsed))
	}

	if themes := commonMeshTerms(articles, 5); len(themes) > 0 {
		fmt.Fprintf(sb, "Recurring topics across the set: %s.\n", strings.Join(themes, ", "))
	}

	withFindings := 0
	for _, row := range parsed {
		if row.KeyFinding != "" {
			withFindings++
		}
	}
	if withFindings > 0 {
		fmt.Fprintf(sb, "%d of the summarized studies report an explicit conclusion; the evidence matrix lists each study's population, intervention, and outcome side by side.\n", withFindings)
	} else {
		sb.WriteString("The evidence matrix lists each study's population, intervention, and outcome side by side.\n")
	}
}

// formatCitation renders "First Author et al. (Year)" for an article,
// falling back to the title when authors are missing.
func formatCitation(article *domain.Article, title string) string {
	if article == nil || len(article.Authors) == 0 {
		return fmt.Sprintf("%q", title)
	}

	author := lastNameOf(article.Authors[0])
	suffix := ""
	if len(article.Authors) > 1 {
		suffix = " et al."
	}

	if article.PublicationYear > 0 {
		return fmt.Sprintf("%s%s (%d)", author, suffix, article.PublicationYear)
	}
	return author + suffix
}

// lastNameOf extracts the family name from a "Fore Last" display name.
func lastNameOf(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[len(fields)-1]
}

// ensureSentence terminates the text with a period if it has no closing
// punctuation.
func ensureSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

// yearRange returns the min and max publication years across articles,
// ignoring articles without a year.
func yearRange(articles []*domain.Article) (int, int) {
	minYear, maxYear := 0, 0
	for _, a := range articles {
		if a.PublicationYear == 0 {
			continue
		}
		if minYear == 0 || a.PublicationYear < minYear {
			minYear = a.PublicationYear
		}
		if a.PublicationYear > maxYear {
			maxYear = a.PublicationYear
		}
	}
	return minYear, maxYear
}

// commonMeshTerms returns up to limit MeSH terms shared by at least two
// articles, most frequent first.
func commonMeshTerms(articles []*domain.Article, limit int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, a := range articles {
		for _, term := range a.MeshTerms {
			if counts[term] == 0 {
				order = append(order, term)
			}
			counts[term]++
		}
	}

	// Stable selection: keep first-seen order among equally frequent terms.
	terms := make([]string, 0, limit)
	for threshold := len(articles); threshold >= 2 && len(terms) < limit; threshold-- {
		for _, term := range order {
			if counts[term] == threshold && len(terms) < limit {
				terms = append(terms, term)
			}
		}
	}
	return terms
}
