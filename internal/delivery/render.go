package delivery

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/helixir/literature-assistant/internal/domain"
)

// maxSubjectQueryLen bounds how much of the query appears in the subject line.
const maxSubjectQueryLen = 80

// emailData is the template context for the report email.
type emailData struct {
	Query     string
	Narrative []string
	Rows      []domain.MatrixRow
	Articles  []articleData
	Unparsed  int
	CreatedAt string
}

// articleData is the per-article reference block in the email.
type articleData struct {
	Title      string
	AuthorLine string
	Journal    string
	Year       int
	URL        string
}

var emailTemplate = template.Must(template.New("report").Parse(`<html>
<head>
<style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #2d3748; max-width: 860px; margin: 0 auto; padding: 20px; }
    .header { background: #2c5282; color: white; padding: 20px; margin-bottom: 30px; border-radius: 5px; }
    .narrative { margin-bottom: 30px; }
    table.matrix { border-collapse: collapse; width: 100%; margin-bottom: 30px; font-size: 14px; }
    table.matrix th { background: #edf2f7; text-align: left; padding: 8px; border: 1px solid #cbd5e0; }
    table.matrix td { padding: 8px; border: 1px solid #cbd5e0; vertical-align: top; }
    .unparsed { color: #718096; font-style: italic; }
    .article { margin-bottom: 20px; padding: 15px; border: 1px solid #e2e8f0; border-radius: 5px; }
    .article-title { color: #2c5282; font-size: 18px; margin-bottom: 5px; }
    .metadata { color: #718096; font-size: 13px; }
    .link { color: #4299e1; text-decoration: none; display: inline-block; margin-top: 8px; }
    .footer { text-align: center; margin-top: 30px; color: #718096; font-size: 13px; }
</style>
</head>
<body>
<div class="header">
    <h1>Medical Literature Summary</h1>
    <p>Evidence report for your question: {{.Query}}</p>
</div>
<div class="narrative">
{{- range .Narrative}}
    <p>{{.}}</p>
{{- end}}
</div>
<h2>Evidence Matrix</h2>
<table class="matrix">
<tr><th>Study</th><th>Population</th><th>Intervention</th><th>Outcome</th><th>Key Finding</th></tr>
{{- range .Rows}}
{{- if .Unparsed}}
<tr><td>{{.Title}}</td><td colspan="4" class="unparsed">Abstract could not be summarized</td></tr>
{{- else}}
<tr><td>{{.Title}}</td><td>{{.Population}}</td><td>{{.Intervention}}</td><td>{{.Outcome}}</td><td>{{.KeyFinding}}</td></tr>
{{- end}}
{{- end}}
</table>
<h2>Articles</h2>
{{- range .Articles}}
<div class="article">
    <div class="article-title">{{.Title}}</div>
    {{- if .AuthorLine}}
    <div class="metadata">{{.AuthorLine}}</div>
    {{- end}}
    <div class="metadata">{{if .Journal}}{{.Journal}}{{end}}{{if .Year}}{{if .Journal}} | {{end}}{{.Year}}{{end}}</div>
    {{- if .URL}}
    <a href="{{.URL}}" class="link">View on PubMed</a>
    {{- end}}
</div>
{{- end}}
<div class="footer">
    <p>This report was generated automatically on {{.CreatedAt}}.</p>
    <p>It is a literature summary, not medical advice.</p>
</div>
</body>
</html>
`))

// RenderEmail renders the report and its articles into the email subject and
// HTML body.
func RenderEmail(report *domain.Report, articles []*domain.Article) (subject, body string, err error) {
	data := emailData{
		Query:     report.Query,
		Narrative: splitParagraphs(report.Narrative),
		Rows:      report.Matrix.Rows,
		Articles:  make([]articleData, 0, len(articles)),
		Unparsed:  report.Matrix.UnparsedCount(),
		CreatedAt: report.CreatedAt.Format("January 2, 2006 15:04 MST"),
	}
	for _, a := range articles {
		data.Articles = append(data.Articles, articleData{
			Title:      a.Title,
			AuthorLine: a.AuthorLine(),
			Journal:    a.Journal,
			Year:       a.PublicationYear,
			URL:        a.URL,
		})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render report email: %w", err)
	}

	return buildSubject(report.Query), buf.String(), nil
}

// buildSubject builds the subject line, truncating long queries on a rune
// boundary so multi-byte characters are never split.
func buildSubject(query string) string {
	query = strings.TrimSpace(query)
	if runes := []rune(query); len(runes) > maxSubjectQueryLen {
		query = string(runes[:maxSubjectQueryLen]) + "..."
	}
	return "Medical literature summary: " + query
}

// splitParagraphs splits the narrative on blank lines, then on single
// newlines, so each narrative line becomes its own paragraph.
func splitParagraphs(narrative string) []string {
	paragraphs := make([]string, 0)
	for _, block := range strings.Split(narrative, "\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}
