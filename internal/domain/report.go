package domain

import "time"

// MatrixRow holds the study attributes extracted from one article's abstract.
// An article whose abstract could not be parsed into the schema is still
// represented by a row with Unparsed set, so the matrix always accounts for
// every input article.
type MatrixRow struct {
	ArticleID    string
	Title        string
	Population   string
	Intervention string
	Outcome      string
	KeyFinding   string
	Unparsed     bool
}

// EvidenceMatrix is the tabular comparison of study attributes across the
// retrieved articles. Rows follow the input article order.
type EvidenceMatrix struct {
	Rows []MatrixRow
}

// ParsedRows returns the rows whose abstracts were successfully parsed.
func (m *EvidenceMatrix) ParsedRows() []MatrixRow {
	parsed := make([]MatrixRow, 0, len(m.Rows))
	for _, row := range m.Rows {
		if !row.Unparsed {
			parsed = append(parsed, row)
		}
	}
	return parsed
}

// UnparsedCount returns the number of rows flagged as unparsed.
func (m *EvidenceMatrix) UnparsedCount() int {
	n := 0
	for _, row := range m.Rows {
		if row.Unparsed {
			n++
		}
	}
	return n
}

// Report is the synthesized output handed to the delivery coordinator: the
// evidence matrix plus a narrative summary. The narrative references only
// identifiers present in the matrix.
type Report struct {
	Query     string
	Matrix    EvidenceMatrix
	Narrative string
	CreatedAt time.Time
}

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryRecord captures the outcome of one send attempt. Records are
// appended and never mutated after creation.
type DeliveryRecord struct {
	SessionID    string
	Recipient    string
	Subject      string
	Status       DeliveryStatus
	Reason       string
	ArticleCount int
	AttemptedAt  time.Time
}
