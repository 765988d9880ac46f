package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-assistant/internal/domain"
)

// Compile-time interface verification.
var _ DeliveryLogRepository = (*PgDeliveryLogRepository)(nil)

// PgDeliveryLogRepository is a PostgreSQL implementation of DeliveryLogRepository.
type PgDeliveryLogRepository struct {
	db DBTX
}

// NewPgDeliveryLogRepository creates a new PostgreSQL delivery log repository.
func NewPgDeliveryLogRepository(db DBTX) *PgDeliveryLogRepository {
	return &PgDeliveryLogRepository{db: db}
}

// Record appends one delivery attempt to the log.
func (r *PgDeliveryLogRepository) Record(ctx context.Context, record *domain.DeliveryRecord) error {
	if record == nil {
		return fmt.Errorf("delivery record is required")
	}
	if record.SessionID == "" {
		return fmt.Errorf("delivery record session ID is required")
	}
	if record.Recipient == "" {
		return fmt.Errorf("delivery record recipient is required")
	}
	switch record.Status {
	case domain.DeliveryStatusSent, domain.DeliveryStatusFailed:
	default:
		return fmt.Errorf("invalid delivery status: %q", record.Status)
	}

	attemptedAt := record.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO delivery_log (
			id, session_id, recipient, subject, status, reason,
			article_count, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		uuid.New(), record.SessionID, record.Recipient, record.Subject,
		string(record.Status), record.Reason, record.ArticleCount, attemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}
	return nil
}

// ListBySession returns all delivery attempts for a session, oldest first.
func (r *PgDeliveryLogRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.DeliveryRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	query := `
		SELECT session_id, recipient, subject, status, reason, article_count, attempted_at
		FROM delivery_log
		WHERE session_id = $1
		ORDER BY attempted_at ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery log: %w", err)
	}
	defer rows.Close()

	var records []*domain.DeliveryRecord
	for rows.Next() {
		var record domain.DeliveryRecord
		var status string
		if err := rows.Scan(
			&record.SessionID, &record.Recipient, &record.Subject, &status,
			&record.Reason, &record.ArticleCount, &record.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		record.Status = domain.DeliveryStatus(status)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery log: %w", err)
	}

	return records, nil
}

// CountByStatus returns the number of logged attempts with the given status.
func (r *PgDeliveryLogRepository) CountByStatus(ctx context.Context, status domain.DeliveryStatus) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM delivery_log WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count delivery records: %w", err)
	}
	return count, nil
}
