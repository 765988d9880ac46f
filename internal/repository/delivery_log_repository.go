package repository

import (
	"context"

	"github.com/helixir/literature-assistant/internal/domain"
)

// DeliveryLogRepository persists delivery records for audit. Records are
// append-only; there is no update or delete.
type DeliveryLogRepository interface {
	// Record appends one delivery attempt to the log.
	Record(ctx context.Context, record *domain.DeliveryRecord) error

	// ListBySession returns all delivery attempts for a session, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]*domain.DeliveryRecord, error)

	// CountByStatus returns the number of logged attempts with the given status.
	CountByStatus(ctx context.Context, status domain.DeliveryStatus) (int64, error)
}
