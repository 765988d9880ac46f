package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-assistant/internal/domain"
)

func sentRecord() *domain.DeliveryRecord {
	return &domain.DeliveryRecord{
		SessionID:    "3f1c3f9a-7f1e-4a07-9a71-1f6a4b8e2d10",
		Recipient:    "clinician@example.org",
		Subject:      "Medical literature summary: metformin",
		Status:       domain.DeliveryStatusSent,
		ArticleCount: 5,
		AttemptedAt:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestPgDeliveryLogRepository_Record(t *testing.T) {
	t.Run("inserts sent record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)
		record := sentRecord()

		mock.ExpectExec(`INSERT INTO delivery_log`).
			WithArgs(pgxmock.AnyArg(), record.SessionID, record.Recipient, record.Subject,
				"sent", "", 5, record.AttemptedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Record(context.Background(), record))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts failed record with reason", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)
		record := sentRecord()
		record.Status = domain.DeliveryStatusFailed
		record.Reason = "smtp: 550 mailbox unavailable"

		mock.ExpectExec(`INSERT INTO delivery_log`).
			WithArgs(pgxmock.AnyArg(), record.SessionID, record.Recipient, record.Subject,
				"failed", record.Reason, 5, record.AttemptedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Record(context.Background(), record))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)

		tests := []struct {
			name   string
			mutate func(*domain.DeliveryRecord) *domain.DeliveryRecord
			want   string
		}{
			{
				name:   "nil record",
				mutate: func(*domain.DeliveryRecord) *domain.DeliveryRecord { return nil },
				want:   "record is required",
			},
			{
				name: "missing session",
				mutate: func(r *domain.DeliveryRecord) *domain.DeliveryRecord {
					r.SessionID = ""
					return r
				},
				want: "session ID is required",
			},
			{
				name: "missing recipient",
				mutate: func(r *domain.DeliveryRecord) *domain.DeliveryRecord {
					r.Recipient = ""
					return r
				},
				want: "recipient is required",
			},
			{
				name: "unknown status",
				mutate: func(r *domain.DeliveryRecord) *domain.DeliveryRecord {
					r.Status = "queued"
					return r
				},
				want: "invalid delivery status",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := repo.Record(context.Background(), tt.mutate(sentRecord()))
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}

		// No SQL was issued for rejected records.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)

		mock.ExpectExec(`INSERT INTO delivery_log`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		err = repo.Record(context.Background(), sentRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert delivery record")
	})
}

func TestPgDeliveryLogRepository_ListBySession(t *testing.T) {
	t.Run("returns records oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)
		sessionID := "3f1c3f9a-7f1e-4a07-9a71-1f6a4b8e2d10"
		first := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
		second := first.Add(2 * time.Minute)

		mock.ExpectQuery(`SELECT session_id, recipient, subject, status, reason, article_count, attempted_at FROM delivery_log`).
			WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{
				"session_id", "recipient", "subject", "status", "reason", "article_count", "attempted_at",
			}).
				AddRow(sessionID, "wrong@example.org", "Medical literature summary: metformin", "failed", "smtp: mailbox unavailable", 5, first).
				AddRow(sessionID, "clinician@example.org", "Medical literature summary: metformin", "sent", "", 5, second))

		records, err := repo.ListBySession(context.Background(), sessionID)
		require.NoError(t, err)

		require.Len(t, records, 2)
		assert.Equal(t, domain.DeliveryStatusFailed, records[0].Status)
		assert.Equal(t, "smtp: mailbox unavailable", records[0].Reason)
		assert.Equal(t, domain.DeliveryStatusSent, records[1].Status)
		assert.Equal(t, "clinician@example.org", records[1].Recipient)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty list for unknown session", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)

		mock.ExpectQuery(`SELECT session_id, recipient, subject, status, reason, article_count, attempted_at FROM delivery_log`).
			WithArgs("unknown").
			WillReturnRows(pgxmock.NewRows([]string{
				"session_id", "recipient", "subject", "status", "reason", "article_count", "attempted_at",
			}))

		records, err := repo.ListBySession(context.Background(), "unknown")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("rejects empty session ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDeliveryLogRepository(mock)

		_, err = repo.ListBySession(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session ID is required")
	})
}

func TestPgDeliveryLogRepository_CountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgDeliveryLogRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM delivery_log`).
		WithArgs("failed").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := repo.CountByStatus(context.Background(), domain.DeliveryStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
