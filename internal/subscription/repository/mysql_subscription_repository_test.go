package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBinary(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLSubscriptionRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLSubscriptionRepository(db)
	sub := newTestSubscription()
	existingID := uuid.Must(uuid.NewV7())

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs(mustBinary(t, sub.ID), "billing", "UserRegistered", sub.WebhookURL, 3, 30, sub.CreatedAt, sub.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE service_name = ? AND event_type = ?")).
		WithArgs("billing", "UserRegistered").
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames).AddRow(
			mustBinary(t, existingID), "billing", "UserRegistered", sub.WebhookURL, 1, 3, 30,
			nil, nil, nil, sub.CreatedAt, sub.UpdatedAt,
		))

	require.NoError(t, repo.Upsert(context.Background(), sub))
	assert.Equal(t, existingID, sub.ID)
	assert.True(t, sub.IsActive)
}

func TestMySQLSubscriptionRepository_DeliveryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLSubscriptionRepository(db)
	id := uuid.Must(uuid.NewV7())
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET last_failed_at = ?, failure_reason = ?, updated_at = ?")).
		WithArgs(at, "connection refused", at, mustBinary(t, id)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordDeliveryFailure(context.Background(), id, at, "connection refused"))
}
