package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

var subscriptionColumnNames = []string{
	"id", "service_name", "event_type", "webhook_url", "is_active", "retry_count", "timeout_seconds",
	"last_delivered_at", "last_failed_at", "failure_reason", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func newTestSubscription() *subscriptionDomain.EventSubscription {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &subscriptionDomain.EventSubscription{
		ID:             uuid.Must(uuid.NewV7()),
		ServiceName:    "billing",
		EventType:      "UserRegistered",
		WebhookURL:     "https://billing.internal/hooks/events",
		IsActive:       true,
		RetryCount:     3,
		TimeoutSeconds: 30,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgreSQLSubscriptionRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)
	sub := newTestSubscription()
	existingID := uuid.Must(uuid.NewV7())
	createdAt := sub.CreatedAt.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (service_name, event_type) DO UPDATE")).
		WithArgs(sub.ID, "billing", "UserRegistered", sub.WebhookURL, 3, 30, sub.CreatedAt, sub.UpdatedAt).
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames).AddRow(
			existingID.String(), "billing", "UserRegistered", sub.WebhookURL, true, 3, 30,
			nil, nil, nil, createdAt, sub.UpdatedAt,
		))

	require.NoError(t, repo.Upsert(context.Background(), sub))
	assert.Equal(t, existingID, sub.ID)
	assert.Equal(t, createdAt, sub.CreatedAt)
	assert.True(t, sub.IsActive)
}

func TestPostgreSQLSubscriptionRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)
	id := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_subscriptions WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	sub, err := repo.Get(context.Background(), id)
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, subscriptionDomain.ErrSubscriptionNotFound)
}

func TestPostgreSQLSubscriptionRepository_GetByEventType(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)
	sub := newTestSubscription()
	deliveredAt := sub.CreatedAt.Add(time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE event_type = $1 AND is_active = TRUE")).
		WithArgs("UserRegistered").
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames).AddRow(
			sub.ID.String(), sub.ServiceName, sub.EventType, sub.WebhookURL, true, 3, 30,
			deliveredAt, nil, nil, sub.CreatedAt, sub.UpdatedAt,
		))

	subs, err := repo.GetByEventType(context.Background(), "UserRegistered")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].LastDeliveredAt)
	assert.Equal(t, deliveredAt, *subs[0].LastDeliveredAt)
	assert.Nil(t, subs[0].FailureReason)
}

func TestPostgreSQLSubscriptionRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames))

	subs, err := repo.List(context.Background(), 40, 20)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPostgreSQLSubscriptionRepository_Deactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)
	id := uuid.Must(uuid.NewV7())
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = FALSE")).
		WithArgs(at, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Deactivate(context.Background(), id, at))

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = FALSE")).
		WithArgs(at, id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Deactivate(context.Background(), id, at), subscriptionDomain.ErrSubscriptionNotFound)
}

func TestPostgreSQLSubscriptionRepository_DeliveryStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSubscriptionRepository(db)
	id := uuid.Must(uuid.NewV7())
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET last_delivered_at = $1, failure_reason = NULL")).
		WithArgs(at, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordDeliverySuccess(context.Background(), id, at))

	mock.ExpectExec(regexp.QuoteMeta("SET last_failed_at = $1, failure_reason = $2")).
		WithArgs(at, "status 500 after 3 attempt(s)", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordDeliveryFailure(context.Background(), id, at, "status 500 after 3 attempt(s)"))
}
