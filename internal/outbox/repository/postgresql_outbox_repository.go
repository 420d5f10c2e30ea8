// Package repository implements outbox event persistence for PostgreSQL and MySQL.
// Every method runs on the transaction carried by the context when there is one,
// so appends join the caller's business transaction and batch claims hold their row locks.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/database"
	apperrors "github.com/allisson/eventbus/internal/errors"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

const postgresOutboxColumns = `id, event_type, event_payload, topic, partition_key, correlation_id,
			  occurred_at, created_at, is_published, published_at, publish_attempts, last_error_message`

// PostgreSQLOutboxEventRepository implements OutboxEvent persistence for PostgreSQL databases.
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQL OutboxEvent repository instance.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{db: db}
}

// Create inserts a new outbox event.
func (p *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO outbox_events (id, event_type, event_payload, topic, partition_key, correlation_id,
			  occurred_at, created_at, is_published, published_at, publish_attempts, last_error_message)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.ID,
		event.EventType,
		event.EventPayload,
		event.Topic,
		event.PartitionKey,
		event.CorrelationID,
		event.OccurredAt,
		event.CreatedAt,
		event.IsPublished,
		event.PublishedAt,
		event.PublishAttempts,
		event.LastErrorMessage,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// Get retrieves an outbox event by ID.
func (p *PostgreSQLOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresOutboxColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanPostgreSQLOutboxEvent(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outboxDomain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return event, nil
}

// GetUnpublished claims up to batchSize unpublished events below the attempt
// ceiling, oldest first. Rows locked by another publisher are skipped; the locks
// are held until the surrounding transaction ends.
func (p *PostgreSQLOutboxEventRepository) GetUnpublished(
	ctx context.Context,
	batchSize int,
	maxAttempts int,
) ([]*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresOutboxColumns + `
			  FROM outbox_events
			  WHERE is_published = FALSE AND publish_attempts < $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	return p.list(ctx, querier, query, maxAttempts, batchSize)
}

// MarkAsPublished flags an event as published. Already published rows are left untouched.
func (p *PostgreSQLOutboxEventRepository) MarkAsPublished(
	ctx context.Context,
	id uuid.UUID,
	publishedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbox_events
			  SET is_published = TRUE, published_at = $1
			  WHERE id = $2 AND is_published = FALSE`

	if _, err := querier.ExecContext(ctx, query, publishedAt, id); err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event as published")
	}
	return nil
}

// UpdatePublishAttempt records a failed publish attempt.
func (p *PostgreSQLOutboxEventRepository) UpdatePublishAttempt(
	ctx context.Context,
	id uuid.UUID,
	errorMessage string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbox_events
			  SET publish_attempts = publish_attempts + 1, last_error_message = $1
			  WHERE id = $2 AND is_published = FALSE`

	if _, err := querier.ExecContext(ctx, query, errorMessage, id); err != nil {
		return apperrors.Wrap(err, "failed to update outbox publish attempt")
	}
	return nil
}

// ExhaustPublishAttempts records a failure that retrying cannot fix by lifting
// the attempt counter to maxAttempts, which removes the row from future batches.
func (p *PostgreSQLOutboxEventRepository) ExhaustPublishAttempts(
	ctx context.Context,
	id uuid.UUID,
	maxAttempts int,
	errorMessage string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbox_events
			  SET publish_attempts = GREATEST(publish_attempts + 1, $1), last_error_message = $2
			  WHERE id = $3 AND is_published = FALSE`

	if _, err := querier.ExecContext(ctx, query, maxAttempts, errorMessage, id); err != nil {
		return apperrors.Wrap(err, "failed to exhaust outbox publish attempts")
	}
	return nil
}

// ListDeadLettered returns unpublished events that reached the attempt ceiling.
func (p *PostgreSQLOutboxEventRepository) ListDeadLettered(
	ctx context.Context,
	maxAttempts int,
	offset int,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresOutboxColumns + `
			  FROM outbox_events
			  WHERE is_published = FALSE AND publish_attempts >= $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2 OFFSET $3`

	return p.list(ctx, querier, query, maxAttempts, limit, offset)
}

// Requeue resets the attempt counter of an unpublished event.
func (p *PostgreSQLOutboxEventRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbox_events
			  SET publish_attempts = 0, last_error_message = NULL
			  WHERE id = $1 AND is_published = FALSE`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to requeue outbox event")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return outboxDomain.ErrOutboxEventNotFound
	}
	return nil
}

// CountPublishedBefore counts published events older than the given time.
func (p *PostgreSQLOutboxEventRepository) CountPublishedBefore(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM outbox_events WHERE is_published = TRUE AND published_at < $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count published outbox events")
	}
	return count, nil
}

// DeletePublishedBefore removes published events older than the given time.
// Unpublished rows are never deleted.
func (p *PostgreSQLOutboxEventRepository) DeletePublishedBefore(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM outbox_events WHERE is_published = TRUE AND published_at < $1`

	result, err := querier.ExecContext(ctx, query, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete published outbox events")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

func (p *PostgreSQLOutboxEventRepository) list(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*outboxDomain.OutboxEvent, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*outboxDomain.OutboxEvent, 0)
	for rows.Next() {
		event, err := scanPostgreSQLOutboxEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLOutboxEvent(row rowScanner) (*outboxDomain.OutboxEvent, error) {
	var event outboxDomain.OutboxEvent
	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.EventPayload,
		&event.Topic,
		&event.PartitionKey,
		&event.CorrelationID,
		&event.OccurredAt,
		&event.CreatedAt,
		&event.IsPublished,
		&event.PublishedAt,
		&event.PublishAttempts,
		&event.LastErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
