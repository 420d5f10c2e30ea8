package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
)

// RunRequeueEvent resets the publish attempts of a dead-lettered event so the
// publisher picks it up on its next cycle.
func RunRequeueEvent(
	ctx context.Context,
	outboxUseCase outboxUsecase.OutboxUseCase,
	logger *slog.Logger,
	writer io.Writer,
	eventID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	id, err := uuid.Parse(eventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", eventID, err)
	}

	if err := outboxUseCase.Requeue(ctx, id); err != nil {
		return fmt.Errorf("failed to requeue event: %w", err)
	}

	logger.Info("outbox event requeued", slog.String("event_id", id.String()))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"event_id": id.String(),
			"requeued": true,
		})
	}

	_, err = fmt.Fprintf(writer, "Event %s requeued for publishing\n", id)
	return err
}
