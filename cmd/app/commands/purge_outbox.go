package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
)

// RunPurgeOutbox deletes published outbox events older than days. Unpublished
// events are never touched. With dryRun it only reports how many would go.
func RunPurgeOutbox(
	ctx context.Context,
	outboxUseCase outboxUsecase.OutboxUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("purging published outbox events",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	before := time.Now().UTC().AddDate(0, 0, -days)
	count, err := outboxUseCase.PurgePublished(ctx, before, dryRun)
	if err != nil {
		return fmt.Errorf("failed to purge outbox events: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"count":   count,
			"days":    days,
			"dry_run": dryRun,
		}); err != nil {
			return err
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d published event(s) older than %d day(s)\n", count, days)
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d published event(s) older than %d day(s)\n", count, days)
	}

	logger.Info("purge completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}
