package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/eventbus/internal/broker"
)

// CacheInvalidationEventType is the event type handled by NewCacheInvalidationHandler.
const CacheInvalidationEventType = "CacheInvalidationRequested"

const scanBatchSize = 100

// NewCacheInvalidationHandler returns a handler that deletes every Redis key
// matching the envelope pattern. Events without a pattern are ignored.
func NewCacheInvalidationHandler(client redis.UniversalClient, logger *slog.Logger) broker.Handler {
	return func(ctx context.Context, env broker.Envelope) error {
		if env.Pattern == "" {
			logger.Warn("cache invalidation without pattern",
				slog.String("event_id", env.EventID),
			)
			return nil
		}

		deleted, err := deleteMatching(ctx, client, env.Pattern)
		if err != nil {
			return err
		}

		logger.Info("cache invalidated",
			slog.String("event_id", env.EventID),
			slog.String("pattern", env.Pattern),
			slog.Int64("deleted", deleted),
		)
		return nil
	}
}

// deleteMatching collects every key matching pattern before deleting any, so
// deletions cannot shift the SCAN cursor past keys not yet visited.
func deleteMatching(ctx context.Context, client redis.UniversalClient, pattern string) (int64, error) {
	seen := make(map[string]struct{})
	var keys []string

	iter := client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	var deleted int64
	for batch := range slices.Chunk(keys, scanBatchSize) {
		n, err := client.Unlink(ctx, batch...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis batch delete: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}
