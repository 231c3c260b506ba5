package service

import (
	"context"
	"log/slog"
	"time"
)

// RunExpirySweeper calls ExpireStale every interval until ctx is cancelled.
func RunExpirySweeper(ctx context.Context, foods FoodService, olderThan, interval time.Duration, logger *slog.Logger) {
	if olderThan <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := foods.ExpireStale(ctx, olderThan); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
