package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StartAchievementSweep runs sweeper every interval until ctx is cancelled.
// The returned channel is closed once the loop has exited.
func StartAchievementSweep(ctx context.Context, interval time.Duration, sweeper Sweeper, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	logger = logger.Named("sweep")

	go func() {
		defer close(done)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runSweep(ctx, interval, sweeper, logger)
			}
		}
	}()

	return done
}

func runSweep(ctx context.Context, interval time.Duration, sweeper Sweeper, logger *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	start := time.Now()
	unlocked, err := sweeper.Sweep(sweepCtx)
	if err != nil {
		logger.Warn("achievement sweep failed", zap.Error(err))
		return
	}
	logger.Info("achievement sweep finished",
		zap.Int("unlocked", unlocked),
		zap.Duration("took", time.Since(start)))
}
