package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on each tick until ctx is done.
// Runs never overlap; a tick that fires during a run is dropped.
func Every(ctx context.Context, interval time.Duration, name string, log *zap.Logger, task Task) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(name)
	if interval <= 0 {
		log.Debug("schedule disabled")
		return
	}

	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			log.Error("task failed", zap.Error(err), zap.Duration("took", time.Since(start)))
			return
		}
		log.Debug("task done", zap.Duration("took", time.Since(start)))
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
