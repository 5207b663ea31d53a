// internal/queue/rescorer.go
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Rescorer periodically retries pending candidates whose earlier
// attempts hit transient failures. Retries are sequential and paced so
// a backlog never hammers the RPC provider.
type Rescorer struct {
	queue *Queue

	interval    time.Duration
	cooldown    time.Duration
	pause       time.Duration
	maxAttempts int

	logger *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewRescorer(q *Queue, interval, cooldown time.Duration, maxAttempts int, logger *zap.Logger) *Rescorer {
	return &Rescorer{
		queue:       q,
		interval:    interval,
		cooldown:    cooldown,
		pause:       time.Second,
		maxAttempts: maxAttempts,
		logger:      logger.Named("rescorer"),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (r *Rescorer) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("rescorer started",
			zap.Duration("interval", r.interval),
			zap.Duration("cooldown", r.cooldown),
			zap.Int("max_attempts", r.maxAttempts))

		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (r *Rescorer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Rescorer) sweep(ctx context.Context) {
	mints := r.queue.PendingForRetry(r.cooldown)
	if len(mints) == 0 {
		return
	}

	r.logger.Debug("rescore sweep", zap.Int("candidates", len(mints)))

	for i, mint := range mints {
		if attempts := r.queue.Attempts(mint); attempts >= r.maxAttempts {
			r.queue.RejectExhausted(mint)
			continue
		}

		// No capital, no point scoring the rest of the backlog.
		if !r.queue.pool.CanFund(r.queue.cfg.PositionSize) {
			r.logger.Debug("sweep aborted, pool cannot fund",
				zap.Int("remaining", len(mints)-i))
			return
		}

		r.queue.Rescore(ctx, mint)

		select {
		case <-time.After(r.pause):
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}
