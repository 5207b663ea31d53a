// internal/monitor/summary.go
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/queue"
)

// SummaryReporter periodically logs a one-line health report: queue
// composition, pool state and trade performance.
type SummaryReporter struct {
	queue   *queue.Queue
	pool    *pool.Pool
	service *Service

	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSummaryReporter(q *queue.Queue, p *pool.Pool, svc *Service, interval time.Duration, logger *zap.Logger) *SummaryReporter {
	return &SummaryReporter{
		queue:    q,
		pool:     p,
		service:  svc,
		interval: interval,
		logger:   logger.Named("summary"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *SummaryReporter) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.report()
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *SummaryReporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *SummaryReporter) report() {
	counts := r.queue.Counts()
	snapshot := r.pool.Snapshot()

	wins := counts[queue.StatusProfit]
	losses := counts[queue.StatusLoss]
	winRate := 0.0
	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses) * 100
	}

	r.logger.Info("session summary",
		zap.Float64("pool_balance", snapshot.Balance),
		zap.Float64("pool_peak", snapshot.PeakBalance),
		zap.Float64("pool_trough", snapshot.TroughBalance),
		zap.Float64("roi_percent", snapshot.ROIPercent),
		zap.Int("total_trades", snapshot.TotalTrades),
		zap.Int("profitable_trades", snapshot.ProfitableTrades),
		zap.Int("open_positions", len(r.service.OpenPositions())),
		zap.Int("pending", counts[queue.StatusPending]),
		zap.Int("bought", counts[queue.StatusBought]),
		zap.Int("rejected", counts[queue.StatusRejected]),
		zap.Int("pool_depleted", counts[queue.StatusPoolDepleted]),
		zap.Int("wins", wins),
		zap.Int("losses", losses),
		zap.Float64("win_rate_percent", winRate))
}
