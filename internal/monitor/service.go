// internal/monitor/service.go
// Package monitor runs the post-buy half of the pipeline: a tick session
// per open position, hold extensions from the analyzer, and settlement
// back into the capital pool when trades close.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/analyzer"
	"solana-pool-sniper/internal/chain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/gateway"
	"solana-pool-sniper/internal/pool"
)

// CandidateSettler finalizes a candidate record after its trade closed.
type CandidateSettler interface {
	MarkSettled(mint string, pnlPercent float64)
}

// Config carries the monitoring parameters.
type Config struct {
	PositionSize   float64
	MaxHoldMinutes int
	Interval       time.Duration
}

// Service owns every open position. It implements queue.PositionOpener
// for the admission side and gateway.TradeCloser for the execution side.
type Service struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
	runCtx   context.Context

	pool     *pool.Pool
	analyzer *analyzer.Analyzer
	provider chain.DataProvider
	gw       gateway.ExecutionGateway
	settler  CandidateSettler

	bus    *events.Bus
	logger *zap.Logger
}

func NewService(cfg Config, p *pool.Pool, a *analyzer.Analyzer, provider chain.DataProvider, gw gateway.ExecutionGateway, bus *events.Bus, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		sessions: make(map[string]*session),
		runCtx:   context.Background(),
		pool:     p,
		analyzer: a,
		provider: provider,
		gw:       gw,
		bus:      bus,
		logger:   logger.Named("monitor"),
	}
}

// SetCandidateSettler wires the admission side for settlement callbacks.
func (s *Service) SetCandidateSettler(settler CandidateSettler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settler = settler
}

// Start sets the context sessions run under. Call before the first buy.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCtx = ctx
}

// OpenPosition starts monitoring a freshly bought token.
func (s *Service) OpenPosition(mint string, entryPrice float64, tradeNo int) {
	s.mu.Lock()
	if _, exists := s.sessions[mint]; exists {
		s.mu.Unlock()
		s.logger.Warn("position already monitored", zap.String("mint", mint))
		return
	}
	sess := newSession(mint, entryPrice, tradeNo, s.cfg.MaxHoldMinutes)
	s.sessions[mint] = sess
	ctx := s.runCtx
	s.mu.Unlock()

	s.logger.Info("monitoring started",
		zap.String("mint", mint),
		zap.Float64("entry_price", entryPrice),
		zap.Int("trade_no", tradeNo),
		zap.Int("max_hold_minutes", s.cfg.MaxHoldMinutes))
	s.bus.EmitMonitoringStarted(mint, entryPrice)

	go sess.run(ctx, s)
}

// OnTradeClosed settles a finished trade: proceeds back to the pool,
// the candidate record finalized, the session torn down. Safe to call
// more than once per mint; only the first call settles.
func (s *Service) OnTradeClosed(mint string, pnlPercent float64, holdMinutes int) {
	s.mu.Lock()
	sess, ok := s.sessions[mint]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, mint)
	settler := s.settler
	s.mu.Unlock()

	sess.stop()

	balance := s.pool.Settle(sess.tradeNo, s.cfg.PositionSize, pnlPercent, holdMinutes)
	if settler != nil {
		settler.MarkSettled(mint, pnlPercent)
	}

	pnlAmount := s.cfg.PositionSize * pnlPercent / 100
	s.logger.Info("trade closed",
		zap.String("mint", mint),
		zap.Int("trade_no", sess.tradeNo),
		zap.Float64("pnl_percent", pnlPercent),
		zap.Float64("pnl_amount", pnlAmount),
		zap.Int("hold_minutes", holdMinutes),
		zap.Float64("pool_balance", balance))

	s.bus.EmitTradeClosed(mint, pnlPercent, pnlAmount, float64(holdMinutes))
	s.bus.EmitMonitoringStopped(mint, "trade closed")
}

// OpenPositions returns the mints currently under monitoring.
func (s *Service) OpenPositions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for mint := range s.sessions {
		out = append(out, mint)
	}
	return out
}

// CloseAll asks the gateway to liquidate every open position, then
// waits for the sessions to wind down. Used during shutdown.
func (s *Service) CloseAll(ctx context.Context, reason string) {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		rec := gateway.Recommendation{
			Mint:               sess.mint,
			CurrentGainPercent: sess.pos.GainPercent(),
			HoldMinutes:        int(sess.pos.HoldMinutes()),
			Reason:             reason,
			FullExit:           true,
		}
		if err := s.gw.RecommendExit(ctx, rec); err != nil {
			s.logger.Error("shutdown exit failed",
				zap.String("mint", sess.mint),
				zap.Error(err))
		}
	}

	for _, sess := range open {
		sess.stop()
		select {
		case <-sess.doneCh:
		case <-ctx.Done():
			return
		}
	}
}
