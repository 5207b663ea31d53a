// internal/monitor/session.go
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/gateway"
	"solana-pool-sniper/internal/position"
)

// session tracks one open position until its trade closes.
type session struct {
	mint    string
	tradeNo int
	pos     *position.Position

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newSession(mint string, entryPrice float64, tradeNo, maxHoldMinutes int) *session {
	return &session{
		mint:    mint,
		tradeNo: tradeNo,
		pos:     position.New(mint, entryPrice, maxHoldMinutes),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// run is the session's tick loop. Each pass refreshes market data,
// re-scores the hold and forwards the exit plan to the gateway.
func (s *session) run(ctx context.Context, svc *Service) {
	defer close(s.doneCh)

	ticker := time.NewTicker(svc.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evaluate(ctx, svc)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *session) evaluate(ctx context.Context, svc *Service) {
	tick, err := svc.provider.GetTick(ctx, s.mint)
	if err != nil {
		svc.logger.Warn("tick fetch failed",
			zap.String("mint", s.mint),
			zap.Error(err))
		return
	}
	s.pos.UpdateTick(tick)

	decision := svc.analyzer.Evaluate(s.pos)
	gain := s.pos.GainPercent()
	holdMinutes := int(s.pos.HoldMinutes())

	if decision.ShouldHold && decision.ExtendMinutes > 0 {
		newMax := s.pos.ExtendHold(decision.ExtendMinutes)
		svc.logger.Info("hold extended",
			zap.String("mint", s.mint),
			zap.Int("extra_minutes", decision.ExtendMinutes),
			zap.Int("new_max_minutes", newMax),
			zap.Float64("confidence", decision.Confidence),
			zap.Float64("gain_percent", gain))
		svc.bus.EmitHoldExtended(s.mint, decision.ExtendMinutes, newMax,
			decision.Confidence, len(decision.Signals), gain)
	}

	rec := gateway.Recommendation{
		Mint:               s.mint,
		CurrentGainPercent: gain,
		HoldMinutes:        holdMinutes,
		Confidence:         decision.Confidence,
		Tiers:              decision.ExitTiers,
	}

	switch {
	case s.pos.Expired():
		rec.FullExit = true
		rec.Reason = "hold window expired"
	case !decision.ShouldHold:
		rec.FullExit = true
		rec.Reason = "conviction lost"
	default:
		rec.Reason = "staged exit plan"
	}

	if err := svc.gw.RecommendExit(ctx, rec); err != nil {
		svc.logger.Warn("exit recommendation failed",
			zap.String("mint", s.mint),
			zap.Error(err))
	}
}
