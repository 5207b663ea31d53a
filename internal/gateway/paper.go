// internal/gateway/paper.go
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/chain"
)

// PaperGateway fills buys at the current observed price and confirms
// full exits immediately, without touching the wallet. Used in dry runs
// and tests.
type PaperGateway struct {
	provider chain.DataProvider
	logger   *zap.Logger

	mu     sync.Mutex
	closer TradeCloser
	buys   int
}

func NewPaperGateway(provider chain.DataProvider, logger *zap.Logger) *PaperGateway {
	return &PaperGateway{
		provider: provider,
		logger:   logger.Named("paper_gateway"),
	}
}

// SetTradeCloser wires the consumer that receives exit confirmations.
func (g *PaperGateway) SetTradeCloser(c TradeCloser) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closer = c
}

// RequestBuy fills at the latest tick price.
func (g *PaperGateway) RequestBuy(ctx context.Context, mint string, amount float64) (BuyResult, error) {
	tick, err := g.provider.GetTick(ctx, mint)
	if err != nil {
		return BuyResult{}, fmt.Errorf("paper buy for %s: %w", mint, err)
	}
	if tick.Price <= 0 {
		return BuyResult{}, fmt.Errorf("paper buy for %s: no price available", mint)
	}

	g.mu.Lock()
	g.buys++
	n := g.buys
	g.mu.Unlock()

	sig := "paper-" + uuid.NewString()
	g.logger.Info("paper buy filled",
		zap.String("mint", mint),
		zap.Float64("amount", amount),
		zap.Float64("entry_price", tick.Price),
		zap.Int("paper_trade", n),
		zap.String("signature", sig))

	return BuyResult{EntryPrice: tick.Price, Signature: sig}, nil
}

// RecommendExit logs the plan and, on a full exit, settles the trade at
// the recommendation's gain as if the liquidation filled instantly.
func (g *PaperGateway) RecommendExit(_ context.Context, rec Recommendation) error {
	g.logger.Info("exit recommendation",
		zap.String("mint", rec.Mint),
		zap.Float64("gain_percent", rec.CurrentGainPercent),
		zap.Float64("confidence", rec.Confidence),
		zap.Int("tiers", len(rec.Tiers)),
		zap.Bool("full_exit", rec.FullExit),
		zap.String("reason", rec.Reason))

	if !rec.FullExit {
		return nil
	}

	g.mu.Lock()
	closer := g.closer
	g.mu.Unlock()

	if closer != nil {
		closer.OnTradeClosed(rec.Mint, rec.CurrentGainPercent, rec.HoldMinutes)
	}
	return nil
}
