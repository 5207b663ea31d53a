// internal/gateway/gateway.go
// Package gateway defines the boundary to trade execution. The pipeline
// decides what to buy and when to leave; an ExecutionGateway owns how
// orders actually reach the market.
package gateway

import (
	"context"

	"solana-pool-sniper/internal/analyzer"
)

// BuyResult reports a confirmed entry.
type BuyResult struct {
	EntryPrice float64
	Signature  string
}

// Recommendation is the advisory exit plan handed to the execution side.
type Recommendation struct {
	Mint               string
	CurrentGainPercent float64
	HoldMinutes        int
	Confidence         float64
	Tiers              []analyzer.ExitTier
	Reason             string

	// FullExit asks for immediate liquidation instead of staged selling,
	// used when the hold window expires or conviction collapses.
	FullExit bool
}

// ExecutionGateway executes buys and receives exit recommendations.
type ExecutionGateway interface {
	// RequestBuy spends amount on the mint and returns the fill. An
	// error means no trade happened and any reservation must be undone
	// by the caller.
	RequestBuy(ctx context.Context, mint string, amount float64) (BuyResult, error)

	// RecommendExit forwards the current exit plan. Advisory only; the
	// gateway decides how and when to act on it.
	RecommendExit(ctx context.Context, rec Recommendation) error
}

// TradeCloser is notified when the execution side has fully unwound a
// position, with the realized outcome.
type TradeCloser interface {
	OnTradeClosed(mint string, pnlPercent float64, holdMinutes int)
}
