// internal/chain/provider.go
package chain

import (
	"context"

	"solana-pool-sniper/internal/position"
)

// Authorities reports whether a token's supply controls have been given up.
type Authorities struct {
	MintRenounced   bool
	FreezeRenounced bool
}

// Renounced reports whether both authorities are gone.
func (a Authorities) Renounced() bool {
	return a.MintRenounced && a.FreezeRenounced
}

// DataProvider supplies the on-chain facts the admission pipeline and the
// position monitors need. Errors from any method are treated as transient
// by callers; criteria failures are values, not errors.
type DataProvider interface {
	// GetLiquidity returns the SOL-denominated liquidity backing the token.
	GetLiquidity(ctx context.Context, mint string) (float64, error)

	// GetAuthorities reports the mint/freeze authority state of the token.
	GetAuthorities(ctx context.Context, mint string) (Authorities, error)

	// GetTick returns the current market observation for an open position.
	GetTick(ctx context.Context, mint string) (position.Tick, error)
}
