// internal/chain/rpc.go
package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/position"
)

const (
	lamportsPerSol = 1_000_000_000
	tokenBaseUnits = 1_000_000 // pump.fun tokens use 6 decimals

	// splMintDataLen is the fixed size of an SPL mint account.
	splMintDataLen = 82

	// whaleTxThreshold is the SOL size above which a single reserve move
	// counts as whale flow.
	whaleTxThreshold = 2.0
)

// PumpFunProgramID is the bonding-curve program the sniped tokens launch on.
var PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

// RPCProvider implements DataProvider over a Solana JSON-RPC endpoint.
type RPCProvider struct {
	client *rpc.Client
	logger *zap.Logger

	// last observed real SOL reserves per mint, for per-tick volume deltas
	mu           sync.Mutex
	lastReserves map[string]uint64
}

// NewRPCProvider creates a provider bound to the first RPC endpoint.
func NewRPCProvider(rpcURL string, logger *zap.Logger) *RPCProvider {
	return &RPCProvider{
		client:       rpc.New(rpcURL),
		logger:       logger.Named("chain"),
		lastReserves: make(map[string]uint64),
	}
}

// GetLiquidity returns the SOL held by the token's bonding curve.
func (p *RPCProvider) GetLiquidity(ctx context.Context, mint string) (float64, error) {
	curve, err := p.bondingCurveAddress(mint)
	if err != nil {
		return 0, err
	}

	state, err := p.fetchCurveState(ctx, curve)
	if err != nil {
		return 0, err
	}

	return float64(state.realSolReserves) / lamportsPerSol, nil
}

// GetAuthorities parses the SPL mint account and reports whether the mint
// and freeze authorities have been renounced.
func (p *RPCProvider) GetAuthorities(ctx context.Context, mint string) (Authorities, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return Authorities{}, fmt.Errorf("invalid mint address: %w", err)
	}

	info, err := p.getAccountInfo(ctx, mintKey)
	if err != nil {
		return Authorities{}, fmt.Errorf("fetch mint account: %w", err)
	}

	data := info.Value.Data.GetBinary()
	if len(data) < splMintDataLen {
		return Authorities{}, fmt.Errorf("mint account data too short: %d bytes", len(data))
	}

	// SPL mint layout: COption<Pubkey> mint authority at offset 0,
	// COption<Pubkey> freeze authority at offset 46. Option tag 0 means
	// the authority has been removed.
	mintOption := binary.LittleEndian.Uint32(data[0:4])
	freezeOption := binary.LittleEndian.Uint32(data[46:50])

	return Authorities{
		MintRenounced:   mintOption == 0,
		FreezeRenounced: freezeOption == 0,
	}, nil
}

// GetTick computes the current spot price from the bonding-curve reserves
// and derives interval volume from the reserve movement since last poll.
func (p *RPCProvider) GetTick(ctx context.Context, mint string) (position.Tick, error) {
	curve, err := p.bondingCurveAddress(mint)
	if err != nil {
		return position.Tick{}, err
	}

	state, err := p.fetchCurveState(ctx, curve)
	if err != nil {
		return position.Tick{}, err
	}

	if state.virtualTokenReserves == 0 {
		return position.Tick{}, fmt.Errorf("bonding curve for %s has zero token reserves", mint)
	}

	price := (float64(state.virtualSolReserves) / lamportsPerSol) /
		(float64(state.virtualTokenReserves) / tokenBaseUnits)

	p.mu.Lock()
	last, seen := p.lastReserves[mint]
	p.lastReserves[mint] = state.realSolReserves
	p.mu.Unlock()

	var volume float64
	if seen {
		delta := int64(state.realSolReserves) - int64(last)
		if delta < 0 {
			delta = -delta
		}
		volume = float64(delta) / lamportsPerSol
	}

	// Without a per-transaction stream the best whale estimate is a
	// reserve move large enough that it cannot be retail flow.
	var whaleVolume float64
	if volume >= whaleTxThreshold {
		whaleVolume = volume
	}

	return position.Tick{
		Time:        time.Now(),
		Price:       price,
		Volume:      volume,
		WhaleVolume: whaleVolume,
	}, nil
}

// ResolveCreatedMint looks up a creation transaction and returns the
// mint it minted, taken from the first post-transaction token balance.
func (p *RPCProvider) ResolveCreatedMint(ctx context.Context, signature string) (string, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature: %w", err)
	}

	maxVersion := uint64(0)
	tx, err := p.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return "", fmt.Errorf("fetch transaction %s: %w", signature, err)
	}
	if tx == nil || tx.Meta == nil || len(tx.Meta.PostTokenBalances) == 0 {
		return "", fmt.Errorf("transaction %s carries no token balances", signature)
	}

	return tx.Meta.PostTokenBalances[0].Mint.String(), nil
}

// Forget drops cached reserve state for a settled position.
func (p *RPCProvider) Forget(mint string) {
	p.mu.Lock()
	delete(p.lastReserves, mint)
	p.mu.Unlock()
}

type curveState struct {
	virtualTokenReserves uint64
	virtualSolReserves   uint64
	realTokenReserves    uint64
	realSolReserves      uint64
}

func (p *RPCProvider) bondingCurveAddress(mint string) (solana.PublicKey, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint address: %w", err)
	}

	curve, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mintKey.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	return curve, nil
}

func (p *RPCProvider) fetchCurveState(ctx context.Context, curve solana.PublicKey) (*curveState, error) {
	info, err := p.getAccountInfo(ctx, curve)
	if err != nil {
		return nil, fmt.Errorf("fetch bonding curve: %w", err)
	}

	// Anchor account: 8-byte discriminator, then four u64 reserve fields.
	data := info.Value.Data.GetBinary()
	if len(data) < 8+32 {
		return nil, fmt.Errorf("bonding curve data too short: %d bytes", len(data))
	}

	return &curveState{
		virtualTokenReserves: binary.LittleEndian.Uint64(data[8:16]),
		virtualSolReserves:   binary.LittleEndian.Uint64(data[16:24]),
		realTokenReserves:    binary.LittleEndian.Uint64(data[24:32]),
		realSolReserves:      binary.LittleEndian.Uint64(data[32:40]),
	}, nil
}

// getAccountInfo wraps the RPC call with a short bounded retry. The retry
// stays inside the caller's deadline so a stage-1 budget overrun is still
// attributed to the filter, not hidden here.
func (p *RPCProvider) getAccountInfo(ctx context.Context, key solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond

	operation := func() (*rpc.GetAccountInfoResult, error) {
		out, err := p.client.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return nil, err
		}
		if out == nil || out.Value == nil {
			return nil, backoff.Permanent(fmt.Errorf("account %s not found", key.String()))
		}
		return out, nil
	}

	notify := func(err error, duration time.Duration) {
		p.logger.Debug("Retrying account fetch",
			zap.String("account", key.String()),
			zap.Duration("backoff", duration),
			zap.Error(err))
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(3),
		backoff.WithNotify(notify))
}
