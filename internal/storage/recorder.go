// internal/storage/recorder.go
package storage

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/storage/models"
)

// LedgerSink forwards pool ledger entries into persistent storage.
type LedgerSink struct {
	st      Storage
	timeout time.Duration
}

func NewLedgerSink(st Storage) *LedgerSink {
	return &LedgerSink{st: st, timeout: 5 * time.Second}
}

func (s *LedgerSink) Record(e pool.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.st.SaveLedgerEntry(ctx, &models.LedgerEntry{
		Timestamp:     e.Timestamp,
		EntryType:     string(e.Type),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		TradeNumber:   e.TradeNumber,
		Notes:         e.Notes,
	})
}

// CandidateSource exposes the live candidate record for a mint.
type CandidateSource interface {
	Candidate(mint string) (queue.Candidate, bool)
}

// CandidateRecorder keeps the candidates table in sync with the queue
// by persisting a fresh snapshot whenever a lifecycle event fires.
type CandidateRecorder struct {
	st     Storage
	source CandidateSource
	logger *zap.Logger
}

func NewCandidateRecorder(st Storage, source CandidateSource, logger *zap.Logger) *CandidateRecorder {
	return &CandidateRecorder{
		st:     st,
		source: source,
		logger: logger.Named("recorder"),
	}
}

// Attach subscribes to every candidate lifecycle event on the bus.
func (r *CandidateRecorder) Attach(bus *events.Bus) {
	handler := func(ctx context.Context, ev events.Event) error {
		mint := mintOf(ev)
		if mint == "" {
			return nil
		}
		return r.persist(ctx, mint)
	}

	for _, t := range []events.EventType{
		events.CandidateDetected,
		events.CandidateRejected,
		events.CandidateBought,
		events.PoolDepleted,
		events.TradeClosed,
	} {
		bus.SubscribeFunc(t, handler)
	}
}

func (r *CandidateRecorder) persist(ctx context.Context, mint string) error {
	cand, ok := r.source.Candidate(mint)
	if !ok {
		return nil
	}

	err := r.st.UpsertCandidate(ctx, &models.CandidateRecord{
		Mint:        cand.Mint,
		Signature:   cand.Signature,
		Status:      string(cand.Status),
		Reason:      cand.Reason,
		Errors:      strings.Join(cand.Errors, "; "),
		Attempts:    cand.Attempts,
		FirstSeen:   cand.FirstSeen,
		LastAttempt: cand.LastAttempt,
		Liquidity:   cand.Liquidity,
		EntryPrice:  cand.EntryPrice,
		TradeNo:     cand.TradeNo,
		PnLPercent:  cand.PnLPercent,
	})
	if err != nil {
		r.logger.Error("candidate upsert failed",
			zap.String("mint", mint),
			zap.Error(err))
	}
	return err
}

func mintOf(ev events.Event) string {
	switch e := ev.(type) {
	case *events.CandidateDetectedEvent:
		return e.TokenMint
	case *events.CandidateRejectedEvent:
		return e.TokenMint
	case *events.CandidateBoughtEvent:
		return e.TokenMint
	case *events.PoolDepletedEvent:
		return e.TokenMint
	case *events.TradeClosedEvent:
		return e.TokenMint
	}
	return ""
}
