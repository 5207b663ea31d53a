// internal/queue/queue.go
// Package queue admits detected tokens into the trading pipeline. Every
// candidate passes capital gating, stage one filtering and allocation in
// one pass; anything transient stays pending for the rescorer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/chain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/gateway"
	"solana-pool-sniper/internal/pool"
)

// PositionOpener receives successfully bought candidates for monitoring.
type PositionOpener interface {
	OpenPosition(mint string, entryPrice float64, tradeNo int)
}

// Config carries the admission parameters.
type Config struct {
	PositionSize     float64
	MinLiquidity     float64
	ProcessingBudget time.Duration
	MaxAttempts      int
}

// Queue is the single admission point. A mint is processed at most once
// per attempt and recorded exactly once for its lifetime.
type Queue struct {
	cfg Config

	mu         sync.Mutex
	processed  map[string]struct{}
	candidates map[string]*Candidate
	inFlight   map[string]bool

	pool     *pool.Pool
	provider chain.DataProvider
	gw       gateway.ExecutionGateway
	opener   PositionOpener

	bus    *events.Bus
	logger *zap.Logger
}

func New(cfg Config, p *pool.Pool, provider chain.DataProvider, gw gateway.ExecutionGateway, bus *events.Bus, logger *zap.Logger) *Queue {
	return &Queue{
		cfg:        cfg,
		processed:  make(map[string]struct{}),
		candidates: make(map[string]*Candidate),
		inFlight:   make(map[string]bool),
		pool:       p,
		provider:   provider,
		gw:         gw,
		bus:        bus,
		logger:     logger.Named("queue"),
	}
}

// SetPositionOpener wires the monitoring side. Must be called before
// the first admission.
func (q *Queue) SetPositionOpener(o PositionOpener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.opener = o
}

// Admit runs a detected token through the pipeline and returns the
// status this attempt ended in. A mint already seen is turned away with
// StatusRejected and its original record is left untouched.
func (q *Queue) Admit(ctx context.Context, mint, signature string) Status {
	q.mu.Lock()
	if _, seen := q.processed[mint]; seen {
		q.mu.Unlock()
		q.logger.Debug("duplicate candidate ignored", zap.String("mint", mint))
		return StatusRejected
	}
	q.processed[mint] = struct{}{}

	cand := &Candidate{
		Mint:      mint,
		Signature: signature,
		Status:    StatusPending,
		FirstSeen: time.Now(),
	}
	q.candidates[mint] = cand
	q.inFlight[mint] = true
	q.mu.Unlock()

	q.logger.Info("candidate detected",
		zap.String("mint", mint),
		zap.String("signature", signature))
	q.bus.EmitCandidateDetected(mint, signature)

	return q.process(ctx, mint)
}

// Rescore reruns the pipeline for a pending candidate. Terminal and
// in-flight candidates are left alone.
func (q *Queue) Rescore(ctx context.Context, mint string) Status {
	q.mu.Lock()
	cand, ok := q.candidates[mint]
	if !ok || cand.Status != StatusPending || q.inFlight[mint] {
		status := StatusRejected
		if ok {
			status = cand.Status
		}
		q.mu.Unlock()
		return status
	}
	q.inFlight[mint] = true
	q.mu.Unlock()

	return q.process(ctx, mint)
}

// process is one full admission attempt: capital gate, stage one
// filters, allocation, buy. Caller must have marked the mint in flight.
func (q *Queue) process(ctx context.Context, mint string) Status {
	defer func() {
		q.mu.Lock()
		delete(q.inFlight, mint)
		q.mu.Unlock()
	}()

	q.touchAttempt(mint)

	// Capital gate before any scoring work: a pool that cannot fund the
	// position makes filtering pointless.
	if !q.pool.CanFund(q.cfg.PositionSize) {
		return q.markDepleted(mint)
	}

	q.setStatus(mint, StatusAnalyzing, "")
	start := time.Now()

	// The budget caps the fetches themselves, not just the elapsed
	// check afterwards: a hung provider must not pin this goroutine.
	fetchCtx, cancel := context.WithTimeout(ctx, q.cfg.ProcessingBudget)
	defer cancel()

	liquidity, err := q.provider.GetLiquidity(fetchCtx, mint)
	if err != nil {
		return q.filterFailure(mint, "liquidity lookup", err)
	}
	q.setLiquidity(mint, liquidity)

	if liquidity < q.cfg.MinLiquidity {
		return q.reject(mint, fmt.Sprintf("liquidity %.2f below minimum %.2f", liquidity, q.cfg.MinLiquidity))
	}

	auth, err := q.provider.GetAuthorities(fetchCtx, mint)
	if err != nil {
		return q.filterFailure(mint, "authority lookup", err)
	}
	if !auth.Renounced() {
		return q.reject(mint, "token authorities not renounced")
	}

	if elapsed := time.Since(start); elapsed > q.cfg.ProcessingBudget {
		return q.reject(mint, fmt.Sprintf("processing took %dms, budget %dms",
			elapsed.Milliseconds(), q.cfg.ProcessingBudget.Milliseconds()))
	}

	q.setStatus(mint, StatusReadyToBuy, "")

	// The pre-check above is only a hint; this is the real reservation
	// and it can lose the race to a concurrent trade.
	tradeNo, ok := q.pool.Allocate(q.cfg.PositionSize)
	if !ok {
		return q.markDepleted(mint)
	}

	result, err := q.gw.RequestBuy(ctx, mint, q.cfg.PositionSize)
	if err != nil {
		// Undo the reservation in full; the capital must not leak.
		q.pool.Settle(tradeNo, q.cfg.PositionSize, 0, 0)
		return q.deferCandidate(mint, "buy execution", err)
	}

	q.mu.Lock()
	cand := q.candidates[mint]
	cand.Status = StatusBought
	cand.EntryPrice = result.EntryPrice
	cand.TradeNo = tradeNo
	opener := q.opener
	q.mu.Unlock()

	q.logger.Info("candidate bought",
		zap.String("mint", mint),
		zap.Float64("entry_price", result.EntryPrice),
		zap.Int("trade_no", tradeNo),
		zap.String("signature", result.Signature))
	q.bus.EmitCandidateBought(mint, result.EntryPrice, q.cfg.PositionSize, tradeNo)

	if opener != nil {
		opener.OpenPosition(mint, result.EntryPrice, tradeNo)
	}
	return StatusBought
}

// MarkSettled finalizes a bought candidate after its trade closed.
func (q *Queue) MarkSettled(mint string, pnlPercent float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cand, ok := q.candidates[mint]
	if !ok || cand.Status != StatusBought {
		return
	}
	cand.PnLPercent = pnlPercent
	if pnlPercent > 0 {
		cand.Status = StatusProfit
	} else {
		cand.Status = StatusLoss
	}
}

// RejectExhausted retires a pending candidate that has used up its
// scoring attempts.
func (q *Queue) RejectExhausted(mint string) {
	q.reject(mint, "max scoring attempts exceeded")
}

// PendingForRetry returns mints that are pending, off cooldown and
// still under the attempt limit, oldest first.
func (q *Queue) PendingForRetry(cooldown time.Duration) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-cooldown)
	var out []*Candidate
	for _, c := range q.candidates {
		if c.Status == StatusPending && !q.inFlight[c.Mint] && c.LastAttempt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })

	mints := make([]string, len(out))
	for i, c := range out {
		mints[i] = c.Mint
	}
	return mints
}

// Candidate returns a copy of the record for mint.
func (q *Queue) Candidate(mint string) (Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.candidates[mint]
	if !ok {
		return Candidate{}, false
	}
	return c.clone(), true
}

// Candidates returns a snapshot of every record, oldest first.
func (q *Queue) Candidates() []Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Candidate, 0, len(q.candidates))
	for _, c := range q.candidates {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

// Counts returns how many candidates sit in each status.
func (q *Queue) Counts() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[Status]int)
	for _, c := range q.candidates {
		counts[c.Status]++
	}
	return counts
}

// Attempts returns the scoring attempt count for mint.
func (q *Queue) Attempts(mint string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.candidates[mint]; ok {
		return c.Attempts
	}
	return 0
}

func (q *Queue) touchAttempt(mint string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.candidates[mint]; ok {
		c.Attempts++
		c.LastAttempt = time.Now()
	}
}

func (q *Queue) setLiquidity(mint string, liquidity float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.candidates[mint]; ok {
		c.Liquidity = liquidity
	}
}

// setStatus updates a candidate unless it already reached a terminal
// status. A non-empty reason also lands in the error history.
func (q *Queue) setStatus(mint string, status Status, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.candidates[mint]
	if !ok || c.Status.Terminal() {
		return
	}
	c.Status = status
	if reason != "" {
		c.Reason = reason
		c.Errors = append(c.Errors, reason)
	}
}

func (q *Queue) reject(mint, reason string) Status {
	q.mu.Lock()
	c, ok := q.candidates[mint]
	if !ok || c.Status.Terminal() {
		q.mu.Unlock()
		return StatusRejected
	}
	c.Status = StatusRejected
	c.Reason = reason
	c.Errors = append(c.Errors, reason)
	attempts := c.Attempts
	q.mu.Unlock()

	q.logger.Info("candidate rejected",
		zap.String("mint", mint),
		zap.String("reason", reason),
		zap.Int("attempts", attempts))
	q.bus.EmitCandidateRejected(mint, reason, attempts)
	return StatusRejected
}

// filterFailure classifies a stage-1 fetch error: budget overrun is a
// terminal rejection, anything else stays pending for the rescorer.
func (q *Queue) filterFailure(mint, stage string, err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return q.reject(mint, fmt.Sprintf("%s exceeded the %dms processing budget",
			stage, q.cfg.ProcessingBudget.Milliseconds()))
	}
	return q.deferCandidate(mint, stage, err)
}

// deferCandidate keeps a candidate pending after a transient failure so
// the rescorer can try again.
func (q *Queue) deferCandidate(mint, stage string, err error) Status {
	q.setStatus(mint, StatusPending, fmt.Sprintf("%s failed: %v", stage, err))

	q.logger.Warn("candidate deferred",
		zap.String("mint", mint),
		zap.String("stage", stage),
		zap.Int("attempts", q.Attempts(mint)),
		zap.Error(err))
	return StatusPending
}

func (q *Queue) markDepleted(mint string) Status {
	q.setStatus(mint, StatusPoolDepleted, "pool cannot fund position")

	snapshot := q.pool.Snapshot()
	q.logger.Warn("pool depleted, candidate skipped",
		zap.String("mint", mint),
		zap.Float64("balance", snapshot.Balance),
		zap.Float64("required", q.cfg.PositionSize))
	q.bus.EmitPoolDepleted(mint, snapshot.Balance, q.cfg.PositionSize)
	return StatusPoolDepleted
}
