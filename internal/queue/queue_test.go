// internal/queue/queue_test.go
package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/chain"
	"solana-pool-sniper/internal/gateway"
	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/position"
)

const testMint = "7xKqMintAAAA1111111111111111111111111111111"

func testConfig() Config {
	return Config{
		PositionSize:     15,
		MinLiquidity:     3.0,
		ProcessingBudget: 3 * time.Second,
		MaxAttempts:      5,
	}
}

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *recordingOpener) OpenPosition(mint string, entryPrice float64, tradeNo int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, mint)
}

type failingGateway struct{}

func (failingGateway) RequestBuy(context.Context, string, float64) (gateway.BuyResult, error) {
	return gateway.BuyResult{}, errors.New("rpc node unavailable")
}

func (failingGateway) RecommendExit(context.Context, gateway.Recommendation) error {
	return nil
}

func goodToken(stub *chain.StubProvider, mint string, price float64) {
	stub.SetToken(mint, 10.0, chain.Authorities{MintRenounced: true, FreezeRenounced: true})
	stub.SetTicks(mint, []position.Tick{{Price: price, Volume: 1}})
}

func newTestQueue(t *testing.T, balance float64) (*Queue, *pool.Pool, *chain.StubProvider, *recordingOpener) {
	t.Helper()
	log := zap.NewNop()
	p := pool.New(balance, pool.NewLedger(), nil, log)
	stub := chain.NewStubProvider()
	gw := gateway.NewPaperGateway(stub, log)
	q := New(testConfig(), p, stub, gw, nil, log)
	opener := &recordingOpener{}
	q.SetPositionOpener(opener)
	return q, p, stub, opener
}

func TestAdmitBuysQualifyingToken(t *testing.T) {
	q, p, stub, opener := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusBought, status)
	assert.Equal(t, 585.0, p.Snapshot().Balance)
	assert.Equal(t, []string{testMint}, opener.opened)

	cand, ok := q.Candidate(testMint)
	require.True(t, ok)
	assert.Equal(t, 0.002, cand.EntryPrice)
	assert.Equal(t, 1, cand.TradeNo)
	assert.Equal(t, 1, cand.Attempts)
}

func TestAdmitRejectsThinLiquidity(t *testing.T) {
	q, p, stub, _ := newTestQueue(t, 600)
	stub.SetToken(testMint, 2.0, chain.Authorities{MintRenounced: true, FreezeRenounced: true})

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusRejected, status)
	cand, _ := q.Candidate(testMint)
	assert.Contains(t, cand.Reason, "liquidity")
	assert.Equal(t, []string{cand.Reason}, cand.Errors)
	assert.Equal(t, 600.0, p.Snapshot().Balance, "no capital may move for a rejected token")
}

func TestAdmitRejectsLiveAuthorities(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	stub.SetToken(testMint, 10.0, chain.Authorities{MintRenounced: false, FreezeRenounced: true})

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusRejected, status)
	cand, _ := q.Candidate(testMint)
	assert.Contains(t, cand.Reason, "authorities")
}

func TestAdmitRejectsOverBudgetProcessing(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.Latency = 20 * time.Millisecond

	q.cfg.ProcessingBudget = 5 * time.Millisecond
	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusRejected, status)
	cand, _ := q.Candidate(testMint)
	assert.Contains(t, cand.Reason, "budget")
}

func TestHungProviderFetchIsBoundedByBudget(t *testing.T) {
	q, p, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.Latency = 500 * time.Millisecond
	q.cfg.ProcessingBudget = 30 * time.Millisecond

	start := time.Now()
	status := q.Admit(context.Background(), testMint, "sig-1")
	elapsed := time.Since(start)

	assert.Equal(t, StatusRejected, status)
	assert.Less(t, elapsed, 300*time.Millisecond,
		"the fetch itself must be cut off by the budget, not waited out")
	cand, _ := q.Candidate(testMint)
	assert.Contains(t, cand.Reason, "budget")
	assert.Equal(t, 600.0, p.Snapshot().Balance)
}

func TestErrorHistoryAccumulatesAcrossAttempts(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.FailNext(testMint, 2)

	ctx := context.Background()
	require.Equal(t, StatusPending, q.Admit(ctx, testMint, "sig-1"))
	require.Equal(t, StatusPending, q.Rescore(ctx, testMint))
	require.Equal(t, StatusBought, q.Rescore(ctx, testMint))

	cand, ok := q.Candidate(testMint)
	require.True(t, ok)
	require.Len(t, cand.Errors, 2, "one entry per failed attempt")
	for _, e := range cand.Errors {
		assert.Contains(t, e, "not yet available")
	}
	assert.Equal(t, cand.Errors[1], cand.Reason, "Reason mirrors the latest failure")
}

func TestDuplicateAdmitKeepsFirstRecord(t *testing.T) {
	q, p, stub, opener := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)

	first := q.Admit(context.Background(), testMint, "sig-1")
	second := q.Admit(context.Background(), testMint, "sig-2")

	assert.Equal(t, StatusBought, first)
	assert.Equal(t, StatusRejected, second)

	cand, ok := q.Candidate(testMint)
	require.True(t, ok)
	assert.Equal(t, StatusBought, cand.Status)
	assert.Equal(t, "sig-1", cand.Signature)
	assert.Len(t, q.Candidates(), 1)
	assert.Len(t, opener.opened, 1)
	assert.Equal(t, 1, p.Snapshot().TotalTrades)
}

func TestConcurrentAdmitsDedupAtomically(t *testing.T) {
	q, p, stub, opener := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)

	var wg sync.WaitGroup
	results := make(chan Status, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Admit(context.Background(), testMint, "sig-1")
		}()
	}
	wg.Wait()
	close(results)

	bought := 0
	for s := range results {
		if s == StatusBought {
			bought++
		}
	}

	assert.Equal(t, 1, bought, "exactly one admission may win")
	assert.Len(t, q.Candidates(), 1)
	assert.Len(t, opener.opened, 1)
	assert.Equal(t, 1, p.Snapshot().TotalTrades)
}

func TestDepletedPoolSkipsFiltering(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 10)
	// No token data scripted: any provider call would defer the
	// candidate, so reaching pool_depleted proves filtering was skipped.
	_ = stub

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusPoolDepleted, status)
	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusPoolDepleted, cand.Status)
	assert.Equal(t, 1, cand.Attempts)
}

// drainingProvider empties the pool during filtering, reproducing a
// concurrent trade winning the capital between pre-check and allocation.
type drainingProvider struct {
	*chain.StubProvider
	pool *pool.Pool
	once sync.Once
}

func (d *drainingProvider) GetAuthorities(ctx context.Context, mint string) (chain.Authorities, error) {
	d.once.Do(func() { d.pool.Allocate(15) })
	return d.StubProvider.GetAuthorities(ctx, mint)
}

func TestAllocationRaceEndsPoolDepleted(t *testing.T) {
	log := zap.NewNop()
	p := pool.New(15, pool.NewLedger(), nil, log)
	stub := chain.NewStubProvider()
	goodToken(stub, testMint, 0.002)

	provider := &drainingProvider{StubProvider: stub, pool: p}
	gw := gateway.NewPaperGateway(provider, log)
	q := New(testConfig(), p, provider, gw, nil, log)

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusPoolDepleted, status)
	assert.Equal(t, 0.0, p.Snapshot().Balance)
	assert.Equal(t, 1, p.Snapshot().TotalTrades, "only the draining trade may allocate")
}

func TestTransientErrorLeavesCandidatePending(t *testing.T) {
	q, p, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.FailNext(testMint, 1)

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusPending, status)
	cand, _ := q.Candidate(testMint)
	assert.Equal(t, 1, cand.Attempts)
	assert.Equal(t, 600.0, p.Snapshot().Balance)

	// The next attempt sees healthy data and completes the buy.
	status = q.Rescore(context.Background(), testMint)
	assert.Equal(t, StatusBought, status)
	assert.Equal(t, 2, q.Attempts(testMint))
}

func TestFailedBuyReversesAllocation(t *testing.T) {
	log := zap.NewNop()
	p := pool.New(600, pool.NewLedger(), nil, log)
	stub := chain.NewStubProvider()
	goodToken(stub, testMint, 0.002)

	q := New(testConfig(), p, stub, failingGateway{}, nil, log)

	status := q.Admit(context.Background(), testMint, "sig-1")

	assert.Equal(t, StatusPending, status, "a failed buy is retryable")
	assert.Equal(t, 600.0, p.Snapshot().Balance, "the reservation must be returned in full")
	assert.Equal(t, 1, p.Snapshot().TotalTrades)
}

func TestMarkSettledFinalizesStatus(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	q.Admit(context.Background(), testMint, "sig-1")

	q.MarkSettled(testMint, 120)
	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusProfit, cand.Status)
	assert.Equal(t, 120.0, cand.PnLPercent)

	// Terminal status never changes again.
	q.MarkSettled(testMint, -50)
	cand, _ = q.Candidate(testMint)
	assert.Equal(t, StatusProfit, cand.Status)
	assert.Equal(t, 120.0, cand.PnLPercent)
}

func TestMarkSettledLoss(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	q.Admit(context.Background(), testMint, "sig-1")

	q.MarkSettled(testMint, -80)
	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusLoss, cand.Status)
}

func TestCountsGroupByStatus(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, "mintBought", 0.002)
	stub.SetToken("mintThin", 1.0, chain.Authorities{MintRenounced: true, FreezeRenounced: true})

	q.Admit(context.Background(), "mintBought", "sig-1")
	q.Admit(context.Background(), "mintThin", "sig-2")
	q.Admit(context.Background(), "mintUnknown", "sig-3") // defers, stays pending

	counts := q.Counts()
	assert.Equal(t, 1, counts[StatusBought])
	assert.Equal(t, 1, counts[StatusRejected])
	assert.Equal(t, 1, counts[StatusPending])
}
