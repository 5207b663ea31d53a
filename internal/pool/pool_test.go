// internal/pool/pool_test.go
package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/events"
)

func newTestPool(t *testing.T, balance float64) (*Pool, *Ledger) {
	t.Helper()
	ledger := NewLedger()
	return New(balance, ledger, nil, zap.NewNop()), ledger
}

func TestAllocateExhaustsPool(t *testing.T) {
	p, _ := newTestPool(t, 600)

	for i := 1; i <= 40; i++ {
		tradeNo, ok := p.Allocate(15)
		require.True(t, ok, "allocation %d should succeed", i)
		assert.Equal(t, i, tradeNo)
	}

	_, ok := p.Allocate(15)
	assert.False(t, ok, "41st allocation must fail on an empty pool")
	assert.Equal(t, 0.0, p.Snapshot().Balance)
}

func TestSettleCreditsProceeds(t *testing.T) {
	p, _ := newTestPool(t, 600)

	tradeNo, ok := p.Allocate(15)
	require.True(t, ok)
	assert.Equal(t, 585.0, p.Snapshot().Balance)

	balance := p.Settle(tradeNo, 15, 100, 5)
	assert.Equal(t, 615.0, balance)

	st := p.Snapshot()
	assert.Equal(t, 15.0, st.RealizedPnL)
	assert.InDelta(t, 2.5, st.ROIPercent, 0.001)
}

func TestSettleTotalLossReturnsNothing(t *testing.T) {
	p, _ := newTestPool(t, 600)

	tradeNo, _ := p.Allocate(15)
	balance := p.Settle(tradeNo, 15, -100, 12)

	assert.Equal(t, 585.0, balance)
	assert.Equal(t, -15.0, p.Snapshot().RealizedPnL)
}

func TestSettleZeroPercentReversesAllocation(t *testing.T) {
	p, ledger := newTestPool(t, 600)

	tradeNo, _ := p.Allocate(15)
	balance := p.Settle(tradeNo, 15, 0, 0)

	assert.Equal(t, 600.0, balance)
	st := p.Snapshot()
	assert.Equal(t, 0.0, st.RealizedPnL)
	assert.Equal(t, 0, st.ProfitableTrades, "a reversal is not a win")

	entries := ledger.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, TypePoolStatus, last.Type, "a breakeven reversal is bookkeeping, not profit")
}

func TestSnapshotTracksPeakTroughAndWins(t *testing.T) {
	p, _ := newTestPool(t, 600)

	// A win to 615, a total loss back to 600, then a failed-buy
	// reversal that should move neither extreme nor the win counter.
	n1, _ := p.Allocate(15)
	p.Settle(n1, 15, 100, 5)
	n2, _ := p.Allocate(15)
	p.Settle(n2, 15, -100, 12)
	n3, _ := p.Allocate(15)
	p.Settle(n3, 15, 0, 0)

	st := p.Snapshot()
	assert.Equal(t, 615.0, st.PeakBalance)
	assert.Equal(t, 585.0, st.TroughBalance)
	assert.Equal(t, 3, st.TotalTrades)
	assert.Equal(t, 1, st.ProfitableTrades)
	assert.Equal(t, 600.0, st.Balance)
}

func TestFailedAllocationHasNoSideEffects(t *testing.T) {
	p, ledger := newTestPool(t, 10)

	entriesBefore := len(ledger.Entries())
	_, ok := p.Allocate(15)

	assert.False(t, ok)
	st := p.Snapshot()
	assert.Equal(t, 10.0, st.Balance)
	assert.Equal(t, 0, st.TotalTrades)
	assert.Len(t, ledger.Entries(), entriesBefore, "failed allocation must not write to the ledger")
}

func TestCanFundIsReadOnly(t *testing.T) {
	p, _ := newTestPool(t, 20)

	assert.True(t, p.CanFund(15))
	assert.True(t, p.CanFund(15), "CanFund must not reserve anything")
	assert.False(t, p.CanFund(25))
	assert.False(t, p.CanFund(0))
	assert.Equal(t, 20.0, p.Snapshot().Balance)
}

func TestConcurrentAllocationsNeverOverdraw(t *testing.T) {
	p, _ := newTestPool(t, 600)

	var wg sync.WaitGroup
	results := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := p.Allocate(15)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}

	assert.Equal(t, 40, succeeded, "exactly 40 allocations fit in 600")
	st := p.Snapshot()
	assert.Equal(t, 0.0, st.Balance)
	assert.Equal(t, 40, st.TotalTrades)
}

func TestLedgerRecordsFullLifecycle(t *testing.T) {
	p, ledger := newTestPool(t, 600)

	tradeNo, _ := p.Allocate(15)
	p.Settle(tradeNo, 15, 50, 8)

	entries := ledger.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, TypePoolStatus, entries[0].Type)

	exec := entries[1]
	assert.Equal(t, TypeTradeExecution, exec.Type)
	assert.Equal(t, 600.0, exec.BalanceBefore)
	assert.Equal(t, 585.0, exec.BalanceAfter)
	assert.Equal(t, 1, exec.TradeNumber)

	settle := entries[2]
	assert.Equal(t, TypeProfitReturn, settle.Type)
	assert.Equal(t, 22.5, settle.Amount)
	assert.Equal(t, 607.5, settle.BalanceAfter)
	assert.False(t, settle.Timestamp.IsZero())
}

func TestLossEntryType(t *testing.T) {
	p, ledger := newTestPool(t, 600)

	tradeNo, _ := p.Allocate(15)
	p.Settle(tradeNo, 15, -40, 3)

	entries := ledger.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, TypeLossReturn, last.Type)
	assert.Equal(t, 9.0, last.Amount)
}

func TestMilestoneAndTargetFireOnce(t *testing.T) {
	log := zap.NewNop()
	bus := events.NewBus(log, 32)
	defer bus.Shutdown(context.Background())

	milestones := make(chan events.Event, 8)
	targets := make(chan events.Event, 8)
	bus.SubscribeFunc(events.PoolMilestone, func(_ context.Context, ev events.Event) error {
		milestones <- ev
		return nil
	})
	bus.SubscribeFunc(events.PoolTargetReached, func(_ context.Context, ev events.Event) error {
		targets <- ev
		return nil
	})

	p := New(900, NewLedger(), bus, log)

	require.NoError(t, p.AddEmergencyFunds(200, "test top up"))

	select {
	case ev := <-milestones:
		m := ev.(*events.PoolMilestoneEvent)
		assert.Equal(t, 1000.0, m.Milestone)
	case <-time.After(2 * time.Second):
		t.Fatal("expected milestone event at 1000")
	}

	// Push straight past 2000, 5000 and the 7000 target in one credit.
	require.NoError(t, p.AddEmergencyFunds(6000, "test top up"))

	seen := map[float64]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-milestones:
			seen[ev.(*events.PoolMilestoneEvent).Milestone] = true
		case <-time.After(2 * time.Second):
			t.Fatal("expected milestone events at 2000 and 5000")
		}
	}
	assert.True(t, seen[2000])
	assert.True(t, seen[5000])

	select {
	case ev := <-targets:
		tr := ev.(*events.PoolTargetReachedEvent)
		assert.Equal(t, 7000.0, tr.Target)
	case <-time.After(2 * time.Second):
		t.Fatal("expected target reached event")
	}
	assert.True(t, p.Snapshot().TargetReached)

	// Crossing again after dipping below must stay silent.
	tradeNo, ok := p.Allocate(200)
	require.True(t, ok)
	p.Settle(tradeNo, 200, 10, 5)

	select {
	case <-targets:
		t.Fatal("target event must fire only once")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAddEmergencyFundsRejectsNonPositive(t *testing.T) {
	p, _ := newTestPool(t, 100)

	assert.Error(t, p.AddEmergencyFunds(0, "nothing"))
	assert.Error(t, p.AddEmergencyFunds(-5, "negative"))
	assert.Equal(t, 100.0, p.Snapshot().Balance)
}
