// internal/export/export_test.go
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/queue"
)

func TestExportWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, zap.NewNop())

	now := time.Now()
	candidates := []queue.Candidate{
		{Mint: "mintA", Signature: "sigA", Status: queue.StatusProfit, Attempts: 1, FirstSeen: now, EntryPrice: 0.002, TradeNo: 1, PnLPercent: 120},
		{Mint: "mintB", Signature: "sigB", Status: queue.StatusLoss, Attempts: 1, FirstSeen: now, EntryPrice: 0.001, TradeNo: 2, PnLPercent: -60},
		{Mint: "mintC", Signature: "sigC", Status: queue.StatusRejected, Reason: "liquidity 1.00 below minimum 3.00",
			Errors: []string{"liquidity lookup failed: node timeout", "liquidity 1.00 below minimum 3.00"}, Attempts: 2, FirstSeen: now},
	}
	entries := []pool.Entry{
		{Timestamp: now, Type: pool.TypeTradeExecution, Amount: 15, BalanceBefore: 600, BalanceAfter: 585, TradeNumber: 1},
		{Timestamp: now, Type: pool.TypeProfitReturn, Amount: 33, BalanceBefore: 585, BalanceAfter: 618, TradeNumber: 1},
	}
	status := pool.Status{
		Balance:          618,
		InitialBalance:   600,
		PeakBalance:      618,
		TroughBalance:    570,
		TotalTrades:      2,
		ProfitableTrades: 1,
		RealizedPnL:      18,
		ROIPercent:       3,
	}

	require.NoError(t, e.Export(candidates, entries, status))

	sessions, err := os.ReadDir(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sessionDir := filepath.Join(dir, "sessions", sessions[0].Name())

	ledger, err := os.ReadFile(filepath.Join(sessionDir, "ledger.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(ledger), "trade_execution")
	assert.Contains(t, string(ledger), "profit_return")

	cands, err := os.ReadFile(filepath.Join(sessionDir, "candidates.csv"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(cands), "\n"), "header plus three candidates")
	assert.Contains(t, string(cands), "mintC")
	assert.Contains(t, string(cands), "node timeout; liquidity 1.00 below minimum 3.00")

	raw, err := os.ReadFile(filepath.Join(sessionDir, "summary.json"))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 618.0, summary.FinalBalance)
	assert.Equal(t, 618.0, summary.PeakBalance)
	assert.Equal(t, 570.0, summary.TroughBalance)
	assert.Equal(t, 1, summary.ProfitableTrades)
	assert.Equal(t, 1, summary.Wins)
	assert.Equal(t, 1, summary.Losses)
	assert.Equal(t, 50.0, summary.WinRatePercent)
	assert.Equal(t, 1, summary.StatusCounts[string(queue.StatusRejected)])
}
