// internal/export/export.go
// Package export writes the end-of-session report: the full capital
// ledger, the candidate table and a summary digest.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/logger"
	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/queue"
)

// Summary is the digest written alongside the CSV tables.
type Summary struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	InitialBalance   float64        `json:"initial_balance"`
	FinalBalance     float64        `json:"final_balance"`
	PeakBalance      float64        `json:"peak_balance"`
	TroughBalance    float64        `json:"trough_balance"`
	RealizedPnL      float64        `json:"realized_pnl"`
	ROIPercent       float64        `json:"roi_percent"`
	TotalTrades      int            `json:"total_trades"`
	ProfitableTrades int            `json:"profitable_trades"`
	TargetReached    bool           `json:"target_reached"`
	Wins             int            `json:"wins"`
	Losses           int            `json:"losses"`
	WinRatePercent   float64        `json:"win_rate_percent"`
	StatusCounts     map[string]int `json:"status_counts"`
}

// Exporter writes session artifacts into a timestamped directory.
type Exporter struct {
	baseDir string
	logger  *zap.Logger
}

func New(baseDir string, log *zap.Logger) *Exporter {
	return &Exporter{
		baseDir: baseDir,
		logger:  log.Named("export"),
	}
}

// Export writes ledger.csv, candidates.csv and summary.json. A partial
// failure still writes what it can and returns the first error.
func (e *Exporter) Export(candidates []queue.Candidate, entries []pool.Entry, status pool.Status) error {
	dir := filepath.Join(e.baseDir, "sessions", time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(e.writeLedger(filepath.Join(dir, "ledger.csv"), entries))
	keep(e.writeCandidates(filepath.Join(dir, "candidates.csv"), candidates))
	keep(e.writeSummary(filepath.Join(dir, "summary.json"), candidates, status))

	e.logger.Info("session exported",
		zap.String("dir", dir),
		zap.Int("ledger_entries", len(entries)),
		zap.Int("candidates", len(candidates)))
	return firstErr
}

func (e *Exporter) writeLedger(path string, entries []pool.Entry) error {
	header := []string{"timestamp", "type", "amount", "balance_before", "balance_after", "trade_number", "notes"}
	w, err := logger.NewSafeCSVWriter(path, header, time.Second, e.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, entry := range entries {
		if err := w.WriteRecord([]string{
			entry.Timestamp.Format(time.RFC3339),
			string(entry.Type),
			strconv.FormatFloat(entry.Amount, 'f', 4, 64),
			strconv.FormatFloat(entry.BalanceBefore, 'f', 4, 64),
			strconv.FormatFloat(entry.BalanceAfter, 'f', 4, 64),
			strconv.Itoa(entry.TradeNumber),
			entry.Notes,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeCandidates(path string, candidates []queue.Candidate) error {
	header := []string{"mint", "signature", "status", "reason", "errors", "attempts", "first_seen", "liquidity", "entry_price", "trade_no", "pnl_percent"}
	w, err := logger.NewSafeCSVWriter(path, header, time.Second, e.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, c := range candidates {
		if err := w.WriteRecord([]string{
			c.Mint,
			c.Signature,
			string(c.Status),
			c.Reason,
			strings.Join(c.Errors, "; "),
			strconv.Itoa(c.Attempts),
			c.FirstSeen.Format(time.RFC3339),
			strconv.FormatFloat(c.Liquidity, 'f', 4, 64),
			strconv.FormatFloat(c.EntryPrice, 'f', 12, 64),
			strconv.Itoa(c.TradeNo),
			strconv.FormatFloat(c.PnLPercent, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeSummary(path string, candidates []queue.Candidate, status pool.Status) error {
	counts := make(map[string]int)
	wins, losses := 0, 0
	for _, c := range candidates {
		counts[string(c.Status)]++
		switch c.Status {
		case queue.StatusProfit:
			wins++
		case queue.StatusLoss:
			losses++
		}
	}

	winRate := 0.0
	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses) * 100
	}

	summary := Summary{
		GeneratedAt:      time.Now(),
		InitialBalance:   status.InitialBalance,
		FinalBalance:     status.Balance,
		PeakBalance:      status.PeakBalance,
		TroughBalance:    status.TroughBalance,
		RealizedPnL:      status.RealizedPnL,
		ROIPercent:       status.ROIPercent,
		TotalTrades:      status.TotalTrades,
		ProfitableTrades: status.ProfitableTrades,
		TargetReached:    status.TargetReached,
		Wins:             wins,
		Losses:           losses,
		WinRatePercent:   winRate,
		StatusCounts:     counts,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
