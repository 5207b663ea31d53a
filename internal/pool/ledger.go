// internal/pool/ledger.go
package pool

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/logger"
)

// EntryType classifies ledger rows.
type EntryType string

const (
	TypeTradeExecution EntryType = "trade_execution"
	TypeProfitReturn   EntryType = "profit_return"
	TypeLossReturn     EntryType = "loss_return"
	TypePoolStatus     EntryType = "pool_status"
)

// Entry is one immutable row of the capital audit trail.
type Entry struct {
	Timestamp     time.Time
	Type          EntryType
	Amount        float64
	BalanceBefore float64
	BalanceAfter  float64
	TradeNumber   int
	Notes         string
}

// Sink receives ledger entries as they are recorded.
type Sink interface {
	Record(Entry) error
}

// Ledger keeps the append-only in-memory history and fans entries out
// to any number of sinks (CSV, database).
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	sinks   []Sink
}

func NewLedger(sinks ...Sink) *Ledger {
	return &Ledger{sinks: sinks}
}

// Record stamps and stores the entry, then forwards it to every sink.
// The first sink error is returned; the in-memory row is kept either way.
func (l *Ledger) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	sinks := l.sinks
	l.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Record(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Entries returns a copy of the full history.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

var csvHeader = []string{
	"timestamp", "type", "amount", "balance_before", "balance_after", "trade_number", "notes",
}

// CSVSink writes ledger rows through a crash-safe CSV writer.
type CSVSink struct {
	w *logger.SafeCSVWriter
}

func NewCSVSink(filePath string, flushInterval time.Duration, log *zap.Logger) (*CSVSink, error) {
	w, err := logger.NewSafeCSVWriter(filePath, csvHeader, flushInterval, log)
	if err != nil {
		return nil, fmt.Errorf("opening ledger csv: %w", err)
	}
	return &CSVSink{w: w}, nil
}

func (s *CSVSink) Record(e Entry) error {
	return s.w.WriteRecord([]string{
		e.Timestamp.Format(time.RFC3339),
		string(e.Type),
		strconv.FormatFloat(e.Amount, 'f', 4, 64),
		strconv.FormatFloat(e.BalanceBefore, 'f', 4, 64),
		strconv.FormatFloat(e.BalanceAfter, 'f', 4, 64),
		strconv.Itoa(e.TradeNumber),
		e.Notes,
	})
}

func (s *CSVSink) Close() error {
	return s.w.Close()
}
