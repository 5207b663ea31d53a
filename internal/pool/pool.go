// internal/pool/pool.go
package pool

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/events"
)

// Default growth milestones and compounding target, in SOL.
var DefaultMilestones = []float64{1000, 2000, 5000, 10000, 15000, 20000, 25000}

const DefaultTarget = 7000.0

// Status is a point-in-time snapshot of the pool.
type Status struct {
	Balance          float64
	InitialBalance   float64
	PeakBalance      float64
	TroughBalance    float64
	TotalTrades      int
	ProfitableTrades int
	RealizedPnL      float64
	ROIPercent       float64
	TargetReached    bool
}

// Pool is the single capital reservation authority. Every trade draws
// from it via Allocate and returns through Settle; the balance can
// never go below zero because Allocate is the only debit path and it
// fails closed.
type Pool struct {
	mu sync.Mutex

	balance          float64
	initialBalance   float64
	peak             float64
	trough           float64
	realizedPnL      float64
	totalTrades      int
	profitableTrades int

	target        float64
	targetReached bool
	milestones    []float64
	crossed       map[float64]bool

	ledger *Ledger
	bus    *events.Bus
	logger *zap.Logger
}

// Option adjusts pool construction.
type Option func(*Pool)

// WithTarget overrides the compounding target.
func WithTarget(target float64) Option {
	return func(p *Pool) {
		if target > 0 {
			p.target = target
		}
	}
}

// WithMilestones overrides the growth milestones.
func WithMilestones(milestones []float64) Option {
	return func(p *Pool) {
		if len(milestones) > 0 {
			p.milestones = milestones
		}
	}
}

// New creates a pool with the given starting balance. A nil bus or
// ledger disables the corresponding side channel.
func New(initialBalance float64, ledger *Ledger, bus *events.Bus, logger *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		balance:        initialBalance,
		initialBalance: initialBalance,
		peak:           initialBalance,
		trough:         initialBalance,
		target:         DefaultTarget,
		milestones:     DefaultMilestones,
		crossed:        make(map[float64]bool),
		ledger:         ledger,
		bus:            bus,
		logger:         logger.Named("pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.record(TypePoolStatus, 0, initialBalance, initialBalance, 0, "pool initialized")
	return p
}

// CanFund reports whether the pool could currently cover amount. It is
// a read-only hint; only Allocate actually reserves capital.
func (p *Pool) CanFund(amount float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return amount > 0 && p.balance >= amount
}

// Allocate reserves amount for a trade. The check and the subtraction
// happen under one lock, so concurrent callers can never jointly
// overdraw. On success it returns the trade number; on failure nothing
// changes and ok is false.
func (p *Pool) Allocate(amount float64) (tradeNo int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount <= 0 || p.balance < amount {
		return 0, false
	}

	before := p.balance
	p.balance -= amount
	p.trackExtremes()
	p.totalTrades++
	tradeNo = p.totalTrades

	p.record(TypeTradeExecution, amount, before, p.balance, tradeNo,
		fmt.Sprintf("trade #%d allocated", tradeNo))

	p.logger.Info("capital allocated",
		zap.Int("trade_no", tradeNo),
		zap.Float64("amount", amount),
		zap.Float64("balance", p.balance))

	return tradeNo, true
}

// Settle returns a trade's proceeds to the pool: the original amount
// scaled by the realized P&L. A pnlPercent of -100 returns nothing,
// +100 returns double. Settling with 0 percent is the reversal used
// when a buy fails after allocation.
func (p *Pool) Settle(tradeNo int, amount, pnlPercent float64, holdMinutes int) float64 {
	p.mu.Lock()

	credit := amount * (1 + pnlPercent/100)
	if credit < 0 {
		credit = 0
	}
	delta := credit - amount

	before := p.balance
	p.balance += credit
	p.trackExtremes()
	p.realizedPnL += delta

	// A zero delta is the reversal of a failed buy, not a win; only a
	// real gain moves the win counter.
	var entryType EntryType
	switch {
	case delta > 0:
		entryType = TypeProfitReturn
		p.profitableTrades++
	case delta < 0:
		entryType = TypeLossReturn
	default:
		entryType = TypePoolStatus
	}
	p.record(entryType, credit, before, p.balance, tradeNo,
		fmt.Sprintf("trade #%d settled: %+.1f%% over %dm", tradeNo, pnlPercent, holdMinutes))

	newBalance := p.balance
	fired := p.collectThresholds()
	p.mu.Unlock()

	p.logger.Info("trade settled",
		zap.Int("trade_no", tradeNo),
		zap.Float64("pnl_percent", pnlPercent),
		zap.Float64("credit", credit),
		zap.Float64("balance", newBalance))

	for _, ev := range fired {
		p.bus.Publish(ev)
	}
	return newBalance
}

// AddEmergencyFunds credits the pool outside the trade cycle, for
// topping up a depleted pool from an external wallet.
func (p *Pool) AddEmergencyFunds(amount float64, note string) error {
	if amount <= 0 {
		return fmt.Errorf("emergency funding must be positive, got %.4f", amount)
	}

	p.mu.Lock()
	before := p.balance
	p.balance += amount
	p.trackExtremes()
	p.record(TypePoolStatus, amount, before, p.balance, 0, note)
	fired := p.collectThresholds()
	p.mu.Unlock()

	p.logger.Warn("emergency funds added",
		zap.Float64("amount", amount),
		zap.String("note", note))

	for _, ev := range fired {
		p.bus.Publish(ev)
	}
	return nil
}

// Snapshot returns the current pool state.
func (p *Pool) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Balance:          p.balance,
		InitialBalance:   p.initialBalance,
		PeakBalance:      p.peak,
		TroughBalance:    p.trough,
		TotalTrades:      p.totalTrades,
		ProfitableTrades: p.profitableTrades,
		RealizedPnL:      p.realizedPnL,
		ROIPercent:       p.roiLocked(),
		TargetReached:    p.targetReached,
	}
}

// trackExtremes refreshes the running peak and trough. Caller must
// hold the lock.
func (p *Pool) trackExtremes() {
	if p.balance > p.peak {
		p.peak = p.balance
	}
	if p.balance < p.trough {
		p.trough = p.balance
	}
}

func (p *Pool) roiLocked() float64 {
	if p.initialBalance == 0 {
		return 0
	}
	return p.realizedPnL / p.initialBalance * 100
}

// collectThresholds checks milestone and target crossings. Caller must
// hold the lock; events are returned so they can be published outside it.
func (p *Pool) collectThresholds() []events.Event {
	var fired []events.Event

	for _, m := range p.milestones {
		if p.balance >= m && !p.crossed[m] {
			p.crossed[m] = true
			fired = append(fired, &events.PoolMilestoneEvent{
				BaseEvent:   events.NewBase(events.PoolMilestone),
				Milestone:   m,
				Balance:     p.balance,
				TotalTrades: p.totalTrades,
				ROIPercent:  p.roiLocked(),
			})
		}
	}

	if !p.targetReached && p.balance >= p.target {
		p.targetReached = true
		p.record(TypePoolStatus, 0, p.balance, p.balance, 0,
			fmt.Sprintf("compounding target %.0f reached", p.target))
		fired = append(fired, &events.PoolTargetReachedEvent{
			BaseEvent:   events.NewBase(events.PoolTargetReached),
			Target:      p.target,
			Balance:     p.balance,
			TotalTrades: p.totalTrades,
		})
	}
	return fired
}

func (p *Pool) record(t EntryType, amount, before, after float64, tradeNo int, notes string) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(Entry{
		Type:          t,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		TradeNumber:   tradeNo,
		Notes:         notes,
	}); err != nil {
		p.logger.Error("ledger write failed", zap.Error(err))
	}
}
