// internal/position/position.go
package position

import (
	"sync"
	"time"
)

// Tick is one market observation for an open position.
type Tick struct {
	Time        time.Time
	Price       float64
	Volume      float64 // traded volume since the previous tick
	WhaleVolume float64 // portion of Volume from large single transactions
}

// DefaultHistoryCap bounds the rolling tick history per position.
const DefaultHistoryCap = 120

// Position is an open, funded candidate under active monitoring. All
// mutation goes through UpdateTick and ExtendHold; the hold deadline can
// only ever grow.
type Position struct {
	mu sync.RWMutex

	mint       string
	entryPrice float64
	entryTime  time.Time

	currentPrice   float64
	totalVolume    float64
	maxHoldMinutes int

	history    []Tick
	historyCap int
}

// New creates a position opened at entryPrice with the configured initial
// hold budget.
func New(mint string, entryPrice float64, maxHoldMinutes int) *Position {
	return &Position{
		mint:           mint,
		entryPrice:     entryPrice,
		entryTime:      time.Now(),
		currentPrice:   entryPrice,
		maxHoldMinutes: maxHoldMinutes,
		historyCap:     DefaultHistoryCap,
	}
}

// Mint returns the position's token identity.
func (p *Position) Mint() string {
	return p.mint
}

// EntryPrice returns the fill price recorded at buy time.
func (p *Position) EntryPrice() float64 {
	return p.entryPrice
}

// EntryTime returns when the position was opened.
func (p *Position) EntryTime() time.Time {
	return p.entryTime
}

// UpdateTick records a new market observation.
func (p *Position) UpdateTick(t Tick) {
	if t.Time.IsZero() {
		t.Time = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentPrice = t.Price
	p.totalVolume += t.Volume

	if len(p.history) >= p.historyCap {
		p.history = p.history[1:]
	}
	p.history = append(p.history, t)
}

// CurrentPrice returns the last observed price.
func (p *Position) CurrentPrice() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentPrice
}

// TotalVolume returns the volume accumulated since entry.
func (p *Position) TotalVolume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalVolume
}

// GainPercent returns the unrealized gain relative to entry, in percent.
func (p *Position) GainPercent() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.entryPrice <= 0 {
		return 0
	}
	return (p.currentPrice - p.entryPrice) / p.entryPrice * 100
}

// HoldMinutes returns how long the position has been open.
func (p *Position) HoldMinutes() float64 {
	return time.Since(p.entryTime).Minutes()
}

// MaxHoldMinutes returns the current hold budget.
func (p *Position) MaxHoldMinutes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxHoldMinutes
}

// ExtendHold grows the hold budget by extraMinutes and returns the new
// budget. Extensions are cumulative; non-positive values are ignored, so
// the deadline never moves backwards.
func (p *Position) ExtendHold(extraMinutes int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if extraMinutes > 0 {
		p.maxHoldMinutes += extraMinutes
	}
	return p.maxHoldMinutes
}

// Expired reports whether the hold budget has run out.
func (p *Position) Expired() bool {
	return p.HoldMinutes() >= float64(p.MaxHoldMinutes())
}

// History returns a copy of the rolling tick history, oldest first.
func (p *Position) History() []Tick {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Tick, len(p.history))
	copy(out, p.history)
	return out
}
