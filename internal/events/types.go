// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Admission pipeline events
	CandidateDetected EventType = "candidate.detected"
	CandidateRejected EventType = "candidate.rejected"
	CandidateBought   EventType = "candidate.bought"

	// Position events
	HoldExtended EventType = "position.hold_extended"
	TradeClosed  EventType = "position.trade_closed"

	// Pool events
	PoolMilestone     EventType = "pool.milestone"
	PoolTargetReached EventType = "pool.target_reached"
	PoolDepleted      EventType = "pool.depleted"

	// Monitoring events
	MonitoringStarted EventType = "monitoring.started"
	MonitoringStopped EventType = "monitoring.stopped"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase builds a BaseEvent for the given type stamped with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// CandidateDetectedEvent is emitted when a new identity enters the queue.
type CandidateDetectedEvent struct {
	BaseEvent
	TokenMint string
	Signature string
}

// CandidateRejectedEvent is emitted when a candidate reaches a terminal
// rejection.
type CandidateRejectedEvent struct {
	BaseEvent
	TokenMint string
	Reason    string
	Attempts  int
}

// CandidateBoughtEvent is emitted when allocation and buy hand-off succeed.
type CandidateBoughtEvent struct {
	BaseEvent
	TokenMint  string
	EntryPrice float64
	Amount     float64
	TradeNo    int
}

// HoldExtendedEvent is emitted when the analyzer extends a position's hold.
type HoldExtendedEvent struct {
	BaseEvent
	TokenMint      string
	ExtraMinutes   int
	NewMaxMinutes  int
	Confidence     float64
	SignalsFired   int
	CurrentGainPct float64
}

// TradeClosedEvent is emitted when a settlement is recorded.
type TradeClosedEvent struct {
	BaseEvent
	TokenMint   string
	PnLPercent  float64
	PnLAmount   float64
	HoldMinutes float64
	Profitable  bool
}

// PoolMilestoneEvent is emitted the first time the balance crosses a
// milestone level.
type PoolMilestoneEvent struct {
	BaseEvent
	Milestone   float64
	Balance     float64
	TotalTrades int
	ROIPercent  float64
}

// PoolTargetReachedEvent is emitted once, the first time the balance
// crosses the configured target.
type PoolTargetReachedEvent struct {
	BaseEvent
	Target      float64
	Balance     float64
	TotalTrades int
}

// PoolDepletedEvent is emitted when an admission is turned away on funds.
type PoolDepletedEvent struct {
	BaseEvent
	TokenMint string
	Balance   float64
	Required  float64
}

// MonitoringStartedEvent is emitted when a position tick session begins.
type MonitoringStartedEvent struct {
	BaseEvent
	TokenMint  string
	EntryPrice float64
}

// MonitoringStoppedEvent is emitted when a position tick session ends.
type MonitoringStoppedEvent struct {
	BaseEvent
	TokenMint string
	Reason    string
}
