// internal/queue/candidate.go
package queue

import "time"

// Status is a candidate's stage in the admission pipeline.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAnalyzing    Status = "analyzing"
	StatusReadyToBuy   Status = "ready_to_buy"
	StatusBought       Status = "bought"
	StatusRejected     Status = "rejected"
	StatusPoolDepleted Status = "pool_depleted"
	StatusProfit       Status = "profit"
	StatusLoss         Status = "loss"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusPoolDepleted, StatusProfit, StatusLoss:
		return true
	}
	return false
}

// Candidate is the queue's record for one detected token. The queue
// owns it; callers only ever see copies.
type Candidate struct {
	Mint      string
	Signature string

	Status Status
	// Reason is the latest failure; Errors keeps every recorded failure
	// across attempts, in order.
	Reason string
	Errors []string

	Attempts    int
	FirstSeen   time.Time
	LastAttempt time.Time

	Liquidity  float64
	EntryPrice float64
	TradeNo    int
	PnLPercent float64
}

// clone detaches the copy handed to callers; the queue keeps appending
// to Errors, so the slice must not be shared.
func (c *Candidate) clone() Candidate {
	out := *c
	out.Errors = append([]string(nil), c.Errors...)
	return out
}
