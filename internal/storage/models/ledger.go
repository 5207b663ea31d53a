// internal/storage/models/ledger.go
package models

import "time"

// LedgerEntry is one persisted row of the capital audit trail.
type LedgerEntry struct {
	BaseModel
	Timestamp     time.Time `gorm:"index;not null"`
	EntryType     string    `gorm:"not null;type:varchar(20)"`
	Amount        float64   `gorm:"type:decimal(20,9);not null"`
	BalanceBefore float64   `gorm:"type:decimal(20,9);not null"`
	BalanceAfter  float64   `gorm:"type:decimal(20,9);not null"`
	TradeNumber   int       `gorm:"index"`
	Notes         string    `gorm:"type:text"`
}
