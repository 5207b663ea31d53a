// internal/storage/models/candidate.go
package models

import "time"

// CandidateRecord mirrors the queue's record for one detected token.
type CandidateRecord struct {
	BaseModel
	Mint        string    `gorm:"unique;not null;type:varchar(44)"`
	Signature   string    `gorm:"not null;type:varchar(88)"`
	Status      string    `gorm:"index;not null;type:varchar(20)"`
	Reason      string    `gorm:"type:text"`
	Errors      string    `gorm:"type:text"`
	Attempts    int       `gorm:"not null;default:0"`
	FirstSeen   time.Time `gorm:"index;not null"`
	LastAttempt time.Time
	Liquidity   float64 `gorm:"type:decimal(20,9)"`
	EntryPrice  float64 `gorm:"type:decimal(30,18)"`
	TradeNo     int     `gorm:"index"`
	PnLPercent  float64 `gorm:"type:decimal(10,2)"`
}
