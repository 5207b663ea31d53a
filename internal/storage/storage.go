// internal/storage/storage.go
package storage

import (
	"context"

	"solana-pool-sniper/internal/storage/models"
)

// Storage persists the session's audit trail and candidate history.
type Storage interface {
	// Ledger
	SaveLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, limit, offset int) ([]*models.LedgerEntry, error)

	// Candidates
	UpsertCandidate(ctx context.Context, record *models.CandidateRecord) error
	GetCandidate(ctx context.Context, mint string) (*models.CandidateRecord, error)
	ListCandidates(ctx context.Context, status string, limit, offset int) ([]*models.CandidateRecord, error)

	RunMigrations() error
	Close() error
}
