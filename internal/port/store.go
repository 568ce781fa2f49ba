package port

import (
	"context"

	"github.com/meridianedu/leadmatch/internal/domain"
)

// Store hands out per-invocation repositories. Each matching run acquires
// its own dedicated database connection and must release it exactly once
// via LeadRepository.Close, on every exit path.
type Store interface {
	Acquire(ctx context.Context) (LeadRepository, error)
}

// LeadRepository is the data-access surface of one pipeline invocation,
// bound to a single database connection.
type LeadRepository interface {
	// GetLead fetches a lead by primary key. Returns ErrLeadNotFound when
	// no row exists; any driver failure is wrapped as a storage error.
	GetLead(ctx context.Context, id string) (*domain.Lead, error)

	// SearchNearest returns up to width candidates ordered by ascending
	// cosine distance to the query vector, excluding the lead itself.
	// An empty index yields an empty slice, not an error.
	SearchNearest(ctx context.Context, id string, vector []float32, width int) ([]domain.Candidate, error)

	// ReplaceMatches supersedes all stored matches for leadID with the
	// given set: best-effort delete, then a transactional conflict-ignoring
	// insert. A no-op when matches is empty.
	ReplaceMatches(ctx context.Context, leadID string, matches []domain.RankedMatch) error

	// ListMatches returns the persisted match set for a lead.
	ListMatches(ctx context.Context, leadID string) ([]domain.MatchRecord, error)

	// StoreLeadEmbedding writes the lead's embedding column.
	StoreLeadEmbedding(ctx context.Context, leadID string, vector []float32) error

	// Close releases the underlying connection.
	Close() error
}
