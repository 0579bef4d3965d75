package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clinsight/internal/domain"
)

// CreditLedger defines the contract for the per-user usage credit ledger.
// Reserve must be atomic per user: concurrent reservations against a balance
// of N yield at most N successes.
type CreditLedger interface {
	EnsureAccount(ctx context.Context, userID string, startingGrant int) (*domain.UserCredits, error)
	GetAccount(ctx context.Context, userID string) (*domain.UserCredits, error)
	Reserve(ctx context.Context, userID string) (*domain.Reservation, error)
	Commit(ctx context.Context, reservationID uuid.UUID, record *domain.AnalysisRecord) error
	Release(ctx context.Context, reservationID uuid.UUID) error
	MarkPersisted(ctx context.Context, reservationID uuid.UUID) error
	ListCommitted(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error)
	Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
}

// AnalysisRepository defines the contract for analysis history persistence.
// Create is idempotent on the record ID.
type AnalysisRepository interface {
	Create(ctx context.Context, record *domain.AnalysisRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error)
	Delete(ctx context.Context, id uuid.UUID, requestingUserID string) error
}
