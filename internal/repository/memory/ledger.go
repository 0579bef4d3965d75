package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// Ledger is an in-process CreditLedger. A single mutex serializes every
// read-modify-write, which gives Reserve the same atomicity as the
// conditional UPDATE in the Postgres ledger.
type Ledger struct {
	mu           sync.Mutex
	accounts     map[string]*domain.UserCredits
	reservations map[uuid.UUID]*domain.Reservation
	now          func() time.Time
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:     make(map[string]*domain.UserCredits),
		reservations: make(map[uuid.UUID]*domain.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var _ port.CreditLedger = (*Ledger)(nil)

// SetClock overrides the ledger's time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) EnsureAccount(_ context.Context, userID string, startingGrant int) (*domain.UserCredits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok {
		now := l.now()
		acct = &domain.UserCredits{UserID: userID, Balance: startingGrant, CreatedAt: now, UpdatedAt: now}
		l.accounts[userID] = acct
	}
	cp := *acct
	return &cp, nil
}

func (l *Ledger) GetAccount(_ context.Context, userID string) (*domain.UserCredits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (l *Ledger) Reserve(_ context.Context, userID string) (*domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok || (!acct.IsAdmin && acct.Balance <= 0) {
		return nil, domain.ErrInsufficientCredits
	}
	now := l.now()
	if !acct.IsAdmin {
		acct.Balance--
		acct.UpdatedAt = now
	}
	res := &domain.Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.ReservationReserved,
		Debited:   !acct.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.reservations[res.ID] = res
	cp := *res
	return &cp, nil
}

func (l *Ledger) Commit(_ context.Context, reservationID uuid.UUID, record *domain.AnalysisRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[reservationID]
	if !ok {
		return domain.ErrNotFound
	}
	switch res.Status {
	case domain.ReservationCommitted, domain.ReservationPersisted:
		return nil
	case domain.ReservationReleased:
		return domain.ErrReservationState
	}
	now := l.now()
	res.Status = domain.ReservationCommitted
	res.UpdatedAt = now
	if record != nil {
		id := record.ID
		res.AnalysisID = &id
		rc := *record
		res.Record = &rc
	}
	if acct, ok := l.accounts[res.UserID]; ok {
		acct.Used++
		acct.UpdatedAt = now
	}
	return nil
}

func (l *Ledger) Release(_ context.Context, reservationID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[reservationID]
	if !ok {
		return domain.ErrNotFound
	}
	switch res.Status {
	case domain.ReservationReleased:
		return nil
	case domain.ReservationCommitted, domain.ReservationPersisted:
		return domain.ErrReservationState
	}
	now := l.now()
	res.Status = domain.ReservationReleased
	res.UpdatedAt = now
	if res.Debited {
		if acct, ok := l.accounts[res.UserID]; ok {
			acct.Balance++
			acct.UpdatedAt = now
		}
	}
	return nil
}

func (l *Ledger) MarkPersisted(_ context.Context, reservationID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[reservationID]
	if !ok {
		return domain.ErrNotFound
	}
	switch res.Status {
	case domain.ReservationPersisted:
		return nil
	case domain.ReservationCommitted:
		res.Status = domain.ReservationPersisted
		res.Record = nil
		res.UpdatedAt = l.now()
		return nil
	default:
		return domain.ErrReservationState
	}
}

func (l *Ledger) ListCommitted(_ context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	return l.list(domain.ReservationCommitted, before, limit), nil
}

func (l *Ledger) ListStale(_ context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	return l.list(domain.ReservationReserved, before, limit), nil
}

func (l *Ledger) list(status domain.ReservationStatus, before time.Time, limit int) []domain.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Reservation
	for _, res := range l.reservations {
		if res.Status == status && res.UpdatedAt.Before(before) {
			cp := *res
			if res.Record != nil {
				rc := *res.Record
				cp.Record = &rc
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *Ledger) Grant(_ context.Context, userID string, amount int) (*domain.UserCredits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if acct.Balance+amount < 0 {
		return nil, domain.ErrInvalidInput
	}
	acct.Balance += amount
	acct.UpdatedAt = l.now()
	cp := *acct
	return &cp, nil
}

func (l *Ledger) SetAdmin(_ context.Context, userID string, isAdmin bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok {
		return domain.ErrNotFound
	}
	acct.IsAdmin = isAdmin
	acct.UpdatedAt = l.now()
	return nil
}
