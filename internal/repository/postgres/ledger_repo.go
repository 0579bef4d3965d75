package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

type ledgerRepo struct {
	db *sqlx.DB
}

// NewLedgerRepo creates a new PostgreSQL-backed CreditLedger.
func NewLedgerRepo(db *sqlx.DB) port.CreditLedger {
	return &ledgerRepo{db: db}
}

type reservationRow struct {
	domain.Reservation
	RecordJSON []byte `db:"record"`
}

func (row *reservationRow) toDomain() (domain.Reservation, error) {
	res := row.Reservation
	if len(row.RecordJSON) > 0 {
		var rec domain.AnalysisRecord
		if err := json.Unmarshal(row.RecordJSON, &rec); err != nil {
			return res, fmt.Errorf("decoding reservation record: %w", err)
		}
		res.Record = &rec
	}
	return res, nil
}

func (r *ledgerRepo) EnsureAccount(ctx context.Context, userID string, startingGrant int) (*domain.UserCredits, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_credits (user_id, balance, used, is_admin, created_at, updated_at)
		 VALUES ($1, $2, 0, false, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, startingGrant)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.EnsureAccount: %w", err)
	}
	return r.GetAccount(ctx, userID)
}

func (r *ledgerRepo) GetAccount(ctx context.Context, userID string) (*domain.UserCredits, error) {
	var acct domain.UserCredits
	err := r.db.GetContext(ctx, &acct,
		"SELECT user_id, balance, used, is_admin, created_at, updated_at FROM user_credits WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("ledgerRepo.GetAccount: %w", err)
	}
	return &acct, nil
}

func (r *ledgerRepo) Reserve(ctx context.Context, userID string) (*domain.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.Reserve begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Conditional decrement: the WHERE clause is the balance check, so two
	// concurrent reservations against balance 1 cannot both match.
	var isAdmin bool
	err = tx.GetContext(ctx, &isAdmin, `
		UPDATE user_credits
		SET balance = CASE WHEN is_admin THEN balance ELSE balance - 1 END,
			updated_at = NOW()
		WHERE user_id = $1 AND (is_admin OR balance > 0)
		RETURNING is_admin`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInsufficientCredits
		}
		return nil, fmt.Errorf("ledgerRepo.Reserve debit: %w", err)
	}

	now := time.Now().UTC()
	res := &domain.Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.ReservationReserved,
		Debited:   !isAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_reservations (id, user_id, status, debited, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.UserID, res.Status, res.Debited, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.Reserve insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ledgerRepo.Reserve commit: %w", err)
	}
	return res, nil
}

func (r *ledgerRepo) Commit(ctx context.Context, reservationID uuid.UUID, record *domain.AnalysisRecord) error {
	var payload []byte
	var analysisID *uuid.UUID
	if record != nil {
		var err error
		payload, err = json.Marshal(record)
		if err != nil {
			return fmt.Errorf("ledgerRepo.Commit encode: %w", err)
		}
		id := record.ID
		analysisID = &id
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledgerRepo.Commit begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.GetContext(ctx, &userID, `
		UPDATE credit_reservations
		SET status = 'committed', analysis_id = $2, record = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
		RETURNING user_id`, reservationID, analysisID, payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.settledState(ctx, reservationID, domain.ReservationCommitted, domain.ReservationPersisted)
		}
		return fmt.Errorf("ledgerRepo.Commit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE user_credits SET used = used + 1, updated_at = NOW() WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("ledgerRepo.Commit used: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledgerRepo.Commit commit: %w", err)
	}
	return nil
}

func (r *ledgerRepo) Release(ctx context.Context, reservationID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledgerRepo.Release begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		UserID  string `db:"user_id"`
		Debited bool   `db:"debited"`
	}
	err = tx.GetContext(ctx, &row, `
		UPDATE credit_reservations
		SET status = 'released', updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
		RETURNING user_id, debited`, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.settledState(ctx, reservationID, domain.ReservationReleased)
		}
		return fmt.Errorf("ledgerRepo.Release: %w", err)
	}
	if row.Debited {
		if _, err := tx.ExecContext(ctx,
			"UPDATE user_credits SET balance = balance + 1, updated_at = NOW() WHERE user_id = $1", row.UserID); err != nil {
			return fmt.Errorf("ledgerRepo.Release refund: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledgerRepo.Release commit: %w", err)
	}
	return nil
}

func (r *ledgerRepo) MarkPersisted(ctx context.Context, reservationID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credit_reservations
		SET status = 'persisted', record = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'committed'`, reservationID)
	if err != nil {
		return fmt.Errorf("ledgerRepo.MarkPersisted: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return r.settledState(ctx, reservationID, domain.ReservationPersisted)
	}
	return nil
}

// settledState resolves a conditional update that matched no rows. It returns
// nil when the reservation already sits in one of the accepted states.
func (r *ledgerRepo) settledState(ctx context.Context, id uuid.UUID, accepted ...domain.ReservationStatus) error {
	var status domain.ReservationStatus
	err := r.db.GetContext(ctx, &status, "SELECT status FROM credit_reservations WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("ledgerRepo.settledState: %w", err)
	}
	for _, s := range accepted {
		if status == s {
			return nil
		}
	}
	return domain.ErrReservationState
}

func (r *ledgerRepo) ListCommitted(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	return r.listByStatus(ctx, domain.ReservationCommitted, before, limit)
}

func (r *ledgerRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Reservation, error) {
	return r.listByStatus(ctx, domain.ReservationReserved, before, limit)
}

func (r *ledgerRepo) listByStatus(ctx context.Context, status domain.ReservationStatus, before time.Time, limit int) ([]domain.Reservation, error) {
	var rows []reservationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, status, debited, analysis_id, record, created_at, updated_at
		FROM credit_reservations
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`, status, before, limit)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.listByStatus: %w", err)
	}
	out := make([]domain.Reservation, 0, len(rows))
	for i := range rows {
		res, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ledgerRepo.listByStatus: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *ledgerRepo) Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error) {
	var acct domain.UserCredits
	err := r.db.GetContext(ctx, &acct, `
		UPDATE user_credits
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING user_id, balance, used, is_admin, created_at, updated_at`, userID, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetAccount(ctx, userID); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrInvalidInput
		}
		return nil, fmt.Errorf("ledgerRepo.Grant: %w", err)
	}
	return &acct, nil
}

func (r *ledgerRepo) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE user_credits SET is_admin = $2, updated_at = NOW() WHERE user_id = $1", userID, isAdmin)
	if err != nil {
		return fmt.Errorf("ledgerRepo.SetAdmin: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
