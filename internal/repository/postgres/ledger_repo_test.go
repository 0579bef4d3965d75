package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/domain"
	"clinsight/internal/repository/postgres"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "pgx"), mock
}

var accountColumns = []string{"user_id", "balance", "used", "is_admin", "created_at", "updated_at"}

func TestLedgerRepo_EnsureAccount(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO user_credits").
		WithArgs("user-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id, balance, used, is_admin, created_at, updated_at FROM user_credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("user-1", 3, 0, false, now, now))

	acct, err := repo.EnsureAccount(context.Background(), "user-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetAccountNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)

	mock.ExpectQuery("FROM user_credits WHERE user_id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := repo.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerRepo_ReserveDebits(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(false))
	mock.ExpectExec("INSERT INTO credit_reservations").
		WithArgs(sqlmock.AnyArg(), "user-1", "reserved", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Reserve(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReserved, res.Status)
	assert.True(t, res.Debited)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ReserveInsufficient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ReleaseRefundsDebit(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE credit_reservations").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "debited"}).AddRow("user-1", true))
	mock.ExpectExec("UPDATE user_credits SET balance = balance \\+ 1").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Release(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ReleaseSettled(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"already released", "released", nil},
		{"already committed", "committed", domain.ErrReservationState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := postgres.NewLedgerRepo(db)
			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE credit_reservations").
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows([]string{"user_id", "debited"}))
			mock.ExpectQuery("SELECT status FROM credit_reservations").
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.status))
			mock.ExpectRollback()

			err := repo.Release(context.Background(), id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLedgerRepo_GrantOverdraw(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE user_credits").
		WithArgs("user-1", -10).
		WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectQuery("FROM user_credits WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("user-1", 2, 1, false, now, now))

	_, err := repo.Grant(context.Background(), "user-1", -10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SetAdminUnknownUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)

	mock.ExpectExec("UPDATE user_credits SET is_admin").
		WithArgs("ghost", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAdmin(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerRepo_ListCommittedDecodesRecord(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	now := time.Now().UTC()
	resID := uuid.New()
	recID := uuid.New()

	mock.ExpectQuery("FROM credit_reservations").
		WithArgs("committed", now, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "debited", "analysis_id", "record", "created_at", "updated_at"}).
			AddRow(resID.String(), "user-1", "committed", true, recID.String(),
				[]byte(`{"id":"`+recID.String()+`","user_id":"user-1","title":"Syncope"}`), now, now))

	out, err := repo.ListCommitted(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Record)
	assert.Equal(t, recID, out[0].Record.ID)
	assert.Equal(t, "Syncope", out[0].Record.Title)
}

func TestLedgerRepo_CommitCountsUsage(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	id := uuid.New()
	record := &domain.AnalysisRecord{ID: uuid.New(), UserID: "user-1", Title: "Syncope"}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE credit_reservations\\s+SET status = 'committed'").
		WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectExec("UPDATE user_credits SET used = used \\+ 1").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Commit(context.Background(), id, record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_CommitSettled(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{"already committed", sqlmock.NewRows([]string{"status"}).AddRow("committed"), nil},
		{"already persisted", sqlmock.NewRows([]string{"status"}).AddRow("persisted"), nil},
		{"released", sqlmock.NewRows([]string{"status"}).AddRow("released"), domain.ErrReservationState},
		{"unknown", sqlmock.NewRows([]string{"status"}), domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := postgres.NewLedgerRepo(db)
			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE credit_reservations").
				WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
			mock.ExpectQuery("SELECT status FROM credit_reservations").
				WithArgs(id).
				WillReturnRows(tt.rows)
			mock.ExpectRollback()

			err := repo.Commit(context.Background(), id, &domain.AnalysisRecord{ID: uuid.New()})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLedgerRepo_MarkPersisted(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewLedgerRepo(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE credit_reservations\\s+SET status = 'persisted', record = NULL").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPersisted(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_MarkPersistedSettled(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"already persisted", "persisted", nil},
		{"still reserved", "reserved", domain.ErrReservationState},
		{"released", "released", domain.ErrReservationState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := postgres.NewLedgerRepo(db)
			id := uuid.New()

			mock.ExpectExec("UPDATE credit_reservations").
				WithArgs(id).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT status FROM credit_reservations").
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.status))

			err := repo.MarkPersisted(context.Background(), id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
