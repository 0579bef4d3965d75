package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/domain"
	"clinsight/internal/repository/memory"
)

func TestLedger_ConcurrentReserveNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	const balance = 5
	_, err := ledger.EnsureAccount(ctx, "u1", balance)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		denied    int
	)
	for i := 0; i < balance*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, "u1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientCredits):
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, balance, successes)
	assert.Equal(t, balance*3, denied)
	acct, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Balance)
}

func TestLedger_EnsureAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()

	first, err := ledger.EnsureAccount(ctx, "u1", 3)
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, "u1")
	require.NoError(t, err)

	again, err := ledger.EnsureAccount(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Balance)
	assert.Equal(t, 2, again.Balance)
}

func TestLedger_CommitKeepsDebit(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	_, _ = ledger.EnsureAccount(ctx, "u1", 3)

	res, err := ledger.Reserve(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Debited)

	record := &domain.AnalysisRecord{ID: uuid.New(), UserID: "u1"}
	require.NoError(t, ledger.Commit(ctx, res.ID, record))
	require.NoError(t, ledger.Commit(ctx, res.ID, record), "commit is idempotent")

	acct, _ := ledger.GetAccount(ctx, "u1")
	assert.Equal(t, 2, acct.Balance)
	assert.Equal(t, 1, acct.Used)

	assert.ErrorIs(t, ledger.Release(ctx, res.ID), domain.ErrReservationState)
}

func TestLedger_ReleaseRefundsOnce(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	_, _ = ledger.EnsureAccount(ctx, "u1", 1)

	res, err := ledger.Reserve(ctx, "u1")
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	require.NoError(t, ledger.Release(ctx, res.ID))
	require.NoError(t, ledger.Release(ctx, res.ID))

	acct, _ := ledger.GetAccount(ctx, "u1")
	assert.Equal(t, 1, acct.Balance)
	assert.Equal(t, 0, acct.Used)

	assert.ErrorIs(t, ledger.Commit(ctx, res.ID, nil), domain.ErrReservationState)
	assert.ErrorIs(t, ledger.Release(ctx, uuid.New()), domain.ErrNotFound)
}

func TestLedger_AdminReservesWithoutDebit(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	_, _ = ledger.EnsureAccount(ctx, "admin", 0)
	require.NoError(t, ledger.SetAdmin(ctx, "admin", true))

	res, err := ledger.Reserve(ctx, "admin")
	require.NoError(t, err)
	assert.False(t, res.Debited)

	require.NoError(t, ledger.Release(ctx, res.ID))
	acct, _ := ledger.GetAccount(ctx, "admin")
	assert.Equal(t, 0, acct.Balance)
}

func TestLedger_MarkPersistedAndListings(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ledger.SetClock(func() time.Time { return now })
	_, _ = ledger.EnsureAccount(ctx, "u1", 5)

	committed, _ := ledger.Reserve(ctx, "u1")
	record := &domain.AnalysisRecord{ID: uuid.New(), UserID: "u1", Title: "t"}
	require.NoError(t, ledger.Commit(ctx, committed.ID, record))
	stale, _ := ledger.Reserve(ctx, "u1")

	now = base.Add(time.Hour)
	fresh, _ := ledger.Reserve(ctx, "u1")

	list, err := ledger.ListCommitted(ctx, base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, committed.ID, list[0].ID)
	require.NotNil(t, list[0].Record)
	assert.Equal(t, record.ID, list[0].Record.ID)

	staleList, err := ledger.ListStale(ctx, base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, staleList, 1)
	assert.Equal(t, stale.ID, staleList[0].ID)
	assert.NotEqual(t, fresh.ID, staleList[0].ID)

	require.NoError(t, ledger.MarkPersisted(ctx, committed.ID))
	require.NoError(t, ledger.MarkPersisted(ctx, committed.ID))
	list, _ = ledger.ListCommitted(ctx, now.Add(time.Hour), 10)
	assert.Empty(t, list)
	assert.ErrorIs(t, ledger.MarkPersisted(ctx, stale.ID), domain.ErrReservationState)
}

func TestLedger_Grant(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()

	_, err := ledger.Grant(ctx, "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _ = ledger.EnsureAccount(ctx, "u1", 1)
	acct, err := ledger.Grant(ctx, "u1", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, acct.Balance)

	_, err = ledger.Grant(ctx, "u1", -6)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	acct, err = ledger.Grant(ctx, "u1", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Balance)
}
