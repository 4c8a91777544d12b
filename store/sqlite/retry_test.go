package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/store/sqlite"
)

// The mock driver stands in for a database held by a sibling process:
// it hands back "database is locked" however many times the test wants
// before letting the statement through.

var errLocked = errors.New("database is locked")

func newMockStore(t *testing.T, opts ...sqlite.Option) (*sqlite.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts = append([]sqlite.Option{sqlite.WithBaseDelay(time.Millisecond)}, opts...)
	return sqlite.NewFromDB(db, opts...), mock
}

func testCampaign() ledger.Campaign {
	return ledger.Campaign{
		ID: "COOP-0001", Name: "Pavimentación", DefaultAmount: dec("500.00"),
		CreatedAt: time.Now().UTC(),
	}
}

func TestWithRetry_BusyThenSuccess(t *testing.T) {
	// GIVEN: The first two insert attempts hit a locked database
	// WHEN: A sibling releases the lock before the third
	// THEN: The write succeeds with no error surfaced

	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO cooperaciones").WillReturnError(errLocked)
	mock.ExpectExec("INSERT INTO cooperaciones").WillReturnError(errLocked)
	mock.ExpectExec("INSERT INTO cooperaciones").WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertCampaign(context.Background(), testCampaign())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_Exhaustion_StorageUnavailable(t *testing.T) {
	store, mock := newMockStore(t, sqlite.WithRetryAttempts(3))

	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO cooperaciones").WillReturnError(errLocked)
	}

	err := store.InsertCampaign(context.Background(), testCampaign())
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_NonBusyError_NotRetried(t *testing.T) {
	// Constraint and corruption errors repeat deterministically;
	// retrying them only burns the budget.

	store, mock := newMockStore(t)

	permanent := errors.New("UNIQUE constraint failed: cooperaciones.nombre")
	mock.ExpectExec("INSERT INTO cooperaciones").WillReturnError(permanent)

	err := store.InsertCampaign(context.Background(), testCampaign())
	assert.ErrorContains(t, err, "UNIQUE constraint failed")
	assert.NotErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet(), "exactly one attempt expected")
}

func TestWithRetry_ReadBudgetShorterThanWrite(t *testing.T) {
	// Readers under WAL rarely block, so two locked reads exhaust the
	// read budget while the write budget would still have attempts left.

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errLocked)
	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errLocked)

	_, err := store.MaxFolioSuffix(context.Background(), ledger.ScopeCampaign)
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_ContextCancelStopsBackoff(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO cooperaciones").WillReturnError(errLocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.InsertCampaign(ctx, testCampaign())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
