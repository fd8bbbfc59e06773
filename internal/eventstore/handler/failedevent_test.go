package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestFailedEventStore_RecordFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.failed_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	store := NewFailedEventStore(db)
	require.NoError(t, store.RecordFailure(
		context.Background(), tx, "users", 7, "inst1", "user.human.added", "user", "u1", errors.New("boom"),
	))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedEventStore_ResolveReportsWhetherRowExisted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM projections.failed_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM projections.failed_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	store := NewFailedEventStore(db)
	resolved, err := store.Resolve(context.Background(), tx, "users", 7, "inst1")
	require.NoError(t, err)
	require.True(t, resolved)

	resolved, err = store.Resolve(context.Background(), tx, "users", 8, "inst1")
	require.NoError(t, err)
	require.False(t, resolved)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryPolicy_NextDelayCapsAtMax(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, MaxFailures: 10}
	require.Equal(t, time.Second, p.NextDelay(1))
	require.Equal(t, 2*time.Second, p.NextDelay(2))
	require.Equal(t, 10*time.Second, p.NextDelay(10))
}

func TestRetryPolicy_Quarantined(t *testing.T) {
	p := DefaultRetryPolicy()
	require.False(t, p.Quarantined(p.MaxFailures-1))
	require.True(t, p.Quarantined(p.MaxFailures))
}
