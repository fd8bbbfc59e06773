package handler

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSQLLocker_AcquireSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO projections.locks").
		WillReturnResult(sqlmock.NewResult(0, 1))

	locker := NewSQLLocker(db)
	require.NoError(t, locker.Acquire(context.Background(), "users", "inst1", "worker-a", 30*time.Second))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLocker_AcquireHeldByOther(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO projections.locks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	locker := NewSQLLocker(db)
	err = locker.Acquire(context.Background(), "users", "inst1", "worker-a", 30*time.Second)
	require.ErrorIs(t, err, ErrLockHeld)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLocker_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM projections.locks").
		WillReturnResult(sqlmock.NewResult(0, 1))

	locker := NewSQLLocker(db)
	require.NoError(t, locker.Release(context.Background(), "users", "inst1", "worker-a"))
	require.NoError(t, mock.ExpectationsWereMet())
}
