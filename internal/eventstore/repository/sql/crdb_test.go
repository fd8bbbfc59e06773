package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/eventstore/repository"
	"github.com/authapp/zitadel/internal/zerrors"
)

func TestPush_AssignsSequenceAndPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT statement_timestamp()").
		WillReturnRows(sqlmock.NewRows([]string{"statement_timestamp"}).AddRow(fixedTime))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("inst1", "user", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"max", "owner"}).AddRow(int64(3), "org1"))
	mock.ExpectQuery("INSERT INTO eventstore.events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("ev1", fixedTime))
	mock.ExpectCommit()

	repo := NewCRDB(db)
	events, err := repo.Push(context.Background(), &repository.Write{
		InstanceID:       "inst1",
		AggregateType:    "user",
		AggregateID:      "u1",
		ExpectedSequence: 3,
		HasExpectation:   true,
		EventType:        "user.human.added",
		Data:             repository.Data(`{"name":"alice"}`),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(4), events[0].Sequence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPush_SequenceMismatchIsConcurrencyConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT statement_timestamp()").
		WillReturnRows(sqlmock.NewRows([]string{"statement_timestamp"}).AddRow(fixedTime))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"max", "owner"}).AddRow(int64(5), "org1"))
	mock.ExpectRollback()

	repo := NewCRDB(db)
	_, err = repo.Push(context.Background(), &repository.Write{
		InstanceID:       "inst1",
		AggregateType:    "user",
		AggregateID:      "u1",
		ExpectedSequence: 3,
		HasExpectation:   true,
		EventType:        "user.human.changed",
	})
	require.Error(t, err)
	assert.True(t, zerrors.IsConcurrencyConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPush_UniqueConstraintViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT statement_timestamp()").
		WillReturnRows(sqlmock.NewRows([]string{"statement_timestamp"}).AddRow(fixedTime))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"max", "owner"}).AddRow(int64(0), ""))
	mock.ExpectQuery("INSERT INTO eventstore.events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("ev1", fixedTime))
	mock.ExpectExec("INSERT INTO eventstore.unique_constraints").
		WillReturnError(&pqUniqueViolation)
	mock.ExpectRollback()

	repo := NewCRDB(db)
	_, err = repo.Push(context.Background(), &repository.Write{
		InstanceID:    "inst1",
		AggregateType: "user",
		AggregateID:   "u1",
		EventType:     "user.human.added",
		UniqueOps: []repository.UniqueOp{
			{Action: 0, UniqueType: "username", UniqueField: "Alice", ErrorMessage: "username taken"},
		},
	})
	require.Error(t, err)
	assert.True(t, zerrors.IsUniqueConstraint(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilter_OrdersByPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := eventColumns()
	rows := sqlmock.NewRows(cols).
		AddRow("ev1", "inst1", "user", "u1", "v1", "user.human.added", int64(1), int64(100), 0, []byte(`{}`), "", "", "org1", "", fixedTime).
		AddRow("ev2", "inst1", "user", "u1", "v1", "user.human.changed", int64(2), int64(200), 0, []byte(`{}`), "", "", "org1", "", fixedTime)
	mock.ExpectQuery("SELECT (.|\n)* FROM eventstore.events").WillReturnRows(rows)

	repo := NewCRDB(db)
	events, err := repo.Filter(context.Background(), &repository.Filter{InstanceIDs: []string{"inst1"}})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].PositionWhole, events[1].PositionWhole)
	require.NoError(t, mock.ExpectationsWereMet())
}
