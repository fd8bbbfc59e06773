package handler

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestUpsertStatement_InsertOnConflictUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.users_users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	stmt := NewUpsertStatement(nil,
		[]Column{NewCol("instance_id", "inst1"), NewCol("id", "u1")},
		[]Column{
			NewCol("instance_id", "inst1"),
			NewCol("id", "u1"),
			NewCol("username", "alice"),
			OnlySetValueOnInsert("", "2026-07-31"),
		},
	)
	require.NoError(t, stmt.Exec(context.Background(), tx, "projections.users_users"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM projections.users_users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	stmt := NewDeleteStatement(nil, []Condition{NewCond("instance_id", "inst1"), NewCond("id", "u1")})
	require.NoError(t, stmt.Exec(context.Background(), tx, "projections.users_users"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopStatement_DoesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	stmt := NewNoopStatement(nil)
	require.NoError(t, stmt.Exec(context.Background(), tx, "projections.users_users"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
