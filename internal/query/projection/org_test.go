package projection

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/instance"
	"github.com/authapp/zitadel/internal/repository/org"
)

func TestOrgProjection_ReduceAdded_UpsertsRow(t *testing.T) {
	p := NewOrgProjection().(*orgProjection)

	agg := eventstore.NewAggregate("inst1", org.AggregateType, "org1", "org1", "v1")
	event := org.NewAddedEvent(context.Background(), agg, "Acme", "acme.test")

	stmt, err := p.reduceAdded(event)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO " + OrgProjectionTable).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, stmt.Exec(context.Background(), tx, OrgProjectionTable))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgProjection_ReduceAdded_WrongEventTypeErrors(t *testing.T) {
	p := NewOrgProjection().(*orgProjection)

	agg := eventstore.NewAggregate("inst1", org.AggregateType, "org1", "org1", "v1")
	wrongEvent := org.NewNameChangedEvent(context.Background(), agg, "New Name")

	_, err := p.reduceAdded(wrongEvent)
	require.Error(t, err)
}

func TestOrgProjection_InstanceRemovedCascadesByInstanceID(t *testing.T) {
	p := NewOrgProjection().(*orgProjection)

	reducers := p.Reducers()
	require.Len(t, reducers, 2)
	require.Equal(t, instance.AggregateType, reducers[1].Aggregate)

	reduce, ok := reducers[1].EventReducers[instance.RemovedType]
	require.True(t, ok)

	agg := eventstore.NewAggregate("inst1", instance.AggregateType, "inst1", "inst1", "v1")
	event := instance.NewRemovedEvent(context.Background(), agg)

	stmt, err := reduce(event)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM " + OrgProjectionTable).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, stmt.Exec(context.Background(), tx, OrgProjectionTable))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
