package query

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
)

type fakeHandler struct{ name string }

func (f *fakeHandler) Name() string { return f.name }
func (f *fakeHandler) Init() *handler.Check {
	return handler.NewTableCheck(handler.NewTable(
		[]*handler.InitColumn{handler.NewColumn("id", handler.ColumnTypeText)},
		handler.NewPrimaryKey("id"),
	))
}
func (f *fakeHandler) Reducers() []handler.AggregateReducer { return nil }

func newTestManager(t *testing.T, db *sql.DB) *handler.Manager {
	t.Helper()
	m := handler.NewManager(handler.Config{DB: db})
	require.NoError(t, m.Register(context.Background(), &fakeHandler{name: "widgets"}))
	return m
}

func TestWaitForProjection_NilManagerIsNoop(t *testing.T) {
	q := NewQueries(nil, nil, nil, nil)
	err := q.WaitForProjection(context.Background(), "widgets", "inst1", eventstore.ZeroPosition, time.Second)
	require.NoError(t, err)
}

func TestWaitForProjection_ReturnsOnceCaughtUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS widgets").WillReturnResult(sqlmock.NewResult(0, 0))

	m := newTestManager(t, db)

	mock.ExpectQuery("SELECT position_whole, position_frac FROM projections.positions").
		WithArgs("widgets", "inst1").
		WillReturnRows(sqlmock.NewRows([]string{"position_whole", "position_frac"}).AddRow(int64(100), 0))

	q := NewQueries(db, nil, m, nil)
	err = q.WaitForProjection(context.Background(), "widgets", "inst1", eventstore.ZeroPosition, time.Second)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForProjection_TimesOutWhenNeverCaughtUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS widgets").WillReturnResult(sqlmock.NewResult(0, 0))

	m := newTestManager(t, db)

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT position_whole, position_frac FROM projections.positions").
		WithArgs("widgets", "inst1").
		WillReturnError(sql.ErrNoRows)

	target := eventstore.NewPosition(time.Now(), 0)
	q := NewQueries(db, nil, m, nil)
	err = q.WaitForProjection(context.Background(), "widgets", "inst1", target, 30*time.Millisecond)
	require.Error(t, err)
}
