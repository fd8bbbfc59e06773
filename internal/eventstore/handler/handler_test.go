package handler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/org"
)

// erroringHandler is a minimal Handler whose single reducer either
// fails with a fixed error or succeeds as a no-op, depending on
// failWith -- enough surface to drive processEvent/handleFailure
// without a real projection.
type erroringHandler struct{ failWith error }

func (h *erroringHandler) Name() string { return "widgets" }

func (h *erroringHandler) Init() *Check {
	return NewTableCheck(NewTable(
		[]*InitColumn{NewColumn("id", ColumnTypeText)},
		NewPrimaryKey("id"),
	))
}

func (h *erroringHandler) Reducers() []AggregateReducer {
	return []AggregateReducer{{
		Aggregate: org.AggregateType,
		EventReducers: map[eventstore.EventType]EventReducer{
			org.AddedType: func(event eventstore.Event) (*Statement, error) {
				if h.failWith != nil {
					return nil, h.failWith
				}
				return NewNoopStatement(event), nil
			},
		},
	}}
}

func newTestWorker(db *sql.DB, failWith error, policy RetryPolicy, strict bool) *worker {
	return NewWorker(&erroringHandler{failWith: failWith}, Config{
		DB:           db,
		FailedEvents: NewFailedEventStore(db),
		RetryPolicy:  policy,
		StrictOrder:  strict,
	})
}

func testEvent(seq uint64) eventstore.Event {
	agg := eventstore.NewAggregate("inst1", org.AggregateType, "org1", "org1", "v1")
	e := org.NewAddedEvent(context.Background(), agg, "Acme", "acme.test")
	e.Seq = seq
	return e
}

func failedEventRows(failureCount int, lastFailedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"failure_count", "last_error", "event_type", "aggregate_type", "aggregate_id",
		"first_failed_at", "last_failed_at", "skipped",
	}).AddRow(failureCount, "boom", string(org.AddedType), string(org.AggregateType), "org1",
		lastFailedAt, lastFailedAt, false)
}

func TestProcessEvent_QuarantinedHaltsWithoutTouchingPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	policy := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxFailures: 10}
	w := newTestWorker(db, errors.New("boom"), policy, true)

	mock.ExpectQuery("SELECT failure_count").WillReturnRows(failedEventRows(10, time.Now().Add(-time.Hour)))

	err = w.processEvent(context.Background(), "inst1", testEvent(5))
	require.ErrorIs(t, err, ErrQuarantined)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEvent_DefersRetryUntilBackoffElapses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	policy := RetryPolicy{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxFailures: 10}
	w := newTestWorker(db, errors.New("boom"), policy, true)

	mock.ExpectQuery("SELECT failure_count").WillReturnRows(failedEventRows(1, time.Now()))

	err = w.processEvent(context.Background(), "inst1", testEvent(5))
	require.ErrorIs(t, err, ErrBackoffNotElapsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEvent_RetriesOnceBackoffElapses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	policy := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxFailures: 10}
	w := newTestWorker(db, nil, policy, true)

	mock.ExpectQuery("SELECT failure_count").WillReturnRows(failedEventRows(1, time.Now().Add(-time.Hour)))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.positions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM projections.failed_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = w.processEvent(context.Background(), "inst1", testEvent(5))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleFailure_QuarantinesAtMaxFailuresWithoutAdvancing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	policy := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxFailures: 3}
	w := newTestWorker(db, errors.New("boom"), policy, true)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.failed_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT failure_count").WillReturnRows(failedEventRows(3, time.Now()))

	err = w.handleFailure(context.Background(), "inst1", testEvent(5), errors.New("boom"))
	require.ErrorIs(t, err, ErrQuarantined)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleFailure_BestEffortSkipsAheadBeforeQuarantine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	policy := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxFailures: 10}
	w := newTestWorker(db, errors.New("boom"), policy, false)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.failed_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT failure_count").WillReturnRows(failedEventRows(1, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projections.positions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = w.handleFailure(context.Background(), "inst1", testEvent(5), errors.New("boom"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ResolveFailedEventRetryClearsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS widgets").WillReturnResult(sqlmock.NewResult(0, 0))

	m := NewManager(Config{DB: db, FailedEvents: NewFailedEventStore(db)})
	require.NoError(t, m.Register(context.Background(), &erroringHandler{failWith: errors.New("boom")}))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM projections.failed_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.ResolveFailedEvent(context.Background(), "widgets", "inst1", 5, ResolveRetry))
	require.NoError(t, mock.ExpectationsWereMet())
}
