package handler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zitadel/logging"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/repository"
	"github.com/authapp/zitadel/internal/telemetry/tracing"
)

// ErrQuarantined is returned by processEvent/handleFailure once an
// event's failure_count has hit RetryPolicy.MaxFailures. The worker
// halts at this position -- spec.md §4.4 "never silently drop" -- and
// stays there until an operator calls Manager.ResolveFailedEvent.
var ErrQuarantined = errors.New("handler: event quarantined, awaiting operator resolution")

// ErrBackoffNotElapsed is returned when a previously failed event's
// RetryPolicy.NextDelay window has not yet passed, so the worker defers
// re-attempting it instead of hammering it on every poll tick.
var ErrBackoffNotElapsed = errors.New("handler: retry backoff window not elapsed")

// quietRetry reports whether err is an expected wait condition (lock
// contention, an unexpired backoff window, or a quarantined event
// awaiting operator action) rather than a genuine failure worth logging.
func quietRetry(err error) bool {
	return errors.Is(err, ErrLockHeld) || errors.Is(err, ErrBackoffNotElapsed) || errors.Is(err, ErrQuarantined)
}

// EventReducer turns one stored event into the row mutation a
// projection wants, the same role the teacher's reduceExecutionSet/
// reduceExecutionRemoved play for the execution projection.
type EventReducer func(eventstore.Event) (*Statement, error)

// AggregateReducer groups the EventReducers a projection subscribes to
// for one aggregate type, matching the Reducers() shape the teacher's
// handler v2 framework expects from a Handler.
type AggregateReducer struct {
	Aggregate     eventstore.AggregateType
	EventReducers map[eventstore.EventType]EventReducer
}

// Handler is one named projection: spec.md §4.4 "a named, typed bundle
// that declares which events it consumes and how each event maps to a
// row mutation in its own read-model table(s)".
type Handler interface {
	Name() string
	Init() *Check
	Reducers() []AggregateReducer
}

// Config ties the ambient pieces a worker loop needs together:
// storage, locking, and the tunables spec.md §4.4 leaves to the
// operator (batch size, poll interval, retry policy, ordering mode).
type Config struct {
	Eventstore   *eventstore.Eventstore
	DB           *sql.DB
	Locker       Locker
	FailedEvents *FailedEventStore
	WorkerID     string
	BatchSize    uint64
	LockTTL      time.Duration
	PollInterval time.Duration
	RetryPolicy  RetryPolicy
	// StrictOrder, when true, keeps a projection at the first event it
	// cannot process: that event is attempted again on later passes,
	// under RetryPolicy's backoff, until it succeeds or is quarantined.
	// When false, the failure is recorded and the projection moves past
	// the event -- spec.md §4.4's two ordering modes.
	StrictOrder bool
}

// DefaultConfig fills in the tunables spec.md leaves to the operator
// with this package's default starting values.
func DefaultConfig(es *eventstore.Eventstore, db *sql.DB, locker Locker, workerID string) Config {
	return Config{
		Eventstore:   es,
		DB:           db,
		Locker:       locker,
		FailedEvents: NewFailedEventStore(db),
		WorkerID:     workerID,
		BatchSize:    200,
		LockTTL:      30 * time.Second,
		PollInterval: 2 * time.Second,
		RetryPolicy:  DefaultRetryPolicy(),
		StrictOrder:  true,
	}
}

// worker is the running instance of a Handler for one instance_id --
// the unit the Projection Lock serializes (spec.md §4.4 step 1).
type worker struct {
	h      Handler
	cfg    Config
	lookup map[eventstore.AggregateType]map[eventstore.EventType]EventReducer
	tables map[string]string // reducer-declared table suffix -> physical table name
}

// NewWorker prepares a Handler for a run loop: flattens its Reducers()
// into a lookup table and resolves physical table names from Init().
func NewWorker(h Handler, cfg Config) *worker {
	lookup := make(map[eventstore.AggregateType]map[eventstore.EventType]EventReducer)
	for _, ar := range h.Reducers() {
		lookup[ar.Aggregate] = ar.EventReducers
	}
	tables := make(map[string]string)
	check := h.Init()
	for suffix := range check.Tables {
		name := h.Name()
		if suffix != "" {
			name = h.Name() + "_" + suffix
		}
		tables[suffix] = name
	}
	return &worker{h: h, cfg: cfg, lookup: lookup, tables: tables}
}

// EnsureSchema issues CREATE TABLE IF NOT EXISTS for this projection's
// tables, spec.md §4.4's startup step.
func (w *worker) EnsureSchema(ctx context.Context) error {
	return w.h.Init().Ensure(ctx, w.cfg.DB, w.h.Name())
}

// Run drives one projection's event stream until ctx is cancelled,
// implementing spec.md §4.4 steps 1-5: acquire the per-(projection,
// instance) lock, read the last processed position, stream events in
// batches, apply each event's mutation plus position advance
// transactionally, and release the lock when the batch is exhausted.
func (w *worker) Run(ctx context.Context, instanceID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.runOnce(ctx, instanceID); err != nil && !quietRetry(err) {
			logging.WithFields("projection", w.h.Name(), "instanceID", instanceID).WithError(err).Warn("projection run failed")
		}
		select {
		case <-time.After(w.cfg.PollInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

// runOnce acquires the lock, processes everything currently available,
// then releases it -- one full spec.md §4.4 cycle.
func (w *worker) runOnce(ctx context.Context, instanceID string) (err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	if err := w.cfg.Locker.Acquire(ctx, w.h.Name(), instanceID, w.cfg.WorkerID, w.cfg.LockTTL); err != nil {
		return err
	}
	defer func() {
		if relErr := w.cfg.Locker.Release(ctx, w.h.Name(), instanceID, w.cfg.WorkerID); relErr != nil {
			logging.WithFields("projection", w.h.Name(), "instanceID", instanceID).WithError(relErr).Warn("lock release failed")
		}
	}()

	pos, err := w.readPosition(ctx, instanceID)
	if err != nil {
		return err
	}

	query := eventstore.NewSearchQueryBuilder().InstanceID(instanceID)
	for aggType := range w.lookup {
		query = query.AggregateTypes(aggType)
	}

	renewAt := time.Now().Add(w.cfg.LockTTL / 2)
	stream := w.cfg.Eventstore.Stream(ctx, pos, query, false, w.cfg.BatchSize)
	for res := range stream {
		if res.Err != nil {
			return res.Err
		}
		if time.Now().After(renewAt) {
			if err := w.cfg.Locker.Renew(ctx, w.h.Name(), instanceID, w.cfg.WorkerID, w.cfg.LockTTL); err != nil {
				return err
			}
			renewAt = time.Now().Add(w.cfg.LockTTL / 2)
		}
		if err := w.processEvent(ctx, instanceID, res.Event); err != nil {
			return err
		}
	}
	return nil
}

// processEvent applies one event's row mutation, position advance, and
// failed-event bookkeeping inside a single transaction (spec.md §4.4
// "every handled event's row mutation(s) and position advance commit
// in the same transaction").
func (w *worker) processEvent(ctx context.Context, instanceID string, event eventstore.Event) error {
	start := time.Now()
	defer func() { handlerLatency.WithLabelValues(w.h.Name()).Observe(time.Since(start).Seconds()) }()

	reducers, ok := w.lookup[event.Aggregate().Type]
	var reduce EventReducer
	if ok {
		reduce, ok = reducers[event.Type()]
	}
	if !ok {
		return w.commitPosition(ctx, instanceID, event, nil)
	}

	fe, err := w.cfg.FailedEvents.Get(ctx, w.h.Name(), event.Sequence(), instanceID)
	if err != nil {
		return err
	}
	if fe != nil {
		if w.cfg.RetryPolicy.Quarantined(fe.FailureCount) {
			return ErrQuarantined
		}
		if retryAt := fe.LastFailedAt.Add(w.cfg.RetryPolicy.NextDelay(fe.FailureCount)); time.Now().Before(retryAt) {
			return ErrBackoffNotElapsed
		}
	}

	stmt, reduceErr := reduce(event)
	if reduceErr == nil {
		execErr := w.execStatement(ctx, instanceID, event, stmt)
		if execErr == nil {
			eventsProcessed.WithLabelValues(w.h.Name()).Inc()
			return nil
		}
		reduceErr = execErr
	}

	return w.handleFailure(ctx, instanceID, event, reduceErr)
}

func (w *worker) execStatement(ctx context.Context, instanceID string, event eventstore.Event, stmt *Statement) error {
	tx, err := w.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := w.tables[""]
	if stmt.Table != "" {
		table = w.tables[stmt.Table]
	}
	if err := stmt.Exec(ctx, tx, table); err != nil {
		return err
	}
	if err := w.writePosition(ctx, tx, instanceID, event); err != nil {
		return err
	}
	resolved, err := w.cfg.FailedEvents.Resolve(ctx, tx, w.h.Name(), event.Sequence(), instanceID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if resolved {
		failedEventsBacklog.WithLabelValues(w.h.Name()).Dec()
	}
	return nil
}

// handleFailure records the failure. A quarantined event always halts
// the projection at this position pending operator action; otherwise it
// skips ahead (best effort) or halts pending retry (strict order), per
// the retry policy's failure cap (spec.md §4.4).
func (w *worker) handleFailure(ctx context.Context, instanceID string, event eventstore.Event, cause error) error {
	tx, err := w.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := w.cfg.FailedEvents.RecordFailure(ctx, tx, w.h.Name(), event.Sequence(), instanceID,
		string(event.Type()), string(event.Aggregate().Type), event.Aggregate().ID, cause); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	fe, err := w.cfg.FailedEvents.Get(ctx, w.h.Name(), event.Sequence(), instanceID)
	if err != nil {
		return err
	}
	if fe != nil && fe.FailureCount == 1 {
		failedEventsBacklog.WithLabelValues(w.h.Name()).Inc()
	}
	quarantined := fe != nil && w.cfg.RetryPolicy.Quarantined(fe.FailureCount)

	logging.WithFields(
		"projection", w.h.Name(), "instanceID", instanceID, "sequence", event.Sequence(),
		"quarantined", quarantined,
	).WithError(cause).Warn("projection event failed")

	if quarantined {
		// spec.md §4.4: never silently drop. The position stays where
		// it is until an operator calls Manager.ResolveFailedEvent.
		return ErrQuarantined
	}
	if !w.cfg.StrictOrder {
		// Best-effort mode: skip ahead so later events keep flowing.
		return w.commitPosition(ctx, instanceID, event, nil)
	}
	return cause
}

// skipPast advances past a quarantined, now-permanently-skipped event
// so the projection's stream can resume beyond it, used by
// Manager.ResolveFailedEvent(..., ResolveSkip).
func (w *worker) skipPast(ctx context.Context, instanceID string, sequence uint64) error {
	fe, err := w.cfg.FailedEvents.Get(ctx, w.h.Name(), sequence, instanceID)
	if err != nil || fe == nil {
		return err
	}
	events, err := w.cfg.Eventstore.Filter(ctx, eventstore.NewSearchQueryBuilder().
		InstanceID(instanceID).
		AggregateTypes(eventstore.AggregateType(fe.AggregateType)).
		AggregateIDs(fe.AggregateID))
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.Sequence() == sequence {
			return w.commitPosition(ctx, instanceID, e, nil)
		}
	}
	return nil
}

func (w *worker) readPosition(ctx context.Context, instanceID string) (eventstore.Position, error) {
	var whole int64
	var frac int
	row := w.cfg.DB.QueryRowContext(ctx, `
		SELECT position_whole, position_frac FROM projections.positions
		WHERE projection_name = $1 AND instance_id = $2
	`, w.h.Name(), instanceID)
	err := row.Scan(&whole, &frac)
	if errors.Is(err, sql.ErrNoRows) {
		return eventstore.ZeroPosition, nil
	}
	if err != nil {
		return eventstore.Position{}, err
	}
	return eventstore.NewPositionFromRepo(repository.Position{Whole: whole, Frac: frac}), nil
}

func (w *worker) writePosition(ctx context.Context, tx *sql.Tx, instanceID string, event eventstore.Event) error {
	repoPos := event.Position().ToRepo()
	whole, frac := repoPos.Whole, repoPos.Frac
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.positions (projection_name, instance_id, position_whole, position_frac, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (projection_name, instance_id) DO UPDATE SET
			position_whole = EXCLUDED.position_whole,
			position_frac = EXCLUDED.position_frac,
			updated_at = EXCLUDED.updated_at
	`, w.h.Name(), instanceID, whole, frac, time.Now())
	return err
}

// commitPosition advances the tracked position for events that need no
// row mutation: unsubscribed event types, a best-effort-mode failure
// that's being skipped, or an operator-resolved skip via skipPast.
func (w *worker) commitPosition(ctx context.Context, instanceID string, event eventstore.Event, _ error) error {
	tx, err := w.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := w.writePosition(ctx, tx, instanceID, event); err != nil {
		return err
	}
	return tx.Commit()
}
