package handler

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"
)

// FailedEvent is the row spec.md §3 defines: "(projection_name,
// failed_sequence, instance_id) -> {failure_count, last_error,
// event_type, aggregate_type, aggregate_id, first_failed_at,
// last_failed_at}".
type FailedEvent struct {
	Projection    string
	Sequence      uint64
	InstanceID    string
	FailureCount  int
	LastError     string
	EventType     string
	AggregateType string
	AggregateID   string
	FirstFailedAt time.Time
	LastFailedAt  time.Time
	Skipped       bool
}

// FailedEventStore persists FailedEvent rows. Created on first failure,
// incremented on retry, deleted on eventual success (spec.md §3).
type FailedEventStore struct {
	db *sql.DB
}

func NewFailedEventStore(db *sql.DB) *FailedEventStore {
	return &FailedEventStore{db: db}
}

// RecordFailure inserts or increments the failed-event row for
// (projection, sequence, instance).
func (s *FailedEventStore) RecordFailure(ctx context.Context, tx *sql.Tx, projection string, sequence uint64, instanceID, eventType, aggregateType, aggregateID string, cause error) error {
	now := time.Now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.failed_events
			(projection_name, failed_sequence, instance_id, failure_count, last_error,
			 event_type, aggregate_type, aggregate_id, first_failed_at, last_failed_at, skipped)
		VALUES ($1,$2,$3,1,$4,$5,$6,$7,$8,$8,false)
		ON CONFLICT (projection_name, failed_sequence, instance_id) DO UPDATE SET
			failure_count = projections.failed_events.failure_count + 1,
			last_error = EXCLUDED.last_error,
			last_failed_at = EXCLUDED.last_failed_at
	`, projection, sequence, instanceID, cause.Error(), eventType, aggregateType, aggregateID, now)
	return err
}

// Resolve deletes the failed-event row after a successful retry
// (spec.md §4.4 step 4: "delete any prior failed-event record").
// Reports whether a row actually existed, so callers can keep a
// failed-event backlog gauge accurate without double-counting events
// that never failed in the first place.
func (s *FailedEventStore) Resolve(ctx context.Context, tx *sql.Tx, projection string, sequence uint64, instanceID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM projections.failed_events
		WHERE projection_name = $1 AND failed_sequence = $2 AND instance_id = $3
	`, projection, sequence, instanceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the current failed-event row, or nil if none exists.
func (s *FailedEventStore) Get(ctx context.Context, projection string, sequence uint64, instanceID string) (*FailedEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT failure_count, last_error, event_type, aggregate_type, aggregate_id,
		       first_failed_at, last_failed_at, skipped
		FROM projections.failed_events
		WHERE projection_name = $1 AND failed_sequence = $2 AND instance_id = $3
	`, projection, sequence, instanceID)
	fe := &FailedEvent{Projection: projection, Sequence: sequence, InstanceID: instanceID}
	err := row.Scan(&fe.FailureCount, &fe.LastError, &fe.EventType, &fe.AggregateType, &fe.AggregateID,
		&fe.FirstFailedAt, &fe.LastFailedAt, &fe.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fe, nil
}

// MarkSkipped records the operator decision to permanently skip a
// quarantined event (spec.md §4.4 "resolve_failed_event... marks it
// permanently skipped, recording the decision in the failed-event
// row"). The row is kept, never deleted, so the skip decision survives
// a projection reset audit.
func (s *FailedEventStore) MarkSkipped(ctx context.Context, projection string, sequence uint64, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projections.failed_events SET skipped = true
		WHERE projection_name = $1 AND failed_sequence = $2 AND instance_id = $3
	`, projection, sequence, instanceID)
	return err
}

// RetryPolicy is the exponential backoff with caps on both delay and
// failure_count from spec.md §4.4.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxFailures int
}

// DefaultRetryPolicy matches the spec's suggested shape: start small,
// cap both the wait and the number of attempts before quarantine.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Minute, MaxFailures: 10}
}

// NextDelay returns the backoff delay before attempt number
// failureCount (1-based) is retried.
func (p RetryPolicy) NextDelay(failureCount int) time.Duration {
	d := p.BaseDelay * time.Duration(math.Pow(2, float64(failureCount-1)))
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Quarantined reports whether failureCount has reached the cap and
// the event now requires operator action via ResolveFailedEvent.
func (p RetryPolicy) Quarantined(failureCount int) bool {
	return failureCount >= p.MaxFailures
}
