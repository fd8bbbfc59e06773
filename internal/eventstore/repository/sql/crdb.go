// Package sql implements internal/eventstore/repository.Repository
// against CockroachDB/Postgres, adapted from the teacher's
// internal/eventstore/repository/sql/crdb.go: same CTE-shaped insert
// that reads the aggregate's previous sequence and locks it for the
// duration of the transaction, same unique-constraint side table, same
// dual pgx/lib-pq unique-violation detection -- rebuilt around this
// module's decimal Position instead of crdb_internal_mvcc_timestamp.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/cockroach-go/v2/crdb"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zitadel/logging"

	"github.com/authapp/zitadel/internal/eventstore/repository"
	"github.com/authapp/zitadel/internal/zerrors"
)

const (
	eventsTable = "eventstore.events"
)

// previousSequenceQuery selects the max sequence currently stored for
// the aggregate, locked FOR UPDATE so concurrent pushes for the same
// aggregate serialize on it (spec.md §4.1 step 1).
const previousSequenceQuery = `SELECT COALESCE(MAX(sequence), 0), COALESCE(MAX(resource_owner), '')
	FROM eventstore.events
	WHERE instance_id = $1 AND aggregate_type = $2 AND aggregate_id = $3
	FOR UPDATE`

const insertEventQuery = `INSERT INTO eventstore.events (
		instance_id, aggregate_type, aggregate_id, aggregate_version,
		event_type, sequence, position_whole, position_frac,
		event_data, editor_user, editor_service, resource_owner, command_id,
		created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, statement_timestamp())
	RETURNING id, created_at`

const uniqueInsert = `INSERT INTO eventstore.unique_constraints
	(instance_id, unique_type, unique_field) VALUES ($1, $2, $3)`

const uniqueDelete = `DELETE FROM eventstore.unique_constraints
	WHERE instance_id = $1 AND unique_type = $2 AND unique_field = $3`

const uniqueDeleteInstance = `DELETE FROM eventstore.unique_constraints WHERE instance_id = $1`

// CRDB is a Repository backed by *sql.DB; it works unmodified against
// CockroachDB or Postgres (the dual pq/pgx error-code check below is
// exactly why).
type CRDB struct {
	db *sql.DB
}

// NewCRDB wraps an already-configured connection pool. The caller owns
// pool sizing and lifecycle, matching spec.md §5 ("single connection
// pool ... created at startup and torn down at shutdown").
func NewCRDB(db *sql.DB) *CRDB {
	return &CRDB{db: db}
}

func (c *CRDB) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

// Push implements spec.md §4.1 steps 1-6: one database transaction per
// call, a per-aggregate sequence lock, sequence assignment, unique
// constraint enforcement, and an all-or-nothing commit.
func (c *CRDB) Push(ctx context.Context, writes ...*repository.Write) (events []*repository.Event, err error) {
	if len(writes) == 0 {
		return nil, nil
	}
	events = make([]*repository.Event, len(writes))

	err = crdb.ExecuteTx(ctx, c.db, nil, func(tx *sql.Tx) error {
		// perAggregateNext tracks the next sequence to assign per
		// aggregate within this batch so multiple writes for the same
		// aggregate in one push are numbered contiguously without
		// re-locking the aggregate on every write.
		perAggregateNext := map[string]uint64{}
		perAggregateOwner := map[string]string{}

		// positionWhole is the database's own clock, read inside this
		// transaction, never the application's wall clock -- this is
		// what keeps position commit-ordered across concurrent pushes
		// on unrelated aggregates (spec.md §4.1 step 3).
		var dbNow time.Time
		if err := tx.QueryRowContext(ctx, "SELECT statement_timestamp()").Scan(&dbNow); err != nil {
			return zerrors.ThrowInternal(err, "SQL-1pQvd", "Errors.Internal")
		}
		positionWhole := dbNow.UnixNano()

		for i, w := range writes {
			key := w.InstanceID + "/" + w.AggregateType + "/" + w.AggregateID
			next, seen := perAggregateNext[key]
			if !seen {
				var maxSeq uint64
				var owner string
				if err := tx.QueryRowContext(ctx, previousSequenceQuery, w.InstanceID, w.AggregateType, w.AggregateID).
					Scan(&maxSeq, &owner); err != nil {
					return zerrors.ThrowInternal(err, "SQL-Df2fw", "Errors.Internal")
				}
				if w.HasExpectation && maxSeq != w.ExpectedSequence {
					return zerrors.ThrowConcurrencyConflict(nil, "SQL-Ad3qs",
						fmt.Sprintf("expected sequence %d, got %d", w.ExpectedSequence, maxSeq))
				}
				next = maxSeq
				perAggregateOwner[key] = owner
			}
			next++
			perAggregateNext[key] = next

			resourceOwner := w.ResourceOwner
			if resourceOwner == "" {
				resourceOwner = perAggregateOwner[key]
			}

			e := &repository.Event{
				Typ:           w.EventType,
				Sequence:      next,
				PositionWhole: positionWhole,
				PositionFrac:  i,
				Data:          w.Data,
				EditorUser:    w.EditorUser,
				EditorService: w.EditorService,
				ResourceOwner: resourceOwner,
				InstanceID:    w.InstanceID,
				AggregateID:   w.AggregateID,
				AggregateType: w.AggregateType,
				Version:       w.Version,
				CommandID:     w.CommandID,
			}

			if err := tx.QueryRowContext(ctx, insertEventQuery,
				e.InstanceID, e.AggregateType, e.AggregateID, e.Version,
				e.Typ, e.Sequence, e.PositionWhole, e.PositionFrac,
				e.Data, e.EditorUser, e.EditorService, e.ResourceOwner, e.CommandID,
			).Scan(&e.ID, &e.CreationDate); err != nil {
				logging.WithFields(
					"aggregateType", e.AggregateType,
					"aggregateId", e.AggregateID,
					"eventType", e.Typ,
					"instanceID", e.InstanceID,
				).WithError(err).Debug("event insert failed")
				return zerrors.ThrowInternal(err, "SQL-SBP37", "Errors.Internal")
			}

			events[i] = e
			perAggregateOwner[key] = resourceOwner

			if err := c.handleUniqueConstraints(ctx, tx, w.InstanceID, w.UniqueOps); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		var zerr *zerrors.ZError
		if errors.As(err, &zerr) {
			return nil, err
		}
		return nil, zerrors.ThrowInternal(err, "SQL-DjgtG", "Errors.Internal")
	}
	return events, nil
}

// handleUniqueConstraints adds/removes unique constraint rows within
// the same transaction as the events that need them (spec.md §4.2).
func (c *CRDB) handleUniqueConstraints(ctx context.Context, tx *sql.Tx, instanceID string, ops []repository.UniqueOp) error {
	for _, op := range ops {
		field := strings.ToLower(op.UniqueField)
		switch op.Action {
		case 0: // Add
			if _, err := tx.ExecContext(ctx, uniqueInsert, instanceID, op.UniqueType, field); err != nil {
				if isUniqueViolationError(err) {
					return zerrors.ThrowUniqueConstraintViolation(err, "SQL-M0dsf", op.ErrorMessage)
				}
				return zerrors.ThrowInternal(err, "SQL-dM9ds", "Errors.Internal")
			}
		case 1: // Remove
			if _, err := tx.ExecContext(ctx, uniqueDelete, instanceID, op.UniqueType, field); err != nil {
				return zerrors.ThrowInternal(err, "SQL-6n88i", "Errors.Internal")
			}
		case 2: // InstanceRemove
			if _, err := tx.ExecContext(ctx, uniqueDeleteInstance, instanceID); err != nil {
				return zerrors.ThrowInternal(err, "SQL-6n88j", "Errors.Internal")
			}
		}
	}
	return nil
}

func isUniqueViolationError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// Filter implements spec.md §4.1 query()/stream(follow=false).
func (c *CRDB) Filter(ctx context.Context, f *repository.Filter) ([]*repository.Event, error) {
	stmt, args, err := buildFilterQuery(f).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "SQL-2m9sc", "Errors.Query.SQLStatement")
	}
	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "SQL-3nsla", "Errors.Internal")
	}
	defer rows.Close()

	var events []*repository.Event
	for rows.Next() {
		e := &repository.Event{}
		if err := rows.Scan(
			&e.ID, &e.InstanceID, &e.AggregateType, &e.AggregateID, &e.Version,
			&e.Typ, &e.Sequence, &e.PositionWhole, &e.PositionFrac, &e.Data,
			&e.EditorUser, &e.EditorService, &e.ResourceOwner, &e.CommandID, &e.CreationDate,
		); err != nil {
			return nil, zerrors.ThrowInternal(err, "SQL-9f6as", "Errors.Internal")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, zerrors.ThrowInternal(err, "SQL-7ga2p", "Errors.Query.CloseRows")
	}
	return events, nil
}

// LatestPosition implements spec.md §4.1 latest_position().
func (c *CRDB) LatestPosition(ctx context.Context, f *repository.Filter) (repository.Position, error) {
	filterCopy := *f
	filterCopy.Desc = true
	filterCopy.Limit = 1
	events, err := c.Filter(ctx, &filterCopy)
	if err != nil {
		return repository.Position{}, err
	}
	if len(events) == 0 {
		return repository.Position{}, nil
	}
	return repository.Position{Whole: events[0].PositionWhole, Frac: events[0].PositionFrac}, nil
}

func eventColumns() []string {
	return []string{
		"id", "instance_id", "aggregate_type", "aggregate_id", "aggregate_version",
		"event_type", "sequence", "position_whole", "position_frac", "event_data",
		"editor_user", "editor_service", "resource_owner", "command_id", "created_at",
	}
}

func buildFilterQuery(f *repository.Filter) sq.SelectBuilder {
	q := sq.Select(eventColumns()...).From(eventsTable).PlaceholderFormat(sq.Dollar)

	if len(f.InstanceIDs) > 0 {
		q = q.Where(sq.Eq{"instance_id": f.InstanceIDs})
	}
	if len(f.AggregateTypes) > 0 {
		q = q.Where(sq.Eq{"aggregate_type": f.AggregateTypes})
	}
	if len(f.AggregateIDs) > 0 {
		q = q.Where(sq.Eq{"aggregate_id": f.AggregateIDs})
	}
	if len(f.EventTypes) > 0 {
		q = q.Where(sq.Eq{"event_type": f.EventTypes})
	}
	if len(f.EditorUsers) > 0 {
		q = q.Where(sq.Eq{"editor_user": f.EditorUsers})
	}
	if f.FromPositionIncl != nil {
		q = q.Where(sq.Or{
			sq.Gt{"position_whole": f.FromPositionIncl.Whole},
			sq.And{
				sq.Eq{"position_whole": f.FromPositionIncl.Whole},
				sq.GtOrEq{"position_frac": f.FromPositionIncl.Frac},
			},
		})
	}
	if f.ToPositionExcl != nil {
		q = q.Where(sq.Or{
			sq.Lt{"position_whole": f.ToPositionExcl.Whole},
			sq.And{
				sq.Eq{"position_whole": f.ToPositionExcl.Whole},
				sq.Lt{"position_frac": f.ToPositionExcl.Frac},
			},
		})
	}
	if f.Desc {
		q = q.OrderBy("position_whole DESC", "position_frac DESC")
	} else {
		q = q.OrderBy("position_whole ASC", "position_frac ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}
