// Built fresh (no teacher file to adapt) on the same pattern as
// org.go/user.go, pointed at the sessions projection.
package query

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/authapp/zitadel/internal/query/projection"
	"github.com/authapp/zitadel/internal/telemetry/tracing"
	"github.com/authapp/zitadel/internal/zerrors"
)

var (
	sessionsTable = table{
		name:          projection.SessionProjectionTable,
		instanceIDCol: projection.SessionColumnInstanceID,
	}
	SessionColumnID = Column{
		name:  projection.SessionColumnID,
		table: sessionsTable,
	}
	SessionColumnCreationDate = Column{
		name:  projection.SessionColumnCreationDate,
		table: sessionsTable,
	}
	SessionColumnChangeDate = Column{
		name:  projection.SessionColumnChangeDate,
		table: sessionsTable,
	}
	SessionColumnSequence = Column{
		name:  projection.SessionColumnSequence,
		table: sessionsTable,
	}
	SessionColumnState = Column{
		name:  projection.SessionColumnState,
		table: sessionsTable,
	}
	SessionColumnResourceOwner = Column{
		name:  projection.SessionColumnResourceOwner,
		table: sessionsTable,
	}
	SessionColumnInstanceID = Column{
		name:  projection.SessionColumnInstanceID,
		table: sessionsTable,
	}
	SessionColumnUserID = Column{
		name:  projection.SessionColumnUserID,
		table: sessionsTable,
	}
	SessionColumnUserCheckedAt = Column{
		name:  projection.SessionColumnUserCheckedAt,
		table: sessionsTable,
	}
	SessionColumnPasswordCheckedAt = Column{
		name:  projection.SessionColumnPasswordCheckedAt,
		table: sessionsTable,
	}
	SessionColumnTokenID = Column{
		name:  projection.SessionColumnTokenID,
		table: sessionsTable,
	}
)

// SessionState mirrors command.sessionState/projection's state ints on
// the read side.
type SessionState int

const (
	SessionStateUnspecified SessionState = iota
	SessionStateActive
	SessionStateTerminated
)

type Session struct {
	ID            string
	CreationDate  time.Time
	ChangeDate    time.Time
	Sequence      uint64
	State         SessionState
	ResourceOwner string

	UserID            *string
	UserCheckedAt     *time.Time
	PasswordCheckedAt *time.Time
	TokenID           *string
}

// SessionByID reads a single session row by (instanceID, id).
func (q *Queries) SessionByID(ctx context.Context, instanceID, id string) (_ *Session, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stmt, scan := prepareSessionQuery()
	query, args, err := stmt.Where(sq.Eq{
		SessionColumnID.identifier():         id,
		SessionColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-ses001", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

func prepareSessionQuery() (sq.SelectBuilder, func(*sql.Row) (*Session, error)) {
	return sq.Select(
			SessionColumnID.identifier(),
			SessionColumnCreationDate.identifier(),
			SessionColumnChangeDate.identifier(),
			SessionColumnSequence.identifier(),
			SessionColumnState.identifier(),
			SessionColumnResourceOwner.identifier(),
			SessionColumnUserID.identifier(),
			SessionColumnUserCheckedAt.identifier(),
			SessionColumnPasswordCheckedAt.identifier(),
			SessionColumnTokenID.identifier(),
		).
			From(sessionsTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (*Session, error) {
			s := new(Session)
			err := row.Scan(
				&s.ID,
				&s.CreationDate,
				&s.ChangeDate,
				&s.Sequence,
				&s.State,
				&s.ResourceOwner,
				&s.UserID,
				&s.UserCheckedAt,
				&s.PasswordCheckedAt,
				&s.TokenID,
			)
			if err != nil {
				if isNoRows(err) {
					return nil, zerrors.ThrowNotFound(err, "QUERY-ses002", "Errors.Session.NotFound")
				}
				return nil, zerrors.ThrowInternal(err, "QUERY-ses003", "Errors.Internal")
			}
			return s, nil
		}
}
