// Built fresh (no teacher file to adapt) on the exact pattern shown by
// internal/query/org.go: a table/Column set pointing at the users
// projection, prepareXQuery builders, and Queries accessor methods.
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
	usersTable = table{
		name:          projection.UserProjectionTable,
		instanceIDCol: projection.UserColumnInstanceID,
	}
	UserColumnID = Column{
		name:  projection.UserColumnID,
		table: usersTable,
	}
	UserColumnCreationDate = Column{
		name:  projection.UserColumnCreationDate,
		table: usersTable,
	}
	UserColumnChangeDate = Column{
		name:  projection.UserColumnChangeDate,
		table: usersTable,
	}
	UserColumnResourceOwner = Column{
		name:  projection.UserColumnResourceOwner,
		table: usersTable,
	}
	UserColumnInstanceID = Column{
		name:  projection.UserColumnInstanceID,
		table: usersTable,
	}
	UserColumnState = Column{
		name:  projection.UserColumnState,
		table: usersTable,
	}
	UserColumnSequence = Column{
		name:  projection.UserColumnSequence,
		table: usersTable,
	}
	UserColumnUserName = Column{
		name:  projection.UserColumnUserName,
		table: usersTable,
	}
	UserColumnEmail = Column{
		name:  projection.UserColumnEmail,
		table: usersTable,
	}
)

// UserState mirrors command.userState/projection's state ints on the
// read side.
type UserState int

const (
	UserStateUnspecified UserState = iota
	UserStateActive
	UserStateDeactivated
	UserStateRemoved
)

type User struct {
	ID            string
	CreationDate  time.Time
	ChangeDate    time.Time
	ResourceOwner string
	State         UserState
	Sequence      uint64

	UserName string
	Email    string
}

type Users struct {
	SearchResponse
	Users []*User
}

type UserSearchQueries struct {
	SearchRequest
	Queries []SearchQuery
}

func (q *UserSearchQueries) toQuery(query sq.SelectBuilder) sq.SelectBuilder {
	query = q.SearchRequest.toQuery(query)
	for _, sq := range q.Queries {
		query = sq.toQuery(query)
	}
	return query
}

// UserByID reads a single user row by (instanceID, id), consulting the
// read-through cache first when one is configured.
func (q *Queries) UserByID(ctx context.Context, instanceID, id string) (_ *User, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	key := "user:" + instanceID + ":" + id
	if q.cache != nil {
		var cached User
		if hit, cerr := q.cache.Get(ctx, key, &cached); cerr == nil && hit {
			return &cached, nil
		}
	}

	stmt, scan := prepareUserQuery()
	query, args, err := stmt.Where(sq.Eq{
		UserColumnID.identifier():         id,
		UserColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-usr001", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	user, err := scan(row)
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		_ = q.cache.Set(ctx, key, user, 0)
	}
	return user, nil
}

// UserByUserName reads a single user row by its unique username, scoped to instanceID.
func (q *Queries) UserByUserName(ctx context.Context, instanceID, userName string) (_ *User, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stmt, scan := prepareUserQuery()
	query, args, err := stmt.Where(sq.Eq{
		UserColumnUserName.identifier():   userName,
		UserColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-usr002", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

// IsUserNameUnique reports whether userName is still free within instanceID.
func (q *Queries) IsUserNameUnique(ctx context.Context, instanceID, userName string) (isUnique bool, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stmt, scan := prepareUserUniqueQuery()
	query, args, err := stmt.Where(sq.Eq{
		UserColumnUserName.identifier():   userName,
		UserColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return false, zerrors.ThrowInternal(err, "QUERY-usr003", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

// SearchUsers lists users within instanceID, filtered/sorted/paginated by queries.
func (q *Queries) SearchUsers(ctx context.Context, instanceID string, queries *UserSearchQueries) (users *Users, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	query, scan := prepareUsersQuery()
	stmt, args, err := queries.toQuery(query).
		Where(sq.Eq{UserColumnInstanceID.identifier(): instanceID}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInvalidArgument(err, "QUERY-usr004", "Errors.Query.InvalidRequest")
	}

	rows, err := q.client.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-usr005", "Errors.Internal")
	}
	users, err = scan(rows)
	if err != nil {
		return nil, err
	}
	users.LatestSequence, err = q.latestSequence(ctx, usersTable)
	return users, err
}

func NewUserNameSearchQuery(method TextComparison, value string) (SearchQuery, error) {
	return NewTextQuery(UserColumnUserName, value, method)
}

func NewUserEmailSearchQuery(method TextComparison, value string) (SearchQuery, error) {
	return NewTextQuery(UserColumnEmail, value, method)
}

func prepareUserQuery() (sq.SelectBuilder, func(*sql.Row) (*User, error)) {
	return sq.Select(
			UserColumnID.identifier(),
			UserColumnCreationDate.identifier(),
			UserColumnChangeDate.identifier(),
			UserColumnResourceOwner.identifier(),
			UserColumnState.identifier(),
			UserColumnSequence.identifier(),
			UserColumnUserName.identifier(),
			UserColumnEmail.identifier(),
		).
			From(usersTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (*User, error) {
			u := new(User)
			err := row.Scan(
				&u.ID,
				&u.CreationDate,
				&u.ChangeDate,
				&u.ResourceOwner,
				&u.State,
				&u.Sequence,
				&u.UserName,
				&u.Email,
			)
			if err != nil {
				if isNoRows(err) {
					return nil, zerrors.ThrowNotFound(err, "QUERY-usr006", "Errors.User.NotFound")
				}
				return nil, zerrors.ThrowInternal(err, "QUERY-usr007", "Errors.Internal")
			}
			return u, nil
		}
}

func prepareUsersQuery() (sq.SelectBuilder, func(*sql.Rows) (*Users, error)) {
	return sq.Select(
			UserColumnID.identifier(),
			UserColumnCreationDate.identifier(),
			UserColumnChangeDate.identifier(),
			UserColumnResourceOwner.identifier(),
			UserColumnState.identifier(),
			UserColumnSequence.identifier(),
			UserColumnUserName.identifier(),
			UserColumnEmail.identifier(),
			countColumn.identifier()).
			From(usersTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(rows *sql.Rows) (*Users, error) {
			users := make([]*User, 0)
			var count uint64
			for rows.Next() {
				u := new(User)
				err := rows.Scan(
					&u.ID,
					&u.CreationDate,
					&u.ChangeDate,
					&u.ResourceOwner,
					&u.State,
					&u.Sequence,
					&u.UserName,
					&u.Email,
					&count,
				)
				if err != nil {
					return nil, err
				}
				users = append(users, u)
			}
			if err := rows.Close(); err != nil {
				return nil, zerrors.ThrowInternal(err, "QUERY-usr008", "Errors.Query.CloseRows")
			}
			return &Users{
				Users:          users,
				SearchResponse: SearchResponse{Count: count},
			}, nil
		}
}

func prepareUserUniqueQuery() (sq.SelectBuilder, func(*sql.Row) (bool, error)) {
	return sq.Select(uniqueColumn.identifier()).
			From(usersTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (isUnique bool, err error) {
			if err = row.Scan(&isUnique); err != nil {
				return false, zerrors.ThrowInternal(err, "QUERY-usr009", "Errors.Internal")
			}
			return isUnique, nil
		}
}
