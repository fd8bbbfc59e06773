// Adapted from the teacher's internal/query/execution.go
// (Queries.Execution/Executions + prepareExecutionQuery/
// prepareExecutionsQuery), generalized from the execution aggregate to
// the policy aggregate's two facets (login policy, password policy)
// folded into one row per (instance, resource_owner, id).
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
	policiesTable = table{
		name:          projection.PolicyProjectionTable,
		instanceIDCol: projection.PolicyColumnInstanceID,
	}
	PolicyColumnID = Column{
		name:  projection.PolicyColumnID,
		table: policiesTable,
	}
	PolicyColumnCreationDate = Column{
		name:  projection.PolicyColumnCreationDate,
		table: policiesTable,
	}
	PolicyColumnChangeDate = Column{
		name:  projection.PolicyColumnChangeDate,
		table: policiesTable,
	}
	PolicyColumnResourceOwner = Column{
		name:  projection.PolicyColumnResourceOwner,
		table: policiesTable,
	}
	PolicyColumnInstanceID = Column{
		name:  projection.PolicyColumnInstanceID,
		table: policiesTable,
	}
	PolicyColumnSequence = Column{
		name:  projection.PolicyColumnSequence,
		table: policiesTable,
	}
)

// Policy is the projected shape of one (instance, resource_owner, id)
// policy row. Fields are pointers where the source event may never
// have fired (a resource_owner with only a login policy set has no
// password fields populated).
type Policy struct {
	ID            string
	CreationDate  time.Time
	ChangeDate    time.Time
	ResourceOwner string
	Sequence      uint64

	AllowUsernamePassword *bool
	AllowExternalIDP      *bool
	ForceMFA              *bool

	PasswordMinLength    *uint64
	PasswordRequireUpper *bool
	PasswordRequireDigit *bool
}

type Policies struct {
	SearchResponse
	Policies []*Policy
}

// PolicyByID reads a single policy row by (instanceID, resourceOwner, id).
func (q *Queries) PolicyByID(ctx context.Context, instanceID, resourceOwner, id string) (_ *Policy, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stmt, scan := preparePolicyQuery()
	query, args, err := stmt.Where(sq.Eq{
		PolicyColumnID.identifier():            id,
		PolicyColumnResourceOwner.identifier(): resourceOwner,
		PolicyColumnInstanceID.identifier():    instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-pol001", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

// SearchPolicies lists policy rows scoped to instanceID.
func (q *Queries) SearchPolicies(ctx context.Context, instanceID string, req *SearchRequest) (policies *Policies, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	query, scan := preparePoliciesQuery()
	stmt, args, err := req.toQuery(query).
		Where(sq.Eq{PolicyColumnInstanceID.identifier(): instanceID}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInvalidArgument(err, "QUERY-pol002", "Errors.Query.InvalidRequest")
	}

	rows, err := q.client.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-pol003", "Errors.Internal")
	}
	policies, err = scan(rows)
	if err != nil {
		return nil, err
	}
	policies.LatestSequence, err = q.latestSequence(ctx, policiesTable)
	return policies, err
}

func preparePolicyQuery() (sq.SelectBuilder, func(*sql.Row) (*Policy, error)) {
	return sq.Select(
			PolicyColumnID.identifier(),
			PolicyColumnCreationDate.identifier(),
			PolicyColumnChangeDate.identifier(),
			PolicyColumnResourceOwner.identifier(),
			PolicyColumnSequence.identifier(),
			"allow_username_password",
			"allow_external_idp",
			"force_mfa",
			"password_min_length",
			"password_require_upper",
			"password_require_digit",
		).
			From(policiesTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (*Policy, error) {
			return scanPolicy(row)
		}
}

func preparePoliciesQuery() (sq.SelectBuilder, func(*sql.Rows) (*Policies, error)) {
	return sq.Select(
			PolicyColumnID.identifier(),
			PolicyColumnCreationDate.identifier(),
			PolicyColumnChangeDate.identifier(),
			PolicyColumnResourceOwner.identifier(),
			PolicyColumnSequence.identifier(),
			"allow_username_password",
			"allow_external_idp",
			"force_mfa",
			"password_min_length",
			"password_require_upper",
			"password_require_digit",
			countColumn.identifier()).
			From(policiesTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(rows *sql.Rows) (*Policies, error) {
			policies := make([]*Policy, 0)
			var count uint64
			for rows.Next() {
				p := new(Policy)
				err := rows.Scan(
					&p.ID,
					&p.CreationDate,
					&p.ChangeDate,
					&p.ResourceOwner,
					&p.Sequence,
					&p.AllowUsernamePassword,
					&p.AllowExternalIDP,
					&p.ForceMFA,
					&p.PasswordMinLength,
					&p.PasswordRequireUpper,
					&p.PasswordRequireDigit,
					&count,
				)
				if err != nil {
					return nil, err
				}
				policies = append(policies, p)
			}
			if err := rows.Close(); err != nil {
				return nil, zerrors.ThrowInternal(err, "QUERY-pol004", "Errors.Query.CloseRows")
			}
			return &Policies{
				Policies:       policies,
				SearchResponse: SearchResponse{Count: count},
			}, nil
		}
}

func scanPolicy(row *sql.Row) (*Policy, error) {
	p := new(Policy)
	err := row.Scan(
		&p.ID,
		&p.CreationDate,
		&p.ChangeDate,
		&p.ResourceOwner,
		&p.Sequence,
		&p.AllowUsernamePassword,
		&p.AllowExternalIDP,
		&p.ForceMFA,
		&p.PasswordMinLength,
		&p.PasswordRequireUpper,
		&p.PasswordRequireDigit,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, zerrors.ThrowNotFound(err, "QUERY-pol005", "Errors.Policy.NotFound")
		}
		return nil, zerrors.ThrowInternal(err, "QUERY-pol006", "Errors.Internal")
	}
	return p, nil
}
