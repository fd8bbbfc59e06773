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
	orgsTable = table{
		name:          projection.OrgProjectionTable,
		instanceIDCol: projection.OrgColumnInstanceID,
	}
	OrgColumnID = Column{
		name:  projection.OrgColumnID,
		table: orgsTable,
	}
	OrgColumnCreationDate = Column{
		name:  projection.OrgColumnCreationDate,
		table: orgsTable,
	}
	OrgColumnChangeDate = Column{
		name:  projection.OrgColumnChangeDate,
		table: orgsTable,
	}
	OrgColumnResourceOwner = Column{
		name:  projection.OrgColumnResourceOwner,
		table: orgsTable,
	}
	OrgColumnInstanceID = Column{
		name:  projection.OrgColumnInstanceID,
		table: orgsTable,
	}
	OrgColumnState = Column{
		name:  projection.OrgColumnState,
		table: orgsTable,
	}
	OrgColumnSequence = Column{
		name:  projection.OrgColumnSequence,
		table: orgsTable,
	}
	OrgColumnName = Column{
		name:  projection.OrgColumnName,
		table: orgsTable,
	}
	OrgColumnDomain = Column{
		name:  projection.OrgColumnDomain,
		table: orgsTable,
	}
)

// OrgState mirrors command.orgState/projection's state ints on the
// read side.
type OrgState int

const (
	OrgStateUnspecified OrgState = iota
	OrgStateActive
	OrgStateDeactivated
)

type Orgs struct {
	SearchResponse
	Orgs []*Org
}

type Org struct {
	ID            string
	CreationDate  time.Time
	ChangeDate    time.Time
	ResourceOwner string
	State         OrgState
	Sequence      uint64

	Name   string
	Domain string
}

type OrgSearchQueries struct {
	SearchRequest
	Queries []SearchQuery
}

func (q *OrgSearchQueries) toQuery(query sq.SelectBuilder) sq.SelectBuilder {
	query = q.SearchRequest.toQuery(query)
	for _, sq := range q.Queries {
		query = sq.toQuery(query)
	}
	return query
}

// OrgByID reads a single org row by (instanceID, id).
func (q *Queries) OrgByID(ctx context.Context, instanceID, id string) (_ *Org, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	if q.cache != nil {
		key := "org:" + instanceID + ":" + id
		var cached Org
		if hit, cerr := q.cache.Get(ctx, key, &cached); cerr == nil && hit {
			return &cached, nil
		}
	}

	stmt, scan := prepareOrgQuery()
	query, args, err := stmt.Where(sq.Eq{
		OrgColumnID.identifier():         id,
		OrgColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-org001", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	org, err := scan(row)
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		_ = q.cache.Set(ctx, "org:"+instanceID+":"+id, org, 0)
	}
	return org, nil
}

// OrgByPrimaryDomain reads a single org row by its domain, scoped to instanceID.
func (q *Queries) OrgByPrimaryDomain(ctx context.Context, instanceID, domain string) (_ *Org, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stmt, scan := prepareOrgQuery()
	query, args, err := stmt.Where(sq.Eq{
		OrgColumnDomain.identifier():     domain,
		OrgColumnInstanceID.identifier(): instanceID,
	}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-org002", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

// IsOrgUnique reports whether name and domain are both still free
// within instanceID, backing AddOrg's pre-check (scenario: duplicate
// domain rejected).
func (q *Queries) IsOrgUnique(ctx context.Context, instanceID, name, domain string) (isUnique bool, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	if name == "" && domain == "" {
		return false, zerrors.ThrowInvalidArgument(nil, "QUERY-org003", "Errors.Query.InvalidRequest")
	}
	stmt, scan := prepareOrgUniqueQuery()
	query, args, err := stmt.Where(
		sq.And{
			sq.Eq{OrgColumnInstanceID.identifier(): instanceID},
			sq.Or{
				sq.Eq{OrgColumnDomain.identifier(): domain},
				sq.Eq{OrgColumnName.identifier(): name},
			},
		}).ToSql()
	if err != nil {
		return false, zerrors.ThrowInternal(err, "QUERY-org004", "Errors.Query.SQLStatement")
	}

	row := q.client.QueryRowContext(ctx, query, args...)
	return scan(row)
}

// ExistsOrg reports whether id exists within instanceID.
func (q *Queries) ExistsOrg(ctx context.Context, instanceID, id string) (err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	_, err = q.OrgByID(ctx, instanceID, id)
	return err
}

// SearchOrgs lists orgs within instanceID, filtered/sorted/paginated by queries.
func (q *Queries) SearchOrgs(ctx context.Context, instanceID string, queries *OrgSearchQueries) (orgs *Orgs, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	query, scan := prepareOrgsQuery()
	stmt, args, err := queries.toQuery(query).
		Where(sq.Eq{OrgColumnInstanceID.identifier(): instanceID}).ToSql()
	if err != nil {
		return nil, zerrors.ThrowInvalidArgument(err, "QUERY-org005", "Errors.Query.InvalidRequest")
	}

	rows, err := q.client.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, zerrors.ThrowInternal(err, "QUERY-org006", "Errors.Internal")
	}
	orgs, err = scan(rows)
	if err != nil {
		return nil, err
	}
	orgs.LatestSequence, err = q.latestSequence(ctx, orgsTable)
	return orgs, err
}

func NewOrgDomainSearchQuery(method TextComparison, value string) (SearchQuery, error) {
	return NewTextQuery(OrgColumnDomain, value, method)
}

func NewOrgNameSearchQuery(method TextComparison, value string) (SearchQuery, error) {
	return NewTextQuery(OrgColumnName, value, method)
}

func NewOrgIDsSearchQuery(ids ...string) (SearchQuery, error) {
	list := make([]any, len(ids))
	for i, value := range ids {
		list[i] = value
	}
	return NewListQuery(OrgColumnID, list, ListIn)
}

func prepareOrgsQuery() (sq.SelectBuilder, func(*sql.Rows) (*Orgs, error)) {
	return sq.Select(
			OrgColumnID.identifier(),
			OrgColumnCreationDate.identifier(),
			OrgColumnChangeDate.identifier(),
			OrgColumnResourceOwner.identifier(),
			OrgColumnState.identifier(),
			OrgColumnSequence.identifier(),
			OrgColumnName.identifier(),
			OrgColumnDomain.identifier(),
			countColumn.identifier()).
			From(orgsTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(rows *sql.Rows) (*Orgs, error) {
			orgs := make([]*Org, 0)
			var count uint64
			for rows.Next() {
				org := new(Org)
				err := rows.Scan(
					&org.ID,
					&org.CreationDate,
					&org.ChangeDate,
					&org.ResourceOwner,
					&org.State,
					&org.Sequence,
					&org.Name,
					&org.Domain,
					&count,
				)
				if err != nil {
					return nil, err
				}
				orgs = append(orgs, org)
			}
			if err := rows.Close(); err != nil {
				return nil, zerrors.ThrowInternal(err, "QUERY-org007", "Errors.Query.CloseRows")
			}
			return &Orgs{
				Orgs:           orgs,
				SearchResponse: SearchResponse{Count: count},
			}, nil
		}
}

func prepareOrgQuery() (sq.SelectBuilder, func(*sql.Row) (*Org, error)) {
	return sq.Select(
			OrgColumnID.identifier(),
			OrgColumnCreationDate.identifier(),
			OrgColumnChangeDate.identifier(),
			OrgColumnResourceOwner.identifier(),
			OrgColumnState.identifier(),
			OrgColumnSequence.identifier(),
			OrgColumnName.identifier(),
			OrgColumnDomain.identifier(),
		).
			From(orgsTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (*Org, error) {
			o := new(Org)
			err := row.Scan(
				&o.ID,
				&o.CreationDate,
				&o.ChangeDate,
				&o.ResourceOwner,
				&o.State,
				&o.Sequence,
				&o.Name,
				&o.Domain,
			)
			if err != nil {
				if isNoRows(err) {
					return nil, zerrors.ThrowNotFound(err, "QUERY-org008", "Errors.Org.NotFound")
				}
				return nil, zerrors.ThrowInternal(err, "QUERY-org009", "Errors.Internal")
			}
			return o, nil
		}
}

func prepareOrgUniqueQuery() (sq.SelectBuilder, func(*sql.Row) (bool, error)) {
	return sq.Select(uniqueColumn.identifier()).
			From(orgsTable.identifier()).PlaceholderFormat(sq.Dollar),
		func(row *sql.Row) (isUnique bool, err error) {
			if err = row.Scan(&isUnique); err != nil {
				return false, zerrors.ThrowInternal(err, "QUERY-org010", "Errors.Internal")
			}
			return isUnique, nil
		}
}
