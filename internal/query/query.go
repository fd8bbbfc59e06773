// Package query implements the Query Façade from spec.md §5: read-only
// access to projection tables, trigger-then-wait for read-your-writes,
// and the tenant-scoped filter/paginate/sort surface every search here
// exposes. Adapted from the teacher's internal/query/{org,execution}.go
// (Queries/table/Column/SearchRequest/SearchResponse/prepareXQuery
// shape), generalized beyond those two aggregates and stripped of the
// teacher's internal/api/authz, internal/domain and internal/database
// packages (this core takes instance_id as an explicit parameter
// instead of reading it off ctx, and has no CRDB AS OF SYSTEM TIME
// time-travel layer — see DESIGN.md).
package query

import (
	"context"
	"database/sql"
	stderrors "errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
	"github.com/authapp/zitadel/internal/zerrors"
)

// Queries is the Query Façade every read accessor (OrgByID,
// SearchOrgs, ...) hangs off of.
type Queries struct {
	client  *sql.DB
	es      *eventstore.Eventstore
	manager *handler.Manager
	cache   Cache
}

// NewQueries wires the façade's storage (client), the event store
// (used only by the wait/trigger helpers in wait.go, never by the
// search/get accessors, which read exclusively from projection tables
// per spec.md §5), and the handler.Manager that tracks projection
// position for wait_for_projection. cache may be nil.
func NewQueries(client *sql.DB, es *eventstore.Eventstore, manager *handler.Manager, cache Cache) *Queries {
	return &Queries{client: client, es: es, manager: manager, cache: cache}
}

// table names one projection table, matching the teacher's unexported
// table type in query/org.go.
type table struct {
	name          string
	instanceIDCol string
}

func (t table) identifier() string { return t.name }

// Column is one column of a table, addressed either bare or
// table-qualified via identifier().
type Column struct {
	name  string
	table table
}

func (c Column) identifier() string {
	if c.table.name == "" {
		return c.name
	}
	return c.table.name + "." + c.name
}

// countColumn/uniqueColumn are the two synthetic columns the teacher's
// prepareXQuery helpers select alongside real columns: a window-count
// for paginated searches, a boolean presence-check for uniqueness
// probes (IsOrgUnique and friends).
var (
	countColumn  = rawColumn{"COUNT(*) OVER()"}
	uniqueColumn = rawColumn{"COUNT(*) = 0"}
)

type rawColumn struct{ expr string }

func (r rawColumn) identifier() string { return r.expr }

// SearchRequest carries the pagination/sort parameters common to every
// SearchX query, matching the teacher's SearchRequest embedded in e.g.
// OrgSearchQueries/ExecutionSearchQueries.
type SearchRequest struct {
	Offset     uint64
	Limit      uint64
	SortColumn Column
	Asc        bool
}

func (r *SearchRequest) toQuery(query sq.SelectBuilder) sq.SelectBuilder {
	if r.Offset > 0 {
		query = query.Offset(r.Offset)
	}
	if r.Limit > 0 {
		query = query.Limit(r.Limit)
	}
	if r.SortColumn.name != "" {
		dir := "DESC"
		if r.Asc {
			dir = "ASC"
		}
		query = query.OrderBy(r.SortColumn.identifier() + " " + dir)
	}
	return query
}

// SearchResponse is embedded by every SearchX result, carrying the
// total row count and the projection's sequence at read time, matching
// the teacher's embedded SearchResponse on Orgs/Executions.
type SearchResponse struct {
	Count          uint64
	LatestSequence uint64
}

// TextComparison selects how NewTextQuery compares its column.
type TextComparison int

const (
	TextEquals TextComparison = iota
	TextEqualsIgnoreCase
	TextContains
	TextStartsWith
	ListIn
)

// SearchQuery is one predicate a SearchX request can add to its WHERE
// clause, matching the teacher's SearchQuery interface.
type SearchQuery interface {
	toQuery(sq.SelectBuilder) sq.SelectBuilder
}

type textQuery struct {
	column     Column
	value      string
	comparison TextComparison
}

func (q *textQuery) toQuery(query sq.SelectBuilder) sq.SelectBuilder {
	switch q.comparison {
	case TextEqualsIgnoreCase:
		return query.Where(sq.Expr("LOWER("+q.column.identifier()+") = LOWER(?)", q.value))
	case TextContains:
		return query.Where(sq.ILike{q.column.identifier(): "%" + q.value + "%"})
	case TextStartsWith:
		return query.Where(sq.ILike{q.column.identifier(): q.value + "%"})
	default:
		return query.Where(sq.Eq{q.column.identifier(): q.value})
	}
}

// NewTextQuery builds a SearchQuery comparing column against value.
func NewTextQuery(column Column, value string, comparison TextComparison) (SearchQuery, error) {
	if value == "" {
		return nil, zerrors.ThrowInvalidArgument(nil, "QUERY-Text01", "Errors.Query.InvalidRequest")
	}
	return &textQuery{column: column, value: value, comparison: comparison}, nil
}

type listQuery struct {
	column Column
	values []any
}

func (q *listQuery) toQuery(query sq.SelectBuilder) sq.SelectBuilder {
	return query.Where(sq.Eq{q.column.identifier(): q.values})
}

// NewListQuery builds a SearchQuery matching column against any of
// values. The comparison argument is accepted for symmetry with the
// teacher's call sites (`NewListQuery(OrgColumnID, list, ListIn)`);
// ListIn is the only comparison a list query supports.
func NewListQuery(column Column, values []any, _ TextComparison) (SearchQuery, error) {
	if len(values) == 0 {
		return nil, zerrors.ThrowInvalidArgument(nil, "QUERY-List01", "Errors.Query.InvalidRequest")
	}
	return &listQuery{column: column, values: values}, nil
}

// latestSequence reports the projection table's current sequence so a
// SearchX accessor can stamp its SearchResponse, matching the teacher's
// `orgs.LatestSequence, err = q.latestSequence(ctx, orgsTable)`.
func (q *Queries) latestSequence(ctx context.Context, t table) (uint64, error) {
	stmt, args, err := sq.Select("COALESCE(MAX(" + "sequence" + "), 0)").
		From(t.identifier()).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, zerrors.ThrowInternal(err, "QUERY-Seq001", "Errors.Query.SQLStatement")
	}
	var seq uint64
	if err := q.client.QueryRowContext(ctx, stmt, args...).Scan(&seq); err != nil {
		return 0, zerrors.ThrowInternal(err, "QUERY-Seq002", "Errors.Internal")
	}
	return seq, nil
}

// isNoRows reports whether err is sql.ErrNoRows, the only case every
// prepareXQuery scan function maps to a domain NotFound instead of
// Internal.
func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}
