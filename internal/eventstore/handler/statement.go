package handler

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/authapp/zitadel/internal/eventstore"
)

// Column is one column=value pair of a row mutation.
type Column struct {
	Name           string
	Value          any
	OnlyOnInsert   bool
}

// NewCol declares a column that is always written, insert or update.
func NewCol(name string, value any) Column {
	return Column{Name: name, Value: value}
}

// OnlySetValueOnInsert wraps value so the upsert's ON CONFLICT clause
// leaves the column untouched on update -- used for creation_date,
// matching the teacher's handler.OnlySetValueOnInsert(table, value).
func OnlySetValueOnInsert(table string, value any) onlyOnInsertMarker {
	return onlyOnInsertMarker{value: value}
}

type onlyOnInsertMarker struct{ value any }

// Condition is one column=value pair of a WHERE clause.
type Condition struct {
	Name  string
	Value any
}

func NewCond(name string, value any) Condition {
	return Condition{Name: name, Value: value}
}

// StatementKind distinguishes upsert from delete so the executor knows
// which squirrel builder to use.
type StatementKind int

const (
	StatementUpsert StatementKind = iota
	StatementDelete
	StatementNoop
)

// Statement is the row-level mutation a reducer returns, built by
// NewUpsertStatement/NewDeleteStatement exactly as the teacher's
// reduceExecutionSet/reduceExecutionRemoved do.
type Statement struct {
	Kind       StatementKind
	Event      eventstore.Event
	Table      string
	PKColumns  []Column
	AllColumns []Column
	Conditions []Condition
}

// NewUpsertStatement builds an INSERT ... ON CONFLICT DO UPDATE
// statement. pkColumns must be a prefix of allColumns identifying the
// row; the remaining columns are the SET clause on conflict. Expressed
// as an idempotent upsert per spec.md §4.4 ("handlers must express
// their mutations as idempotent upserts").
func NewUpsertStatement(event eventstore.Event, pkColumns []Column, allColumns []Column) *Statement {
	return &Statement{Kind: StatementUpsert, Event: event, PKColumns: pkColumns, AllColumns: allColumns}
}

// NewDeleteStatement builds a DELETE keyed by conditions.
func NewDeleteStatement(event eventstore.Event, conditions []Condition) *Statement {
	return &Statement{Kind: StatementDelete, Event: event, Conditions: conditions}
}

// NewNoopStatement advances the position without mutating any row, for
// events a projection subscribes to only to keep its position current.
func NewNoopStatement(event eventstore.Event) *Statement {
	return &Statement{Kind: StatementNoop, Event: event}
}

// Exec runs the statement against tx. table is resolved by the caller
// (Handler) since NewUpsertStatement/NewDeleteStatement don't know
// their own table name in multi-table projections.
func (s *Statement) Exec(ctx context.Context, tx *sql.Tx, table string) error {
	switch s.Kind {
	case StatementNoop:
		return nil
	case StatementUpsert:
		return s.execUpsert(ctx, tx, table)
	case StatementDelete:
		return s.execDelete(ctx, tx, table)
	default:
		return nil
	}
}

func (s *Statement) execUpsert(ctx context.Context, tx *sql.Tx, table string) error {
	insert := sq.Insert(table).PlaceholderFormat(sq.Dollar)
	var cols []string
	var vals []any
	var pkNames []string
	for _, c := range s.PKColumns {
		pkNames = append(pkNames, c.Name)
	}
	for _, c := range s.AllColumns {
		cols = append(cols, c.Name)
		if m, ok := c.Value.(onlyOnInsertMarker); ok {
			vals = append(vals, m.value)
		} else {
			vals = append(vals, c.Value)
		}
	}
	insert = insert.Columns(cols...).Values(vals...)

	var setClauses []string
	for _, c := range s.AllColumns {
		if isPK(c.Name, pkNames) {
			continue
		}
		if _, ok := c.Value.(onlyOnInsertMarker); ok {
			continue
		}
		setClauses = append(setClauses, c.Name+" = EXCLUDED."+c.Name)
	}

	stmt, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	stmt += " ON CONFLICT (" + joinNames(pkNames) + ")"
	if len(setClauses) == 0 {
		stmt += " DO NOTHING"
	} else {
		stmt += " DO UPDATE SET " + joinSet(setClauses)
	}
	_, err = tx.ExecContext(ctx, stmt, args...)
	return err
}

func (s *Statement) execDelete(ctx context.Context, tx *sql.Tx, table string) error {
	del := sq.Delete(table).PlaceholderFormat(sq.Dollar)
	eq := sq.Eq{}
	for _, c := range s.Conditions {
		eq[c.Name] = c.Value
	}
	stmt, args, err := del.Where(eq).ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, stmt, args...)
	return err
}

func isPK(name string, pkNames []string) bool {
	for _, n := range pkNames {
		if n == name {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func joinSet(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
