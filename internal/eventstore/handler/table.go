// Package handler implements the Projection Engine from spec.md §4.4:
// named, typed handler bundles that consume the event stream in order
// and materialize read-model tables, tracking position, lock, retry,
// and failed events. Adapted from the teacher's handler v2 framework,
// whose shape is visible at every call site in
// internal/query/projection/{execution,session}.go even though the
// framework itself ships only as those two call sites in the pack.
package handler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnType is the subset of Postgres/CockroachDB column types a
// projection needs, matching the teacher's handler.ColumnTypeText et
// al. constants used in execution.go/session.go.
type ColumnType int

const (
	ColumnTypeText ColumnType = iota
	ColumnTypeTimestamp
	ColumnTypeInt64
	ColumnTypeBool
	ColumnTypeJSONB
	ColumnTypeTextArray
	ColumnTypeEnum
)

func (c ColumnType) sql() string {
	switch c {
	case ColumnTypeTimestamp:
		return "TIMESTAMPTZ"
	case ColumnTypeInt64:
		return "BIGINT"
	case ColumnTypeBool:
		return "BOOLEAN"
	case ColumnTypeJSONB:
		return "JSONB"
	case ColumnTypeTextArray:
		return "TEXT[]"
	case ColumnTypeEnum:
		return "SMALLINT"
	default:
		return "TEXT"
	}
}

// InitColumn declares one column of a projection table.
type InitColumn struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

type columnOpt func(*InitColumn)

// Nullable marks a column as nullable; columns are NOT NULL by default.
func Nullable() columnOpt {
	return func(c *InitColumn) { c.Nullable = true }
}

// NewColumn declares a column named name of type typ.
func NewColumn(name string, typ ColumnType, opts ...columnOpt) *InitColumn {
	c := &InitColumn{Name: name, Type: typ}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PrimaryKey names the columns forming a table's primary key. Every
// tenant-partitioned projection leads with instance_id per spec.md §3
// ("Primary key for tenant-partitioned tables is (instance_id, id)").
type PrimaryKey struct {
	Columns []string
}

func NewPrimaryKey(columns ...string) *PrimaryKey {
	return &PrimaryKey{Columns: columns}
}

// Table is one projection table's schema.
type Table struct {
	Name    string
	Columns []*InitColumn
	PK      *PrimaryKey
}

// NewTable declares the single table a simple projection owns; the
// table name itself comes from the Handler's Name().
func NewTable(columns []*InitColumn, pk *PrimaryKey) *Table {
	return &Table{Columns: columns, PK: pk}
}

// Check is the schema declaration a Handler's Init() returns --
// NewTableCheck for single-table projections, NewMultiTableCheck for
// projections that own more than one table (spec.md §4.4 "Table
// creation... each projection declares its schema").
type Check struct {
	Tables map[string]*Table
}

// NewTableCheck declares a single-table projection whose table name is
// the Handler's own Name().
func NewTableCheck(t *Table) *Check {
	return &Check{Tables: map[string]*Table{"": t}}
}

// NewMultiTableCheck declares a projection owning several named tables.
func NewMultiTableCheck(tables map[string]*Table) *Check {
	return &Check{Tables: tables}
}

// Ensure issues CREATE TABLE IF NOT EXISTS for every table the check
// declares, run once at startup (spec.md §4.4 "On startup, the engine
// ensures tables and indexes exist").
func (c *Check) Ensure(ctx context.Context, db *sql.DB, handlerName string) error {
	for suffix, t := range c.Tables {
		name := handlerName
		if suffix != "" {
			name = handlerName + "_" + suffix
		}
		stmt := buildCreateTable(name, t)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("handler: ensure table %s: %w", name, err)
		}
	}
	return nil
}

func buildCreateTable(name string, t *Table) string {
	var cols []string
	for _, c := range t.Columns {
		nullability := "NOT NULL"
		if c.Nullable {
			nullability = ""
		}
		cols = append(cols, strings.TrimSpace(fmt.Sprintf("%s %s %s", c.Name, c.Type.sql(), nullability)))
	}
	pk := ""
	if t.PK != nil && len(t.PK.Columns) > 0 {
		pk = fmt.Sprintf(", PRIMARY KEY (%s)", strings.Join(t.PK.Columns, ", "))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s%s)", name, strings.Join(cols, ", "), pk)
}

// Reset drops the table(s) and this handler's bookkeeping rows
// (position + failed events), per spec.md §4.4's operator-initiated
// reset: "delete table + position record + failed events; the engine
// then rebuilds by replay from position 0".
func Reset(ctx context.Context, db *sql.DB, handlerName string, check *Check) error {
	for suffix := range check.Tables {
		name := handlerName
		if suffix != "" {
			name = handlerName + "_" + suffix
		}
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return err
		}
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM projections.positions WHERE projection_name = $1", handlerName); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM projections.failed_events WHERE projection_name = $1", handlerName); err != nil {
		return err
	}
	return nil
}
