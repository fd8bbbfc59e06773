// Package repository defines the storage-facing contract the event
// store core drives; internal/eventstore/repository/sql implements it
// against CockroachDB/Postgres, the same split the teacher uses
// (internal/eventstore/repository/sql/crdb.go implements
// internal/eventstore/repository.Repository).
package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Field names a column the Filter language (spec.md §4.1) can
// constrain.
type Field int

const (
	FieldAggregateID Field = iota
	FieldAggregateType
	FieldSequence
	FieldResourceOwner
	FieldInstanceID
	FieldEditorService
	FieldEditorUser
	FieldEventType
	FieldEventData
	FieldCreationDate
	FieldPosition
)

// Operation is a comparison the Filter language supports.
type Operation int

const (
	OperationEquals Operation = iota
	OperationIn
	OperationNotIn
	OperationGreater
	OperationGreaterOrEqual
	OperationLess
	OperationJSONContains
)

// Event is the storage-layer representation of an appended event --
// what the SQL repository reads rows into and writes rows from. The
// eventstore package wraps these in BaseEvent-derived concrete types
// via each aggregate's EventMapper.
type Event struct {
	ID            string
	Typ           string
	Sequence      uint64
	PositionWhole int64 // commit time, unix nanos
	PositionFrac  int   // in-transaction ordinal
	Data          Data
	EditorUser    string
	EditorService string
	ResourceOwner string
	InstanceID    string
	AggregateID   string
	AggregateType string
	Version       string
	CreationDate  time.Time
	CommandID     string
}

// Data is the raw JSONB event payload; it implements driver.Valuer and
// sql.Scanner so it can be passed straight to database/sql, matching
// the teacher's repository.Event.Data field usage in crdb.go.
type Data json.RawMessage

func (d Data) Value() (driver.Value, error) {
	if len(d) == 0 {
		return "{}", nil
	}
	return []byte(d), nil
}

func (d *Data) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		cp := make([]byte, len(v))
		copy(cp, v)
		*d = cp
		return nil
	case string:
		*d = Data(v)
		return nil
	default:
		return json.Unmarshal([]byte("null"), d)
	}
}

// Write is a single not-yet-appended event plus the unique-constraint
// operations that must commit atomically with it (spec.md §4.1).
type Write struct {
	InstanceID       string
	AggregateType    string
	AggregateID      string
	ExpectedSequence uint64
	HasExpectation   bool
	EventType        string
	Version          string
	Data             Data
	EditorUser       string
	EditorService    string
	ResourceOwner    string
	CommandID        string
	UniqueOps        []UniqueOp
}

// UniqueOp is the storage-layer shape of an eventstore.UniqueConstraint.
type UniqueOp struct {
	Action       int // mirrors eventstore.UniqueConstraintAction
	UniqueType   string
	UniqueField  string
	ErrorMessage string
}

// Filter is the Filter language from spec.md §4.1.
type Filter struct {
	InstanceIDs    []string
	AggregateTypes []string
	AggregateIDs   []string
	EventTypes     []string
	EditorUsers    []string
	FromPositionIncl *Position
	ToPositionExcl   *Position
	Limit            uint64
	Desc             bool
}

// Position mirrors eventstore.Position without importing it, keeping
// this package dependency-free of the decimal library's public API
// (repository is the narrowest possible storage seam).
type Position struct {
	Whole int64
	Frac  int
}

// Repository is the storage seam the event store core drives.
// Concrete implementations (sql.CRDB) own the transaction, the
// per-aggregate lock, and unique-constraint enforcement.
type Repository interface {
	// Push appends writes transactionally (spec.md §4.1 steps 1-6) and
	// returns the appended events with their assigned sequence and
	// position.
	Push(ctx context.Context, writes ...*Write) ([]*Event, error)
	// Filter returns events matching f ordered by (position, in_tx
	// order), ascending unless f.Desc.
	Filter(ctx context.Context, f *Filter) ([]*Event, error)
	// LatestPosition returns the highest position among events
	// matching f, or the zero Position if none match.
	LatestPosition(ctx context.Context, f *Filter) (Position, error)
	Health(ctx context.Context) error
}
