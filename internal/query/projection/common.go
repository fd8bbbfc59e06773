// Package projection hosts the Projection Engine's concrete read-model
// handlers: one per aggregate the Query Façade serves. Each file here
// plays the role the teacher's internal/query/projection/*.go files
// play -- Name()/Init()/Reducers() wired to a single projections.*
// table -- rebuilt against this core's own handler framework
// (internal/eventstore/handler) and aggregate packages.
package projection

import (
	"fmt"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
	"github.com/authapp/zitadel/internal/zerrors"
)

// reduceInstanceRemovedHelper builds the EventReducer every
// tenant-partitioned projection registers against instance.RemovedType:
// delete every row for the departing instance_id, the cascade every
// such table needs (spec.md §3 "every row is scoped by instance_id").
func reduceInstanceRemovedHelper(instanceIDCol string) handler.EventReducer {
	return func(event eventstore.Event) (*handler.Statement, error) {
		return handler.NewDeleteStatement(event, []handler.Condition{
			handler.NewCond(instanceIDCol, event.Aggregate().InstanceID),
		}), nil
	}
}

// wrongEventType is returned by a reducer's type assertion failure --
// should never happen since Reducers() wires each EventReducer to
// exactly the event type it asserts on, but the check keeps a
// programming mistake from panicking the worker loop.
func wrongEventType(typ eventstore.EventType) error {
	return zerrors.ThrowInternal(nil, "HANDL-wr0ng1", fmt.Sprintf("reduce: wrong event type %s", typ))
}
