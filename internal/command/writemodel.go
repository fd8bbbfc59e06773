// Package command implements the Command Engine from spec.md §4.3: load
// an aggregate's write-model by event replay, validate, produce events,
// and append them under optimistic concurrency.
package command

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
)

// WriteModel is the transient, replay-derived state spec.md §9 calls a
// "data-driven reducer... handlers and reducers are pure". It is never
// cached across commands for correctness (spec.md §4.3 step 1).
type WriteModel struct {
	AggregateID       string
	InstanceID        string
	ResourceOwner     string
	ProcessedSequence uint64
}

// reduceBase updates the bookkeeping fields every concrete write
// model's Reduce method must apply before its own type switch.
func (wm *WriteModel) reduceBase(event eventstore.Event) {
	wm.ProcessedSequence = event.Sequence()
	wm.InstanceID = event.Aggregate().InstanceID
	if event.Aggregate().ResourceOwner != "" {
		wm.ResourceOwner = event.Aggregate().ResourceOwner
	}
}

// reducer is implemented by every concrete *WriteModel (UserWriteModel,
// OrgWriteModel, ...): Query declares which events to replay, Reduce
// folds them into state. Modeled on spec.md §9's "registry mapping
// event_type -> (state, payload) -> state".
type reducer interface {
	Query() *eventstore.SearchQueryBuilder
	Reduce(events []eventstore.Event) error
}

// load replays wm's declared event stream and folds it into wm's state,
// the Command Engine's step 1 ("Load write-model").
func (c *Commands) load(ctx context.Context, wm reducer) error {
	events, err := c.es.Filter(ctx, wm.Query())
	if err != nil {
		return err
	}
	return wm.Reduce(events)
}
