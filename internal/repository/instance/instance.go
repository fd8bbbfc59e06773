// Package instance defines the instance aggregate as a minimal stub:
// enough to exercise cross-aggregate id references (every other
// aggregate's events carry an instance_id) without the full
// provisioning business-rule surface, which is explicitly out of scope
// (spec.md §1: "policy business rules... layered atop the core").
package instance

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
)

const AggregateType eventstore.AggregateType = "instance"

const (
	eventTypePrefix = eventstore.EventType("instance.")
	AddedType       = eventTypePrefix + "added"
	RemovedType     = eventTypePrefix + "removed"
)

type AddedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Name string `json:"name"`
}

func NewAddedEvent(ctx context.Context, aggregate *eventstore.Aggregate, name string) *AddedEvent {
	return &AddedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, AddedType),
		Name:      name,
	}
}

func (e *AddedEvent) Payload() any                                     { return e }
func (e *AddedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func AddedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &AddedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemovedEvent is consumed by every projection that owns an
// instance_id column, used as the "tear down this tenant" cascade
// signal (the same reduceInstanceRemovedHelper role the teacher's
// projections give it).
type RemovedEvent struct {
	*eventstore.BaseEvent `json:"-"`
}

func NewRemovedEvent(ctx context.Context, aggregate *eventstore.Aggregate) *RemovedEvent {
	return &RemovedEvent{BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, RemovedType)}
}

func (e *RemovedEvent) Payload() any { return e }

func (e *RemovedEvent) UniqueConstraints() []*eventstore.UniqueConstraint {
	return []*eventstore.UniqueConstraint{
		eventstore.NewRemoveInstanceUniqueConstraints(),
	}
}

func RemovedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	return &RemovedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}, nil
}

func RegisterEventMappers(es *eventstore.Eventstore) {
	es.RegisterFilterEventMapper(AggregateType, AddedType, AddedEventMapper).
		RegisterFilterEventMapper(AggregateType, RemovedType, RemovedEventMapper)
}
