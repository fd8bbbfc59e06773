// Package project defines the project aggregate as a minimal stub:
// enough to exercise cross-aggregate id references from grant-like
// events (a session or policy can be scoped to a project) without the
// full provisioning business-rule surface, which is explicitly out of
// scope (spec.md §1: "policy business rules... layered atop the
// core"). Mirrors internal/repository/instance's stub shape.
package project

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
)

const AggregateType eventstore.AggregateType = "project"

const (
	eventTypePrefix = eventstore.EventType("project.")
	AddedType       = eventTypePrefix + "added"
	ChangedType     = eventTypePrefix + "changed"
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

type ChangedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Name string `json:"name"`
}

func NewChangedEvent(ctx context.Context, aggregate *eventstore.Aggregate, name string) *ChangedEvent {
	return &ChangedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, ChangedType),
		Name:      name,
	}
}

func (e *ChangedEvent) Payload() any                                     { return e }
func (e *ChangedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func ChangedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &ChangedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemovedEvent marks a project aggregate removed. No projection in this
// module reduces it, so it deletes no rows that reference the project.
type RemovedEvent struct {
	*eventstore.BaseEvent `json:"-"`
}

func NewRemovedEvent(ctx context.Context, aggregate *eventstore.Aggregate) *RemovedEvent {
	return &RemovedEvent{BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, RemovedType)}
}

func (e *RemovedEvent) Payload() any                                     { return e }
func (e *RemovedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func RemovedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	return &RemovedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}, nil
}

func RegisterEventMappers(es *eventstore.Eventstore) {
	es.RegisterFilterEventMapper(AggregateType, AddedType, AddedEventMapper).
		RegisterFilterEventMapper(AggregateType, ChangedType, ChangedEventMapper).
		RegisterFilterEventMapper(AggregateType, RemovedType, RemovedEventMapper)
}
