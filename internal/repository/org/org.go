// Package org defines the org aggregate: a tenant-owned organization
// with a name/domain pair and a deactivated/reactivated lifecycle,
// following the same event shape as the teacher's query/org.go
// read-model (Org.Name, Org.Domain, Org.State) but on the write side.
package org

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/zerrors"
)

const AggregateType eventstore.AggregateType = "org"

const (
	eventTypePrefix  = eventstore.EventType("org.")
	AddedType        = eventTypePrefix + "added"
	NameChangedType  = eventTypePrefix + "name.changed"
	DomainSetType    = eventTypePrefix + "domain.set"
	DeactivatedType  = eventTypePrefix + "deactivated"
	ReactivatedType  = eventTypePrefix + "reactivated"
)

type AddedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Name   string `json:"name"`
	Domain string `json:"domain"`
}

func NewAddedEvent(ctx context.Context, aggregate *eventstore.Aggregate, name, domain string) *AddedEvent {
	return &AddedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, AddedType),
		Name:      name,
		Domain:    domain,
	}
}

func (e *AddedEvent) Payload() any { return e }

func (e *AddedEvent) UniqueConstraints() []*eventstore.UniqueConstraint {
	return []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", e.Domain, "Errors.Org.DomainAlreadyExists"),
	}
}

func AddedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &AddedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "ORG-Sf3f1", "Errors.Internal")
	}
	return e, nil
}

type NameChangedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Name string `json:"name"`
}

func NewNameChangedEvent(ctx context.Context, aggregate *eventstore.Aggregate, name string) *NameChangedEvent {
	return &NameChangedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, NameChangedType),
		Name:      name,
	}
}

func (e *NameChangedEvent) Payload() any                                     { return e }
func (e *NameChangedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func NameChangedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &NameChangedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "ORG-Sf3f2", "Errors.Internal")
	}
	return e, nil
}

// DomainSetEvent changes the primary domain; releases the old domain's
// unique constraint and reserves the new one atomically (spec.md §4.2
// "changing a username removes the old and adds the new atomically" --
// the same pattern applies to an org's domain).
type DomainSetEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Domain    string `json:"domain"`
	OldDomain string `json:"oldDomain,omitempty"`
}

func NewDomainSetEvent(ctx context.Context, aggregate *eventstore.Aggregate, domain, oldDomain string) *DomainSetEvent {
	return &DomainSetEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, DomainSetType),
		Domain:    domain,
		OldDomain: oldDomain,
	}
}

func (e *DomainSetEvent) Payload() any { return e }

func (e *DomainSetEvent) UniqueConstraints() []*eventstore.UniqueConstraint {
	constraints := []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", e.Domain, "Errors.Org.DomainAlreadyExists"),
	}
	if e.OldDomain != "" {
		constraints = append(constraints, eventstore.NewRemoveUniqueConstraint("org_domain", e.OldDomain))
	}
	return constraints
}

func DomainSetEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &DomainSetEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "ORG-Sf3f3", "Errors.Internal")
	}
	return e, nil
}

type lifecycleEvent struct {
	*eventstore.BaseEvent `json:"-"`
}

func (e *lifecycleEvent) Payload() any                                     { return e }
func (e *lifecycleEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

type DeactivatedEvent struct{ lifecycleEvent }

func NewDeactivatedEvent(ctx context.Context, aggregate *eventstore.Aggregate) *DeactivatedEvent {
	return &DeactivatedEvent{lifecycleEvent{eventstore.NewBaseEventForPush(ctx, aggregate, DeactivatedType)}}
}

func DeactivatedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	return &DeactivatedEvent{lifecycleEvent{eventstore.BaseEventFromRepo(event)}}, nil
}

type ReactivatedEvent struct{ lifecycleEvent }

func NewReactivatedEvent(ctx context.Context, aggregate *eventstore.Aggregate) *ReactivatedEvent {
	return &ReactivatedEvent{lifecycleEvent{eventstore.NewBaseEventForPush(ctx, aggregate, ReactivatedType)}}
}

func ReactivatedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	return &ReactivatedEvent{lifecycleEvent{eventstore.BaseEventFromRepo(event)}}, nil
}

func RegisterEventMappers(es *eventstore.Eventstore) {
	es.RegisterFilterEventMapper(AggregateType, AddedType, AddedEventMapper).
		RegisterFilterEventMapper(AggregateType, NameChangedType, NameChangedEventMapper).
		RegisterFilterEventMapper(AggregateType, DomainSetType, DomainSetEventMapper).
		RegisterFilterEventMapper(AggregateType, DeactivatedType, DeactivatedEventMapper).
		RegisterFilterEventMapper(AggregateType, ReactivatedType, ReactivatedEventMapper)
}
