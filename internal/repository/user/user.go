// Package user defines the user aggregate's events: a human identity
// with a small lifecycle FSM (added -> active -> (deactivated <->
// reactivated) -> removed), grounded on the BaseEvent/EventMapper shape
// the teacher's idpintent events show.
package user

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/zerrors"
)

const AggregateType eventstore.AggregateType = "user"

const (
	eventTypePrefix    = eventstore.EventType("user.")
	HumanAddedType     = eventTypePrefix + "human.added"
	EmailChangedType   = eventTypePrefix + "human.email.changed"
	PasswordChangedType = eventTypePrefix + "human.password.changed"
	DeactivatedType    = eventTypePrefix + "deactivated"
	ReactivatedType    = eventTypePrefix + "reactivated"
	RemovedType        = eventTypePrefix + "removed"
)

// HumanAddedEvent is the user.human.added event: the root event of a
// human user's stream. UserName is reserved via the unique constraint
// its own UniqueConstraints method returns.
type HumanAddedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	UserName     string `json:"userName"`
	Email        string `json:"email"`
	PasswordHash []byte `json:"passwordHash,omitempty"`
}

func NewHumanAddedEvent(ctx context.Context, aggregate *eventstore.Aggregate, userName, email string, passwordHash []byte) *HumanAddedEvent {
	return &HumanAddedEvent{
		BaseEvent:    eventstore.NewBaseEventForPush(ctx, aggregate, HumanAddedType),
		UserName:     userName,
		Email:        email,
		PasswordHash: passwordHash,
	}
}

func (e *HumanAddedEvent) Payload() any { return e }

// UniqueConstraints reserves the username within the instance, per
// spec.md §8 scenario 2 ("unique username").
func (e *HumanAddedEvent) UniqueConstraints() []*eventstore.UniqueConstraint {
	return []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("username", e.UserName, "Errors.User.AlreadyExists"),
	}
}

func HumanAddedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &HumanAddedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "USER-Sf3f1", "Errors.Internal")
	}
	return e, nil
}

type EmailChangedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	Email string `json:"email"`
}

func NewEmailChangedEvent(ctx context.Context, aggregate *eventstore.Aggregate, email string) *EmailChangedEvent {
	return &EmailChangedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, EmailChangedType),
		Email:     email,
	}
}

func (e *EmailChangedEvent) Payload() any                                     { return e }
func (e *EmailChangedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func EmailChangedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &EmailChangedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "USER-Sf3f2", "Errors.Internal")
	}
	return e, nil
}

type PasswordChangedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	PasswordHash []byte `json:"passwordHash"`
}

func NewPasswordChangedEvent(ctx context.Context, aggregate *eventstore.Aggregate, hash []byte) *PasswordChangedEvent {
	return &PasswordChangedEvent{
		BaseEvent:    eventstore.NewBaseEventForPush(ctx, aggregate, PasswordChangedType),
		PasswordHash: hash,
	}
}

func (e *PasswordChangedEvent) Payload() any                                     { return e }
func (e *PasswordChangedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func PasswordChangedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &PasswordChangedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "USER-Sf3f3", "Errors.Internal")
	}
	return e, nil
}

// lifecycleEvent covers deactivated/reactivated/removed: no payload
// beyond the BaseEvent, like the teacher's idpintent.FailedEvent shape.
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

// RemovedEvent carries the username so the command handler can release
// the unique constraint atomically with the removal.
type RemovedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	UserName string `json:"userName"`
}

func NewRemovedEvent(ctx context.Context, aggregate *eventstore.Aggregate, userName string) *RemovedEvent {
	return &RemovedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, RemovedType),
		UserName:  userName,
	}
}

func (e *RemovedEvent) Payload() any { return e }

func (e *RemovedEvent) UniqueConstraints() []*eventstore.UniqueConstraint {
	return []*eventstore.UniqueConstraint{
		eventstore.NewRemoveUniqueConstraint("username", e.UserName),
	}
}

func RemovedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &RemovedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "USER-Sf3f4", "Errors.Internal")
	}
	return e, nil
}

// RegisterEventMappers wires every user event type into es, the same
// role user.RegisterEventMappers plays at process startup in the
// teacher for each aggregate package.
func RegisterEventMappers(es *eventstore.Eventstore) {
	es.RegisterFilterEventMapper(AggregateType, HumanAddedType, HumanAddedEventMapper).
		RegisterFilterEventMapper(AggregateType, EmailChangedType, EmailChangedEventMapper).
		RegisterFilterEventMapper(AggregateType, PasswordChangedType, PasswordChangedEventMapper).
		RegisterFilterEventMapper(AggregateType, DeactivatedType, DeactivatedEventMapper).
		RegisterFilterEventMapper(AggregateType, ReactivatedType, ReactivatedEventMapper).
		RegisterFilterEventMapper(AggregateType, RemovedType, RemovedEventMapper)
}
