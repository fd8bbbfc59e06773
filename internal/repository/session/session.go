// Package session defines the session aggregate: a login session that
// accumulates authentication-factor checks (password, user lookup)
// until a token is issued or the session is terminated. Adapted from
// the teacher's idpintent event scaffolding (intent.go's
// BaseEvent/NewBaseEventForPush/EventMapper pattern carries over
// directly; only the event names and payload fields change).
package session

import (
	"context"
	"time"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/zerrors"
)

const AggregateType eventstore.AggregateType = "session"

const (
	eventTypePrefix      = eventstore.EventType("session.")
	AddedType            = eventTypePrefix + "added"
	UserCheckedType      = eventTypePrefix + "user.checked"
	PasswordCheckedType  = eventTypePrefix + "password.checked"
	TokenSetType         = eventTypePrefix + "token.set"
	TerminatedType       = eventTypePrefix + "terminated"
)

type AddedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	UserAgent string `json:"userAgent,omitempty"`
}

func NewAddedEvent(ctx context.Context, aggregate *eventstore.Aggregate, userAgent string) *AddedEvent {
	return &AddedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, AddedType),
		UserAgent: userAgent,
	}
}

func (e *AddedEvent) Payload() any                                     { return e }
func (e *AddedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func AddedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &AddedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "SESSION-Sf3f1", "Errors.Internal")
	}
	return e, nil
}

type UserCheckedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	UserID    string    `json:"userId"`
	CheckedAt time.Time `json:"checkedAt"`
}

func NewUserCheckedEvent(ctx context.Context, aggregate *eventstore.Aggregate, userID string, checkedAt time.Time) *UserCheckedEvent {
	return &UserCheckedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, UserCheckedType),
		UserID:    userID,
		CheckedAt: checkedAt,
	}
}

func (e *UserCheckedEvent) Payload() any                                     { return e }
func (e *UserCheckedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func UserCheckedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &UserCheckedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "SESSION-Sf3f2", "Errors.Internal")
	}
	return e, nil
}

type PasswordCheckedEvent struct {
	*eventstore.BaseEvent `json:"-"`

	CheckedAt time.Time `json:"checkedAt"`
}

func NewPasswordCheckedEvent(ctx context.Context, aggregate *eventstore.Aggregate, checkedAt time.Time) *PasswordCheckedEvent {
	return &PasswordCheckedEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, PasswordCheckedType),
		CheckedAt: checkedAt,
	}
}

func (e *PasswordCheckedEvent) Payload() any                                     { return e }
func (e *PasswordCheckedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func PasswordCheckedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &PasswordCheckedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "SESSION-Sf3f3", "Errors.Internal")
	}
	return e, nil
}

type TokenSetEvent struct {
	*eventstore.BaseEvent `json:"-"`

	TokenID string `json:"tokenId"`
}

func NewTokenSetEvent(ctx context.Context, aggregate *eventstore.Aggregate, tokenID string) *TokenSetEvent {
	return &TokenSetEvent{
		BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, TokenSetType),
		TokenID:   tokenID,
	}
}

func (e *TokenSetEvent) Payload() any                                     { return e }
func (e *TokenSetEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func TokenSetEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &TokenSetEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "SESSION-Sf3f4", "Errors.Internal")
	}
	return e, nil
}

type TerminatedEvent struct {
	*eventstore.BaseEvent `json:"-"`
}

func NewTerminatedEvent(ctx context.Context, aggregate *eventstore.Aggregate) *TerminatedEvent {
	return &TerminatedEvent{BaseEvent: eventstore.NewBaseEventForPush(ctx, aggregate, TerminatedType)}
}

func (e *TerminatedEvent) Payload() any                                     { return e }
func (e *TerminatedEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func TerminatedEventMapper(event eventstore.Event) (eventstore.Event, error) {
	return &TerminatedEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}, nil
}

func RegisterEventMappers(es *eventstore.Eventstore) {
	es.RegisterFilterEventMapper(AggregateType, AddedType, AddedEventMapper).
		RegisterFilterEventMapper(AggregateType, UserCheckedType, UserCheckedEventMapper).
		RegisterFilterEventMapper(AggregateType, PasswordCheckedType, PasswordCheckedEventMapper).
		RegisterFilterEventMapper(AggregateType, TokenSetType, TokenSetEventMapper).
		RegisterFilterEventMapper(AggregateType, TerminatedType, TerminatedEventMapper)
}
