// Package policy defines the policy aggregate: a named, versioned
// configuration object owned by an instance or an org, adapted from
// the teacher's execution aggregate scaffolding (query/projection/
// execution.go's SetEvent/RemovedEvent shape carries over exactly --
// only the field set and event names change).
package policy

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/zerrors"
)

const AggregateType eventstore.AggregateType = "policy"

const (
	eventTypePrefix  = eventstore.EventType("policy.")
	LoginSetType     = eventTypePrefix + "login.set"
	PasswordSetType  = eventTypePrefix + "password.set"
	RemovedType      = eventTypePrefix + "removed"
)

// LoginSetEvent configures the login policy in force for the owning
// aggregate (instance or org).
type LoginSetEvent struct {
	*eventstore.BaseEvent `json:"-"`

	AllowUsernamePassword bool `json:"allowUsernamePassword"`
	AllowExternalIDP      bool `json:"allowExternalIDP"`
	ForceMFA              bool `json:"forceMFA"`
}

func NewLoginSetEvent(ctx context.Context, aggregate *eventstore.Aggregate, allowUsernamePassword, allowExternalIDP, forceMFA bool) *LoginSetEvent {
	return &LoginSetEvent{
		BaseEvent:             eventstore.NewBaseEventForPush(ctx, aggregate, LoginSetType),
		AllowUsernamePassword: allowUsernamePassword,
		AllowExternalIDP:      allowExternalIDP,
		ForceMFA:              forceMFA,
	}
}

func (e *LoginSetEvent) Payload() any                                     { return e }
func (e *LoginSetEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func LoginSetEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &LoginSetEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "POLICY-Sf3f1", "Errors.Internal")
	}
	return e, nil
}

// PasswordSetEvent configures the password complexity policy.
type PasswordSetEvent struct {
	*eventstore.BaseEvent `json:"-"`

	MinLength    uint64 `json:"minLength"`
	RequireUpper bool   `json:"requireUpper"`
	RequireDigit bool   `json:"requireDigit"`
}

func NewPasswordSetEvent(ctx context.Context, aggregate *eventstore.Aggregate, minLength uint64, requireUpper, requireDigit bool) *PasswordSetEvent {
	return &PasswordSetEvent{
		BaseEvent:    eventstore.NewBaseEventForPush(ctx, aggregate, PasswordSetType),
		MinLength:    minLength,
		RequireUpper: requireUpper,
		RequireDigit: requireDigit,
	}
}

func (e *PasswordSetEvent) Payload() any                                     { return e }
func (e *PasswordSetEvent) UniqueConstraints() []*eventstore.UniqueConstraint { return nil }

func PasswordSetEventMapper(event eventstore.Event) (eventstore.Event, error) {
	e := &PasswordSetEvent{BaseEvent: eventstore.BaseEventFromRepo(event)}
	if err := event.Unmarshal(e); err != nil {
		return nil, zerrors.ThrowInternal(err, "POLICY-Sf3f2", "Errors.Internal")
	}
	return e, nil
}

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
	es.RegisterFilterEventMapper(AggregateType, LoginSetType, LoginSetEventMapper).
		RegisterFilterEventMapper(AggregateType, PasswordSetType, PasswordSetEventMapper).
		RegisterFilterEventMapper(AggregateType, RemovedType, RemovedEventMapper)
}
