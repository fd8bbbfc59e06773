package command

import (
	"context"
	"time"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/session"
	"github.com/authapp/zitadel/internal/zerrors"
)

type sessionState int

const (
	sessionStateUnspecified sessionState = iota
	sessionStateActive
	sessionStateTerminated
)

// SessionWriteModel replays a session aggregate's stream.
type SessionWriteModel struct {
	WriteModel

	UserID          string
	PasswordChecked bool
	TokenID         string
	State           sessionState
}

func NewSessionWriteModel(instanceID, sessionID string) *SessionWriteModel {
	return &SessionWriteModel{WriteModel: WriteModel{AggregateID: sessionID, InstanceID: instanceID}}
}

func (wm *SessionWriteModel) Query() *eventstore.SearchQueryBuilder {
	return eventstore.NewSearchQueryBuilder().
		InstanceID(wm.InstanceID).
		AggregateTypes(session.AggregateType).
		AggregateIDs(wm.AggregateID)
}

func (wm *SessionWriteModel) Reduce(events []eventstore.Event) error {
	for _, event := range events {
		wm.reduceBase(event)
		switch e := event.(type) {
		case *session.AddedEvent:
			wm.State = sessionStateActive
		case *session.UserCheckedEvent:
			wm.UserID = e.UserID
		case *session.PasswordCheckedEvent:
			wm.PasswordChecked = true
		case *session.TokenSetEvent:
			wm.TokenID = e.TokenID
		case *session.TerminatedEvent:
			wm.State = sessionStateTerminated
		}
	}
	return nil
}

func (wm *SessionWriteModel) aggregate(resourceOwner string) *eventstore.Aggregate {
	return eventstore.NewAggregate(wm.InstanceID, session.AggregateType, wm.AggregateID, resourceOwner, "v1")
}

// AddSession starts a new login session for userAgent within instanceID.
func (c *Commands) AddSession(ctx context.Context, instanceID, resourceOwner, userAgent string) (*Result, error) {
	sessionID := c.idGenerator.NewOpaque()
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != sessionStateUnspecified {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Sess01", "Errors.Session.AlreadyExists")
		}
		cmd := session.NewAddedEvent(ctx, wm.aggregate(resourceOwner), userAgent)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// CheckSessionUser records that the session resolved to userID.
func (c *Commands) CheckSessionUser(ctx context.Context, instanceID, resourceOwner, sessionID, userID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertSessionActive(wm); err != nil {
			return nil, err
		}
		cmd := session.NewUserCheckedEvent(ctx, wm.aggregate(resourceOwner), userID, time.Now())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// CheckSessionPassword verifies password against the user's stored
// hash and, on success, records the password factor as checked.
func (c *Commands) CheckSessionPassword(ctx context.Context, instanceID, resourceOwner, sessionID, password string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertSessionActive(wm); err != nil {
			return nil, err
		}
		if wm.UserID == "" {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Sess02", "Errors.Session.UserNotChecked")
		}
		userWM := NewUserWriteModel(instanceID, wm.UserID)
		if err := c.load(ctx, userWM); err != nil {
			return nil, err
		}
		if !c.passwordHasher.Verify(password, userWM.PasswordHash) {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Sess03", "Errors.Session.PasswordInvalid")
		}
		cmd := session.NewPasswordCheckedEvent(ctx, wm.aggregate(resourceOwner), time.Now())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// SetSessionToken issues a new opaque token id for the session once its
// required factors are checked.
func (c *Commands) SetSessionToken(ctx context.Context, instanceID, resourceOwner, sessionID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertSessionActive(wm); err != nil {
			return nil, err
		}
		if wm.UserID == "" || !wm.PasswordChecked {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Sess04", "Errors.Session.FactorsIncomplete")
		}
		tokenID := c.idGenerator.NewOpaque()
		cmd := session.NewTokenSetEvent(ctx, wm.aggregate(resourceOwner), tokenID)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// TerminateSession ends a session, e.g. on logout.
func (c *Commands) TerminateSession(ctx context.Context, instanceID, resourceOwner, sessionID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != sessionStateActive {
			return nil, zerrors.ThrowNotFound(nil, "COMMAND-Sess05", "Errors.Session.NotFound")
		}
		cmd := session.NewTerminatedEvent(ctx, wm.aggregate(resourceOwner))
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

func assertSessionActive(wm *SessionWriteModel) error {
	switch wm.State {
	case sessionStateUnspecified:
		return zerrors.ThrowNotFound(nil, "COMMAND-Sess06", "Errors.Session.NotFound")
	case sessionStateTerminated:
		return zerrors.ThrowPreconditionFailed(nil, "COMMAND-Sess07", "Errors.Session.Terminated")
	}
	return nil
}
