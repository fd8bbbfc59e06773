package command

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/user"
	"github.com/authapp/zitadel/internal/zerrors"
)

// userState is the lifecycle FSM spec.md §4.3 names: added -> active ->
// (deactivated <-> reactivated) -> removed.
type userState int

const (
	userStateUnspecified userState = iota
	userStateActive
	userStateDeactivated
	userStateRemoved
)

// UserWriteModel replays a single user aggregate's stream into the
// state its command methods validate against.
type UserWriteModel struct {
	WriteModel

	UserName     string
	Email        string
	PasswordHash []byte
	State        userState
}

func NewUserWriteModel(instanceID, userID string) *UserWriteModel {
	return &UserWriteModel{
		WriteModel: WriteModel{AggregateID: userID, InstanceID: instanceID},
	}
}

func (wm *UserWriteModel) Query() *eventstore.SearchQueryBuilder {
	return eventstore.NewSearchQueryBuilder().
		InstanceID(wm.InstanceID).
		AggregateTypes(user.AggregateType).
		AggregateIDs(wm.AggregateID)
}

func (wm *UserWriteModel) Reduce(events []eventstore.Event) error {
	for _, event := range events {
		wm.reduceBase(event)
		switch e := event.(type) {
		case *user.HumanAddedEvent:
			wm.UserName = e.UserName
			wm.Email = e.Email
			wm.PasswordHash = e.PasswordHash
			wm.State = userStateActive
		case *user.EmailChangedEvent:
			wm.Email = e.Email
		case *user.PasswordChangedEvent:
			wm.PasswordHash = e.PasswordHash
		case *user.DeactivatedEvent:
			wm.State = userStateDeactivated
		case *user.ReactivatedEvent:
			wm.State = userStateActive
		case *user.RemovedEvent:
			wm.State = userStateRemoved
		}
	}
	return nil
}

func (wm *UserWriteModel) aggregate() *eventstore.Aggregate {
	return eventstore.NewAggregate(wm.InstanceID, user.AggregateType, wm.AggregateID, wm.AggregateID, "v1")
}

// AddHuman implements the "create a human user" command: reserves the
// username, hashes the password if one is supplied, and appends
// HumanAddedEvent expecting the aggregate's stream to still be empty
// (sequence 0; this is the aggregate's first event).
func (c *Commands) AddHuman(ctx context.Context, instanceID, userID, userName, email, password string) (*Result, error) {
	if userID == "" {
		userID = c.idGenerator.New()
	}
	if userName == "" || email == "" {
		return nil, zerrors.ThrowValidation(nil, "COMMAND-User01", "Errors.User.Invalid")
	}

	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != userStateUnspecified {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-User02", "Errors.User.AlreadyExists")
		}

		var hash []byte
		if password != "" {
			h, err := c.passwordHasher.Hash(password)
			if err != nil {
				return nil, zerrors.ThrowInternal(err, "COMMAND-User03", "Errors.Internal")
			}
			hash = h
		}

		cmd := user.NewHumanAddedEvent(ctx, wm.aggregate(), userName, email, hash)
		events, err := c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
		if err != nil {
			return nil, err
		}
		return events, nil
	})
}

// ChangeEmail updates a user's email address.
func (c *Commands) ChangeEmail(ctx context.Context, instanceID, userID, email string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertUserActive(wm); err != nil {
			return nil, err
		}
		if wm.Email == email {
			return nil, nil
		}
		cmd := user.NewEmailChangedEvent(ctx, wm.aggregate(), email)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// ChangePassword hashes and appends a new password for the user.
func (c *Commands) ChangePassword(ctx context.Context, instanceID, userID, password string) (*Result, error) {
	if password == "" {
		return nil, zerrors.ThrowValidation(nil, "COMMAND-User04", "Errors.User.Password.Empty")
	}
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertUserActive(wm); err != nil {
			return nil, err
		}
		hash, err := c.passwordHasher.Hash(password)
		if err != nil {
			return nil, zerrors.ThrowInternal(err, "COMMAND-User05", "Errors.Internal")
		}
		cmd := user.NewPasswordChangedEvent(ctx, wm.aggregate(), hash)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// DeactivateUser moves the user from active to deactivated.
func (c *Commands) DeactivateUser(ctx context.Context, instanceID, userID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != userStateActive {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-User06", "Errors.User.NotActive")
		}
		cmd := user.NewDeactivatedEvent(ctx, wm.aggregate())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// ReactivateUser moves the user from deactivated back to active.
func (c *Commands) ReactivateUser(ctx context.Context, instanceID, userID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != userStateDeactivated {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-User07", "Errors.User.NotDeactivated")
		}
		cmd := user.NewReactivatedEvent(ctx, wm.aggregate())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// RemoveUser tombstones the user and releases its username reservation.
func (c *Commands) RemoveUser(ctx context.Context, instanceID, userID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State == userStateUnspecified || wm.State == userStateRemoved {
			return nil, zerrors.ThrowNotFound(nil, "COMMAND-User08", "Errors.User.NotFound")
		}
		cmd := user.NewRemovedEvent(ctx, wm.aggregate(), wm.UserName)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

func assertUserActive(wm *UserWriteModel) error {
	switch wm.State {
	case userStateUnspecified:
		return zerrors.ThrowNotFound(nil, "COMMAND-User09", "Errors.User.NotFound")
	case userStateRemoved:
		return zerrors.ThrowPreconditionFailed(nil, "COMMAND-User10", "Errors.User.Removed")
	case userStateDeactivated:
		return zerrors.ThrowPreconditionFailed(nil, "COMMAND-User11", "Errors.User.NotActive")
	}
	return nil
}
