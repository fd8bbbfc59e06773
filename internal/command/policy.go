package command

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/policy"
	"github.com/authapp/zitadel/internal/zerrors"
)

type policyState int

const (
	policyStateUnspecified policyState = iota
	policyStateActive
	policyStateRemoved
)

// PolicyWriteModel replays a policy aggregate's stream. A policy
// aggregate is owned by whichever instance or org configured it;
// resourceOwner on its events carries that distinction, the same
// "instance-level default, org-level override" shape spec.md §1 and
// SPEC_FULL.md's policy layer describe.
type PolicyWriteModel struct {
	WriteModel

	LoginSet    bool
	PasswordSet bool
	State       policyState
}

func NewPolicyWriteModel(instanceID, policyID string) *PolicyWriteModel {
	return &PolicyWriteModel{WriteModel: WriteModel{AggregateID: policyID, InstanceID: instanceID}}
}

func (wm *PolicyWriteModel) Query() *eventstore.SearchQueryBuilder {
	return eventstore.NewSearchQueryBuilder().
		InstanceID(wm.InstanceID).
		AggregateTypes(policy.AggregateType).
		AggregateIDs(wm.AggregateID)
}

func (wm *PolicyWriteModel) Reduce(events []eventstore.Event) error {
	for _, event := range events {
		wm.reduceBase(event)
		switch event.(type) {
		case *policy.LoginSetEvent:
			wm.LoginSet = true
			wm.State = policyStateActive
		case *policy.PasswordSetEvent:
			wm.PasswordSet = true
			wm.State = policyStateActive
		case *policy.RemovedEvent:
			wm.State = policyStateRemoved
		}
	}
	return nil
}

func (wm *PolicyWriteModel) aggregate(resourceOwner string) *eventstore.Aggregate {
	return eventstore.NewAggregate(wm.InstanceID, policy.AggregateType, wm.AggregateID, resourceOwner, "v1")
}

// SetLoginPolicy creates or replaces the login policy for resourceOwner
// (an instance id or an org id).
func (c *Commands) SetLoginPolicy(ctx context.Context, instanceID, resourceOwner, policyID string, allowUsernamePassword, allowExternalIDP, forceMFA bool) (*Result, error) {
	if policyID == "" {
		policyID = resourceOwner
	}
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, policyID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State == policyStateRemoved {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Pol01", "Errors.Policy.Removed")
		}
		cmd := policy.NewLoginSetEvent(ctx, wm.aggregate(resourceOwner), allowUsernamePassword, allowExternalIDP, forceMFA)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// SetPasswordPolicy creates or replaces the password complexity policy
// for resourceOwner.
func (c *Commands) SetPasswordPolicy(ctx context.Context, instanceID, resourceOwner, policyID string, minLength uint64, requireUpper, requireDigit bool) (*Result, error) {
	if policyID == "" {
		policyID = resourceOwner
	}
	if minLength == 0 {
		return nil, zerrors.ThrowValidation(nil, "COMMAND-Pol02", "Errors.Policy.Password.Invalid")
	}
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, policyID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State == policyStateRemoved {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Pol03", "Errors.Policy.Removed")
		}
		cmd := policy.NewPasswordSetEvent(ctx, wm.aggregate(resourceOwner), minLength, requireUpper, requireDigit)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// RemovePolicy tombstones a policy, reverting resourceOwner to whatever
// policy its parent scope defines.
func (c *Commands) RemovePolicy(ctx context.Context, instanceID, resourceOwner, policyID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, policyID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != policyStateActive {
			return nil, zerrors.ThrowNotFound(nil, "COMMAND-Pol04", "Errors.Policy.NotFound")
		}
		cmd := policy.NewRemovedEvent(ctx, wm.aggregate(resourceOwner))
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}
