package command

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/org"
	"github.com/authapp/zitadel/internal/zerrors"
)

type orgState int

const (
	orgStateUnspecified orgState = iota
	orgStateActive
	orgStateDeactivated
	orgStateRemoved
)

// OrgWriteModel replays an org aggregate's stream.
type OrgWriteModel struct {
	WriteModel

	Name   string
	Domain string
	State  orgState
}

func NewOrgWriteModel(instanceID, orgID string) *OrgWriteModel {
	return &OrgWriteModel{WriteModel: WriteModel{AggregateID: orgID, InstanceID: instanceID}}
}

func (wm *OrgWriteModel) Query() *eventstore.SearchQueryBuilder {
	return eventstore.NewSearchQueryBuilder().
		InstanceID(wm.InstanceID).
		AggregateTypes(org.AggregateType).
		AggregateIDs(wm.AggregateID)
}

func (wm *OrgWriteModel) Reduce(events []eventstore.Event) error {
	for _, event := range events {
		wm.reduceBase(event)
		switch e := event.(type) {
		case *org.AddedEvent:
			wm.Name = e.Name
			wm.Domain = e.Domain
			wm.State = orgStateActive
		case *org.NameChangedEvent:
			wm.Name = e.Name
		case *org.DomainSetEvent:
			wm.Domain = e.Domain
		case *org.DeactivatedEvent:
			wm.State = orgStateDeactivated
		case *org.ReactivatedEvent:
			wm.State = orgStateActive
		}
	}
	return nil
}

func (wm *OrgWriteModel) aggregate() *eventstore.Aggregate {
	return eventstore.NewAggregate(wm.InstanceID, org.AggregateType, wm.AggregateID, wm.AggregateID, "v1")
}

// AddOrg creates a new org, reserving its primary domain.
func (c *Commands) AddOrg(ctx context.Context, instanceID, orgID, name, domain string) (*Result, error) {
	if orgID == "" {
		orgID = c.idGenerator.New()
	}
	if name == "" || domain == "" {
		return nil, zerrors.ThrowValidation(nil, "COMMAND-Org01", "Errors.Org.Invalid")
	}
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != orgStateUnspecified {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Org02", "Errors.Org.AlreadyExists")
		}
		cmd := org.NewAddedEvent(ctx, wm.aggregate(), name, domain)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// ChangeOrgName renames an org.
func (c *Commands) ChangeOrgName(ctx context.Context, instanceID, orgID, name string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertOrgActive(wm); err != nil {
			return nil, err
		}
		if wm.Name == name {
			return nil, nil
		}
		cmd := org.NewNameChangedEvent(ctx, wm.aggregate(), name)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// SetOrgDomain changes the org's primary domain, atomically releasing
// the previous one.
func (c *Commands) SetOrgDomain(ctx context.Context, instanceID, orgID, domain string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if err := assertOrgActive(wm); err != nil {
			return nil, err
		}
		if wm.Domain == domain {
			return nil, nil
		}
		cmd := org.NewDomainSetEvent(ctx, wm.aggregate(), domain, wm.Domain)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// DeactivateOrg moves the org from active to deactivated.
func (c *Commands) DeactivateOrg(ctx context.Context, instanceID, orgID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != orgStateActive {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Org03", "Errors.Org.NotActive")
		}
		cmd := org.NewDeactivatedEvent(ctx, wm.aggregate())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// ReactivateOrg moves the org from deactivated back to active.
func (c *Commands) ReactivateOrg(ctx context.Context, instanceID, orgID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != orgStateDeactivated {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Org04", "Errors.Org.NotDeactivated")
		}
		cmd := org.NewReactivatedEvent(ctx, wm.aggregate())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

func assertOrgActive(wm *OrgWriteModel) error {
	switch wm.State {
	case orgStateUnspecified:
		return zerrors.ThrowNotFound(nil, "COMMAND-Org05", "Errors.Org.NotFound")
	case orgStateDeactivated:
		return zerrors.ThrowPreconditionFailed(nil, "COMMAND-Org06", "Errors.Org.NotActive")
	}
	return nil
}
