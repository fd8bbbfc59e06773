package command

import (
	"context"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/repository/project"
	"github.com/authapp/zitadel/internal/zerrors"
)

type projectState int

const (
	projectStateUnspecified projectState = iota
	projectStateActive
	projectStateRemoved
)

// ProjectWriteModel replays a project aggregate's stream. The project
// aggregate is a stub per SPEC_FULL.md §4.3: enough to exercise
// cross-aggregate id references (a session or policy scoped to a
// project) without the full provisioning business-rule surface.
type ProjectWriteModel struct {
	WriteModel

	Name  string
	State projectState
}

func NewProjectWriteModel(instanceID, projectID string) *ProjectWriteModel {
	return &ProjectWriteModel{WriteModel: WriteModel{AggregateID: projectID, InstanceID: instanceID}}
}

func (wm *ProjectWriteModel) Query() *eventstore.SearchQueryBuilder {
	return eventstore.NewSearchQueryBuilder().
		InstanceID(wm.InstanceID).
		AggregateTypes(project.AggregateType).
		AggregateIDs(wm.AggregateID)
}

func (wm *ProjectWriteModel) Reduce(events []eventstore.Event) error {
	for _, event := range events {
		wm.reduceBase(event)
		switch e := event.(type) {
		case *project.AddedEvent:
			wm.Name = e.Name
			wm.State = projectStateActive
		case *project.ChangedEvent:
			wm.Name = e.Name
		case *project.RemovedEvent:
			wm.State = projectStateRemoved
		}
	}
	return nil
}

func (wm *ProjectWriteModel) aggregate() *eventstore.Aggregate {
	return eventstore.NewAggregate(wm.InstanceID, project.AggregateType, wm.AggregateID, wm.AggregateID, "v1")
}

// AddProject creates a new project within instanceID.
func (c *Commands) AddProject(ctx context.Context, instanceID, projectID, name string) (*Result, error) {
	if projectID == "" {
		projectID = c.idGenerator.New()
	}
	if name == "" {
		return nil, zerrors.ThrowValidation(nil, "COMMAND-Proj01", "Errors.Project.Invalid")
	}
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectWriteModel(instanceID, projectID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != projectStateUnspecified {
			return nil, zerrors.ThrowPreconditionFailed(nil, "COMMAND-Proj02", "Errors.Project.AlreadyExists")
		}
		cmd := project.NewAddedEvent(ctx, wm.aggregate(), name)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// ChangeProjectName renames a project.
func (c *Commands) ChangeProjectName(ctx context.Context, instanceID, projectID, name string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectWriteModel(instanceID, projectID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != projectStateActive {
			return nil, zerrors.ThrowNotFound(nil, "COMMAND-Proj03", "Errors.Project.NotFound")
		}
		if wm.Name == name {
			return nil, nil
		}
		cmd := project.NewChangedEvent(ctx, wm.aggregate(), name)
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}

// RemoveProject marks a project removed by appending project.RemovedEvent.
// Nothing cascades from it: no projection in this module reduces project
// events, so rows that reference the project's id are left as they are.
func (c *Commands) RemoveProject(ctx context.Context, instanceID, projectID string) (*Result, error) {
	return c.pushWithRetry(ctx, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectWriteModel(instanceID, projectID)
		if err := c.load(ctx, wm); err != nil {
			return nil, err
		}
		if wm.State != projectStateActive {
			return nil, zerrors.ThrowNotFound(nil, "COMMAND-Proj04", "Errors.Project.NotFound")
		}
		cmd := project.NewRemovedEvent(ctx, wm.aggregate())
		return c.es.Push(ctx, eventstore.NewSequencedCommand(cmd, wm.ProcessedSequence))
	})
}
