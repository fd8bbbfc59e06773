package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/crypto"
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/id"
	"github.com/authapp/zitadel/internal/repository/project"
	"github.com/authapp/zitadel/internal/zerrors"
)

func newTestProjectCommands(t *testing.T) *Commands {
	t.Helper()
	es := eventstore.NewEventstore(newFakeRepo(), nil)
	project.RegisterEventMappers(es)
	return NewCommands(es, id.NewGenerator(), crypto.NewBcryptHasher(4), nil)
}

func TestAddProject_GeneratesIDAndActivates(t *testing.T) {
	c := newTestProjectCommands(t)
	ctx := context.Background()

	res, err := c.AddProject(ctx, "inst1", "", "Website")
	require.NoError(t, err)
	require.NotEmpty(t, res.Events[0].Aggregate().ID)

	_, err = c.AddProject(ctx, "inst1", res.Events[0].Aggregate().ID, "Website Clone")
	require.Error(t, err)
	assert.True(t, zerrors.IsPreconditionFailed(err))
}

func TestChangeProjectName_NoopOnSameName(t *testing.T) {
	c := newTestProjectCommands(t)
	ctx := context.Background()

	res, err := c.AddProject(ctx, "inst1", "", "Website")
	require.NoError(t, err)
	projectID := res.Events[0].Aggregate().ID

	changed, err := c.ChangeProjectName(ctx, "inst1", projectID, "Website")
	require.NoError(t, err)
	assert.Nil(t, changed.Events)

	_, err = c.ChangeProjectName(ctx, "inst1", projectID, "Storefront")
	require.NoError(t, err)
}

func TestRemoveProject_ThenChangeIsNotFound(t *testing.T) {
	c := newTestProjectCommands(t)
	ctx := context.Background()

	res, err := c.AddProject(ctx, "inst1", "", "Website")
	require.NoError(t, err)
	projectID := res.Events[0].Aggregate().ID

	_, err = c.RemoveProject(ctx, "inst1", projectID)
	require.NoError(t, err)

	_, err = c.ChangeProjectName(ctx, "inst1", projectID, "Storefront")
	require.Error(t, err)
	assert.True(t, zerrors.IsNotFound(err))
}
