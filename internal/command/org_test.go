package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/crypto"
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/id"
	"github.com/authapp/zitadel/internal/repository/org"
	"github.com/authapp/zitadel/internal/zerrors"
)

func newTestOrgCommands(t *testing.T) *Commands {
	t.Helper()
	es := eventstore.NewEventstore(newFakeRepo(), nil)
	org.RegisterEventMappers(es)
	return NewCommands(es, id.NewGenerator(), crypto.NewBcryptHasher(4), nil)
}

func TestAddOrg_DuplicateDomainRejected(t *testing.T) {
	c := newTestOrgCommands(t)
	ctx := context.Background()

	_, err := c.AddOrg(ctx, "inst1", "", "Acme", "acme.example.com")
	require.NoError(t, err)

	_, err = c.AddOrg(ctx, "inst1", "", "Acme Clone", "acme.example.com")
	require.Error(t, err)
	assert.True(t, zerrors.IsUniqueConstraint(err))
}

func TestSetOrgDomain_ReleasesOldDomainAtomically(t *testing.T) {
	c := newTestOrgCommands(t)
	ctx := context.Background()

	res, err := c.AddOrg(ctx, "inst1", "", "Acme", "acme.example.com")
	require.NoError(t, err)
	orgID := res.Events[0].Aggregate().ID

	_, err = c.SetOrgDomain(ctx, "inst1", orgID, "acme2.example.com")
	require.NoError(t, err)

	_, err = c.AddOrg(ctx, "inst1", "", "Other", "acme.example.com")
	assert.NoError(t, err)
}

func TestDeactivateReactivateOrg_RoundTrips(t *testing.T) {
	c := newTestOrgCommands(t)
	ctx := context.Background()

	res, err := c.AddOrg(ctx, "inst1", "", "Acme", "acme.example.com")
	require.NoError(t, err)
	orgID := res.Events[0].Aggregate().ID

	_, err = c.DeactivateOrg(ctx, "inst1", orgID)
	require.NoError(t, err)

	_, err = c.ChangeOrgName(ctx, "inst1", orgID, "Acme Renamed")
	require.Error(t, err)
	assert.True(t, zerrors.IsPreconditionFailed(err))

	_, err = c.ReactivateOrg(ctx, "inst1", orgID)
	require.NoError(t, err)

	_, err = c.ChangeOrgName(ctx, "inst1", orgID, "Acme Renamed")
	assert.NoError(t, err)
}
