package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/crypto"
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/id"
	"github.com/authapp/zitadel/internal/repository/session"
	"github.com/authapp/zitadel/internal/repository/user"
	"github.com/authapp/zitadel/internal/zerrors"
)

func newTestSessionCommands(t *testing.T) *Commands {
	t.Helper()
	es := eventstore.NewEventstore(newFakeRepo(), nil)
	user.RegisterEventMappers(es)
	session.RegisterEventMappers(es)
	return NewCommands(es, id.NewGenerator(), crypto.NewBcryptHasher(4), nil)
}

func TestSessionLifecycle_FullHappyPath(t *testing.T) {
	c := newTestSessionCommands(t)
	ctx := context.Background()

	userRes, err := c.AddHuman(ctx, "inst1", "", "gina", "gina@example.com", "correct-horse")
	require.NoError(t, err)
	userID := userRes.Events[0].Aggregate().ID

	sessRes, err := c.AddSession(ctx, "inst1", "org1", "test-agent/1.0")
	require.NoError(t, err)
	sessionID := sessRes.Events[0].Aggregate().ID

	_, err = c.CheckSessionUser(ctx, "inst1", "org1", sessionID, userID)
	require.NoError(t, err)

	_, err = c.CheckSessionPassword(ctx, "inst1", "org1", sessionID, "correct-horse")
	require.NoError(t, err)

	_, err = c.SetSessionToken(ctx, "inst1", "org1", sessionID)
	require.NoError(t, err)

	_, err = c.TerminateSession(ctx, "inst1", "org1", sessionID)
	require.NoError(t, err)

	_, err = c.TerminateSession(ctx, "inst1", "org1", sessionID)
	require.Error(t, err)
}

func TestCheckSessionPassword_WrongPasswordRejected(t *testing.T) {
	c := newTestSessionCommands(t)
	ctx := context.Background()

	userRes, err := c.AddHuman(ctx, "inst1", "", "hank", "hank@example.com", "correct-horse")
	require.NoError(t, err)
	userID := userRes.Events[0].Aggregate().ID

	sessRes, err := c.AddSession(ctx, "inst1", "org1", "test-agent/1.0")
	require.NoError(t, err)
	sessionID := sessRes.Events[0].Aggregate().ID

	_, err = c.CheckSessionUser(ctx, "inst1", "org1", sessionID, userID)
	require.NoError(t, err)

	_, err = c.CheckSessionPassword(ctx, "inst1", "org1", sessionID, "wrong-password")
	require.Error(t, err)
	assert.True(t, zerrors.IsPreconditionFailed(err))
}

func TestSetSessionToken_BeforeFactorsCheckedRejected(t *testing.T) {
	c := newTestSessionCommands(t)
	ctx := context.Background()

	sessRes, err := c.AddSession(ctx, "inst1", "org1", "test-agent/1.0")
	require.NoError(t, err)
	sessionID := sessRes.Events[0].Aggregate().ID

	_, err = c.SetSessionToken(ctx, "inst1", "org1", sessionID)
	require.Error(t, err)
	assert.True(t, zerrors.IsPreconditionFailed(err))
}
