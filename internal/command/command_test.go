package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/crypto"
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/id"
	"github.com/authapp/zitadel/internal/repository/user"
	"github.com/authapp/zitadel/internal/zerrors"
)

func newTestCommands(t *testing.T) (*Commands, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	es := eventstore.NewEventstore(repo, nil)
	user.RegisterEventMappers(es)
	return NewCommands(es, id.NewGenerator(), crypto.NewBcryptHasher(4), nil), repo
}

// spec.md §8 scenario 2: adding two humans with the same username in
// the same instance, the second must fail with a unique-constraint
// violation and no event is appended for it.
func TestAddHuman_DuplicateUserNameRejected(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	_, err := c.AddHuman(ctx, "inst1", "", "alice", "alice@example.com", "s3cr3t!!")
	require.NoError(t, err)

	_, err = c.AddHuman(ctx, "inst1", "", "alice", "alice2@example.com", "s3cr3t!!")
	require.Error(t, err)
	assert.True(t, zerrors.IsUniqueConstraint(err))
}

// spec.md §8 scenario 5: the same username is reusable across distinct
// instances, because unique constraints are scoped per instance_id.
func TestAddHuman_SameUserNameAcrossInstancesAllowed(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	_, err := c.AddHuman(ctx, "inst1", "", "alice", "alice@example.com", "s3cr3t!!")
	require.NoError(t, err)

	_, err = c.AddHuman(ctx, "inst2", "", "alice", "alice@other.com", "s3cr3t!!")
	assert.NoError(t, err)
}

// spec.md §8 scenario 1: two commands racing against the same
// aggregate with the same expected_sequence -- one must observe a
// ConcurrencyConflict if it reuses a stale write-model. Here the fake
// repository injects one ConcurrencyConflict in place of a racing writer.
func TestChangeEmail_ConcurrencyConflictRetriesThenSucceeds(t *testing.T) {
	c, repo := newTestCommands(t)
	ctx := context.Background()

	res, err := c.AddHuman(ctx, "inst1", "", "bob", "bob@example.com", "s3cr3t!!")
	require.NoError(t, err)
	userID := res.Events[0].Aggregate().ID

	// Force exactly one ConcurrencyConflict on the first Push attempt,
	// then let the retried attempt (which reloads a fresh write-model)
	// succeed.
	repo.failNextPush = zerrors.ThrowConcurrencyConflict(nil, "FAKE-Force01", "Errors.Internal")

	_, err = c.ChangeEmail(ctx, "inst1", userID, "bob2@example.com")
	require.NoError(t, err)
}

// spec.md §8 scenario 6: Result.Position lets a caller implement
// read-your-writes; the position of the last appended event must be
// non-zero.
func TestAddHuman_ResultPositionIsNonZero(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	res, err := c.AddHuman(ctx, "inst1", "", "carol", "carol@example.com", "s3cr3t!!")
	require.NoError(t, err)
	assert.True(t, res.Position.GreaterOrEqual(eventstore.ZeroPosition))
	assert.NotEqual(t, eventstore.ZeroPosition, res.Position)
}

func TestDeactivateUser_TwiceIsPreconditionFailed(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	res, err := c.AddHuman(ctx, "inst1", "", "dave", "dave@example.com", "s3cr3t!!")
	require.NoError(t, err)
	userID := res.Events[0].Aggregate().ID

	_, err = c.DeactivateUser(ctx, "inst1", userID)
	require.NoError(t, err)

	_, err = c.DeactivateUser(ctx, "inst1", userID)
	require.Error(t, err)
	assert.True(t, zerrors.IsPreconditionFailed(err))
}

func TestChangePassword_ThenVerify(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	res, err := c.AddHuman(ctx, "inst1", "", "erin", "erin@example.com", "initial-pw")
	require.NoError(t, err)
	userID := res.Events[0].Aggregate().ID

	_, err = c.ChangePassword(ctx, "inst1", userID, "new-password")
	require.NoError(t, err)

	wm := NewUserWriteModel("inst1", userID)
	require.NoError(t, c.load(ctx, wm))
	assert.True(t, c.passwordHasher.Verify("new-password", wm.PasswordHash))
	assert.False(t, c.passwordHasher.Verify("initial-pw", wm.PasswordHash))
}

func TestRemoveUser_ReleasesUserNameForReuse(t *testing.T) {
	c, _ := newTestCommands(t)
	ctx := context.Background()

	res, err := c.AddHuman(ctx, "inst1", "", "frank", "frank@example.com", "s3cr3t!!")
	require.NoError(t, err)
	userID := res.Events[0].Aggregate().ID

	_, err = c.RemoveUser(ctx, "inst1", userID)
	require.NoError(t, err)

	_, err = c.AddHuman(ctx, "inst1", "", "frank", "frank2@example.com", "s3cr3t!!")
	assert.NoError(t, err)
}
