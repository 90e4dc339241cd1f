package management_test

import (
	"testing"

	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersSaveDetectsConcurrentModification(t *testing.T) {
	env := newTestEnv(t)
	created := env.seedUser(t, &management.User{Email: "a@b.com"})
	require.Equal(t, int64(1), created.Version)

	first, err := env.repo.Users().FindByID(env.ctx, created.ID)
	require.NoError(t, err)
	second, err := env.repo.Users().FindByID(env.ctx, created.ID)
	require.NoError(t, err)

	first.FirstName = "Ada"
	require.NoError(t, env.repo.Users().Save(env.ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.FirstName = "Grace"
	err = env.repo.Users().Save(env.ctx, second)
	require.ErrorIs(t, err, management.ErrConcurrentModification)
	assert.Equal(t, int64(1), second.Version)

	stored, err := env.repo.Users().FindByID(env.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
}

func TestUsersFindBySourceIgnoresCase(t *testing.T) {
	env := newTestEnv(t)
	created := env.seedUser(t, &management.User{Email: "Ada@B.com"})

	found, err := env.repo.Users().FindBySource(env.ctx, management.SourceInternal, " ada@b.COM ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = env.repo.Users().FindBySource(env.ctx, "github", "ada@b.com")
	assert.Error(t, err)
}

func TestUsersUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	created := env.seedUser(t, &management.User{Email: "a@b.com"})

	updated, err := env.repo.Users().UpdateStatus(env.ctx, created.ID, management.UserStatusArchived,
		management.WithSourceID("deleted-a@b.com"))
	require.NoError(t, err)
	assert.True(t, updated.IsArchived())
	assert.Equal(t, int64(2), updated.Version)

	_, err = env.repo.Users().UpdateStatus(env.ctx, uuid.New(), management.UserStatusArchived)
	assert.Error(t, err)
}

func TestUsersArchiveRecordsActivity(t *testing.T) {
	env := newTestEnv(t)
	sink := &capturingSink{}
	repo := management.NewRepositoryManager(env.db, management.WithUsersStateMachineOptions(
		management.WithStateMachineActivitySink(sink),
	))

	created, err := repo.Users().Create(env.ctx, &management.User{
		Source: management.SourceInternal, SourceID: "a@b.com", Email: "a@b.com",
	})
	require.NoError(t, err)

	archived, err := repo.Users().Archive(env.ctx, management.ActorRef{ID: "admin", Type: "user"}, created)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())

	events := sink.ofType(management.ActivityEventUserStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, "admin", events[0].Actor.ID)
}

func TestInvitationsDeleteMissing(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvitation(t, &management.Invitation{
		Email: "carol@x.com", ReferenceType: management.ReferenceGroup, ReferenceID: "g1", APIRole: "API_VIEWER",
	})

	assert.Error(t, env.repo.Invitations().Delete(env.ctx, inv.ID, "other"))
	require.NoError(t, env.repo.Invitations().Delete(env.ctx, inv.ID, "g1"))
	assert.Error(t, env.repo.Invitations().Delete(env.ctx, inv.ID, "g1"))
}

func TestMembershipsRemoveUser(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.seedUser(t, &management.User{Email: "a@b.com"})
	u2 := env.seedUser(t, &management.User{Email: "c@d.com"})

	for _, uid := range []uuid.UUID{u1.ID, u2.ID} {
		require.NoError(t, env.repo.Memberships().AddMember(env.ctx, &management.Membership{
			UserID:        uid,
			ReferenceType: management.ReferenceGroup,
			ReferenceID:   "g1",
			RoleScope:     management.RoleScopeAPI,
			RoleName:      "API_VIEWER",
		}))
	}

	require.NoError(t, env.repo.Memberships().RemoveUser(env.ctx, u1.ID))

	left, err := env.repo.Memberships().ListByUser(env.ctx, u1.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := env.repo.Memberships().ListByUser(env.ctx, u2.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
