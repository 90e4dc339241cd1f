package management_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-featuregate/gate"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionResolver(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	env.seedInvitation(t, &management.Invitation{
		Email:         "Carol@X.com",
		ReferenceType: management.ReferenceGroup,
		ReferenceID:   "g1",
		APIRole:       "API_VIEWER",
	})

	resolver := management.NewActionResolver(env.repo.Invitations(), env.config, nil, nil)

	t.Run("registration", func(t *testing.T) {
		action, err := resolver.Resolve(ctx, &management.ActionClaims{Email: "a@b.com", Action: management.ActionRegistration})
		require.NoError(t, err)
		assert.IsType(t, management.RegistrationAction{}, action)
		assert.Equal(t, management.ActionRegistration, action.Action())
	})

	t.Run("group invitation matches case insensitive", func(t *testing.T) {
		action, err := resolver.Resolve(ctx, &management.ActionClaims{Email: "carol@x.com", Action: management.ActionGroupInvitation})
		require.NoError(t, err)

		invitation, ok := action.(management.GroupInvitationAction)
		require.True(t, ok)
		require.Len(t, invitation.Invitations, 1)
		assert.Equal(t, "g1", invitation.Invitations[0].ReferenceID)
	})

	t.Run("group invitation canceled", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, &management.ActionClaims{Email: "dave@x.com", Action: management.ActionGroupInvitation})
		assert.True(t, management.IsInvitationCanceled(err))
	})

	t.Run("password reset needs subject", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, &management.ActionClaims{Email: "a@b.com", Action: management.ActionPasswordReset})
		assert.True(t, management.IsIdentityNotFound(err))
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, &management.ActionClaims{Email: "a@b.com", Action: "LOGIN"})
		assert.ErrorIs(t, err, management.ErrInvalidToken)
	})

	t.Run("nil claims", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, nil)
		assert.ErrorIs(t, err, management.ErrInvalidToken)
	})
}

func TestActionResolverRegistrationGate(t *testing.T) {
	ctx := context.Background()
	claims := &management.ActionClaims{Email: "a@b.com", Action: management.ActionRegistration}

	t.Run("config disabled", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.registration = false

		_, err := management.NewActionResolver(nil, cfg, nil, nil).Resolve(ctx, claims)
		assert.True(t, management.IsRegistrationDisabled(err))
	})

	t.Run("gate disabled", func(t *testing.T) {
		stub := &stubFeatureGate{enabled: map[string]bool{gate.FeatureUsersSignup: false}}

		_, err := management.NewActionResolver(nil, newTestConfig(), stub, nil).Resolve(ctx, claims)
		assert.True(t, management.IsRegistrationDisabled(err))
		assert.Equal(t, []string{gate.FeatureUsersSignup}, stub.calls)
	})

	t.Run("gate failure", func(t *testing.T) {
		stub := &stubFeatureGate{err: errors.New("gate store down")}

		_, err := management.NewActionResolver(nil, newTestConfig(), stub, nil).Resolve(ctx, claims)
		require.Error(t, err)
	})

	t.Run("missing invitation store", func(t *testing.T) {
		_, err := management.NewActionResolver(nil, newTestConfig(), nil, nil).
			Resolve(ctx, &management.ActionClaims{Email: "a@b.com", Action: management.ActionGroupInvitation})
		assert.True(t, management.IsConfigurationError(err))
	})
}
