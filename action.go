package management

import (
	"context"
	"strings"

	"github.com/goliatone/go-featuregate/gate"
)

// LifecycleAction is the resolved form of verified claims. It is one of
// RegistrationAction, GroupInvitationAction or PasswordResetAction.
type LifecycleAction interface {
	Action() TokenAction
	Claims() *ActionClaims
	lifecycleAction()
}

// RegistrationAction completes a self registration or a pre-created account
type RegistrationAction struct {
	claims *ActionClaims
}

func (a RegistrationAction) Action() TokenAction   { return ActionRegistration }
func (a RegistrationAction) Claims() *ActionClaims { return a.claims }
func (RegistrationAction) lifecycleAction()        {}

// GroupInvitationAction carries the pending invitations that matched the
// token email at resolution time.
type GroupInvitationAction struct {
	claims      *ActionClaims
	Invitations []*Invitation
}

func (a GroupInvitationAction) Action() TokenAction   { return ActionGroupInvitation }
func (a GroupInvitationAction) Claims() *ActionClaims { return a.claims }
func (GroupInvitationAction) lifecycleAction()        {}

// PasswordResetAction sets a new password on an internal identity
type PasswordResetAction struct {
	claims *ActionClaims
}

func (a PasswordResetAction) Action() TokenAction   { return ActionPasswordReset }
func (a PasswordResetAction) Claims() *ActionClaims { return a.claims }
func (PasswordResetAction) lifecycleAction()        {}

// ActionResolver classifies verified claims and checks the action
// preconditions. It never mutates state.
type ActionResolver struct {
	invitations Invitations
	featureGate gate.FeatureGate
	logger      Logger
}

// NewActionResolver creates a resolver. When featureGate is nil the
// registration gate is read from config.
func NewActionResolver(invitations Invitations, config Config, featureGate gate.FeatureGate, logger Logger) *ActionResolver {
	if featureGate == nil {
		featureGate = NewConfigFeatureGate(config)
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &ActionResolver{
		invitations: invitations,
		featureGate: featureGate,
		logger:      logger,
	}
}

// Resolve dispatches on the claims action.
func (r *ActionResolver) Resolve(ctx context.Context, claims *ActionClaims) (LifecycleAction, error) {
	if claims == nil {
		return nil, ErrInvalidToken
	}

	switch claims.Action {
	case ActionRegistration:
		if err := requireFeatureGate(ctx, r.featureGate, gate.FeatureUsersSignup, ErrRegistrationDisabled); err != nil {
			return nil, err
		}
		return RegistrationAction{claims: claims}, nil

	case ActionGroupInvitation:
		invitations, err := r.pendingFor(ctx, claims.Email)
		if err != nil {
			return nil, err
		}
		if len(invitations) == 0 {
			return nil, NewInvitationCanceledError(claims.Email)
		}
		return GroupInvitationAction{claims: claims, Invitations: invitations}, nil

	case ActionPasswordReset:
		if !claims.HasSubject() {
			return nil, NewIdentityNotFoundError("")
		}
		return PasswordResetAction{claims: claims}, nil

	default:
		r.logger.Debug("action token carries unknown action %q", claims.Action)
		return nil, ErrInvalidToken
	}
}

func (r *ActionResolver) pendingFor(ctx context.Context, email string) ([]*Invitation, error) {
	if r.invitations == nil {
		return nil, NewConfigurationError("invitation store is not configured")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	pending, err := r.invitations.ListPending(ctx)
	if err != nil {
		return nil, WrapTechnicalError(err, "failed to list pending invitations")
	}

	matches := make([]*Invitation, 0, len(pending))
	for _, inv := range pending {
		if inv != nil && strings.EqualFold(strings.TrimSpace(inv.Email), email) {
			matches = append(matches, inv)
		}
	}
	return matches, nil
}
