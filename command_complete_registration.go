package management

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type CompleteRegistrationMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	FirstName  string `json:"firstname,omitempty"`
	LastName   string `json:"lastname,omitempty"`
	OnResponse func(user *User)
}

func (m CompleteRegistrationMessage) Type() string { return "user.registration.complete" }

// CompleteRegistrationHandler redeems an action token: it finalizes a pre
// created identity, creates a brand new one, consumes group invitations or
// sets the password after a reset.
type CompleteRegistrationHandler struct {
	repo     RepositoryManager
	resolver *ActionResolver
	handlerContext
}

var _ command.Commander[CompleteRegistrationMessage] = (*CompleteRegistrationHandler)(nil)

func NewCompleteRegistrationHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *CompleteRegistrationHandler {
	hc := newHandlerContext(config, opts...)
	return &CompleteRegistrationHandler{
		repo:           repo,
		resolver:       NewActionResolver(repo.Invitations(), config, hc.featureGate, hc.logger),
		handlerContext: hc,
	}
}

func (h *CompleteRegistrationHandler) Execute(ctx context.Context, msg CompleteRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration completion",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *CompleteRegistrationHandler) execute(ctx context.Context, msg CompleteRegistrationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	claims, err := h.codec.Verify(msg.Token)
	if err != nil {
		return err
	}

	action, err := h.resolver.Resolve(ctx, claims)
	if err != nil {
		return err
	}

	var hash string
	if msg.Password != "" {
		if hash, err = HashPassword(msg.Password); err != nil {
			if isPasswordInputError(err) {
				return newValidationError(err, "invalid password")
			}
			return err
		}
	}

	user, created, err := h.locateIdentity(ctx, action, msg)
	if err != nil {
		return err
	}

	var before *User
	if !created {
		snapshot := *user
		before = &snapshot
	}

	if invitation, ok := action.(GroupInvitationAction); ok {
		if err := h.consumeInvitations(ctx, user, invitation.Invitations); err != nil {
			return err
		}
	}

	applyProfile(user, msg.FirstName, msg.LastName)
	user.UpdatedAt = h.now()

	if hash != "" {
		user.Password = hash
	}

	if err := h.repo.Users().Save(ctx, user); err != nil {
		if IsConcurrentModification(err) {
			return NewIdentityAlreadyFinalizedError(user.ID.String())
		}
		h.logger.Error("failed to persist identity %s: %v", user.ID, err)
		return WrapTechnicalError(err, "failed to persist identity", map[string]any{
			"id": user.ID.String(),
		})
	}

	eventType := ActivityEventUserCreated
	if action.Action() == ActionPasswordReset {
		eventType = ActivityEventPasswordResetCompleted
	}

	event := newUserEvent(eventType, ActorRef{ID: user.ID.String(), Type: "user"}, before, user, user.UpdatedAt)
	event.Metadata = map[string]any{
		"action":   action.Action(),
		"token_id": claims.TokenID(),
	}
	h.record(ctx, event)
	h.index(ctx, user)

	if msg.OnResponse != nil {
		msg.OnResponse(user)
	}

	return nil
}

// locateIdentity returns the identity the token targets. created reports a
// brand new identity persisted by this call.
func (h *CompleteRegistrationHandler) locateIdentity(ctx context.Context, action LifecycleAction, msg CompleteRegistrationMessage) (*User, bool, error) {
	claims := action.Claims()

	if !claims.HasSubject() {
		return h.locateRegistrant(ctx, claims, msg)
	}

	id, err := ParseIdentityID(claims.Subject)
	if err != nil {
		return nil, false, err
	}

	user, err := h.repo.Users().FindByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, false, NewIdentityNotFoundError(id.String())
		}
		return nil, false, WrapTechnicalError(err, "failed to find identity", map[string]any{"id": id.String()})
	}

	if user.IsArchived() {
		return nil, false, NewIdentityNotFoundError(id.String())
	}

	if user.HasPassword() {
		return nil, false, NewIdentityAlreadyFinalizedError(id.String())
	}

	// only a reset token may set the password of a reset identity
	if action.Action() != ActionPasswordReset && user.ResetAfter(claims.Issued()) {
		return nil, false, ErrInvalidToken
	}

	if action.Action() == ActionPasswordReset && !user.IsInternal() {
		return nil, false, NewExternallyManagedIdentityError(id.String(), user.Source)
	}

	return user, false, nil
}

// locateRegistrant handles tokens without subject: the internal identity
// keyed by email is adopted when it exists without password. Otherwise it
// is created with the default environment roles.
func (h *CompleteRegistrationHandler) locateRegistrant(ctx context.Context, claims *ActionClaims, msg CompleteRegistrationMessage) (*User, bool, error) {
	email := strings.TrimSpace(claims.Email)
	users := h.repo.Users()

	existing, err := users.FindBySource(ctx, SourceInternal, email)
	switch {
	case err == nil:
		if existing.HasPassword() {
			return nil, false, NewIdentityAlreadyFinalizedError(existing.ID.String())
		}
		if existing.ResetAfter(claims.Issued()) {
			return nil, false, ErrInvalidToken
		}
		return existing, false, nil
	case !isRecordNotFound(err):
		return nil, false, WrapTechnicalError(err, "failed to find identity", map[string]any{"email": email})
	}

	payload := NewExternalUser{
		Email:     email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Source:    SourceInternal,
		SourceID:  email,
	}
	if first := strings.TrimSpace(msg.FirstName); first != "" {
		payload.FirstName = first
	}
	if last := strings.TrimSpace(msg.LastName); last != "" {
		payload.LastName = last
	}

	created, err := createIdentity(ctx, h.repo, h.handlerContext, payload, true)
	if err != nil {
		// a concurrent redemption may have inserted the same registrant
		if again, findErr := users.FindBySource(ctx, SourceInternal, email); findErr == nil {
			if again.HasPassword() {
				return nil, false, NewIdentityAlreadyFinalizedError(again.ID.String())
			}
			return again, false, nil
		}
		return nil, false, err
	}

	return created, true, nil
}

// consumeInvitations grants and deletes invitations one transaction each.
// Invitations consumed before a failure stay consumed.
func (h *CompleteRegistrationHandler) consumeInvitations(ctx context.Context, user *User, invitations []*Invitation) error {
	for _, inv := range invitations {
		grants := inv.Grants(user.ID)
		consumed := true

		err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := h.repo.Invitations().DeleteTx(ctx, tx, inv.ID, inv.ReferenceID); err != nil {
				if isRecordNotFound(err) {
					consumed = false
					return nil
				}
				return err
			}

			for _, grant := range grants {
				if err := h.repo.Memberships().AddMemberTx(ctx, tx, grant); err != nil {
					return err
				}
			}
			return nil
		})

		if err != nil {
			h.logger.Error("failed to consume invitation %s for %s: %v", inv.ID, user.ID, err)
			return WrapTechnicalError(err, "failed to consume invitation", map[string]any{
				"invitation_id": inv.ID.String(),
				"reference_id":  inv.ReferenceID,
			})
		}

		if !consumed {
			h.logger.Debug("invitation %s already consumed", inv.ID)
			continue
		}

		for _, grant := range grants {
			h.record(ctx, ActivityEvent{
				EventType: ActivityEventMembershipGranted,
				Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
				UserID:    user.ID.String(),
				Metadata: map[string]any{
					"invitation_id":  inv.ID.String(),
					"reference_type": grant.ReferenceType,
					"reference_id":   grant.ReferenceID,
					"role_scope":     grant.RoleScope,
					"role_name":      grant.RoleName,
				},
			})
		}
	}

	return nil
}

func applyProfile(user *User, firstName, lastName string) {
	if v := strings.TrimSpace(firstName); v != "" {
		user.FirstName = v
	}
	if v := strings.TrimSpace(lastName); v != "" {
		user.LastName = v
	}
}
