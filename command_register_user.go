package management

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	Picture    string `json:"picture,omitempty"`
	OnResponse func(user *User, token *ActionToken)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler handles self service registration: it creates the
// internal identity without password and mails a REGISTRATION link.
type RegisterUserHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

func NewRegisterUserHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := requireFeatureGate(ctx, h.featureGate, gate.FeatureUsersSignup, ErrRegistrationDisabled); err != nil {
		return err
	}

	payload := NewExternalUser{
		Email:     event.Email,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Picture:   event.Picture,
	}.normalize()
	payload.Source = SourceInternal
	payload.SourceID = payload.Email

	if err := payload.Validate(); err != nil {
		return newValidationError(err, "invalid registration payload")
	}

	user, err := createIdentity(ctx, h.repo, h.handlerContext, payload, true)
	if err != nil {
		return err
	}

	token, err := h.issuer().IssueActionToken(NewIdentityFromUser(user), ActionRegistration, "")
	if err != nil {
		return err
	}

	h.notify(ctx, NewActionNotification(TemplateUserRegistration, user, token))

	if event.OnResponse != nil {
		event.OnResponse(user, token)
	}

	return nil
}

type CreateUserMessage struct {
	User            NewExternalUser
	AddDefaultRoles bool
	// Notify mails a USER_CREATED link so the new identity can set a
	// password. Only internal identities are notified.
	Notify     bool
	Actor      ActorRef
	OnResponse func(user *User)
}

func (e CreateUserMessage) Type() string { return "user.create" }

// CreateUserHandler pre-creates an identity from any source.
type CreateUserHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[CreateUserMessage] = (*CreateUserHandler)(nil)

func NewCreateUserHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *CreateUserHandler {
	return &CreateUserHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	payload := event.User.normalize()
	if err := payload.Validate(); err != nil {
		return newValidationError(err, "invalid user payload")
	}

	user, err := createIdentity(ctx, h.repo, h.withActor(event.Actor), payload, event.AddDefaultRoles)
	if err != nil {
		return err
	}

	if event.Notify && user.IsInternal() {
		token, err := h.issuer().IssueActionToken(NewIdentityFromUser(user), ActionRegistration, "")
		if err != nil {
			h.logger.Error("failed to issue registration token for %s: %v", user.ID, err)
		} else {
			h.notify(ctx, NewActionNotification(TemplateUserCreated, user, token))
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// createIdentity inserts the identity and its default memberships in one
// transaction, then records the audit event and indexes it.
func createIdentity(ctx context.Context, repo RepositoryManager, hc handlerContext, payload NewExternalUser, addDefaultRoles bool) (*User, error) {
	now := hc.now()
	user := &User{
		Source:    payload.Source,
		SourceID:  payload.SourceID,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Picture:   payload.Picture,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	assignIdentityID(hc.config, user)

	var grants []*Membership
	if addDefaultRoles {
		var err error
		if grants, err = defaultMemberships(hc.config); err != nil {
			return nil, err
		}
	}

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repo.Users().FindBySourceTx(ctx, tx, user.Source, user.SourceID); err == nil {
			return NewIdentityAlreadyExistsError(user.Source, user.SourceID)
		} else if !isRecordNotFound(err) {
			return err
		}

		created, err := repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created

		for _, grant := range grants {
			grant.UserID = user.ID
			if err := repo.Memberships().AddMemberTx(ctx, tx, grant); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if !IsIdentityAlreadyExists(err) {
			hc.logger.Error("failed to create identity %s/%s: %v", payload.Source, payload.SourceID, err)
		}
		return nil, WrapTechnicalError(err, "failed to create identity", map[string]any{
			"source":    payload.Source,
			"source_id": payload.SourceID,
		})
	}

	event := newUserEvent(ActivityEventUserCreated, hc.actor, nil, user, now)
	if len(grants) > 0 {
		roles := make(map[string]any, len(grants))
		for _, grant := range grants {
			roles[string(grant.RoleScope)] = grant.RoleName
		}
		event.Metadata = map[string]any{"default_roles": roles}
	}
	hc.record(ctx, event)
	hc.index(ctx, user)

	return user, nil
}

// defaultMemberships returns the environment wide MANAGEMENT and PORTAL
// grants. At least one default role must be configured.
func defaultMemberships(config Config) ([]*Membership, error) {
	var roles map[RoleScope]string
	if config != nil {
		roles = config.GetDefaultRoles()
	}

	grants := []*Membership{}
	for _, scope := range []RoleScope{RoleScopeManagement, RoleScopePortal} {
		name := roles[scope]
		if name == "" {
			continue
		}
		grants = append(grants, &Membership{
			ReferenceType: MembershipReferenceType(scope),
			ReferenceID:   DefaultReferenceID,
			RoleScope:     scope,
			RoleName:      name,
		})
	}

	if len(grants) == 0 {
		return nil, NewDefaultRoleNotFoundError(RoleScopeManagement, RoleScopePortal)
	}

	return grants, nil
}
