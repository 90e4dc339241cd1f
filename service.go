package management

import (
	"context"

	"github.com/google/uuid"
)

// UserService is the entry point of the identity lifecycle. Each method runs
// the matching command handler.
type UserService struct {
	repo RepositoryManager
	hc   handlerContext

	register     *RegisterUserHandler
	create       *CreateUserHandler
	complete     *CompleteRegistrationHandler
	resetRequest *RequestPasswordResetHandler
	connect      *ConnectUserHandler
	update       *UpdateUserHandler
	remove       *DeleteUserHandler
	check        *CheckActionTokenHandler
	invite       *InviteHandler
}

// NewUserService wires every handler on the same collaborators.
func NewUserService(repo RepositoryManager, config Config, opts ...HandlerOption) *UserService {
	hc := newHandlerContext(config, opts...)
	// handlers share the resolved codec and gate
	opts = append(append([]HandlerOption{}, opts...), WithTokenCodec(hc.codec), WithFeatureGate(hc.featureGate))

	return &UserService{
		repo:         repo,
		hc:           hc,
		register:     NewRegisterUserHandler(repo, config, opts...),
		create:       NewCreateUserHandler(repo, config, opts...),
		complete:     NewCompleteRegistrationHandler(repo, config, opts...),
		resetRequest: NewRequestPasswordResetHandler(repo, config, opts...),
		connect:      NewConnectUserHandler(repo, config, opts...),
		update:       NewUpdateUserHandler(repo, config, opts...),
		remove:       NewDeleteUserHandler(repo, config, opts...),
		check:        NewCheckActionTokenHandler(repo, config, opts...),
		invite:       NewInviteHandler(repo, config, opts...),
	}
}

// CompleteRegistration redeems token and sets password. firstName and
// lastName override the names carried by the token when not empty.
func (s *UserService) CompleteRegistration(ctx context.Context, token, password, firstName, lastName string) (*User, error) {
	var out *User
	err := s.complete.Execute(ctx, CompleteRegistrationMessage{
		Token:      token,
		Password:   password,
		FirstName:  firstName,
		LastName:   lastName,
		OnResponse: func(user *User) { out = user },
	})
	return out, err
}

// IssueActionToken mints a token for identity. It has no side effect.
func (s *UserService) IssueActionToken(identity Identity, action TokenAction, pathTemplate string) (*ActionToken, error) {
	return s.hc.issuer().IssueActionToken(identity, action, pathTemplate)
}

func (s *UserService) RequestPasswordReset(ctx context.Context, id uuid.UUID) error {
	return s.resetRequest.Execute(ctx, RequestPasswordResetMessage{UserID: id})
}

func (s *UserService) Register(ctx context.Context, payload NewExternalUser) (*User, error) {
	var out *User
	err := s.register.Execute(ctx, RegisterUserMessage{
		Email:      payload.Email,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Picture:    payload.Picture,
		OnResponse: func(user *User, _ *ActionToken) { out = user },
	})
	return out, err
}

func (s *UserService) Create(ctx context.Context, payload NewExternalUser, addDefaultRoles bool) (*User, error) {
	var out *User
	err := s.create.Execute(ctx, CreateUserMessage{
		User:            payload,
		AddDefaultRoles: addDefaultRoles,
		OnResponse:      func(user *User) { out = user },
	})
	return out, err
}

func (s *UserService) Connect(ctx context.Context, id uuid.UUID) (*User, error) {
	var out *User
	err := s.connect.Execute(ctx, ConnectUserMessage{
		UserID:     id,
		OnResponse: func(user *User, _ bool) { out = user },
	})
	return out, err
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, update UpdateUser) (*User, error) {
	var out *User
	err := s.update.Execute(ctx, UpdateUserMessage{
		UserID:     id,
		Update:     update,
		OnResponse: func(user *User) { out = user },
	})
	return out, err
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.remove.Execute(ctx, DeleteUserMessage{UserID: id})
}

// FindByID returns active and archived identities alike.
func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.Users().FindByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewIdentityNotFoundError(id.String())
		}
		return nil, WrapTechnicalError(err, "failed to find identity", map[string]any{"id": id.String()})
	}
	return user, nil
}

func (s *UserService) FindBySource(ctx context.Context, source, sourceID string) (*User, error) {
	user, err := s.repo.Users().FindBySource(ctx, source, sourceID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewIdentityNotFoundError(sourceID)
		}
		return nil, WrapTechnicalError(err, "failed to find identity", map[string]any{
			"source":    source,
			"source_id": sourceID,
		})
	}
	return user, nil
}

// FindByIDs skips ids without identity.
func (s *UserService) FindByIDs(ctx context.Context, ids ...uuid.UUID) ([]*User, error) {
	users, err := s.repo.Users().ListByIDs(ctx, ids...)
	if err != nil {
		return nil, WrapTechnicalError(err, "failed to list identities")
	}
	return users, nil
}

func (s *UserService) CheckActionToken(ctx context.Context, token string) (LifecycleAction, error) {
	var out LifecycleAction
	err := s.check.Execute(ctx, CheckActionTokenMessage{
		Token:      token,
		OnResponse: func(action LifecycleAction) { out = action },
	})
	return out, err
}

func (s *UserService) Invite(ctx context.Context, payload InvitationPayload) (*Invitation, *ActionToken, error) {
	var (
		invitation *Invitation
		token      *ActionToken
	)
	err := s.invite.Execute(ctx, InviteMessage{
		Invitation: payload,
		OnResponse: func(inv *Invitation, t *ActionToken) {
			invitation = inv
			token = t
		},
	})
	return invitation, token, err
}
