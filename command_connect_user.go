package management

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ConnectUserMessage struct {
	UserID     uuid.UUID
	OnResponse func(user *User, firstLogin bool)
}

func (e ConnectUserMessage) Type() string { return "user.connect" }

// ConnectUserHandler stamps a successful login on the identity.
type ConnectUserHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[ConnectUserMessage] = (*ConnectUserHandler)(nil)

func NewConnectUserHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *ConnectUserHandler {
	return &ConnectUserHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *ConnectUserHandler) Execute(ctx context.Context, event ConnectUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user connection",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConnectUserHandler) execute(ctx context.Context, event ConnectUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	user, err := findActiveUser(ctx, h.repo.Users(), event.UserID)
	if err != nil {
		return err
	}

	before := *user
	firstLogin := user.LastConnectionAt == nil

	now := h.now()
	user.LastConnectionAt = &now
	user.UpdatedAt = now

	if err := h.repo.Users().Save(ctx, user); err != nil {
		h.logger.Error("failed to stamp connection of %s: %v", user.ID, err)
		return WrapTechnicalError(err, "failed to update identity", map[string]any{
			"id": user.ID.String(),
		})
	}

	actor := ActorRef{ID: user.ID.String(), Type: "user"}
	if firstLogin {
		h.record(ctx, newUserEvent(ActivityEventUserFirstLogin, actor, nil, user, now))
		if user.Email != "" {
			h.notify(ctx, NewActionNotification(TemplateUserFirstLogin, user, nil))
		}
	}
	h.record(ctx, newUserEvent(ActivityEventUserConnected, actor, &before, user, now))
	h.index(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(user, firstLogin)
	}

	return nil
}

// findActiveUser loads the identity, archived identities are reported as
// missing.
func findActiveUser(ctx context.Context, users Users, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, NewIdentityNotFoundError("")
	}

	user, err := users.FindByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewIdentityNotFoundError(id.String())
		}
		return nil, WrapTechnicalError(err, "failed to find identity", map[string]any{"id": id.String()})
	}

	if user.IsArchived() {
		return nil, NewIdentityNotFoundError(id.String())
	}

	return user, nil
}
