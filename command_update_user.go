package management

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type UpdateUserMessage struct {
	UserID     uuid.UUID
	Update     UpdateUser
	Actor      ActorRef
	OnResponse func(user *User)
}

func (e UpdateUserMessage) Type() string { return "user.update" }

// UpdateUserHandler applies a partial profile update. A status change to
// ARCHIVED goes through the lifecycle state machine.
type UpdateUserHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[UpdateUserMessage] = (*UpdateUserHandler)(nil)

func NewUpdateUserHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *UpdateUserHandler {
	return &UpdateUserHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *UpdateUserHandler) Execute(ctx context.Context, event UpdateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserHandler) execute(ctx context.Context, event UpdateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Update.Validate(); err != nil {
		return newValidationError(err, "invalid user update")
	}

	hc := h.withActor(event.Actor)

	user, err := findActiveUser(ctx, h.repo.Users(), event.UserID)
	if err != nil {
		return err
	}

	before := *user
	if event.Update.apply(user) {
		if user.IsInternal() && !strings.EqualFold(user.Email, before.Email) {
			if err := h.ensureSourceAvailable(ctx, user); err != nil {
				return err
			}
			user.SourceID = user.Email
		}

		user.UpdatedAt = hc.now()
		if err := h.repo.Users().Save(ctx, user); err != nil {
			h.logger.Error("failed to update identity %s: %v", user.ID, err)
			return WrapTechnicalError(err, "failed to update identity", map[string]any{
				"id": user.ID.String(),
			})
		}

		hc.record(ctx, newUserEvent(ActivityEventUserUpdated, hc.actor, &before, user, user.UpdatedAt))
	}

	if status := event.Update.Status; status != nil && *status != user.Status {
		sm := NewUserStateMachine(h.repo.Users(),
			WithStateMachineClock(hc.now),
			WithStateMachineActivitySink(hc.activity),
			WithStateMachineLogger(hc.logger),
		)
		updated, err := sm.Transition(ctx, hc.actor, user, *status, WithTransitionReason("user update"))
		if err != nil {
			return WrapTechnicalError(err, "failed to change identity status", map[string]any{
				"id": user.ID.String(),
			})
		}
		user = updated
	}

	if user.IsArchived() {
		hc.unindex(ctx, user)
	} else {
		hc.index(ctx, user)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *UpdateUserHandler) ensureSourceAvailable(ctx context.Context, user *User) error {
	existing, err := h.repo.Users().FindBySource(ctx, user.Source, user.Email)
	switch {
	case err == nil && existing.ID != user.ID:
		return NewIdentityAlreadyExistsError(user.Source, user.Email)
	case err != nil && !isRecordNotFound(err):
		return WrapTechnicalError(err, "failed to find identity", map[string]any{"email": user.Email})
	}
	return nil
}
