package management

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const deletedSourcePrefix = "deleted-"

type DeleteUserMessage struct {
	UserID     uuid.UUID
	Actor      ActorRef
	OnResponse func(user *User)
}

func (e DeleteUserMessage) Type() string { return "user.delete" }

// DeleteUserHandler archives the identity. The source id is rewritten so the
// same external account can register again, memberships are dropped and the
// profile is optionally anonymized.
type DeleteUserHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[DeleteUserMessage] = (*DeleteUserHandler)(nil)

func NewDeleteUserHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *DeleteUserHandler {
	return &DeleteUserHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	hc := h.withActor(event.Actor)

	user, err := findActiveUser(ctx, h.repo.Users(), event.UserID)
	if err != nil {
		return err
	}

	before := *user

	updates := []StatusUpdateOption{WithSourceID(deletedSourcePrefix + user.SourceID)}
	if h.config != nil && h.config.GetAnonymizeOnDelete() {
		updates = append(updates, WithAnonymizedProfile())
	}

	sm := NewUserStateMachine(h.repo.Users(),
		WithStateMachineClock(hc.now),
		WithStateMachineActivitySink(hc.activity),
		WithStateMachineLogger(hc.logger),
	)

	archived, err := sm.Transition(ctx, hc.actor, user, UserStatusArchived,
		WithTransitionReason("user deleted"),
		WithStatusUpdates(updates...),
	)
	if err != nil {
		h.logger.Error("failed to archive identity %s: %v", user.ID, err)
		return WrapTechnicalError(err, "failed to delete identity", map[string]any{
			"id": user.ID.String(),
		})
	}

	if err := h.repo.Memberships().RemoveUser(ctx, archived.ID); err != nil {
		h.logger.Error("failed to remove memberships of %s: %v", archived.ID, err)
		return WrapTechnicalError(err, "failed to remove memberships", map[string]any{
			"id": archived.ID.String(),
		})
	}

	hc.record(ctx, newUserEvent(ActivityEventUserDeleted, hc.actor, &before, archived, hc.now()))
	hc.unindex(ctx, archived)

	if event.OnResponse != nil {
		event.OnResponse(archived)
	}

	return nil
}
