package management

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type RequestPasswordResetMessage struct {
	UserID       uuid.UUID
	PathTemplate string
	Actor        ActorRef
	OnResponse   func(user *User, token *ActionToken)
}

func (p RequestPasswordResetMessage) Type() string { return "user.password_reset.request" }

// RequestPasswordResetHandler clears the password of an internal identity
// and mails a PASSWORD_RESET link.
type RequestPasswordResetHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[RequestPasswordResetMessage] = (*RequestPasswordResetHandler)(nil)

func NewRequestPasswordResetHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	hc := h.withActor(event.Actor)

	user, err := findActiveUser(ctx, h.repo.Users(), event.UserID)
	if err != nil {
		return err
	}

	if !user.IsInternal() {
		return NewExternallyManagedIdentityError(user.ID.String(), user.Source)
	}

	// mint first, a configuration error must leave the password in place
	token, err := h.issuer().IssueActionToken(NewIdentityFromUser(user), ActionPasswordReset, event.PathTemplate)
	if err != nil {
		return err
	}

	before := *user
	now := hc.now()
	user.Password = ""
	user.PasswordResetAt = &now
	user.UpdatedAt = now

	if err := h.repo.Users().Save(ctx, user); err != nil {
		h.logger.Error("failed to reset password of %s: %v", user.ID, err)
		return WrapTechnicalError(err, "failed to reset password", map[string]any{
			"id": user.ID.String(),
		})
	}

	h.notify(ctx, NewActionNotification(TemplatePasswordReset, user, token))

	audit := newUserEvent(ActivityEventPasswordResetRequested, hc.actor, &before, user, user.UpdatedAt)
	audit.Metadata = map[string]any{"token_expires_at": token.ExpiresAt}
	hc.record(ctx, audit)

	if event.OnResponse != nil {
		event.OnResponse(user, token)
	}

	return nil
}
