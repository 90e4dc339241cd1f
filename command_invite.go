package management

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type InviteMessage struct {
	Invitation   InvitationPayload
	PathTemplate string
	Actor        ActorRef
	OnResponse   func(invitation *Invitation, token *ActionToken)
}

func (m InviteMessage) Type() string { return "invitation.create" }

// InviteHandler stores a group invitation and mails a GROUP_INVITATION link
// to the invited address.
type InviteHandler struct {
	repo RepositoryManager
	handlerContext
}

var _ command.Commander[InviteMessage] = (*InviteHandler)(nil)

func NewInviteHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *InviteHandler {
	return &InviteHandler{
		repo:           repo,
		handlerContext: newHandlerContext(config, opts...),
	}
}

func (h *InviteHandler) Execute(ctx context.Context, msg InviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *InviteHandler) execute(ctx context.Context, msg InviteMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	payload := msg.Invitation
	payload.Email = strings.TrimSpace(payload.Email)
	if err := payload.Validate(); err != nil {
		return newValidationError(err, "invalid invitation")
	}

	hc := h.withActor(msg.Actor)

	invitee := &User{Email: payload.Email}
	token, err := hc.issuer().IssueActionToken(NewIdentityFromUser(invitee), ActionGroupInvitation, msg.PathTemplate)
	if err != nil {
		return err
	}

	invitation, err := h.repo.Invitations().CreateInvitation(ctx, &Invitation{
		Email:           payload.Email,
		ReferenceType:   payload.ReferenceType,
		ReferenceID:     payload.ReferenceID,
		APIRole:         payload.APIRole,
		ApplicationRole: payload.ApplicationRole,
		CreatedAt:       hc.now(),
	})
	if err != nil {
		h.logger.Error("failed to store invitation for %s: %v", payload.Email, err)
		return WrapTechnicalError(err, "failed to create invitation", map[string]any{
			"email":        payload.Email,
			"reference_id": payload.ReferenceID,
		})
	}

	hc.notify(ctx, NewActionNotification(TemplateGroupInvitation, invitee, token))
	hc.record(ctx, ActivityEvent{
		EventType: ActivityEventInvitationCreated,
		Metadata: map[string]any{
			"invitation_id":    invitation.ID.String(),
			"email":            invitation.Email,
			"reference_type":   invitation.ReferenceType,
			"reference_id":     invitation.ReferenceID,
			"api_role":         invitation.APIRole,
			"application_role": invitation.ApplicationRole,
		},
	})

	if msg.OnResponse != nil {
		msg.OnResponse(invitation, token)
	}

	return nil
}
