package management

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type CheckActionTokenMessage struct {
	Token      string `json:"token"`
	OnResponse func(action LifecycleAction)
}

func (m CheckActionTokenMessage) Type() string { return "user.token.check" }

// CheckActionTokenHandler verifies and resolves a token without redeeming
// it, so a client can pick the form to display.
type CheckActionTokenHandler struct {
	resolver *ActionResolver
	handlerContext
}

var _ command.Commander[CheckActionTokenMessage] = (*CheckActionTokenHandler)(nil)

func NewCheckActionTokenHandler(repo RepositoryManager, config Config, opts ...HandlerOption) *CheckActionTokenHandler {
	hc := newHandlerContext(config, opts...)
	return &CheckActionTokenHandler{
		resolver:       NewActionResolver(repo.Invitations(), config, hc.featureGate, hc.logger),
		handlerContext: hc,
	}
}

func (h *CheckActionTokenHandler) Execute(ctx context.Context, msg CheckActionTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during action token check",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *CheckActionTokenHandler) execute(ctx context.Context, msg CheckActionTokenMessage) error {
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

	if msg.OnResponse != nil {
		msg.OnResponse(action)
	}

	return nil
}
