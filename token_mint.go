package management

import (
	"strings"
	"time"
)

// Default token lifetimes per action
const (
	DefaultRegistrationTTL    = 24 * time.Hour
	DefaultGroupInvitationTTL = 72 * time.Hour
	DefaultPasswordResetTTL   = time.Hour
)

// Default portal paths the token is appended to
const (
	DefaultRegistrationPath  = "/#!/registration/confirm/"
	DefaultPasswordResetPath = "/#!/resetPassword/"
)

// TokenPlaceholder is replaced by the token in path templates
const TokenPlaceholder = "{token}"

// ActionToken is a signed token and the portal URL that redeems it
type ActionToken struct {
	Action    TokenAction `json:"action"`
	Token     string      `json:"token"`
	URL       string      `json:"url"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// DefaultTokenTTL returns the lifetime used when config has none.
func DefaultTokenTTL(action TokenAction) time.Duration {
	switch action {
	case ActionRegistration:
		return DefaultRegistrationTTL
	case ActionGroupInvitation:
		return DefaultGroupInvitationTTL
	case ActionPasswordReset:
		return DefaultPasswordResetTTL
	default:
		return 0
	}
}

// DefaultActionPath returns the portal path for action.
func DefaultActionPath(action TokenAction) string {
	if action == ActionPasswordReset {
		return DefaultPasswordResetPath
	}
	return DefaultRegistrationPath
}

// ActionTokenIssuer mints action tokens and their delivery URLs
type ActionTokenIssuer struct {
	codec  TokenCodec
	config Config
}

// NewActionTokenIssuer creates an issuer. The codec is built from config
// when nil.
func NewActionTokenIssuer(config Config, codec TokenCodec) *ActionTokenIssuer {
	if codec == nil {
		codec = NewTokenCodecFromConfig(config)
	}
	return &ActionTokenIssuer{
		codec:  codec,
		config: config,
	}
}

// IssueActionToken signs a token for identity and action and composes the
// portal URL. An empty pathTemplate uses the configured action path.
// It has no side effects.
func (i *ActionTokenIssuer) IssueActionToken(identity Identity, action TokenAction, pathTemplate string) (*ActionToken, error) {
	if _, ok := ParseTokenAction(string(action)); !ok {
		return nil, NewConfigurationError("unknown token action").
			WithMetadata(map[string]any{"action": action})
	}

	claims := NewActionClaims(identity, action)
	if !claims.validPayload() {
		return nil, NewConfigurationError("identity has neither id nor email").
			WithMetadata(map[string]any{"action": action})
	}

	token, err := i.codec.Sign(claims, i.ttl(action))
	if err != nil {
		return nil, err
	}

	verified, err := i.codec.Verify(token)
	if err != nil {
		return nil, WrapTechnicalError(err, "freshly signed action token failed verification")
	}

	if pathTemplate == "" {
		pathTemplate = i.path(action)
	}

	return &ActionToken{
		Action:    action,
		Token:     token,
		URL:       ComposeActionURL(i.portalURL(), pathTemplate, token),
		ExpiresAt: verified.Expires(),
	}, nil
}

func (i *ActionTokenIssuer) ttl(action TokenAction) time.Duration {
	if i.config != nil {
		if ttl := i.config.GetTokenTTL(action); ttl > 0 {
			return ttl
		}
	}
	return DefaultTokenTTL(action)
}

func (i *ActionTokenIssuer) path(action TokenAction) string {
	if i.config != nil {
		if p := i.config.GetActionPath(action); p != "" {
			return p
		}
	}
	return DefaultActionPath(action)
}

func (i *ActionTokenIssuer) portalURL() string {
	if i.config == nil {
		return ""
	}
	return i.config.GetPortalURL()
}

// ComposeActionURL joins the portal base URL and path, then substitutes
// the token placeholder or appends the token.
func ComposeActionURL(baseURL, pathTemplate, token string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if pathTemplate != "" && !strings.HasPrefix(pathTemplate, "/") {
		pathTemplate = "/" + pathTemplate
	}

	if strings.Contains(pathTemplate, TokenPlaceholder) {
		return baseURL + strings.ReplaceAll(pathTemplate, TokenPlaceholder, token)
	}
	return baseURL + pathTemplate + token
}
