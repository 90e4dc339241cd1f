package management

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenAction is the discriminator selecting which lifecycle workflow a
// token authorizes
type TokenAction string

const (
	ActionRegistration    TokenAction = "REGISTRATION"
	ActionGroupInvitation TokenAction = "GROUP_INVITATION"
	ActionPasswordReset   TokenAction = "PASSWORD_RESET"
)

// TokenActions lists every supported action
func TokenActions() []TokenAction {
	return []TokenAction{
		ActionRegistration,
		ActionGroupInvitation,
		ActionPasswordReset,
	}
}

// ParseTokenAction matches s against the known actions, case insensitive.
func ParseTokenAction(s string) (TokenAction, bool) {
	candidate := TokenAction(strings.ToUpper(strings.TrimSpace(s)))
	for _, action := range TokenActions() {
		if action == candidate {
			return action, true
		}
	}
	return "", false
}

func (a TokenAction) String() string {
	return string(a)
}

// ActionClaims is the payload signed into an action token
type ActionClaims struct {
	jwt.RegisteredClaims
	Email     string      `json:"email,omitempty"`
	FirstName string      `json:"firstname,omitempty"`
	LastName  string      `json:"lastname,omitempty"`
	Action    TokenAction `json:"action"`
}

// NewActionClaims builds the claims for identity. The subject is left empty
// for identities that were not persisted yet.
func NewActionClaims(identity Identity, action TokenAction) *ActionClaims {
	claims := &ActionClaims{Action: action}
	if identity == nil {
		return claims
	}

	claims.Subject = identity.ID()
	claims.Email = identity.Email()
	claims.FirstName = identity.FirstName()
	claims.LastName = identity.LastName()
	return claims
}

// HasSubject reports whether the token points to an existing identity.
func (c *ActionClaims) HasSubject() bool {
	return c != nil && strings.TrimSpace(c.Subject) != ""
}

func (c *ActionClaims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Expires returns the expiration time
func (c *ActionClaims) Expires() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time
func (c *ActionClaims) Issued() time.Time {
	if c == nil || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func (c *ActionClaims) validPayload() bool {
	if c == nil {
		return false
	}
	if _, ok := ParseTokenAction(string(c.Action)); !ok {
		return false
	}
	if !c.HasSubject() && strings.TrimSpace(c.Email) == "" {
		return false
	}
	return true
}
