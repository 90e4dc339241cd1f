package management

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds lifecycle options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenTTL(action TokenAction) time.Duration
	GetPortalURL() string
	GetActionPath(action TokenAction) string
	GetRegistrationEnabled() bool
	GetAnonymizeOnDelete() bool
	GetDefaultRoles() map[RoleScope]string
	GetUseHashid() bool
}

// Identity holds the public attributes of an identity that end up
// inside an action token
type Identity interface {
	ID() string
	Email() string
	FirstName() string
	LastName() string
}

// SearchIndexer keeps the user search index in sync with identity mutations
type SearchIndexer interface {
	Index(ctx context.Context, user *User) error
	Delete(ctx context.Context, user *User) error
}

// Notifier delivers templated notifications (email, chat, hooks...)
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, notification Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

type noopSearchIndexer struct{}

func (noopSearchIndexer) Index(context.Context, *User) error  { return nil }
func (noopSearchIndexer) Delete(context.Context, *User) error { return nil }

func normalizeSearchIndexer(s SearchIndexer) SearchIndexer {
	if s == nil {
		return noopSearchIndexer{}
	}
	return s
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MGMT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MGMT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MGMT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MGMT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
