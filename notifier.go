package management

import (
	"context"
	"time"

	"github.com/goliatone/go-print"
)

// NotificationTemplate names the message sent to a user
type NotificationTemplate string

const (
	TemplateUserRegistration NotificationTemplate = "USER_REGISTRATION"
	TemplateUserCreated      NotificationTemplate = "USER_CREATED"
	TemplateGroupInvitation  NotificationTemplate = "GROUP_INVITATION"
	TemplatePasswordReset    NotificationTemplate = "PASSWORD_RESET"
	TemplateUserFirstLogin   NotificationTemplate = "USER_FIRST_LOGIN"
)

const notificationTimeout = 30 * time.Second

// NotificationParams are the values available to notification templates
type NotificationParams struct {
	Token           string    `json:"token"`
	RegistrationURL string    `json:"registrationUrl"`
	Recipient       string    `json:"recipient"`
	DisplayName     string    `json:"displayName"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Notification is a templated message addressed to one recipient
type Notification struct {
	Template  NotificationTemplate `json:"template"`
	Recipient string               `json:"recipient"`
	Params    NotificationParams   `json:"params"`
}

// NewActionNotification builds the notification delivering token to user.
func NewActionNotification(template NotificationTemplate, user *User, token *ActionToken) Notification {
	n := Notification{Template: template}
	if user != nil {
		n.Recipient = user.Email
		n.Params.Recipient = user.Email
		n.Params.DisplayName = user.DisplayName()
	}
	if token != nil {
		n.Params.Token = token.Token
		n.Params.RegistrationURL = token.URL
		n.Params.ExpiresAt = token.ExpiresAt
	}
	return n
}

// LogNotifier writes notifications to the logger instead of delivering them.
type LogNotifier struct {
	logger Logger
}

func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, notification Notification) error {
	n.logger.Info("notification %s to %s: %s",
		notification.Template,
		notification.Recipient,
		print.MaybePrettyJSON(notification.Params),
	)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// dispatchNotification sends off the request path. The caller context only
// contributes its values, cancellation is detached.
func dispatchNotification(ctx context.Context, notifier Notifier, logger Logger, notification Notification) {
	notifier = normalizeNotifier(notifier)
	detached := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(detached, notificationTimeout)
		defer cancel()

		if err := notifier.Send(ctx, notification); err != nil {
			logger.Error("failed to send %s notification to %s: %v",
				notification.Template, notification.Recipient, err)
		}
	}()
}
