package management

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"text/template"

	goerrors "github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// SMTPConfig configures the outbound mail client
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// EmailTemplate holds the subject and bodies of one notification template.
// Text and HTML are go templates executed with NotificationParams.
type EmailTemplate struct {
	Subject string
	Text    string
	HTML    string
}

// RenderedEmail is an EmailTemplate after parameter substitution
type RenderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

// DefaultEmailTemplates covers every template the lifecycle handlers send.
func DefaultEmailTemplates() map[NotificationTemplate]EmailTemplate {
	return map[NotificationTemplate]EmailTemplate{
		TemplateUserRegistration: {
			Subject: "Confirm your registration",
			Text:    "Hello {{.DisplayName}},\n\nFinish your registration by choosing a password:\n{{.RegistrationURL}}\n\nThis link expires on {{.ExpiresAt.Format \"2006-01-02 15:04 MST\"}}.\n",
			HTML:    `<p>Hello {{.DisplayName}},</p><p>Finish your registration by choosing a password: <a href="{{.RegistrationURL}}">confirm</a></p>`,
		},
		TemplateUserCreated: {
			Subject: "Your account has been created",
			Text:    "Hello {{.DisplayName}},\n\nAn account was created for {{.Recipient}}. Set your password here:\n{{.RegistrationURL}}\n",
			HTML:    `<p>Hello {{.DisplayName}},</p><p>An account was created for {{.Recipient}}. <a href="{{.RegistrationURL}}">Set your password</a></p>`,
		},
		TemplateGroupInvitation: {
			Subject: "You have been invited",
			Text:    "Hello,\n\nYou have been invited to join. Accept the invitation here:\n{{.RegistrationURL}}\n",
			HTML:    `<p>Hello,</p><p>You have been invited to join. <a href="{{.RegistrationURL}}">Accept the invitation</a></p>`,
		},
		TemplatePasswordReset: {
			Subject: "Password reset",
			Text:    "Hello {{.DisplayName}},\n\nYour password was reset. Choose a new one here:\n{{.RegistrationURL}}\n\nThis link expires on {{.ExpiresAt.Format \"2006-01-02 15:04 MST\"}}.\n",
			HTML:    `<p>Hello {{.DisplayName}},</p><p>Your password was reset. <a href="{{.RegistrationURL}}">Choose a new one</a></p>`,
		},
		TemplateUserFirstLogin: {
			Subject: "Welcome",
			Text:    "Hello {{.DisplayName}},\n\nYou just signed in for the first time as {{.Recipient}}.\n",
			HTML:    `<p>Hello {{.DisplayName}},</p><p>You just signed in for the first time as {{.Recipient}}.</p>`,
		},
	}
}

// EmailNotifier delivers notifications over SMTP
type EmailNotifier struct {
	config    SMTPConfig
	client    *mail.Client
	templates map[NotificationTemplate]EmailTemplate
	logger    Logger
}

var _ Notifier = (*EmailNotifier)(nil)

// EmailNotifierOption configures an EmailNotifier
type EmailNotifierOption func(*EmailNotifier)

// WithEmailTemplates replaces or adds templates.
func WithEmailTemplates(templates map[NotificationTemplate]EmailTemplate) EmailNotifierOption {
	return func(n *EmailNotifier) {
		for name, tpl := range templates {
			n.templates[name] = tpl
		}
	}
}

func WithEmailLogger(logger Logger) EmailNotifierOption {
	return func(n *EmailNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewEmailNotifier creates the SMTP client. No connection is made until
// the first Send.
func NewEmailNotifier(config SMTPConfig, opts ...EmailNotifierOption) (*EmailNotifier, error) {
	if config.Host == "" {
		return nil, NewConfigurationError("smtp host is not configured")
	}
	if config.From == "" {
		return nil, NewConfigurationError("smtp sender address is not configured")
	}

	mailOpts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(notificationTimeout),
	}

	if config.Username != "" && config.Password != "" {
		mailOpts = append(mailOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.TLS {
		mailOpts = append(mailOpts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		mailOpts = append(mailOpts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, mailOpts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create mail client").
			WithTextCode(TextCodeConfiguration)
	}

	notifier := &EmailNotifier{
		config:    config,
		client:    client,
		templates: DefaultEmailTemplates(),
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(notifier)
		}
	}

	return notifier, nil
}

// Render executes the template registered for notification.
func (n *EmailNotifier) Render(notification Notification) (*RenderedEmail, error) {
	tpl, ok := n.templates[notification.Template]
	if !ok {
		return nil, goerrors.New("unknown notification template", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"template": notification.Template})
	}

	out := &RenderedEmail{Subject: tpl.Subject}

	if tpl.Text != "" {
		t, err := template.New(string(notification.Template) + ".txt").Parse(tpl.Text)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse text template")
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, notification.Params); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute text template")
		}
		out.Text = buf.String()
	}

	if tpl.HTML != "" {
		t, err := htmltemplate.New(string(notification.Template) + ".html").Parse(tpl.HTML)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse html template")
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, notification.Params); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute html template")
		}
		out.HTML = buf.String()
	}

	return out, nil
}

func (n *EmailNotifier) Send(ctx context.Context, notification Notification) error {
	if notification.Recipient == "" {
		return goerrors.New("email notification requires a recipient", goerrors.CategoryBadInput)
	}

	rendered, err := n.Render(notification)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sender address")
	}
	if err := msg.To(notification.Recipient); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient address")
	}
	msg.Subject(rendered.Subject)

	switch {
	case rendered.Text != "" && rendered.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, rendered.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, rendered.HTML)
	case rendered.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, rendered.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, rendered.Text)
	}

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send email").
			WithMetadata(map[string]any{
				"template":  notification.Template,
				"recipient": notification.Recipient,
			})
	}

	n.logger.Debug("email %s sent to %s via %s:%d",
		notification.Template, notification.Recipient, n.config.Host, n.config.Port)
	return nil
}
