package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MANAGEMENT_"

type TokenSettings struct {
	RegistrationTTL    time.Duration `yaml:"registration_ttl" env:"REGISTRATION_TTL"`
	GroupInvitationTTL time.Duration `yaml:"group_invitation_ttl" env:"GROUP_INVITATION_TTL"`
	PasswordResetTTL   time.Duration `yaml:"password_reset_ttl" env:"PASSWORD_RESET_TTL"`
	RegistrationPath   string        `yaml:"registration_path" env:"REGISTRATION_PATH"`
	PasswordResetPath  string        `yaml:"password_reset_path" env:"PASSWORD_RESET_PATH"`
}

type RoleSettings struct {
	Management string `yaml:"management" env:"MANAGEMENT"`
	Portal     string `yaml:"portal" env:"PORTAL"`
}

type DatabaseSettings struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

type SMTPSettings struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	From     string `yaml:"from" env:"FROM"`
	TLS      bool   `yaml:"tls" env:"TLS"`
}

// Settings is the service configuration. It implements management.Config.
type Settings struct {
	SigningKey          string           `yaml:"signing_key" env:"SIGNING_KEY"`
	Issuer              string           `yaml:"issuer" env:"ISSUER"`
	PortalURL           string           `yaml:"portal_url" env:"PORTAL_URL"`
	RegistrationEnabled bool             `yaml:"registration_enabled" env:"REGISTRATION_ENABLED"`
	AnonymizeOnDelete   bool             `yaml:"anonymize_on_delete" env:"ANONYMIZE_ON_DELETE"`
	UseHashid           bool             `yaml:"use_hashid" env:"USE_HASHID"`
	Tokens              TokenSettings    `yaml:"tokens" envPrefix:"TOKEN_"`
	DefaultRoles        RoleSettings     `yaml:"default_roles" envPrefix:"DEFAULT_ROLE_"`
	Database            DatabaseSettings `yaml:"database" envPrefix:"DB_"`
	SMTP                SMTPSettings     `yaml:"smtp" envPrefix:"SMTP_"`
}

var _ management.Config = (*Settings)(nil)

// Defaults returns settings usable for local development, apart from the
// signing key which must always be provided.
func Defaults() *Settings {
	return &Settings{
		Issuer:              management.DefaultTokenIssuer,
		PortalURL:           "http://localhost:8085",
		RegistrationEnabled: true,
		Tokens: TokenSettings{
			RegistrationTTL:    management.DefaultRegistrationTTL,
			GroupInvitationTTL: management.DefaultGroupInvitationTTL,
			PasswordResetTTL:   management.DefaultPasswordResetTTL,
			RegistrationPath:   management.DefaultRegistrationPath,
			PasswordResetPath:  management.DefaultPasswordResetPath,
		},
		DefaultRoles: RoleSettings{
			Management: "USER",
			Portal:     "USER",
		},
		Database: DatabaseSettings{
			Driver: "sqlite",
			DSN:    "file:management.db?cache=shared",
		},
		SMTP: SMTPSettings{
			Port: 587,
			TLS:  true,
		},
	}
}

type loadOptions struct {
	environ map[string]string
}

type LoadOption func(*loadOptions)

// WithEnvironment replaces the process environment, mostly for tests.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load layers defaults, the optional YAML file at path and the environment.
func Load(path string, opts ...LoadOption) (*Settings, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	settings := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read configuration file").
				WithTextCode(management.TextCodeConfiguration).
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(raw, settings); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse configuration file").
				WithTextCode(management.TextCodeConfiguration).
				WithMetadata(map[string]any{"path": path})
		}
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if o.environ != nil {
		envOpts.Environment = o.environ
	}
	if err := env.ParseWithOptions(settings, envOpts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment").
			WithTextCode(management.TextCodeConfiguration)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate reports the first configuration problem found.
func (s *Settings) Validate() error {
	var problems []error

	if strings.TrimSpace(s.SigningKey) == "" {
		problems = append(problems, errors.New("signing key is required"))
	}

	if u, err := url.Parse(s.PortalURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, errors.New("portal url must be an absolute url"))
	}

	for action, ttl := range map[string]time.Duration{
		"registration":     s.Tokens.RegistrationTTL,
		"group invitation": s.Tokens.GroupInvitationTTL,
		"password reset":   s.Tokens.PasswordResetTTL,
	} {
		if ttl < 0 {
			problems = append(problems, errors.New(action+" token ttl must not be negative"))
		}
	}

	if s.SMTP.Enabled && (s.SMTP.Host == "" || s.SMTP.From == "") {
		problems = append(problems, errors.New("smtp host and sender are required when smtp is enabled"))
	}

	if len(problems) == 0 {
		return nil
	}

	return management.NewConfigurationError("invalid configuration").
		WithMetadata(map[string]any{"problems": errors.Join(problems...).Error()})
}

func (s *Settings) GetSigningKey() string { return s.SigningKey }

func (s *Settings) GetIssuer() string { return s.Issuer }

// GetTokenTTL falls back to the built in lifetime when unset.
func (s *Settings) GetTokenTTL(action management.TokenAction) time.Duration {
	var ttl time.Duration
	switch action {
	case management.ActionRegistration:
		ttl = s.Tokens.RegistrationTTL
	case management.ActionGroupInvitation:
		ttl = s.Tokens.GroupInvitationTTL
	case management.ActionPasswordReset:
		ttl = s.Tokens.PasswordResetTTL
	}
	if ttl <= 0 {
		return management.DefaultTokenTTL(action)
	}
	return ttl
}

func (s *Settings) GetPortalURL() string { return s.PortalURL }

func (s *Settings) GetActionPath(action management.TokenAction) string {
	var path string
	switch action {
	case management.ActionRegistration, management.ActionGroupInvitation:
		path = s.Tokens.RegistrationPath
	case management.ActionPasswordReset:
		path = s.Tokens.PasswordResetPath
	}
	if path == "" {
		return management.DefaultActionPath(action)
	}
	return path
}

func (s *Settings) GetRegistrationEnabled() bool { return s.RegistrationEnabled }

func (s *Settings) GetAnonymizeOnDelete() bool { return s.AnonymizeOnDelete }

func (s *Settings) GetDefaultRoles() map[management.RoleScope]string {
	roles := map[management.RoleScope]string{}
	if s.DefaultRoles.Management != "" {
		roles[management.RoleScopeManagement] = s.DefaultRoles.Management
	}
	if s.DefaultRoles.Portal != "" {
		roles[management.RoleScopePortal] = s.DefaultRoles.Portal
	}
	return roles
}

func (s *Settings) GetUseHashid() bool { return s.UseHashid }

// SMTPConfig converts the smtp section for management.NewEmailNotifier.
func (s *Settings) SMTPConfig() management.SMTPConfig {
	return management.SMTPConfig{
		Host:     s.SMTP.Host,
		Port:     s.SMTP.Port,
		Username: s.SMTP.Username,
		Password: s.SMTP.Password,
		From:     s.SMTP.From,
		TLS:      s.SMTP.TLS,
	}
}
