package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/robertoporfiro/gravitee-management-rest-api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "management.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	settings, err := config.Load("", config.WithEnvironment(map[string]string{
		"MANAGEMENT_SIGNING_KEY": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "secret", settings.GetSigningKey())
	assert.Equal(t, management.DefaultTokenIssuer, settings.GetIssuer())
	assert.True(t, settings.GetRegistrationEnabled())
	assert.Equal(t, 24*time.Hour, settings.GetTokenTTL(management.ActionRegistration))
	assert.Equal(t, 72*time.Hour, settings.GetTokenTTL(management.ActionGroupInvitation))
	assert.Equal(t, time.Hour, settings.GetTokenTTL(management.ActionPasswordReset))
	assert.Equal(t, management.DefaultPasswordResetPath, settings.GetActionPath(management.ActionPasswordReset))
	assert.Equal(t, management.DefaultRegistrationPath, settings.GetActionPath(management.ActionGroupInvitation))
	assert.Equal(t, map[management.RoleScope]string{
		management.RoleScopeManagement: "USER",
		management.RoleScopePortal:     "USER",
	}, settings.GetDefaultRoles())
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, `
signing_key: from-file
portal_url: https://portal.example.com/
registration_enabled: false
tokens:
  registration_ttl: 2h
  password_reset_path: /reset/{token}
default_roles:
  management: ADMIN
  portal: ""
database:
  driver: postgres
  dsn: postgres://localhost/management
smtp:
  host: smtp.example.com
  from: noreply@example.com
`)

	settings, err := config.Load(path, config.WithEnvironment(map[string]string{
		"MANAGEMENT_SIGNING_KEY":             "from-env",
		"MANAGEMENT_TOKEN_PASSWORD_RESET_TTL": "30m",
		"MANAGEMENT_SMTP_PORT":               "2525",
		"MANAGEMENT_USE_HASHID":              "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env", settings.GetSigningKey())
	assert.Equal(t, "https://portal.example.com/", settings.GetPortalURL())
	assert.False(t, settings.GetRegistrationEnabled())
	assert.True(t, settings.GetUseHashid())
	assert.Equal(t, 2*time.Hour, settings.GetTokenTTL(management.ActionRegistration))
	assert.Equal(t, 30*time.Minute, settings.GetTokenTTL(management.ActionPasswordReset))
	assert.Equal(t, "/reset/{token}", settings.GetActionPath(management.ActionPasswordReset))
	assert.Equal(t, map[management.RoleScope]string{
		management.RoleScopeManagement: "ADMIN",
	}, settings.GetDefaultRoles())
	assert.Equal(t, "postgres", settings.Database.Driver)

	smtp := settings.SMTPConfig()
	assert.Equal(t, "smtp.example.com", smtp.Host)
	assert.Equal(t, 2525, smtp.Port)
	assert.Equal(t, "noreply@example.com", smtp.From)
}

func TestLoadInvalid(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		_, err := config.Load("", config.WithEnvironment(map[string]string{}))
		require.Error(t, err)
		assert.True(t, management.IsConfigurationError(err))
	})

	t.Run("relative portal url", func(t *testing.T) {
		_, err := config.Load("", config.WithEnvironment(map[string]string{
			"MANAGEMENT_SIGNING_KEY": "secret",
			"MANAGEMENT_PORTAL_URL":  "portal",
		}))
		assert.True(t, management.IsConfigurationError(err))
	})

	t.Run("smtp enabled without host", func(t *testing.T) {
		_, err := config.Load("", config.WithEnvironment(map[string]string{
			"MANAGEMENT_SIGNING_KEY":  "secret",
			"MANAGEMENT_SMTP_ENABLED": "true",
		}))
		assert.True(t, management.IsConfigurationError(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, management.IsConfigurationError(err))
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "tokens: [1, 2"))
		assert.True(t, management.IsConfigurationError(err))
	})
}
