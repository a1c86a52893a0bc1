package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// setRequired define los secretos mínimos por env.
func setRequired(t *testing.T) {
	t.Setenv("AUTH_SESSION_SECRET", strings.Repeat("s", 32))
	t.Setenv("SECRETBOX_MASTER_KEY", validKey())
	t.Setenv("GOOGLE_CLIENT_ID", "cid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "csecret")
	t.Setenv("PUBLIC_URL", "http://localhost:8080/")
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, "memory", c.Cache.Kind)
	require.Equal(t, "hm_session", c.Auth.Session.CookieName)
	require.Equal(t, 10*time.Minute, c.Google.StateTTL)
	require.Equal(t, 30*time.Second, c.Google.HTTPTimeout)
	require.Equal(t, "http://localhost:8080/api/gmail/callback", c.Google.RedirectURL)
	require.Equal(t, "gmail", c.Mail.Transport)
	require.Equal(t, dispatch.PolicyPipeline, c.StatusPolicy())
	require.Equal(t, 15*time.Minute, c.Dispatch.StaleAfter)
	require.True(t, c.Scheduler.Enabled)
	require.Equal(t, time.Minute, c.Scheduler.Interval)
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	setRequired(t)
	p := writeYAML(t, `
server:
  addr: ":9090"
  cors_allowed_origins: ["http://app.local"]
storage:
  driver: mongo
  mongo:
    uri: mongodb://db:27017
dispatch:
  status_policy: strict
scheduler:
  enabled: false
  interval: 30s
google:
  redirect_url: https://api.example.com/api/gmail/callback
`)
	t.Setenv("SERVER_ADDR", ":7070")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":7070", c.Server.Addr)
	require.Equal(t, []string{"http://app.local"}, c.Server.CORSAllowedOrigins)
	require.Equal(t, "mongo", c.Storage.Driver)
	require.Equal(t, "hellomail", c.Storage.Mongo.Database)
	require.Equal(t, dispatch.PolicyStrict, c.StatusPolicy())
	require.False(t, c.Scheduler.Enabled)
	require.Equal(t, 30*time.Second, c.Scheduler.Interval)
	// redirect explícito gana sobre public_url
	require.Equal(t, "https://api.example.com/api/gmail/callback", c.Google.RedirectURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Default()
	c.Storage.Driver = "postgres"
	c.Mail.Transport = "pigeon"
	c.Dispatch.StatusPolicy = "lenient"
	c.Security.SecretBoxMasterKey = "not-base64"

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"storage.dsn",
		"auth.session_secret",
		"secretbox_master_key",
		"google.client_id",
		"google.redirect_url",
		"mail.transport",
		"dispatch.status_policy",
	} {
		require.Contains(t, msg, want)
	}
}

func TestValidate_SMTPNeedsHost(t *testing.T) {
	setRequired(t)
	t.Setenv("MAIL_TRANSPORT", "smtp")

	_, err := Load("")
	require.ErrorContains(t, err, "mail.smtp.host")

	t.Setenv("SMTP_HOST", "smtp.local")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "auto", c.Mail.SMTP.TLS)
}

func TestSummary_MasksSecrets(t *testing.T) {
	setRequired(t)
	c, err := Load("")
	require.NoError(t, err)

	s := c.Summary()
	require.NotContains(t, s, "csecret")
	require.NotContains(t, s, strings.Repeat("s", 32))
	require.Contains(t, s, "***masked***")
}

func TestLoadDotEnv(t *testing.T) {
	ok, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	require.False(t, ok)

	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("HELLOMAIL_TEST_DOTENV=yes\n"), 0o600))
	t.Setenv("HELLOMAIL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("HELLOMAIL_TEST_DOTENV"))

	ok, err = LoadDotEnv(p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "yes", os.Getenv("HELLOMAIL_TEST_DOTENV"))
}
