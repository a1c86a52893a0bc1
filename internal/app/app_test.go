package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/config"
	"github.com/dropDatabas3/hellomail/internal/mail"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/security/password"
	_ "github.com/dropDatabas3/hellomail/internal/store/adapters/memory"
)

type stubOAuth struct{}

func (stubOAuth) AuthorizationURL(state string) string { return "https://auth.example/?state=" + state }

func (stubOAuth) ExchangeCode(ctx context.Context, code string) (google.Credential, string, error) {
	return google.Credential{RefreshToken: "rt", Address: "me@gmail.com"}, "me@gmail.com", nil
}

func testConfig() *config.Config {
	c := config.Default()
	c.Auth.SessionSecret = strings.Repeat("s", 32)
	c.Security.SecretBoxMasterKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
	c.Google.ClientID = "cid"
	c.Google.ClientSecret = "csecret"
	c.Google.RedirectURL = "http://localhost/api/gmail/callback"
	c.Scheduler.Interval = time.Hour
	return c
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	tr := mail.TransportFunc(func(ctx context.Context, cred google.Credential, msg mail.Message) (string, error) {
		return "m-" + msg.To, nil
	})
	a, err := New(context.Background(), cfg,
		WithCodeExchanger(stubOAuth{}),
		WithTransport(tr),
		WithHashing(password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_WiresEverything(t *testing.T) {
	a := newTestApp(t, testConfig())
	require.NotNil(t, a.Store)
	require.NotNil(t, a.Cache)
	require.NotNil(t, a.Dispatcher)
	require.NotNil(t, a.Scheduler)
	require.NotNil(t, a.Handler)
	require.Equal(t, "memory", a.Store.Name())
}

func TestNew_UnknownAdapter(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "cassandra"
	_, err := New(context.Background(), cfg, WithCodeExchanger(stubOAuth{}))
	require.ErrorContains(t, err, "not registered")
}

func TestNew_BuildsSMTPTransport(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.Transport = "smtp"
	cfg.Mail.SMTP.Host = "localhost"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	// segundo Close no falla
	require.NoError(t, a.Close())
}

func TestServe_RegisterThenShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Enabled = true
	a := newTestApp(t, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/auth/register", "application/json",
		bytes.NewBufferString(`{"username":"ana","password":"correct-horse"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(base + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
