package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGoogle struct {
	refreshToken  string
	profileStatus int
	rejectRefresh bool
	refreshCalls  int32
}

func (f *fakeGoogle) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		if r.Form.Get("grant_type") == "refresh_token" {
			atomic.AddInt32(&f.refreshCalls, 1)
		}
		if r.Form.Get("grant_type") == "refresh_token" && f.rejectRefresh {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp := map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if r.Form.Get("grant_type") == "authorization_code" && f.refreshToken != "" {
			resp["refresh_token"] = f.refreshToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		if f.profileStatus != 0 {
			w.WriteHeader(f.profileStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emailAddress":"ana@gmail.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newManager(t *testing.T, srv *httptest.Server) *CredentialManager {
	t.Helper()
	m, err := NewCredentialManager(Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURL:  "http://localhost:8080/api/gmail/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		GmailBaseURL: srv.URL + "/",
	})
	require.NoError(t, err)
	return m
}

func TestAuthorizationURL(t *testing.T) {
	srv := (&fakeGoogle{}).server(t)
	m := newManager(t, srv)

	u, err := url.Parse(m.AuthorizationURL("st-1"))
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "st-1", q.Get("state"))
	require.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/gmail.send")
	require.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/gmail.compose")
	require.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestExchangeCode_OK(t *testing.T) {
	srv := (&fakeGoogle{refreshToken: "rt-1"}).server(t)
	m := newManager(t, srv)

	cred, addr, err := m.ExchangeCode(context.Background(), "code")
	require.NoError(t, err)
	require.Equal(t, "rt-1", cred.RefreshToken)
	require.Equal(t, "ana@gmail.com", addr)
	require.Equal(t, addr, cred.Address)
}

func TestExchangeCode_NoRefreshToken(t *testing.T) {
	srv := (&fakeGoogle{}).server(t)
	m := newManager(t, srv)

	_, _, err := m.ExchangeCode(context.Background(), "code")
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestExchangeCode_ProfileFails(t *testing.T) {
	srv := (&fakeGoogle{refreshToken: "rt-1", profileStatus: http.StatusForbidden}).server(t)
	m := newManager(t, srv)

	_, _, err := m.ExchangeCode(context.Background(), "code")
	require.ErrorIs(t, err, ErrProfileLookupFailed)
}

func TestRefresh(t *testing.T) {
	f := &fakeGoogle{}
	srv := f.server(t)
	m := newManager(t, srv)

	at, err := m.Refresh(context.Background(), Credential{RefreshToken: "rt-1"})
	require.NoError(t, err)
	require.Equal(t, "at-123", at)

	f.rejectRefresh = true
	_, err = m.Refresh(context.Background(), Credential{RefreshToken: "rt-1"})
	require.ErrorIs(t, err, ErrRefreshFailed)
}

func TestAuthorize_RefreshesOnceForManyCalls(t *testing.T) {
	f := &fakeGoogle{}
	m := newManager(t, f.server(t))
	ctx := context.Background()

	cred, err := m.Authorize(ctx, Credential{RefreshToken: "rt-1", Address: "ana@gmail.com"})
	require.NoError(t, err)
	require.True(t, cred.Authorized())
	require.Equal(t, "ana@gmail.com", cred.Address)

	for i := 0; i < 3; i++ {
		svc, err := m.GmailService(ctx, cred)
		require.NoError(t, err)
		_, err = svc.Users.GetProfile("me").Context(ctx).Do()
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&f.refreshCalls))
}

func TestAuthorize_RejectedCredential(t *testing.T) {
	f := &fakeGoogle{rejectRefresh: true}
	m := newManager(t, f.server(t))

	cred, err := m.Authorize(context.Background(), Credential{RefreshToken: "revoked"})
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.Contains(t, err.Error(), "invalid_grant")
	require.False(t, cred.Authorized())
}

func TestNewCredentialManager_RequiresSecrets(t *testing.T) {
	_, err := NewCredentialManager(Config{ClientID: "x", RedirectURL: "http://x"})
	require.Error(t, err)
}
