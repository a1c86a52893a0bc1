package crm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/cache"
	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/mail"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/security/password"
	"github.com/dropDatabas3/hellomail/internal/security/secretbox"
	"github.com/dropDatabas3/hellomail/internal/store"
	"github.com/dropDatabas3/hellomail/internal/store/adapters/memory"
)

// parámetros livianos para no pagar 64MiB por hash en tests
var testHashing = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

type fakeExchanger struct {
	refresh string
	address string
	err     error
}

func (f *fakeExchanger) AuthorizationURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (google.Credential, string, error) {
	if f.err != nil {
		return google.Credential{}, "", f.err
	}
	return google.Credential{RefreshToken: f.refresh, Address: f.address}, f.address, nil
}

type sentLog struct {
	mu sync.Mutex
	to []string
}

func (s *sentLog) Submit(ctx context.Context, cred google.Credential, msg mail.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, msg.To)
	return "m-" + msg.To, nil
}

type env struct {
	st         *store.Store
	box        *secretbox.Box
	issuer     *jwtx.Issuer
	oauth      *fakeExchanger
	sent       *sentLog
	accounts   *Accounts
	gmail      *Gmail
	lists      *Lists
	recipients *Recipients
	emails     *Emails
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.New(memory.NewConnection())
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	issuer, err := jwtx.NewIssuer("hellomail-test", strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)

	e := &env{
		st:     st,
		box:    box,
		issuer: issuer,
		oauth:  &fakeExchanger{refresh: "rt-1", address: "ana@gmail.com"},
		sent:   &sentLog{},
	}
	e.accounts = NewAccounts(AccountsDeps{Users: st.Users(), Issuer: issuer, Hashing: testHashing})
	e.gmail = NewGmail(GmailDeps{Users: st.Users(), OAuth: e.oauth, Box: box, States: cache.NewMemory("test")})
	e.lists = NewLists(st.Lists(), st.Recipients())
	e.recipients = NewRecipients(e.lists, st.Recipients())
	e.emails = NewEmails(EmailsDeps{
		Emails:     st.Emails(),
		Activities: st.Activities(),
		Lists:      e.lists,
		Dispatcher: dispatch.New(st, e.sent, box),
	})
	return e
}

func (e *env) user(t *testing.T, name string) *repository.User {
	t.Helper()
	u, err := e.accounts.Register(context.Background(), RegisterInput{Username: name, Password: "correct-horse"})
	require.NoError(t, err)
	return u
}

func (e *env) linked(t *testing.T, name string) *repository.User {
	t.Helper()
	u := e.user(t, name)
	sealed, err := e.box.Seal("rt-" + name)
	require.NoError(t, err)
	require.NoError(t, e.st.Users().SetGmailCredential(context.Background(), u.ID, sealed, name+"@gmail.com"))
	return u
}

// ─── Accounts ───

func TestAccounts_RegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.accounts.Register(ctx, RegisterInput{Username: " ana ", Password: "correct-horse", Email: "Ana <ana@x.com>"})
	require.NoError(t, err)
	require.Equal(t, "ana", u.Username)
	require.Equal(t, "ana@x.com", u.Email)
	require.NotEqual(t, "correct-horse", u.PasswordHash)

	got, err := e.accounts.Login(ctx, "ANA", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = e.accounts.Login(ctx, "ana", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.accounts.Login(ctx, "nobody", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccounts_RegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.accounts.Register(ctx, RegisterInput{Username: "ana", Password: "short"})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "too_short")

	_, err = e.accounts.Register(ctx, RegisterInput{Password: "correct-horse"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.accounts.Register(ctx, RegisterInput{Username: "ana", Password: "correct-horse", Email: "not-an-address"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAccounts_DuplicateUsername(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ana")

	_, err := e.accounts.Register(context.Background(), RegisterInput{Username: "Ana", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.True(t, repository.IsConflict(err))
}

func TestAccounts_Session(t *testing.T) {
	e := newEnv(t)
	u := e.linked(t, "ana")
	u, err := e.accounts.Me(context.Background(), u.ID)
	require.NoError(t, err)

	tok, exp, err := e.accounts.Session(u)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	su, err := e.issuer.ParseSession(tok)
	require.NoError(t, err)
	require.Equal(t, jwtx.SessionUser{ID: u.ID, Username: "ana", MailLinked: true}, *su)
}

// ─── Gmail ───

func TestGmail_LinkFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "ana")

	raw, err := e.gmail.AuthURL(ctx, u.ID)
	require.NoError(t, err)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	linked, err := e.gmail.Complete(ctx, state, "code-1")
	require.NoError(t, err)
	require.True(t, linked.GmailLinked)
	require.Equal(t, "ana@gmail.com", linked.GmailAddress)
	require.NotContains(t, linked.GmailCredential, "rt-1")

	plain, err := e.box.Open(linked.GmailCredential)
	require.NoError(t, err)
	require.Equal(t, "rt-1", plain)

	// el state es de un solo uso
	_, err = e.gmail.Complete(ctx, state, "code-1")
	require.ErrorIs(t, err, ErrInvalidState)

	st, err := e.gmail.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, GmailStatus{Linked: true, Address: "ana@gmail.com"}, st)

	unlinked, err := e.gmail.Unlink(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, unlinked.GmailLinked)
	require.Empty(t, unlinked.GmailCredential)
}

func TestGmail_CompleteErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "ana")

	_, err := e.gmail.Complete(ctx, "", "code")
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.gmail.Complete(ctx, "unknown", "code")
	require.ErrorIs(t, err, ErrInvalidState)

	e.oauth.err = google.ErrMissingCredential
	raw, err := e.gmail.AuthURL(ctx, u.ID)
	require.NoError(t, err)
	parsed, _ := url.Parse(raw)
	_, err = e.gmail.Complete(ctx, parsed.Query().Get("state"), "code")
	require.ErrorIs(t, err, google.ErrMissingCredential)

	got, _ := e.st.Users().GetByID(ctx, u.ID)
	require.False(t, got.GmailLinked)
}

// ─── Lists & Recipients ───

func TestLists_OwnerChecks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, bob := e.user(t, "ana"), e.user(t, "bob")

	l, err := e.lists.Create(ctx, ana.ID, " Clientes ", "")
	require.NoError(t, err)
	require.Equal(t, "Clientes", l.Name)

	_, err = e.lists.Get(ctx, bob.ID, l.ID)
	require.ErrorIs(t, err, repository.ErrForbidden)
	require.ErrorIs(t, e.lists.Delete(ctx, bob.ID, l.ID), repository.ErrForbidden)

	_, err = e.lists.Get(ctx, ana.ID, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = e.lists.Create(ctx, ana.ID, "  ", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestLists_DeleteRefusesNonEmpty(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")

	l, err := e.lists.Create(ctx, ana.ID, "L", "")
	require.NoError(t, err)
	r, err := e.recipients.Create(ctx, ana.ID, RecipientInput{Email: "a@x.com", ListID: l.ID})
	require.NoError(t, err)

	require.ErrorIs(t, e.lists.Delete(ctx, ana.ID, l.ID), ErrListNotEmpty)

	require.NoError(t, e.recipients.Delete(ctx, ana.ID, r.ID))
	require.NoError(t, e.lists.Delete(ctx, ana.ID, l.ID))
}

func TestRecipients_CreateAndFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, bob := e.user(t, "ana"), e.user(t, "bob")

	l, err := e.lists.Create(ctx, ana.ID, "L", "")
	require.NoError(t, err)

	r, err := e.recipients.Create(ctx, ana.ID, RecipientInput{Email: "Alice <alice@x.com>", Name: "Alice", ListID: l.ID})
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", r.Email)
	_, err = e.recipients.Create(ctx, ana.ID, RecipientInput{Email: "loose@x.com"})
	require.NoError(t, err)

	all, err := e.recipients.List(ctx, ana.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	members, err := e.recipients.List(ctx, ana.ID, l.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	_, err = e.recipients.Create(ctx, bob.ID, RecipientInput{Email: "b@x.com", ListID: l.ID})
	require.ErrorIs(t, err, repository.ErrForbidden)

	_, err = e.recipients.Create(ctx, ana.ID, RecipientInput{Email: "nope"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.recipients.Get(ctx, bob.ID, r.ID)
	require.ErrorIs(t, err, repository.ErrForbidden)
}

func TestRecipients_CreateMany(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")
	l, _ := e.lists.Create(ctx, ana.ID, "L", "")

	out, err := e.recipients.CreateMany(ctx, ana.ID, []RecipientInput{
		{Email: "a@x.com", ListID: l.ID},
		{Email: "b@x.com", ListID: l.ID},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	_, err = e.recipients.CreateMany(ctx, ana.ID, []RecipientInput{{Email: "c@x.com"}, {Email: "bad"}})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "row 1")

	// nada se insertó del lote inválido
	all, _ := e.recipients.List(ctx, ana.ID, "")
	require.Len(t, all, 2)

	_, err = e.recipients.CreateMany(ctx, ana.ID, nil)
	require.ErrorIs(t, err, ErrValidation)
}

// ─── Emails ───

func TestEmails_CreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, bob := e.user(t, "ana"), e.user(t, "bob")
	bobList, _ := e.lists.Create(ctx, bob.ID, "B", "")

	cases := []struct {
		name string
		in   EmailInput
		want error
	}{
		{"missing subject", EmailInput{Body: "b", RecipientEmail: "a@x.com"}, ErrValidation},
		{"missing body", EmailInput{Subject: "s", RecipientEmail: "a@x.com"}, ErrValidation},
		{"no recipients", EmailInput{Subject: "s", Body: "b"}, ErrValidation},
		{"both recipients", EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@x.com", ListID: "l"}, ErrValidation},
		{"bad address", EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@"}, ErrValidation},
		{"bad schedule", EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@x.com", ScheduledFor: "tomorrow"}, ErrValidation},
		{"send and schedule", EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@x.com", ScheduledFor: "2030-01-01T00:00", SendNow: true}, ErrValidation},
		{"foreign list", EmailInput{Subject: "s", Body: "b", ListID: bobList.ID}, repository.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.emails.Create(ctx, ana.ID, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEmails_CreateDraftAndScheduled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")

	d, res, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@x.com"})
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, repository.EmailDraft, d.Status)

	s, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "a@x.com", ScheduledFor: "2030-01-01T09:00"})
	require.NoError(t, err)
	require.Equal(t, repository.EmailScheduled, s.Status)
	require.Equal(t, "2030-01-01T09:00", s.ScheduledFor)

	scheduled, err := e.emails.List(ctx, ana.ID, repository.EmailScheduled)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)

	_, err = e.emails.List(ctx, ana.ID, "queued")
	require.ErrorIs(t, err, ErrValidation)
}

func TestEmails_SendNowToList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.linked(t, "ana")

	l, _ := e.lists.Create(ctx, ana.ID, "L", "")
	_, err := e.recipients.CreateMany(ctx, ana.ID, []RecipientInput{
		{Email: "a@x.com", ListID: l.ID},
		{Email: "b@x.com", ListID: l.ID},
	})
	require.NoError(t, err)

	em, res, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "Promo", Body: "<p>hi</p>", ListID: l.ID, SendNow: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 2, res.Sent)
	require.Equal(t, 0, res.Failed)
	require.Equal(t, repository.EmailSent, em.Status)
	require.NotNil(t, em.SentAt)
	require.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, e.sent.to)

	acts, err := e.emails.Activity(ctx, ana.ID, em.ID)
	require.NoError(t, err)
	require.Len(t, acts, 2)
}

func TestEmails_SendAndResend(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, bob := e.linked(t, "ana"), e.user(t, "bob")

	d, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "z@x.com"})
	require.NoError(t, err)

	_, _, err = e.emails.Send(ctx, bob.ID, d.ID)
	require.ErrorIs(t, err, repository.ErrForbidden)

	sent, res, err := e.emails.Send(ctx, ana.ID, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	require.Equal(t, repository.EmailSent, sent.Status)

	_, _, err = e.emails.Send(ctx, ana.ID, d.ID)
	require.ErrorIs(t, err, dispatch.ErrAlreadyClaimed)
	require.Len(t, e.sent.to, 1)

	_, err = e.emails.Schedule(ctx, ana.ID, d.ID, "2030-01-01T00:00:00Z")
	require.ErrorIs(t, err, ErrEmailLocked)
}

func TestEmails_NotLinkedFailsThenReschedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")

	d, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "z@x.com"})
	require.NoError(t, err)

	_, _, err = e.emails.Send(ctx, ana.ID, d.ID)
	require.ErrorIs(t, err, dispatch.ErrAccountNotLinked)

	failed, err := e.emails.Get(ctx, ana.ID, d.ID)
	require.NoError(t, err)
	require.Equal(t, repository.EmailFailed, failed.Status)

	again, err := e.emails.Schedule(ctx, ana.ID, d.ID, "2030-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, repository.EmailScheduled, again.Status)
	require.Empty(t, again.LastError)

	_, err = e.emails.Schedule(ctx, ana.ID, d.ID, "soon")
	require.ErrorIs(t, err, ErrValidation)
}

func TestEmails_Delete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, bob := e.user(t, "ana"), e.user(t, "bob")

	d, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "z@x.com"})
	require.NoError(t, err)

	require.ErrorIs(t, e.emails.Delete(ctx, bob.ID, d.ID), repository.ErrForbidden)
	require.NoError(t, e.emails.Delete(ctx, ana.ID, d.ID))

	_, err = e.emails.Get(ctx, ana.ID, d.ID)
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

// claimAfterRead simula un tick del scheduler que reclama el email justo
// después de que el servicio lo leyó.
type claimAfterRead struct {
	repository.EmailRepository
}

func (c claimAfterRead) GetByID(ctx context.Context, id string) (*repository.Email, error) {
	e, err := c.EmailRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_, _ = c.EmailRepository.Claim(ctx, id, repository.ClaimableStatuses)
	return e, nil
}

func TestEmails_ScheduleLosesToConcurrentClaim(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")

	d, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "z@x.com", ScheduledFor: "2026-01-01T00:00"})
	require.NoError(t, err)

	svc := NewEmails(EmailsDeps{Emails: claimAfterRead{e.st.Emails()}, Lists: e.lists})
	_, err = svc.Schedule(ctx, ana.ID, d.ID, "2030-01-01T00:00:00Z")
	require.ErrorIs(t, err, ErrEmailLocked)

	got, err := e.st.Emails().GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, repository.EmailSending, got.Status)
	require.Equal(t, "2026-01-01T00:00", got.ScheduledFor)
}

func TestEmails_StaleSendingCanBeRecovered(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.user(t, "ana")

	a, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "z@x.com"})
	require.NoError(t, err)
	b, _, err := e.emails.Create(ctx, ana.ID, EmailInput{Subject: "s", Body: "b", RecipientEmail: "y@x.com"})
	require.NoError(t, err)
	for _, id := range []string{a.ID, b.ID} {
		_, err := e.st.Emails().Claim(ctx, id, repository.ClaimableStatuses)
		require.NoError(t, err)
	}

	// recién reclamado: está en vuelo
	_, err = e.emails.Schedule(ctx, ana.ID, a.ID, "2030-01-01T00:00:00Z")
	require.ErrorIs(t, err, ErrEmailLocked)
	require.ErrorIs(t, e.emails.Delete(ctx, ana.ID, b.ID), ErrEmailLocked)

	later := NewEmails(EmailsDeps{
		Emails:     e.st.Emails(),
		Lists:      e.lists,
		StaleAfter: 10 * time.Minute,
		Now:        func() time.Time { return time.Now().UTC().Add(time.Hour) },
	})
	got, err := later.Schedule(ctx, ana.ID, a.ID, "2030-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, repository.EmailScheduled, got.Status)
	require.NoError(t, later.Delete(ctx, ana.ID, b.ID))
}
