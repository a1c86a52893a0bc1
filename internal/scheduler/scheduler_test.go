package scheduler

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/mail"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/security/secretbox"
	"github.com/dropDatabas3/hellomail/internal/store"
	"github.com/dropDatabas3/hellomail/internal/store/adapters/memory"
)

type recordingSender struct {
	mu  sync.Mutex
	ids []string
	err map[string]error
}

func (r *recordingSender) Send(ctx context.Context, id string) (*dispatch.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	if err := r.err[id]; err != nil {
		return nil, err
	}
	return &dispatch.Result{EmailID: id}, nil
}

func (r *recordingSender) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func scheduled(t *testing.T, st *store.Store, at string) *repository.Email {
	t.Helper()
	e, err := st.Emails().Create(context.Background(), repository.CreateEmailInput{
		OwnerID:        "o1",
		Subject:        "s",
		RecipientEmail: "bob@x.com",
		Status:         repository.EmailScheduled,
		ScheduledFor:   at,
	})
	require.NoError(t, err)
	return e
}

func TestTick_DueBoundary(t *testing.T) {
	st := store.New(memory.NewConnection())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	past := scheduled(t, st, now.Add(-time.Second).Format(time.RFC3339))
	exact := scheduled(t, st, now.Format(time.RFC3339))
	_ = scheduled(t, st, now.Add(time.Second).Format(time.RFC3339))

	sender := &recordingSender{}
	rep, err := New(st.Emails(), sender, Config{}).Tick(context.Background(), now)
	require.NoError(t, err)

	require.Equal(t, 3, rep.Scanned)
	require.Equal(t, 2, rep.Due)
	require.Equal(t, 2, rep.Dispatched)
	require.ElementsMatch(t, []string{past.ID, exact.ID}, sender.calls())
}

func TestTick_UnparseableIsSkippedNotErrored(t *testing.T) {
	st := store.New(memory.NewConnection())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = scheduled(t, st, "next tuesday")
	_ = scheduled(t, st, "")
	ok := scheduled(t, st, "2026-03-01T11:00")

	sender := &recordingSender{}
	rep, err := New(st.Emails(), sender, Config{}).Tick(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Scanned)
	require.Equal(t, 1, rep.Due)
	require.Equal(t, []string{ok.ID}, sender.calls())
}

func TestTick_OnlyScheduledStatus(t *testing.T) {
	st := store.New(memory.NewConnection())
	_, err := st.Emails().Create(context.Background(), repository.CreateEmailInput{
		OwnerID:      "o1",
		Status:       repository.EmailDraft,
		ScheduledFor: "2020-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	sender := &recordingSender{}
	rep, err := New(st.Emails(), sender, Config{}).Tick(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, rep.Scanned)
	require.Empty(t, sender.calls())
}

func TestTick_ErrorsDoNotStopOthers(t *testing.T) {
	st := store.New(memory.NewConnection())
	now := time.Now().UTC()
	a := scheduled(t, st, now.Add(-time.Minute).Format(time.RFC3339))
	b := scheduled(t, st, now.Add(-time.Minute).Format(time.RFC3339))
	c := scheduled(t, st, now.Add(-time.Minute).Format(time.RFC3339))

	sender := &recordingSender{err: map[string]error{
		a.ID: dispatch.ErrAccountNotLinked,
		b.ID: dispatch.ErrAlreadyClaimed,
	}}
	rep, err := New(st.Emails(), sender, Config{}).Tick(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Due)
	require.Equal(t, 1, rep.Failed)
	require.Equal(t, 1, rep.Skipped)
	require.Equal(t, 1, rep.Dispatched)
	require.Contains(t, sender.calls(), c.ID)
}

type failingEmails struct{ repository.EmailRepository }

func (failingEmails) ListByStatus(ctx context.Context, s repository.EmailStatus) ([]repository.Email, error) {
	return nil, errors.New("store down")
}

func TestTick_ScanError(t *testing.T) {
	_, err := New(failingEmails{}, &recordingSender{}, Config{}).Tick(context.Background(), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "store down")
}

func TestTick_EndToEnd_PastScheduleIsSent(t *testing.T) {
	ctx := context.Background()
	st := store.New(memory.NewConnection())

	key := make([]byte, 32)
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	u, err := st.Users().Create(ctx, repository.CreateUserInput{Username: "ana"})
	require.NoError(t, err)
	sealed, _ := box.Seal("rt")
	require.NoError(t, st.Users().SetGmailCredential(ctx, u.ID, sealed, "ana@gmail.com"))

	now := time.Now().UTC()
	e, err := st.Emails().Create(ctx, repository.CreateEmailInput{
		OwnerID:        u.ID,
		Subject:        "Promo",
		Body:           "<p>x</p>",
		RecipientEmail: "bob@x.com",
		Status:         repository.EmailScheduled,
		ScheduledFor:   now.Add(-60 * time.Second).Format(time.RFC3339),
	})
	require.NoError(t, err)

	var sent int
	tr := mail.TransportFunc(func(ctx context.Context, cred google.Credential, msg mail.Message) (string, error) {
		sent++
		return "m1", nil
	})
	d := dispatch.New(st, tr, box)

	rep, err := New(st.Emails(), d, Config{}).Tick(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Dispatched)
	require.Equal(t, 1, sent)

	got, err := st.Emails().GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, repository.EmailSent, got.Status)

	// un segundo tick ya no lo ve
	rep, err = New(st.Emails(), d, Config{}).Tick(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, rep.Due)
}

func TestRun_RunOnStartAndStop(t *testing.T) {
	st := store.New(memory.NewConnection())
	e := scheduled(t, st, "2020-01-01T00:00:00Z")

	sender := &recordingSender{}
	s := New(st.Emails(), sender, Config{Interval: time.Hour, RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sender.calls()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	require.Equal(t, []string{e.ID}, sender.calls())
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(nil, nil, Config{})
	require.Equal(t, DefaultInterval, s.cfg.Interval)
}
