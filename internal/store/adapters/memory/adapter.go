// Package memory implementa un adapter en memoria. Se usa en tests y en modo dev
// (storage.driver = "memory"). Los datos se pierden al reiniciar.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return NewConnection(), nil
}

// Connection guarda todas las colecciones bajo un único mutex. Claim depende de eso.
type Connection struct {
	mu  sync.RWMutex
	now func() time.Time

	users      map[string]repository.User
	lists      map[string]repository.RecipientList
	recipients map[string]repository.Recipient
	emails     map[string]repository.Email
	activities []repository.EmailActivity
}

// NewConnection crea una conexión vacía.
func NewConnection() *Connection {
	return &Connection{
		now:        func() time.Time { return time.Now().UTC() },
		users:      make(map[string]repository.User),
		lists:      make(map[string]repository.RecipientList),
		recipients: make(map[string]repository.Recipient),
		emails:     make(map[string]repository.Email),
	}
}

func (c *Connection) Name() string                   { return "memory" }
func (c *Connection) Ping(ctx context.Context) error { return ctx.Err() }
func (c *Connection) Close() error                   { return nil }

func (c *Connection) Users() repository.UserRepository           { return &userRepo{c} }
func (c *Connection) Lists() repository.ListRepository           { return &listRepo{c} }
func (c *Connection) Recipients() repository.RecipientRepository { return &recipientRepo{c} }
func (c *Connection) Emails() repository.EmailRepository         { return &emailRepo{c} }
func (c *Connection) Activities() repository.ActivityRepository  { return &activityRepo{c} }

func newID() string { return uuid.NewString() }

// ─── Users ───

type userRepo struct{ c *Connection }

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	for _, u := range r.c.users {
		if strings.EqualFold(u.Username, in.Username) {
			return nil, repository.ErrConflict
		}
	}
	u := repository.User{
		ID:           newID(),
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Email:        in.Email,
		Company:      in.Company,
		CreatedAt:    r.c.now(),
	}
	r.c.users[u.ID] = u
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	u, ok := r.c.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	for _, u := range r.c.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) SetGmailCredential(ctx context.Context, userID, credential, address string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	u, ok := r.c.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.GmailLinked = true
	u.GmailCredential = credential
	u.GmailAddress = address
	r.c.users[userID] = u
	return nil
}

func (r *userRepo) ClearGmailCredential(ctx context.Context, userID string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	u, ok := r.c.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.GmailLinked = false
	u.GmailCredential = ""
	u.GmailAddress = ""
	r.c.users[userID] = u
	return nil
}

// ─── Lists ───

type listRepo struct{ c *Connection }

func (r *listRepo) Create(ctx context.Context, in repository.CreateListInput) (*repository.RecipientList, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	l := repository.RecipientList{
		ID:          newID(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   r.c.now(),
	}
	r.c.lists[l.ID] = l
	return &l, nil
}

func (r *listRepo) ListByOwner(ctx context.Context, ownerID string) ([]repository.RecipientList, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.RecipientList, 0)
	for _, l := range r.c.lists {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *listRepo) GetByID(ctx context.Context, id string) (*repository.RecipientList, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	l, ok := r.c.lists[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *listRepo) Delete(ctx context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.lists[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.c.lists, id)
	return nil
}

// ─── Recipients ───

type recipientRepo struct{ c *Connection }

func (r *recipientRepo) insertLocked(in repository.CreateRecipientInput) repository.Recipient {
	rc := repository.Recipient{
		ID:        newID(),
		OwnerID:   in.OwnerID,
		Email:     in.Email,
		Name:      in.Name,
		ListID:    in.ListID,
		CreatedAt: r.c.now(),
	}
	r.c.recipients[rc.ID] = rc
	return rc
}

func (r *recipientRepo) Create(ctx context.Context, in repository.CreateRecipientInput) (*repository.Recipient, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	rc := r.insertLocked(in)
	return &rc, nil
}

func (r *recipientRepo) CreateMany(ctx context.Context, in []repository.CreateRecipientInput) ([]repository.Recipient, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	out := make([]repository.Recipient, 0, len(in))
	for _, item := range in {
		out = append(out, r.insertLocked(item))
	}
	return out, nil
}

func (r *recipientRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.RecipientFilter) ([]repository.Recipient, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.Recipient, 0)
	for _, rc := range r.c.recipients {
		if rc.OwnerID != ownerID {
			continue
		}
		if filter.ListID != "" && rc.ListID != filter.ListID {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *recipientRepo) GetByID(ctx context.Context, id string) (*repository.Recipient, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	rc, ok := r.c.recipients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rc, nil
}

func (r *recipientRepo) Delete(ctx context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.recipients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.c.recipients, id)
	return nil
}

// ─── Emails ───

type emailRepo struct{ c *Connection }

func (r *emailRepo) Create(ctx context.Context, in repository.CreateEmailInput) (*repository.Email, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	now := r.c.now()
	status := in.Status
	if status == "" {
		status = repository.EmailDraft
	}
	e := repository.Email{
		ID:             newID(),
		OwnerID:        in.OwnerID,
		Subject:        in.Subject,
		Body:           in.Body,
		RecipientEmail: in.RecipientEmail,
		ListID:         in.ListID,
		Status:         status,
		ScheduledFor:   in.ScheduledFor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.c.emails[e.ID] = e
	return &e, nil
}

func (r *emailRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.EmailFilter) ([]repository.Email, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.Email, 0)
	for _, e := range r.c.emails {
		if e.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *emailRepo) GetByID(ctx context.Context, id string) (*repository.Email, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	e, ok := r.c.emails[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *emailRepo) Delete(ctx context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.emails[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.c.emails, id)
	return nil
}

func (r *emailRepo) UpdateStatus(ctx context.Context, id string, upd repository.StatusUpdate) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	e, ok := r.c.emails[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = upd.Status
	e.SentAt = upd.SentAt
	e.LastError = upd.LastError
	e.UpdatedAt = r.c.now()
	r.c.emails[id] = e
	return nil
}

func (r *emailRepo) Claim(ctx context.Context, id string, from []repository.EmailStatus) (*repository.Email, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	e, ok := r.c.emails[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !containsStatus(from, e.Status) {
		return nil, repository.ErrConflict
	}
	e.Status = repository.EmailSending
	e.UpdatedAt = r.c.now()
	r.c.emails[id] = e
	return &e, nil
}

func (r *emailRepo) ListByStatus(ctx context.Context, status repository.EmailStatus) ([]repository.Email, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.Email, 0)
	for _, e := range r.c.emails {
		if e.Status == status {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *emailRepo) Reschedule(ctx context.Context, id, scheduledFor string, guard repository.Guard) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	e, ok := r.c.emails[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !guard.Allows(&e) {
		return repository.ErrConflict
	}
	e.ScheduledFor = scheduledFor
	e.Status = repository.EmailScheduled
	e.LastError = ""
	e.UpdatedAt = r.c.now()
	r.c.emails[id] = e
	return nil
}

func containsStatus(set []repository.EmailStatus, s repository.EmailStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ─── Activities ───

type activityRepo struct{ c *Connection }

func (r *activityRepo) Append(ctx context.Context, a repository.EmailActivity) (*repository.EmailActivity, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	a.ID = newID()
	if a.Timestamp.IsZero() {
		a.Timestamp = r.c.now()
	}
	r.c.activities = append(r.c.activities, a)
	return &a, nil
}

func (r *activityRepo) ListByEmail(ctx context.Context, emailID string) ([]repository.EmailActivity, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.EmailActivity, 0)
	for _, a := range r.c.activities {
		if a.EmailID == emailID {
			out = append(out, a)
		}
	}
	return out, nil
}
