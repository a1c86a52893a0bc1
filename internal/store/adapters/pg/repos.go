package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

const (
	qInsertUser        = `INSERT INTO users (doc, created_at) VALUES ($1, $2) RETURNING id`
	qUserByID          = `SELECT id, doc, created_at FROM users WHERE id = $1`
	qUserByUsername    = `SELECT id, doc, created_at FROM users WHERE lower(doc->>'username') = lower($1)`
	qPatchUser         = `UPDATE users SET doc = doc || $2::jsonb WHERE id = $1`
	qClearUserGmail    = `UPDATE users SET doc = (doc - 'gmailCredential' - 'gmailAddress') || '{"gmailLinked": false}'::jsonb WHERE id = $1`
	qInsertList        = `INSERT INTO recipient_lists (doc, created_at) VALUES ($1, $2) RETURNING id`
	qListsByOwner      = `SELECT id, doc, created_at FROM recipient_lists WHERE doc->>'ownerId' = $1 ORDER BY created_at DESC`
	qListByID          = `SELECT id, doc, created_at FROM recipient_lists WHERE id = $1`
	qDeleteList        = `DELETE FROM recipient_lists WHERE id = $1`
	qInsertRecipient   = `INSERT INTO recipients (doc, created_at) VALUES ($1, $2) RETURNING id`
	qRecipientsByOwner = `SELECT id, doc, created_at FROM recipients WHERE doc->>'ownerId' = $1`
	qRecipientByID     = `SELECT id, doc, created_at FROM recipients WHERE id = $1`
	qDeleteRecipient   = `DELETE FROM recipients WHERE id = $1`
	qInsertEmail       = `INSERT INTO emails (doc, created_at) VALUES ($1, $2) RETURNING id`
	qEmailsByOwner     = `SELECT id, doc, created_at FROM emails WHERE doc->>'ownerId' = $1`
	qEmailsByStatus    = `SELECT id, doc, created_at FROM emails WHERE doc->>'status' = $1 ORDER BY created_at ASC`
	qEmailByID         = `SELECT id, doc, created_at FROM emails WHERE id = $1`
	qDeleteEmail       = `DELETE FROM emails WHERE id = $1`
	qPatchEmail        = `UPDATE emails SET doc = (doc - 'sentAt' - 'lastError') || $2::jsonb WHERE id = $1`
	qEmailExists       = `SELECT EXISTS (SELECT 1 FROM emails WHERE id = $1)`
	qInsertActivity    = `INSERT INTO email_activities (doc, created_at) VALUES ($1, $2) RETURNING id`
	qActivitiesByEmail = `SELECT id, doc, created_at FROM email_activities WHERE doc->>'emailId' = $1 ORDER BY created_at ASC`
)

// ─── Users ───

type userRepo struct{ db *sql.DB }

func toUser(id string, createdAt time.Time, d userDoc) *repository.User {
	return &repository.User{
		ID:              id,
		Username:        d.Username,
		PasswordHash:    d.PasswordHash,
		Name:            d.Name,
		Email:           d.Email,
		Company:         d.Company,
		GmailLinked:     d.GmailLinked,
		GmailCredential: d.GmailCredential,
		GmailAddress:    d.GmailAddress,
		CreatedAt:       createdAt,
	}
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	d := userDoc{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Email:        in.Email,
		Company:      in.Company,
	}
	raw, err := encode(d)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	var id string
	if err := r.db.QueryRowContext(ctx, qInsertUser, raw, now).Scan(&id); err != nil {
		return nil, mapErr("insert user", err)
	}
	return toUser(id, now, d), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return r.get(ctx, qUserByID, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return r.get(ctx, qUserByUsername, username)
}

func (r *userRepo) get(ctx context.Context, q string, arg string) (*repository.User, error) {
	var d userDoc
	id, createdAt, err := scanDoc(r.db.QueryRowContext(ctx, q, arg), &d)
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return toUser(id, createdAt, d), nil
}

func (r *userRepo) SetGmailCredential(ctx context.Context, userID, credential, address string) error {
	if err := validID(userID); err != nil {
		return err
	}
	patch, err := encode(map[string]any{
		"gmailLinked":     true,
		"gmailCredential": credential,
		"gmailAddress":    address,
	})
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, qPatchUser, userID, patch)
	if err != nil {
		return mapErr("set gmail credential", err)
	}
	return expectOne(res, "set gmail credential")
}

func (r *userRepo) ClearGmailCredential(ctx context.Context, userID string) error {
	if err := validID(userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, qClearUserGmail, userID)
	if err != nil {
		return mapErr("clear gmail credential", err)
	}
	return expectOne(res, "clear gmail credential")
}

// ─── Lists ───

type listRepo struct{ db *sql.DB }

func toList(id string, createdAt time.Time, d listDoc) repository.RecipientList {
	return repository.RecipientList{
		ID:          id,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   createdAt,
	}
}

func (r *listRepo) Create(ctx context.Context, in repository.CreateListInput) (*repository.RecipientList, error) {
	d := listDoc{OwnerID: in.OwnerID, Name: in.Name, Description: in.Description}
	raw, err := encode(d)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	var id string
	if err := r.db.QueryRowContext(ctx, qInsertList, raw, now).Scan(&id); err != nil {
		return nil, mapErr("insert list", err)
	}
	l := toList(id, now, d)
	return &l, nil
}

func (r *listRepo) ListByOwner(ctx context.Context, ownerID string) ([]repository.RecipientList, error) {
	rows, err := r.db.QueryContext(ctx, qListsByOwner, ownerID)
	if err != nil {
		return nil, mapErr("list lists", err)
	}
	defer rows.Close()

	out := make([]repository.RecipientList, 0)
	for rows.Next() {
		var d listDoc
		id, createdAt, err := scanDoc(rows, &d)
		if err != nil {
			return nil, mapErr("scan list", err)
		}
		out = append(out, toList(id, createdAt, d))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list lists", err)
	}
	return out, nil
}

func (r *listRepo) GetByID(ctx context.Context, id string) (*repository.RecipientList, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var d listDoc
	rid, createdAt, err := scanDoc(r.db.QueryRowContext(ctx, qListByID, id), &d)
	if err != nil {
		return nil, mapErr("get list", err)
	}
	l := toList(rid, createdAt, d)
	return &l, nil
}

func (r *listRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, qDeleteList, id)
}

// ─── Recipients ───

type recipientRepo struct{ db *sql.DB }

func toRecipient(id string, createdAt time.Time, d recipientDoc) repository.Recipient {
	return repository.Recipient{
		ID:        id,
		OwnerID:   d.OwnerID,
		Email:     d.Email,
		Name:      d.Name,
		ListID:    d.ListID,
		CreatedAt: createdAt,
	}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertRecipient(ctx context.Context, q rowQuerier, in repository.CreateRecipientInput, now time.Time) (repository.Recipient, error) {
	d := recipientDoc{OwnerID: in.OwnerID, Email: in.Email, Name: in.Name, ListID: in.ListID}
	raw, err := encode(d)
	if err != nil {
		return repository.Recipient{}, err
	}
	var id string
	if err := q.QueryRowContext(ctx, qInsertRecipient, raw, now).Scan(&id); err != nil {
		return repository.Recipient{}, mapErr("insert recipient", err)
	}
	return toRecipient(id, now, d), nil
}

func (r *recipientRepo) Create(ctx context.Context, in repository.CreateRecipientInput) (*repository.Recipient, error) {
	rc, err := insertRecipient(ctx, r.db, in, nowUTC())
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// CreateMany inserta todo en una transacción: o entran todos o ninguno.
func (r *recipientRepo) CreateMany(ctx context.Context, in []repository.CreateRecipientInput) ([]repository.Recipient, error) {
	out := make([]repository.Recipient, 0, len(in))
	if len(in) == 0 {
		return out, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC()
	for _, item := range in {
		rc, err := insertRecipient(ctx, tx, item, now)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr("commit", err)
	}
	return out, nil
}

func (r *recipientRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.RecipientFilter) ([]repository.Recipient, error) {
	q := qRecipientsByOwner
	args := []any{ownerID}
	if filter.ListID != "" {
		q += ` AND doc->>'listId' = $2`
		args = append(args, filter.ListID)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr("list recipients", err)
	}
	defer rows.Close()

	out := make([]repository.Recipient, 0)
	for rows.Next() {
		var d recipientDoc
		id, createdAt, err := scanDoc(rows, &d)
		if err != nil {
			return nil, mapErr("scan recipient", err)
		}
		out = append(out, toRecipient(id, createdAt, d))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list recipients", err)
	}
	return out, nil
}

func (r *recipientRepo) GetByID(ctx context.Context, id string) (*repository.Recipient, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var d recipientDoc
	rid, createdAt, err := scanDoc(r.db.QueryRowContext(ctx, qRecipientByID, id), &d)
	if err != nil {
		return nil, mapErr("get recipient", err)
	}
	rc := toRecipient(rid, createdAt, d)
	return &rc, nil
}

func (r *recipientRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, qDeleteRecipient, id)
}

// ─── Emails ───

type emailRepo struct{ db *sql.DB }

func toEmail(id string, createdAt time.Time, d emailDoc) repository.Email {
	return repository.Email{
		ID:             id,
		OwnerID:        d.OwnerID,
		Subject:        d.Subject,
		Body:           d.Body,
		RecipientEmail: d.RecipientEmail,
		ListID:         d.ListID,
		Status:         d.Status,
		ScheduledFor:   d.ScheduledFor,
		SentAt:         d.SentAt,
		LastError:      d.LastError,
		CreatedAt:      createdAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (r *emailRepo) Create(ctx context.Context, in repository.CreateEmailInput) (*repository.Email, error) {
	now := nowUTC()
	status := in.Status
	if status == "" {
		status = repository.EmailDraft
	}
	d := emailDoc{
		OwnerID:        in.OwnerID,
		Subject:        in.Subject,
		Body:           in.Body,
		RecipientEmail: in.RecipientEmail,
		ListID:         in.ListID,
		Status:         status,
		ScheduledFor:   in.ScheduledFor,
		UpdatedAt:      now,
	}
	raw, err := encode(d)
	if err != nil {
		return nil, err
	}
	var id string
	if err := r.db.QueryRowContext(ctx, qInsertEmail, raw, now).Scan(&id); err != nil {
		return nil, mapErr("insert email", err)
	}
	e := toEmail(id, now, d)
	return &e, nil
}

func (r *emailRepo) query(ctx context.Context, q string, args ...any) ([]repository.Email, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr("list emails", err)
	}
	defer rows.Close()

	out := make([]repository.Email, 0)
	for rows.Next() {
		var d emailDoc
		id, createdAt, err := scanDoc(rows, &d)
		if err != nil {
			return nil, mapErr("scan email", err)
		}
		out = append(out, toEmail(id, createdAt, d))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list emails", err)
	}
	return out, nil
}

func (r *emailRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.EmailFilter) ([]repository.Email, error) {
	q := qEmailsByOwner
	args := []any{ownerID}
	if filter.Status != "" {
		q += ` AND doc->>'status' = $2`
		args = append(args, string(filter.Status))
	}
	q += ` ORDER BY created_at DESC`
	return r.query(ctx, q, args...)
}

func (r *emailRepo) ListByStatus(ctx context.Context, status repository.EmailStatus) ([]repository.Email, error) {
	return r.query(ctx, qEmailsByStatus, string(status))
}

func (r *emailRepo) GetByID(ctx context.Context, id string) (*repository.Email, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var d emailDoc
	rid, createdAt, err := scanDoc(r.db.QueryRowContext(ctx, qEmailByID, id), &d)
	if err != nil {
		return nil, mapErr("get email", err)
	}
	e := toEmail(rid, createdAt, d)
	return &e, nil
}

func (r *emailRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, qDeleteEmail, id)
}

func (r *emailRepo) patch(ctx context.Context, id string, fields map[string]any, op string) error {
	if err := validID(id); err != nil {
		return err
	}
	fields["updatedAt"] = nowUTC()
	raw, err := encode(fields)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, qPatchEmail, id, raw)
	if err != nil {
		return mapErr(op, err)
	}
	return expectOne(res, op)
}

// UpdateStatus reemplaza status y borra sentAt/lastError salvo que vengan en upd.
func (r *emailRepo) UpdateStatus(ctx context.Context, id string, upd repository.StatusUpdate) error {
	fields := map[string]any{"status": upd.Status}
	if upd.SentAt != nil {
		fields["sentAt"] = upd.SentAt.UTC()
	}
	if upd.LastError != "" {
		fields["lastError"] = upd.LastError
	}
	return r.patch(ctx, id, fields, "update email status")
}

// rescheduleQuery arma el UPDATE condicional de Reschedule: $1 id, $2 patch,
// $3 corte de "sending" viejo (NULL = no aplica), $4.. estados de origen.
func rescheduleQuery(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+4)
	}
	in := "FALSE"
	if n > 0 {
		in = `doc->>'status' IN (` + strings.Join(ph, ", ") + `)`
	}
	return `UPDATE emails SET doc = (doc - 'lastError') || $2::jsonb WHERE id = $1 AND (` + in +
		` OR (doc->>'status' = 'sending' AND $3::timestamptz IS NOT NULL AND (doc->>'updatedAt')::timestamptz < $3::timestamptz))`
}

// Reschedule limpia lastError y conserva sentAt si existía.
func (r *emailRepo) Reschedule(ctx context.Context, id, scheduledFor string, guard repository.Guard) error {
	if err := validID(id); err != nil {
		return err
	}
	patch, err := encode(map[string]any{
		"status":       repository.EmailScheduled,
		"scheduledFor": scheduledFor,
		"updatedAt":    nowUTC(),
	})
	if err != nil {
		return err
	}
	var stale any
	if !guard.StaleBefore.IsZero() {
		stale = guard.StaleBefore.UTC()
	}
	args := []any{id, patch, stale}
	for _, s := range guard.From {
		args = append(args, string(s))
	}

	res, err := r.db.ExecContext(ctx, rescheduleQuery(len(guard.From)), args...)
	if err != nil {
		return mapErr("reschedule email", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pg: reschedule email: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, qEmailExists, id).Scan(&exists); err != nil {
		return mapErr("reschedule email", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// claimQuery arma el UPDATE condicional: $1 id, $2 patch, $3.. estados de origen.
func claimQuery(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+3)
	}
	return `UPDATE emails SET doc = doc || $2::jsonb WHERE id = $1 AND doc->>'status' IN (` +
		strings.Join(ph, ", ") + `) RETURNING id, doc, created_at`
}

func (r *emailRepo) Claim(ctx context.Context, id string, from []repository.EmailStatus) (*repository.Email, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if len(from) == 0 {
		return nil, repository.ErrConflict
	}
	patch, err := encode(map[string]any{
		"status":    repository.EmailSending,
		"updatedAt": nowUTC(),
	})
	if err != nil {
		return nil, err
	}
	args := []any{id, patch}
	for _, s := range from {
		args = append(args, string(s))
	}

	var d emailDoc
	rid, createdAt, err := scanDoc(r.db.QueryRowContext(ctx, claimQuery(len(from)), args...), &d)
	if err == nil {
		e := toEmail(rid, createdAt, d)
		return &e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapErr("claim email", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, qEmailExists, id).Scan(&exists); err != nil {
		return nil, mapErr("claim email", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

// ─── Activities ───

type activityRepo struct{ db *sql.DB }

func (r *activityRepo) Append(ctx context.Context, a repository.EmailActivity) (*repository.EmailActivity, error) {
	d := activityDoc{
		EmailID:           a.EmailID,
		OwnerID:           a.OwnerID,
		Type:              a.Type,
		RecipientEmail:    a.RecipientEmail,
		ProviderMessageID: a.ProviderMessageID,
	}
	raw, err := encode(d)
	if err != nil {
		return nil, err
	}
	ts := a.Timestamp.UTC()
	if a.Timestamp.IsZero() {
		ts = nowUTC()
	}
	if err := r.db.QueryRowContext(ctx, qInsertActivity, raw, ts).Scan(&a.ID); err != nil {
		return nil, mapErr("insert activity", err)
	}
	a.Timestamp = ts
	return &a, nil
}

func (r *activityRepo) ListByEmail(ctx context.Context, emailID string) ([]repository.EmailActivity, error) {
	rows, err := r.db.QueryContext(ctx, qActivitiesByEmail, emailID)
	if err != nil {
		return nil, mapErr("list activities", err)
	}
	defer rows.Close()

	out := make([]repository.EmailActivity, 0)
	for rows.Next() {
		var d activityDoc
		id, ts, err := scanDoc(rows, &d)
		if err != nil {
			return nil, mapErr("scan activity", err)
		}
		out = append(out, repository.EmailActivity{
			ID:                id,
			EmailID:           d.EmailID,
			OwnerID:           d.OwnerID,
			Type:              d.Type,
			RecipientEmail:    d.RecipientEmail,
			ProviderMessageID: d.ProviderMessageID,
			Timestamp:         ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list activities", err)
	}
	return out, nil
}

// ─── Helpers ───

func deleteByID(ctx context.Context, db *sql.DB, q, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return mapErr("delete", err)
	}
	return expectOne(res, "delete")
}
