package pg

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// Contenido JSONB de cada colección. id y created_at viven en columnas.

type userDoc struct {
	Username        string `json:"username"`
	PasswordHash    string `json:"passwordHash"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Company         string `json:"company,omitempty"`
	GmailLinked     bool   `json:"gmailLinked"`
	GmailCredential string `json:"gmailCredential,omitempty"`
	GmailAddress    string `json:"gmailAddress,omitempty"`
}

type listDoc struct {
	OwnerID     string `json:"ownerId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type recipientDoc struct {
	OwnerID string `json:"ownerId"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	ListID  string `json:"listId,omitempty"`
}

type emailDoc struct {
	OwnerID        string                 `json:"ownerId"`
	Subject        string                 `json:"subject"`
	Body           string                 `json:"body"`
	RecipientEmail string                 `json:"recipientEmail,omitempty"`
	ListID         string                 `json:"listId,omitempty"`
	Status         repository.EmailStatus `json:"status"`
	ScheduledFor   string                 `json:"scheduledFor,omitempty"`
	SentAt         *time.Time             `json:"sentAt,omitempty"`
	LastError      string                 `json:"lastError,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type activityDoc struct {
	EmailID           string                  `json:"emailId"`
	OwnerID           string                  `json:"ownerId"`
	Type              repository.ActivityType `json:"type"`
	RecipientEmail    string                  `json:"recipientEmail"`
	ProviderMessageID string                  `json:"providerMessageId,omitempty"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDoc lee (id, doc, created_at) y decodifica doc en dst.
func scanDoc(row rowScanner, dst any) (string, time.Time, error) {
	var (
		id        string
		raw       []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt); err != nil {
		return "", time.Time{}, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return "", time.Time{}, fmt.Errorf("pg: decode doc: %w", err)
	}
	return id, createdAt.UTC(), nil
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pg: encode doc: %w", err)
	}
	return b, nil
}

// validID: un id que no es UUID no puede existir en ninguna tabla.
func validID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return repository.ErrNotFound
	}
	return nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return fmt.Errorf("pg: %s: %w", op, err)
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pg: %s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nowUTC() time.Time {
	// timestamptz guarda microsegundos
	return time.Now().UTC().Truncate(time.Microsecond)
}
