// Package dto define los cuerpos JSON de la API y su mapeo desde las entidades.
package dto

import (
	"time"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// ─── Auth ───

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse nunca incluye hash ni credencial.
type UserResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Company      string    `json:"company,omitempty"`
	GmailLinked  bool      `json:"gmailLinked"`
	GmailAddress string    `json:"gmailAddress,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionResponse respuesta de register/login/callback.
type SessionResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func User(u *repository.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		Email:        u.Email,
		Company:      u.Company,
		GmailLinked:  u.GmailLinked,
		GmailAddress: u.GmailAddress,
		CreatedAt:    u.CreatedAt,
	}
}

// ─── Lists & Recipients ───

type CreateListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ListResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func List(l *repository.RecipientList) ListResponse {
	return ListResponse{ID: l.ID, Name: l.Name, Description: l.Description, CreatedAt: l.CreatedAt}
}

func Lists(in []repository.RecipientList) []ListResponse {
	out := make([]ListResponse, 0, len(in))
	for i := range in {
		out = append(out, List(&in[i]))
	}
	return out
}

type CreateRecipientRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	ListID string `json:"listId,omitempty"`
}

type BulkRecipientsRequest struct {
	ListID     string                   `json:"listId,omitempty"` // default para filas sin listId
	Recipients []CreateRecipientRequest `json:"recipients"`
}

type RecipientResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ListID    string    `json:"listId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func Recipient(r *repository.Recipient) RecipientResponse {
	return RecipientResponse{ID: r.ID, Email: r.Email, Name: r.Name, ListID: r.ListID, CreatedAt: r.CreatedAt}
}

func Recipients(in []repository.Recipient) []RecipientResponse {
	out := make([]RecipientResponse, 0, len(in))
	for i := range in {
		out = append(out, Recipient(&in[i]))
	}
	return out
}

// ─── Emails ───

type CreateEmailRequest struct {
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
	ListID         string `json:"listId,omitempty"`
	ScheduledFor   string `json:"scheduledFor,omitempty"`
	SendNow        bool   `json:"sendNow,omitempty"`
}

type ScheduleEmailRequest struct {
	ScheduledFor string `json:"scheduledFor"`
}

type EmailResponse struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	RecipientEmail string     `json:"recipientEmail,omitempty"`
	ListID         string     `json:"listId,omitempty"`
	Status         string     `json:"status"`
	ScheduledFor   string     `json:"scheduledFor,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func Email(e *repository.Email) EmailResponse {
	return EmailResponse{
		ID:             e.ID,
		Subject:        e.Subject,
		Body:           e.Body,
		RecipientEmail: e.RecipientEmail,
		ListID:         e.ListID,
		Status:         string(e.Status),
		ScheduledFor:   e.ScheduledFor,
		SentAt:         e.SentAt,
		LastError:      e.LastError,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func Emails(in []repository.Email) []EmailResponse {
	out := make([]EmailResponse, 0, len(in))
	for i := range in {
		out = append(out, Email(&in[i]))
	}
	return out
}

// EmailSendResponse el email más el resumen del dispatch (si hubo).
type EmailSendResponse struct {
	Email    EmailResponse    `json:"email"`
	Dispatch *dispatch.Result `json:"dispatch,omitempty"`
}

type ActivityResponse struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	RecipientEmail    string    `json:"recipientEmail"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func Activities(in []repository.EmailActivity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(in))
	for _, a := range in {
		out = append(out, ActivityResponse{
			ID:                a.ID,
			Type:              string(a.Type),
			RecipientEmail:    a.RecipientEmail,
			ProviderMessageID: a.ProviderMessageID,
			Timestamp:         a.Timestamp,
		})
	}
	return out
}

// ─── Gmail ───

type AuthURLResponse struct {
	URL string `json:"url"`
}
