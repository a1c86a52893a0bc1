// Package emails contiene los controllers de emails: alta, envío, programación
// e historial.
package emails

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/http/dto"
	httperrors "github.com/dropDatabas3/hellomail/internal/http/errors"
	"github.com/dropDatabas3/hellomail/internal/http/helpers"
	mw "github.com/dropDatabas3/hellomail/internal/http/middlewares"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

type Controller struct {
	emails *crm.Emails
}

func NewController(emails *crm.Emails) *Controller {
	return &Controller{emails: emails}
}

// List maneja GET /api/emails?status=
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	status := repository.EmailStatus(r.URL.Query().Get("status"))
	es, err := c.emails.List(r.Context(), mw.GetUserID(r.Context()), status)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Emails(es))
}

// Create maneja POST /api/emails. Con sendNow responde con el resumen del envío.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEmailRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}

	e, res, err := c.emails.Create(r.Context(), mw.GetUserID(r.Context()), crm.EmailInput{
		Subject:        req.Subject,
		Body:           req.Body,
		RecipientEmail: req.RecipientEmail,
		ListID:         req.ListID,
		ScheduledFor:   req.ScheduledFor,
		SendNow:        req.SendNow,
	})
	if err != nil {
		if e != nil {
			// quedó persistido pero el envío falló
			logger.From(r.Context()).Warn("email created but dispatch failed", logger.EmailID(e.ID), logger.Err(err))
		}
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.EmailSendResponse{Email: dto.Email(e), Dispatch: res})
}

// Get maneja GET /api/emails/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	e, err := c.emails.Get(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Email(e))
}

// Delete maneja DELETE /api/emails/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.emails.Delete(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.NoContent(w)
}

// Send maneja POST /api/emails/{id}/send
func (c *Controller) Send(w http.ResponseWriter, r *http.Request) {
	e, res, err := c.emails.Send(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.EmailSendResponse{Email: dto.Email(e), Dispatch: res})
}

// Schedule maneja POST /api/emails/{id}/schedule
func (c *Controller) Schedule(w http.ResponseWriter, r *http.Request) {
	var req dto.ScheduleEmailRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	e, err := c.emails.Schedule(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"), req.ScheduledFor)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Email(e))
}

// Activity maneja GET /api/emails/{id}/activity
func (c *Controller) Activity(w http.ResponseWriter, r *http.Request) {
	acts, err := c.emails.Activity(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Activities(acts))
}
