// Package recipients contiene los controllers de destinatarios.
package recipients

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/http/dto"
	httperrors "github.com/dropDatabas3/hellomail/internal/http/errors"
	"github.com/dropDatabas3/hellomail/internal/http/helpers"
	mw "github.com/dropDatabas3/hellomail/internal/http/middlewares"
)

type Controller struct {
	recipients *crm.Recipients
}

func NewController(recipients *crm.Recipients) *Controller {
	return &Controller{recipients: recipients}
}

// List maneja GET /api/recipients?listId=
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	rs, err := c.recipients.List(r.Context(), mw.GetUserID(r.Context()), r.URL.Query().Get("listId"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Recipients(rs))
}

// Create maneja POST /api/recipients
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRecipientRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	rec, err := c.recipients.Create(r.Context(), mw.GetUserID(r.Context()), crm.RecipientInput{
		Email:  req.Email,
		Name:   req.Name,
		ListID: req.ListID,
	})
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.Recipient(rec))
}

// Bulk maneja POST /api/recipients/bulk
func (c *Controller) Bulk(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkRecipientsRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	in := make([]crm.RecipientInput, 0, len(req.Recipients))
	for _, row := range req.Recipients {
		listID := row.ListID
		if listID == "" {
			listID = req.ListID
		}
		in = append(in, crm.RecipientInput{Email: row.Email, Name: row.Name, ListID: listID})
	}
	out, err := c.recipients.CreateMany(r.Context(), mw.GetUserID(r.Context()), in)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.Recipients(out))
}

// Get maneja GET /api/recipients/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := c.recipients.Get(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Recipient(rec))
}

// Delete maneja DELETE /api/recipients/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.recipients.Delete(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.NoContent(w)
}
