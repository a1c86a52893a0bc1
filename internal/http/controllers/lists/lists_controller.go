// Package lists contiene los controllers de listas de destinatarios.
package lists

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
	lists *crm.Lists
}

func NewController(lists *crm.Lists) *Controller {
	return &Controller{lists: lists}
}

// List maneja GET /api/lists
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ls, err := c.lists.List(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Lists(ls))
}

// Create maneja POST /api/lists
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateListRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	l, err := c.lists.Create(r.Context(), mw.GetUserID(r.Context()), req.Name, req.Description)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.List(l))
}

// Get maneja GET /api/lists/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	l, err := c.lists.Get(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.List(l))
}

// Delete maneja DELETE /api/lists/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.lists.Delete(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.NoContent(w)
}

// Members maneja GET /api/lists/{id}/recipients
func (c *Controller) Members(w http.ResponseWriter, r *http.Request) {
	rs, err := c.lists.Members(r.Context(), mw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.Recipients(rs))
}
