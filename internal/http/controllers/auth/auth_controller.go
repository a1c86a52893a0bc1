// Package auth contiene los controllers de registro, login y sesión.
package auth

import (
	"net/http"

	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/http/cookie"
	"github.com/dropDatabas3/hellomail/internal/http/dto"
	httperrors "github.com/dropDatabas3/hellomail/internal/http/errors"
	"github.com/dropDatabas3/hellomail/internal/http/helpers"
	mw "github.com/dropDatabas3/hellomail/internal/http/middlewares"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// Controller maneja /api/auth/*.
type Controller struct {
	accounts *crm.Accounts
	cookies  cookie.Policy
}

func NewController(accounts *crm.Accounts, cookies cookie.Policy) *Controller {
	return &Controller{accounts: accounts, cookies: cookies}
}

// Register maneja POST /api/auth/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}

	u, err := c.accounts.Register(r.Context(), crm.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
	})
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	c.writeSession(w, r, http.StatusCreated, u)
}

// Login maneja POST /api/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}

	u, err := c.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.From(r.Context()).Info("login rejected", logger.Err(err))
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	c.writeSession(w, r, http.StatusOK, u)
}

// Logout maneja POST /api/auth/logout. El token es stateless: sólo se borra la cookie.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookies.Deletion())
	helpers.NoContent(w)
}

// Me maneja GET /api/auth/me
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	u, err := c.accounts.Me(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		if repository.IsNotFound(err) {
			// usuario borrado con sesión vigente
			httperrors.WriteError(w, httperrors.ErrUnauthorized)
			return
		}
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.User(u))
}

// WriteSession emite la sesión de u como cookie y en el body. La usa también el
// callback de Gmail para reemitir la sesión con mailLinked actualizado.
func WriteSession(w http.ResponseWriter, r *http.Request, accounts *crm.Accounts, cookies cookie.Policy, status int, u *repository.User) {
	token, exp, err := accounts.Session(u)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	http.SetCookie(w, cookies.Session(token, exp))
	helpers.WriteJSON(w, status, dto.SessionResponse{User: dto.User(u), Token: token, ExpiresAt: exp})
}

func (c *Controller) writeSession(w http.ResponseWriter, r *http.Request, status int, u *repository.User) {
	WriteSession(w, r, c.accounts, c.cookies, status, u)
}
