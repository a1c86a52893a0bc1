// Package gmail contiene los controllers del vínculo con Gmail.
package gmail

import (
	"net/http"
	"net/url"

	"github.com/dropDatabas3/hellomail/internal/crm"
	authctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/auth"
	"github.com/dropDatabas3/hellomail/internal/http/cookie"
	"github.com/dropDatabas3/hellomail/internal/http/dto"
	httperrors "github.com/dropDatabas3/hellomail/internal/http/errors"
	"github.com/dropDatabas3/hellomail/internal/http/helpers"
	mw "github.com/dropDatabas3/hellomail/internal/http/middlewares"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// Controller maneja /api/gmail/*.
type Controller struct {
	gmail    *crm.Gmail
	accounts *crm.Accounts
	cookies  cookie.Policy

	// successRedirect si está configurado, el callback redirige ahí en lugar de responder JSON.
	successRedirect string
}

func NewController(gmail *crm.Gmail, accounts *crm.Accounts, cookies cookie.Policy, successRedirect string) *Controller {
	return &Controller{gmail: gmail, accounts: accounts, cookies: cookies, successRedirect: successRedirect}
}

// AuthURL maneja GET /api/gmail/auth-url
func (c *Controller) AuthURL(w http.ResponseWriter, r *http.Request) {
	u, err := c.gmail.AuthURL(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.AuthURLResponse{URL: u})
}

// Callback maneja GET /api/gmail/callback?code=&state=. No requiere sesión: el
// state identifica al usuario.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		logger.From(r.Context()).Info("gmail consent denied", logger.String("error", e))
		httperrors.WriteError(w, httperrors.ErrGmailLinkFailed.WithDetail(e))
		return
	}

	u, err := c.gmail.Complete(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}

	if c.successRedirect == "" {
		authctrl.WriteSession(w, r, c.accounts, c.cookies, http.StatusOK, u)
		return
	}

	token, exp, err := c.accounts.Session(u)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	http.SetCookie(w, c.cookies.Session(token, exp))
	target, err := url.Parse(c.successRedirect)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	qs := target.Query()
	qs.Set("gmail", "linked")
	target.RawQuery = qs.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// Status maneja GET /api/gmail/status
func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	st, err := c.gmail.Status(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}

// Unlink maneja POST /api/gmail/unlink y reemite la sesión con mailLinked=false.
func (c *Controller) Unlink(w http.ResponseWriter, r *http.Request) {
	u, err := c.gmail.Unlink(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	authctrl.WriteSession(w, r, c.accounts, c.cookies, http.StatusOK, u)
}
