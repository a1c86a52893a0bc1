// Package router arma el chi.Router de la API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/auth"
	emailsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/emails"
	gmailctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/gmail"
	healthctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/health"
	listsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/lists"
	recipientsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/recipients"
	httperrors "github.com/dropDatabas3/hellomail/internal/http/errors"
	mw "github.com/dropDatabas3/hellomail/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/rate"
)

// Controllers agrupa los controllers registrados.
type Controllers struct {
	Auth       *authctrl.Controller
	Gmail      *gmailctrl.Controller
	Lists      *listsctrl.Controller
	Recipients *recipientsctrl.Controller
	Emails     *emailsctrl.Controller
	Health     *healthctrl.Controller
}

// Deps dependencias del router.
type Deps struct {
	Controllers Controllers
	Issuer      *jwtx.Issuer
	CookieName  string

	// CORSOrigins orígenes del frontend. Vacío = sin CORS.
	CORSOrigins []string

	// Gatherer para /metrics. nil = prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// AuthLimiter limita register/login por IP. nil = sin límite.
	AuthLimiter rate.Limiter
}

// New construye el router completo.
//
//	/healthz, /readyz, /metrics        públicos, sin logging
//	/api/auth/register|login|logout    públicos
//	/api/gmail/callback                público (el state identifica al usuario)
//	/api/...                           requieren sesión
func New(deps Deps) http.Handler {
	c := deps.Controllers
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithMetrics())
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
	}

	// ─── Health / Metrics ───
	if c.Health != nil {
		r.Get("/healthz", c.Health.Healthz)
		r.Get("/readyz", c.Health.Readyz)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// ─── API ───
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.WithSecurityHeaders(), mw.WithNoStore(), mw.WithLogging())

		// públicos
		r.With(mw.WithRateLimit(deps.AuthLimiter, "register")).Post("/auth/register", c.Auth.Register)
		r.With(mw.WithRateLimit(deps.AuthLimiter, "login")).Post("/auth/login", c.Auth.Login)
		r.Post("/auth/logout", c.Auth.Logout)
		r.Get("/gmail/callback", c.Gmail.Callback)

		// con sesión
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession(deps.Issuer, deps.CookieName))

			r.Get("/auth/me", c.Auth.Me)

			r.Get("/gmail/auth-url", c.Gmail.AuthURL)
			r.Get("/gmail/status", c.Gmail.Status)
			r.Post("/gmail/unlink", c.Gmail.Unlink)

			r.Route("/lists", func(r chi.Router) {
				r.Get("/", c.Lists.List)
				r.Post("/", c.Lists.Create)
				r.Get("/{id}", c.Lists.Get)
				r.Delete("/{id}", c.Lists.Delete)
				r.Get("/{id}/recipients", c.Lists.Members)
			})

			r.Route("/recipients", func(r chi.Router) {
				r.Get("/", c.Recipients.List)
				r.Post("/", c.Recipients.Create)
				r.Post("/bulk", c.Recipients.Bulk)
				r.Get("/{id}", c.Recipients.Get)
				r.Delete("/{id}", c.Recipients.Delete)
			})

			r.Route("/emails", func(r chi.Router) {
				r.Get("/", c.Emails.List)
				r.Post("/", c.Emails.Create)
				r.Get("/{id}", c.Emails.Get)
				r.Delete("/{id}", c.Emails.Delete)
				r.Post("/{id}/send", c.Emails.Send)
				r.Post("/{id}/schedule", c.Emails.Schedule)
				r.Get("/{id}/activity", c.Emails.Activity)
			})
		})
	})

	return r
}
