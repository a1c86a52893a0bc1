// Package app arma el proceso completo a partir de la Config: store, cache,
// credenciales de Google, pipeline de envío, scheduler y API HTTP.
//
// Orden de arranque: el store se abre (y opcionalmente migra) antes de aceptar
// requests; el server y el scheduler corren bajo un mismo errgroup y el store y
// el cache se cierran al final, después de que ambos terminaron.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellomail/internal/cache"
	"github.com/dropDatabas3/hellomail/internal/config"
	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/dispatch"
	authctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/auth"
	emailsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/emails"
	gmailctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/gmail"
	healthctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/health"
	listsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/lists"
	recipientsctrl "github.com/dropDatabas3/hellomail/internal/http/controllers/recipients"
	"github.com/dropDatabas3/hellomail/internal/http/cookie"
	"github.com/dropDatabas3/hellomail/internal/http/router"
	"github.com/dropDatabas3/hellomail/internal/http/server"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/mail"
	"github.com/dropDatabas3/hellomail/internal/metrics"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
	"github.com/dropDatabas3/hellomail/internal/rate"
	"github.com/dropDatabas3/hellomail/internal/scheduler"
	"github.com/dropDatabas3/hellomail/internal/security/password"
	"github.com/dropDatabas3/hellomail/internal/security/secretbox"
	"github.com/dropDatabas3/hellomail/internal/store"
)

// App el proceso ya cableado.
type App struct {
	cfg *config.Config

	Store      *store.Store
	Cache      cache.Client
	Dispatcher *dispatch.Dispatcher
	Scheduler  *scheduler.Scheduler
	Registry   *prometheus.Registry
	Handler    http.Handler

	server *server.Server
}

// Option reemplaza piezas externas (tests, emuladores).
type Option func(*options)

type options struct {
	oauth     crm.CodeExchanger
	transport mail.Transport
	hashing   password.Params
}

// WithCodeExchanger reemplaza el flujo OAuth de Google.
func WithCodeExchanger(x crm.CodeExchanger) Option {
	return func(o *options) { o.oauth = x }
}

// WithTransport reemplaza el transporte de mail configurado.
func WithTransport(t mail.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithHashing fija los parámetros de argon2id (tests usan parámetros livianos).
func WithHashing(p password.Params) Option {
	return func(o *options) { o.hashing = p }
}

// OpenStore abre el store configurado y aplica el esquema si storage.migrate está activo.
func OpenStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, StoreConfig(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
	}
	return st, nil
}

// StoreConfig traduce la sección storage al AdapterConfig del registry.
func StoreConfig(cfg *config.Config) store.AdapterConfig {
	return store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		URI:             cfg.Storage.Mongo.URI,
		Database:        cfg.Storage.Mongo.Database,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		ConnectTimeout:  cfg.Storage.ConnectTimeout,
	}
}

// New abre el store y arma todos los componentes. Si algo falla, lo ya abierto se cierra.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}

	a = &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	// ─── Persistencia / estado efímero ───
	if a.Store, err = OpenStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.Cache, err = cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	}); err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	// ─── Seguridad ───
	box, err := secretbox.New(cfg.Security.SecretBoxMasterKey)
	if err != nil {
		return nil, fmt.Errorf("app: secretbox: %w", err)
	}
	issuer, err := jwtx.NewIssuer(cfg.Auth.Issuer, cfg.Auth.SessionSecret, cfg.Auth.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("app: session issuer: %w", err)
	}

	// ─── Google / Transporte ───
	var creds *google.CredentialManager
	if o.oauth == nil || (o.transport == nil && cfg.Mail.Transport == "gmail") {
		creds, err = google.NewCredentialManager(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			HTTPTimeout:  cfg.Google.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("app: google: %w", err)
		}
	}
	exchanger := o.oauth
	if exchanger == nil {
		exchanger = creds
	}
	transport := o.transport
	if transport == nil {
		transport = newTransport(cfg, creds)
	}

	// ─── Pipeline ───
	a.Dispatcher = dispatch.New(a.Store, transport, box, dispatch.WithPolicy(cfg.StatusPolicy()))
	a.Scheduler = scheduler.New(a.Store.Emails(), a.Dispatcher, scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	})

	// ─── Servicios ───
	pp := cfg.Security.PasswordPolicy
	accounts := crm.NewAccounts(crm.AccountsDeps{
		Users:  a.Store.Users(),
		Issuer: issuer,
		Policy: password.Policy{
			MinLength:     pp.MinLength,
			RequireUpper:  pp.RequireUpper,
			RequireLower:  pp.RequireLower,
			RequireDigit:  pp.RequireDigit,
			RequireSymbol: pp.RequireSymbol,
		},
		Hashing: o.hashing,
	})
	gm := crm.NewGmail(crm.GmailDeps{
		Users:    a.Store.Users(),
		OAuth:    exchanger,
		Box:      box,
		States:   a.Cache,
		StateTTL: cfg.Google.StateTTL,
	})
	lists := crm.NewLists(a.Store.Lists(), a.Store.Recipients())
	recipients := crm.NewRecipients(lists, a.Store.Recipients())
	emails := crm.NewEmails(crm.EmailsDeps{
		Emails:     a.Store.Emails(),
		Activities: a.Store.Activities(),
		Lists:      lists,
		Dispatcher: a.Dispatcher,
		StaleAfter: cfg.Dispatch.StaleAfter,
	})

	// ─── Métricas ───
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err = metrics.Register(a.Registry); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	// ─── HTTP ───
	cookies := cookie.Policy{
		Name:     cfg.Auth.Session.CookieName,
		Domain:   cfg.Auth.Session.Domain,
		SameSite: cfg.Auth.Session.SameSite,
		Secure:   cfg.Auth.Session.Secure,
	}
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		limiter = rate.New(a.Cache, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Limit, cfg.Rate.Window)
	}
	a.Handler = router.New(router.Deps{
		Controllers: router.Controllers{
			Auth:       authctrl.NewController(accounts, cookies),
			Gmail:      gmailctrl.NewController(gm, accounts, cookies, cfg.Google.SuccessRedirect),
			Lists:      listsctrl.NewController(lists),
			Recipients: recipientsctrl.NewController(recipients),
			Emails:     emailsctrl.NewController(emails),
			Health: healthctrl.NewController(cfg.App.Version, map[string]healthctrl.Pinger{
				"store": a.Store,
				"cache": a.Cache,
			}),
		},
		Issuer:      issuer,
		CookieName:  cfg.Auth.Session.CookieName,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Gatherer:    a.Registry,
		AuthLimiter: limiter,
	})
	a.server = server.New(server.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, a.Handler)

	logger.L().Info("app wired",
		logger.String("storage", a.Store.Name()),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("transport", cfg.Mail.Transport),
		logger.String("status_policy", string(cfg.StatusPolicy())),
		logger.Bool("scheduler", cfg.Scheduler.Enabled),
	)
	return a, nil
}

func newTransport(cfg *config.Config, creds *google.CredentialManager) mail.Transport {
	if cfg.Mail.Transport == "smtp" {
		s := cfg.Mail.SMTP
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Host:               s.Host,
			Port:               s.Port,
			Username:           s.Username,
			Password:           s.Password,
			From:               s.From,
			TLSMode:            s.TLS,
			InsecureSkipVerify: s.InsecureSkipVerify,
		})
	}
	return mail.NewGmailTransport(creds)
}

// Run sirve HTTP en cfg.Server.Addr y corre el scheduler hasta que ctx se cancela.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve como Run pero sobre un listener ya abierto. Si cualquiera de los dos
// componentes falla, el otro se detiene.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Serve(gctx, ln)
	})
	if a.cfg.Scheduler.Enabled {
		g.Go(func() error {
			return a.Scheduler.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.L().Info("app stopped")
	return err
}

// Close libera store y cache. Es seguro llamarlo más de una vez.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close cache: %w", err))
		}
		a.Cache = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.Store = nil
	}
	return errors.Join(errs...)
}
