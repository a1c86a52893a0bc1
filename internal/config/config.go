package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/security/secretbox"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Logging struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"logging"`

	Server struct {
		Addr               string        `yaml:"addr"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		ReadHeaderTimeout  time.Duration `yaml:"read_header_timeout"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		IdleTimeout        time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver         string        `yaml:"driver"` // memory | mongo | postgres
		DSN            string        `yaml:"dsn"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		Migrate        bool          `yaml:"migrate"` // aplicar esquema al arrancar
		Postgres       struct {
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MaxIdleConns    int           `yaml:"max_idle_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Mongo struct {
			URI      string `yaml:"uri"`
			Database string `yaml:"database"`
		} `yaml:"mongo"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		Issuer        string `yaml:"issuer"`
		SessionSecret string `yaml:"session_secret"` // HS256, >= 32 bytes
		Session       struct {
			CookieName string        `yaml:"cookie_name"`
			Domain     string        `yaml:"domain"`
			SameSite   string        `yaml:"samesite"`
			Secure     bool          `yaml:"secure"`
			TTL        time.Duration `yaml:"ttl"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"` // base64(32 bytes), cifra las credenciales de Gmail
		PasswordPolicy     struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
	} `yaml:"security"`

	// ───────── Google / Gmail ─────────
	Google struct {
		ClientID        string        `yaml:"client_id"`
		ClientSecret    string        `yaml:"client_secret"`
		RedirectURL     string        `yaml:"redirect_url"` // si vacío => <public_url>/api/gmail/callback
		PublicURL       string        `yaml:"public_url"`
		HTTPTimeout     time.Duration `yaml:"http_timeout"`
		StateTTL        time.Duration `yaml:"state_ttl"`
		SuccessRedirect string        `yaml:"success_redirect"` // frontend; vacío = el callback responde JSON
	} `yaml:"google"`

	Mail struct {
		Transport string `yaml:"transport"` // gmail | smtp
		SMTP      struct {
			Host               string `yaml:"host"`
			Port               int    `yaml:"port"`
			Username           string `yaml:"username"`
			Password           string `yaml:"password"`
			From               string `yaml:"from"`
			TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
		} `yaml:"smtp"`
	} `yaml:"mail"`

	// Rate limit de register/login por IP
	Rate struct {
		Enabled bool          `yaml:"enabled"`
		Limit   int           `yaml:"limit"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"rate"`

	Dispatch struct {
		StatusPolicy string        `yaml:"status_policy"` // pipeline | strict
		StaleAfter   time.Duration `yaml:"stale_after"`   // "sending" sin cambios por más de esto se puede reprogramar
	} `yaml:"dispatch"`

	Scheduler struct {
		Enabled    bool          `yaml:"enabled"`
		Interval   time.Duration `yaml:"interval"`
		RunOnStart bool          `yaml:"run_on_start"`
	} `yaml:"scheduler"`
}

// Default devuelve una Config con los defaults aplicados (sin YAML ni env).
func Default() *Config {
	var c Config
	c.Scheduler.Enabled = true
	c.Rate.Enabled = true
	c.applyDefaults()
	return &c
}

// Load lee el YAML en path, aplica defaults, pisa con env y valida.
// Con path vacío sólo se usan defaults + env.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		// el YAML puede haber vaciado campos con default
		c.applyDefaults()
	}

	// Overrides por env
	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDotEnv carga path (.env) si existe. Un archivo ausente no es error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("config: dotenv %s: %w", path, err)
	}
	return true, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.ConnectTimeout == 0 {
		c.Storage.ConnectTimeout = 10 * time.Second
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "hellomail"
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "hellomail:"
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "hellomail"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "hm_session"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == 0 {
		c.Auth.Session.TTL = 12 * time.Hour
	}

	// Password policy default
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}

	if c.Google.HTTPTimeout == 0 {
		c.Google.HTTPTimeout = 30 * time.Second
	}
	if c.Google.StateTTL == 0 {
		c.Google.StateTTL = 10 * time.Minute
	}
	// Si RedirectURL vacío pero tenemos public_url ⇒ autogenerar
	if strings.TrimSpace(c.Google.RedirectURL) == "" && strings.TrimSpace(c.Google.PublicURL) != "" {
		c.Google.RedirectURL = strings.TrimRight(c.Google.PublicURL, "/") + "/api/gmail/callback"
	}

	if c.Mail.Transport == "" {
		c.Mail.Transport = "gmail"
	}
	if c.Mail.SMTP.TLS == "" {
		c.Mail.SMTP.TLS = "auto"
	}

	if c.Rate.Limit == 0 {
		c.Rate.Limit = 10
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}

	if c.Dispatch.StatusPolicy == "" {
		c.Dispatch.StatusPolicy = string(dispatch.PolicyPipeline)
	}
	if c.Dispatch.StaleAfter == 0 {
		c.Dispatch.StaleAfter = 15 * time.Minute
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = time.Minute
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvDur("SERVER_WRITE_TIMEOUT"); ok {
		c.Server.WriteTimeout = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}
	if v, ok := getEnvStr("MONGO_URI"); ok {
		c.Storage.Mongo.URI = v
	}
	if v, ok := getEnvStr("MONGO_DATABASE"); ok {
		c.Storage.Mongo.Database = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvDur("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SECRET"); ok {
		c.Auth.SessionSecret = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("AUTH_SESSION_SECURE"); ok {
		c.Auth.Session.Secure = v
	}
	if v, ok := getEnvDur("AUTH_SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvInt("SECURITY_PASSWORD_POLICY_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_UPPER"); ok {
		c.Security.PasswordPolicy.RequireUpper = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_LOWER"); ok {
		c.Security.PasswordPolicy.RequireLower = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_DIGIT"); ok {
		c.Security.PasswordPolicy.RequireDigit = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_SYMBOL"); ok {
		c.Security.PasswordPolicy.RequireSymbol = v
	}

	// ───── Google ─────
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_REDIRECT_URL"); ok {
		c.Google.RedirectURL = v
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.Google.PublicURL = v
	}
	if v, ok := getEnvDur("GOOGLE_HTTP_TIMEOUT"); ok {
		c.Google.HTTPTimeout = v
	}
	if v, ok := getEnvStr("GOOGLE_SUCCESS_REDIRECT"); ok {
		c.Google.SuccessRedirect = v
	}

	// MAIL
	if v, ok := getEnvStr("MAIL_TRANSPORT"); ok {
		c.Mail.Transport = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.Mail.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.Mail.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.Mail.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.Mail.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.Mail.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.Mail.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.Mail.SMTP.InsecureSkipVerify = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_AUTH_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvDur("RATE_AUTH_WINDOW"); ok {
		c.Rate.Window = v
	}

	// DISPATCH / SCHEDULER
	if v, ok := getEnvStr("DISPATCH_STATUS_POLICY"); ok {
		c.Dispatch.StatusPolicy = v
	}
	if v, ok := getEnvDur("DISPATCH_STALE_AFTER"); ok {
		c.Dispatch.StaleAfter = v
	}
	if v, ok := getEnvBool("SCHEDULER_ENABLED"); ok {
		c.Scheduler.Enabled = v
	}
	if v, ok := getEnvDur("SCHEDULER_INTERVAL"); ok {
		c.Scheduler.Interval = v
	}
	if v, ok := getEnvBool("SCHEDULER_RUN_ON_START"); ok {
		c.Scheduler.RunOnStart = v
	}
}

// Validate reporta todos los problemas juntos (secretos faltantes, enums inválidos).
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	case "mongo", "mongodb":
		if strings.TrimSpace(c.Storage.Mongo.URI) == "" {
			add("storage.mongo.uri is required for driver %q", c.Storage.Driver)
		}
	default:
		add("storage.driver %q not supported (memory|mongo|postgres)", c.Storage.Driver)
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Host) == "" {
			add("cache.redis.host is required for cache kind redis")
		}
	default:
		add("cache.kind %q not supported (memory|redis)", c.Cache.Kind)
	}

	if len(c.Auth.SessionSecret) < 32 {
		add("auth.session_secret must be at least 32 bytes (AUTH_SESSION_SECRET)")
	}
	if strings.TrimSpace(c.Security.SecretBoxMasterKey) == "" {
		add("security.secretbox_master_key is required (SECRETBOX_MASTER_KEY, base64 of 32 bytes)")
	} else if _, err := secretbox.ParseKey(c.Security.SecretBoxMasterKey); err != nil {
		add("security.secretbox_master_key: %v", err)
	}

	if strings.TrimSpace(c.Google.ClientID) == "" || strings.TrimSpace(c.Google.ClientSecret) == "" {
		add("google.client_id and google.client_secret are required (GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET)")
	}
	if strings.TrimSpace(c.Google.RedirectURL) == "" {
		add("google.redirect_url is required (or set google.public_url)")
	}

	switch c.Mail.Transport {
	case "gmail":
	case "smtp":
		if strings.TrimSpace(c.Mail.SMTP.Host) == "" {
			add("mail.smtp.host is required for transport smtp")
		}
	default:
		add("mail.transport %q not supported (gmail|smtp)", c.Mail.Transport)
	}

	if _, err := dispatch.ParseStatusPolicy(c.Dispatch.StatusPolicy); err != nil {
		add("dispatch.status_policy: %v", err)
	}
	if c.Dispatch.StaleAfter < time.Minute {
		add("dispatch.stale_after must be >= 1m")
	}
	if c.Scheduler.Interval < time.Second {
		add("scheduler.interval must be >= 1s")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// StatusPolicy devuelve la política ya validada.
func (c *Config) StatusPolicy() dispatch.StatusPolicy {
	p, _ := dispatch.ParseStatusPolicy(c.Dispatch.StatusPolicy)
	return p
}

// Summary resumen de la config efectiva con los secretos enmascarados (print-config).
func (c *Config) Summary() string {
	return fmt.Sprintf(`CONFIG:
  app.env=%s log.level=%s
  server.addr=%s cors=%v
  storage.driver=%s dsn=%s mongo.uri=%s mongo.db=%s migrate=%t
  cache.kind=%s redis=%s:%d db=%d prefix=%s
  auth(issuer=%s, cookie=%s, samesite=%s, secure=%t, ttl=%s, secret=%s)
  security(secretbox_key=%s, min_length=%d)
  google(client_id=%s, secret=%s, redirect=%s, timeout=%s, success_redirect=%s)
  mail(transport=%s, smtp=%s:%d tls=%s)
  rate(enabled=%t, limit=%d, window=%s)
  dispatch(status_policy=%s, stale_after=%s) scheduler(enabled=%t, interval=%s, run_on_start=%t)`,
		c.App.Env, c.Logging.Level,
		c.Server.Addr, c.Server.CORSAllowedOrigins,
		c.Storage.Driver, mask(c.Storage.DSN), mask(c.Storage.Mongo.URI), c.Storage.Mongo.Database, c.Storage.Migrate,
		c.Cache.Kind, c.Cache.Redis.Host, c.Cache.Redis.Port, c.Cache.Redis.DB, c.Cache.Redis.Prefix,
		c.Auth.Issuer, c.Auth.Session.CookieName, c.Auth.Session.SameSite, c.Auth.Session.Secure, c.Auth.Session.TTL, mask(c.Auth.SessionSecret),
		mask(c.Security.SecretBoxMasterKey), c.Security.PasswordPolicy.MinLength,
		c.Google.ClientID, mask(c.Google.ClientSecret), c.Google.RedirectURL, c.Google.HTTPTimeout, c.Google.SuccessRedirect,
		c.Mail.Transport, c.Mail.SMTP.Host, c.Mail.SMTP.Port, c.Mail.SMTP.TLS,
		c.Rate.Enabled, c.Rate.Limit, c.Rate.Window,
		c.Dispatch.StatusPolicy, c.Dispatch.StaleAfter, c.Scheduler.Enabled, c.Scheduler.Interval, c.Scheduler.RunOnStart,
	)
}

func mask(s string) string {
	if s == "" {
		return "NOT_SET"
	}
	return "***masked***"
}
