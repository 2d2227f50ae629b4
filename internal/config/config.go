package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Session      SessionConfig
	Billing      BillingConfig
	Entitlements EntitlementsConfig
	CORS         CORSConfig
	Alerts       AlertsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type SessionConfig struct {
	// SigningSecret signs the ms_auth cookie token. Rotating it invalidates
	// every outstanding session.
	SigningSecret string

	// AppTokenSecret signs the short-lived hosted-app JWT. Deliberately a
	// separate secret from the cookie token; the two are not interchangeable.
	AppTokenSecret string
	AppTokenTTL    time.Duration

	// CookieDomain is the root marketing domain (e.g. ".marketscannerpros.app")
	// so the app subdomain receives the cookie.
	CookieDomain string
}

type BillingConfig struct {
	StripeSecretKey string
	PricePro        string
	PriceProTrader  string
}

type EntitlementsConfig struct {
	RevenueCatAPIKey string

	// FreeForAll grants pro entitlement to every caller, bypassing billing.
	// Outside production an unset flag defaults to on, matching the launch
	// posture; in production it must be set explicitly either way.
	FreeForAll    bool
	FreeForAllSet bool

	ProOverrideEmails []string
}

type CORSConfig struct {
	// AllowedOrigins is the explicit allow-list reflected on the session and
	// login endpoints.
	AllowedOrigins []string
}

type AlertsConfig struct {
	// SendKey guards the alert-send endpoint; empty leaves it open.
	SendKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

var defaultAllowedOrigins = []string{
	"https://app.marketscannerpros.app",
	"https://marketscannerpros.app",
	"https://www.marketscannerpros.app",
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Session.SigningSecret = os.Getenv("APP_SIGNING_SECRET")
	c.Session.AppTokenSecret = os.Getenv("APP_TOKEN_SECRET")
	// Optional; default applied in Validate().
	c.Session.AppTokenTTL = mustDuration("APP_TOKEN_TTL")
	c.Session.CookieDomain = strings.TrimSpace(os.Getenv("COOKIE_DOMAIN"))

	c.Billing.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	c.Billing.PricePro = strings.TrimSpace(os.Getenv("PRICE_PRO"))
	c.Billing.PriceProTrader = strings.TrimSpace(os.Getenv("PRICE_PRO_TRADER"))

	c.Entitlements.RevenueCatAPIKey = os.Getenv("REVENUECAT_SECRET_API_KEY")
	if v, ok := os.LookupEnv("FREE_FOR_ALL_MODE"); ok {
		c.Entitlements.FreeForAllSet = true
		c.Entitlements.FreeForAll = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	c.Entitlements.ProOverrideEmails = splitList(os.Getenv("PRO_OVERRIDE_EMAILS"))

	c.CORS.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	c.Alerts.SendKey = os.Getenv("ALERTS_SEND_KEY")
	c.Alerts.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if strings.TrimSpace(os.Getenv("SMTP_PORT")) != "" {
		n, err := mustInt("SMTP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Alerts.SMTPPort = n
	}
	c.Alerts.SMTPUsername = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.Alerts.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	c.Alerts.SMTPFrom = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Session.SigningSecret == "" {
		errs = append(errs, errors.New("APP_SIGNING_SECRET is required"))
	}
	if c.Session.AppTokenSecret == "" {
		errs = append(errs, errors.New("APP_TOKEN_SECRET is required"))
	}
	if c.Session.SigningSecret != "" && c.Session.SigningSecret == c.Session.AppTokenSecret {
		errs = append(errs, errors.New("APP_SIGNING_SECRET and APP_TOKEN_SECRET must differ"))
	}
	if c.Session.AppTokenTTL <= 0 {
		c.Session.AppTokenTTL = 30 * time.Minute
	}

	if c.Billing.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}

	if c.IsProduction() {
		if c.Session.CookieDomain == "" {
			errs = append(errs, errors.New("COOKIE_DOMAIN is required in production"))
		}
		// Granting pro to everyone must be a deliberate production decision,
		// never an unset default.
		if !c.Entitlements.FreeForAllSet {
			errs = append(errs, errors.New("FREE_FOR_ALL_MODE must be set explicitly in production"))
		}
	} else if !c.Entitlements.FreeForAllSet {
		// Launch posture outside production: everything free.
		c.Entitlements.FreeForAll = true
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = defaultAllowedOrigins
	}

	if c.Alerts.SMTPHost != "" {
		if c.Alerts.SMTPPort <= 0 || c.Alerts.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.Alerts.SMTPPort))
		}
		if c.Alerts.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AlertsEnabled reports whether outbound alert mail is configured.
func (c Config) AlertsEnabled() bool {
	return c.Alerts.SMTPHost != ""
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
