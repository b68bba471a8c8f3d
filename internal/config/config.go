package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Verifier VerifierConfig
	Vendor   VendorConfig
	Calls    CallsConfig
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

// RedisConfig is optional. An empty Host disables Redis entirely; the
// admission gate then falls back to best-effort quota checking.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// VerifierConfig controls bot verification. The server-side check is only
// enforced when SecretKey is set; SiteKey gates client-side token acquisition.
type VerifierConfig struct {
	SecretKey string
	SiteKey   string

	// Endpoint defaults to the Google siteverify URL when empty.
	Endpoint string
}

// VendorConfig identifies the external voice-call vendor and the agent
// all demo calls are scoped to.
type VendorConfig struct {
	APIKey  string
	BaseURL string
	AgentID string
}

// CallsConfig is the call-admission policy surface.
type CallsConfig struct {
	// MaxCallsPerDay caps calls a user may start within one calendar day.
	MaxCallsPerDay int

	// MaxCallDurationSeconds is the client-enforced wall-clock cap per call.
	MaxCallDurationSeconds int

	// MaxSpendCents is the global spend ceiling across all vendor calls for
	// the configured agent. 0 disables the spend check.
	MaxSpendCents int64
}

const (
	defaultMaxCallsPerDay   = 5
	defaultMaxCallDuration  = 120
	defaultVerifierEndpoint = "https://www.google.com/recaptcha/api/siteverify"
)

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

	// Redis is optional; only parse the port when a host is configured.
	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Verifier.SecretKey = os.Getenv("VERIFIER_SECRET_KEY")
	c.Verifier.SiteKey = strings.TrimSpace(os.Getenv("VERIFIER_SITE_KEY"))
	c.Verifier.Endpoint = strings.TrimSpace(os.Getenv("VERIFIER_ENDPOINT"))

	c.Vendor.APIKey = os.Getenv("VENDOR_API_KEY")
	c.Vendor.BaseURL = strings.TrimSpace(os.Getenv("VENDOR_BASE_URL"))
	c.Vendor.AgentID = strings.TrimSpace(os.Getenv("VENDOR_AGENT_ID"))

	{
		n, err := optionalInt("MAX_CALLS_PER_DAY", defaultMaxCallsPerDay)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Calls.MaxCallsPerDay = n
	}
	{
		n, err := optionalInt("MAX_CALL_DURATION_SECONDS", defaultMaxCallDuration)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Calls.MaxCallDurationSeconds = n
	}
	{
		cents, err := optionalDollarsAsCents("MAX_SPEND_DOLLARS")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Calls.MaxSpendCents = cents
	}

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

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Verifier.Endpoint == "" {
		c.Verifier.Endpoint = defaultVerifierEndpoint
	}

	if c.Vendor.APIKey == "" {
		errs = append(errs, errors.New("VENDOR_API_KEY is required"))
	}
	if c.Vendor.BaseURL == "" {
		errs = append(errs, errors.New("VENDOR_BASE_URL is required"))
	}
	if c.Vendor.AgentID == "" {
		errs = append(errs, errors.New("VENDOR_AGENT_ID is required"))
	}

	if c.Calls.MaxCallsPerDay <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CALLS_PER_DAY must be > 0, got %d", c.Calls.MaxCallsPerDay))
	}
	if c.Calls.MaxCallDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CALL_DURATION_SECONDS must be > 0, got %d", c.Calls.MaxCallDurationSeconds))
	}
	if c.Calls.MaxSpendCents < 0 {
		errs = append(errs, errors.New("MAX_SPEND_DOLLARS must be >= 0"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// RedisEnabled reports whether a Redis endpoint was configured.
func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// VerifierEnabled reports whether server-side bot verification is enforced.
func (c Config) VerifierEnabled() bool {
	return c.Verifier.SecretKey != ""
}

// SpendCheckEnabled reports whether the global spend ceiling is enforced.
func (c Config) SpendCheckEnabled() bool {
	return c.Calls.MaxSpendCents > 0
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

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optionalDollarsAsCents parses a dollar amount env var into minor units.
// Missing or empty means 0 (check disabled).
func optionalDollarsAsCents(key string) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %q", key, v)
	}
	return int64(math.Round(f * 100)), nil
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
