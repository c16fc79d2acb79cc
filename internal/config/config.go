package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process and crmctl.
// Values come from env, optionally seeded from a .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Dialer DialerConfig
	Twilio TwilioConfig
}

type AppConfig struct {
	Env        string
	Port       int
	CORSOrigin string
}

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

type DBConfig struct {
	// Driver is pgx (default) or sqlite3.
	Driver string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Path is the sqlite database file.
	Path string
}

// RedisConfig is optional. With no host, token revocation is kept in memory
// and the per-user dial cap is disabled.
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

const (
	ProviderSimulated = "simulated"
	ProviderTwilio    = "twilio"
)

type DialerConfig struct {
	Provider string
	// MaxConcurrentPerUser caps in-flight dials per user. 0 disables the cap.
	MaxConcurrentPerUser int
	UploadMaxBytes       int64
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	StatusCallbackURL string
	APIBaseURL        string
}

// LoadEnvFile seeds the environment from the given files (default .env).
// Variables already set win. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = optionalInt(parseErrs, "APP_PORT")
	c.App.CORSOrigin = strings.TrimSpace(os.Getenv("CORS_ORIGIN"))

	c.DB.Driver = strings.TrimSpace(os.Getenv("DB_DRIVER"))
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = optionalInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.Path = strings.TrimSpace(os.Getenv("DB_PATH"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = optionalInt(parseErrs, "REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")

	c.Dialer.Provider = strings.TrimSpace(os.Getenv("DIALER_PROVIDER"))
	c.Dialer.MaxConcurrentPerUser, parseErrs = optionalInt(parseErrs, "DIALER_MAX_CONCURRENT_PER_USER")
	{
		n, errs := optionalInt(parseErrs, "UPLOAD_MAX_BYTES")
		c.Dialer.UploadMaxBytes, parseErrs = int64(n), errs
	}

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER"))
	c.Twilio.StatusCallbackURL = strings.TrimSpace(os.Getenv("TWILIO_STATUS_CALLBACK_URL"))
	c.Twilio.APIBaseURL = strings.TrimSpace(os.Getenv("TWILIO_API_BASE_URL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies env-dependent defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port == 0 {
		c.App.Port = 5000
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Driver == "" {
		c.DB.Driver = DriverPostgres
	}
	switch c.DB.Driver {
	case DriverPostgres:
		errs = append(errs, c.validatePostgres()...)
	case DriverSQLite:
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_DRIVER sqlite3 is not allowed in production"))
		}
		if c.DB.Path == "" {
			c.DB.Path = "crm.db"
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of pgx, sqlite3, got %q", c.DB.Driver))
	}

	if c.Redis.Host != "" {
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
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
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Dialer.Provider == "" {
		c.Dialer.Provider = ProviderSimulated
	}
	switch c.Dialer.Provider {
	case ProviderSimulated:
	case ProviderTwilio:
		if c.Twilio.AccountSID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required for the twilio provider"))
		}
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required for the twilio provider"))
		}
		if c.Twilio.FromNumber == "" {
			errs = append(errs, errors.New("TWILIO_FROM_NUMBER is required for the twilio provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("DIALER_PROVIDER must be one of simulated, twilio, got %q", c.Dialer.Provider))
	}
	if c.Dialer.MaxConcurrentPerUser < 0 {
		errs = append(errs, fmt.Errorf("DIALER_MAX_CONCURRENT_PER_USER must not be negative, got %d", c.Dialer.MaxConcurrentPerUser))
	}
	if c.Dialer.MaxConcurrentPerUser > 0 && c.Redis.Host == "" {
		errs = append(errs, errors.New("DIALER_MAX_CONCURRENT_PER_USER requires REDIS_HOST"))
	}
	if c.Dialer.UploadMaxBytes <= 0 {
		c.Dialer.UploadMaxBytes = 10 << 20
	}

	return joinErrors(errs)
}

func (c *Config) validatePostgres() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// DSN returns the data source name for c.DB.Driver.
// Avoid logging this string; it contains secrets.
func (c Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return c.DB.Path
	}
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

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
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
