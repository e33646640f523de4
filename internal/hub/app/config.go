package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	UpstreamBase  string // Required: base URL of the AiHub backend
	SessionSecret string // Required: HS256 signing secret for session tokens

	Issuer       string        // Optional: issuer claim for session tokens (default: asi-aihub)
	DatabaseFile string        // Optional: path to SQLite database file (default: ./aihub.db)
	DefaultRole  string        // Optional: role for lazily-created identities (default: admin)
	CodeTTL      time.Duration // Optional: one-time code validity window (default: 10m)
	SessionTTL   time.Duration // Optional: session token validity window (default: 168h)
	CookieSecure bool          // Optional: mark the session cookie Secure (default: true)
	ProxyTimeout time.Duration // Optional: upstream round-trip timeout (default: 30s)

	SMTPHost string // Optional: SMTP relay host (default: localhost)
	SMTPPort int    // Optional: SMTP relay port (default: 587)
	SMTPUser string // Optional: SMTP auth username
	SMTPPass string // Optional: SMTP auth password
	MailFrom string // Optional: From address for code mails (default: no-reply@asi-aihub.local)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		UpstreamBase:  os.Getenv("AIHUB_UPSTREAM_BASE"),
		SessionSecret: os.Getenv("AIHUB_SESSION_SECRET"),

		Issuer:       getEnvOrDefault("AIHUB_ISSUER", "asi-aihub"),
		DatabaseFile: getEnvOrDefault("AIHUB_DATABASE_FILE", "aihub.db"),
		DefaultRole:  getEnvOrDefault("AIHUB_DEFAULT_ROLE", "admin"),
		CodeTTL:      getEnvDurationOrDefault("AIHUB_CODE_TTL", 10*time.Minute),
		SessionTTL:   getEnvDurationOrDefault("AIHUB_SESSION_TTL", 7*24*time.Hour),
		CookieSecure: getEnvBoolOrDefault("AIHUB_COOKIE_SECURE", true),
		ProxyTimeout: getEnvDurationOrDefault("AIHUB_PROXY_TIMEOUT", 30*time.Second),

		SMTPHost: getEnvOrDefault("AIHUB_SMTP_HOST", "localhost"),
		SMTPPort: getEnvIntOrDefault("AIHUB_SMTP_PORT", 587),
		SMTPUser: os.Getenv("AIHUB_SMTP_USER"),
		SMTPPass: os.Getenv("AIHUB_SMTP_PASS"),
		MailFrom: getEnvOrDefault("AIHUB_MAIL_FROM", "no-reply@asi-aihub.local"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate fails fast on configuration the service cannot run without.
func (cfg Config) Validate() error {
	if cfg.SessionSecret == "" {
		return errors.New("AIHUB_SESSION_SECRET is required")
	}
	if cfg.UpstreamBase == "" {
		return errors.New("AIHUB_UPSTREAM_BASE is required")
	}

	u, err := url.Parse(cfg.UpstreamBase)
	if err != nil {
		return fmt.Errorf("AIHUB_UPSTREAM_BASE is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("AIHUB_UPSTREAM_BASE must be http or https, got %q", u.Scheme)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
