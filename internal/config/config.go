package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"presupuestos/internal/forms"
	applog "presupuestos/internal/log"
)

// Data backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendFirebase = "firebase"
)

// Session stores.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

const minSigningKeyLength = 32

type Config struct {
	// HTTP Server
	Port               string `env:"PORT" envDefault:"8081"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	CookieSecure       bool   `env:"COOKIE_SECURE" envDefault:"false"`

	// Backend selection
	DataBackend string `env:"DATA_BACKEND" envDefault:"memory"`

	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/presupuestos.db"`

	// Budget endpoint root. Empty means the local /rtdb/ endpoint.
	PresupuestosBaseURL string `env:"PRESUPUESTOS_BASE_URL"`

	// Hosted backend
	FirebaseAPIKey           string `env:"FIREBASE_API_KEY"`
	FirebaseProjectID        string `env:"FIREBASE_PROJECT_ID"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Local identity provider
	TokenSigningKey  string        `env:"TOKEN_SIGNING_KEY"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginLockout     time.Duration `env:"LOGIN_LOCKOUT" envDefault:"5m"`

	// Sessions
	SessionStore  string        `env:"SESSION_STORE" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// AMQP. Notifications are only published when AMQPURL is set.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"presupuestos"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"notifications"`

	// Forms
	FormResetPolicy string `env:"FORM_RESET_POLICY" envDefault:"dispatch"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ResetPolicy returns the parsed form reset policy.
func (c *Config) ResetPolicy() forms.ResetPolicy {
	p, _ := forms.ParseResetPolicy(c.FormResetPolicy)
	return p
}

// LocalBackend reports whether the backend serves its own budget endpoint.
func (c *Config) LocalBackend() bool {
	return c.DataBackend == BackendMemory || c.DataBackend == BackendSQLite
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate data backend
	validBackends := []string{BackendMemory, BackendSQLite, BackendFirebase}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == BackendFirebase {
		if c.FirebaseAPIKey == "" {
			errors = append(errors, "FIREBASE_API_KEY is required when using firebase backend")
		}
		if c.FirebaseProjectID == "" {
			errors = append(errors, "FIREBASE_PROJECT_ID is required when using firebase backend")
		}
		if c.PresupuestosBaseURL == "" {
			errors = append(errors, "PRESUPUESTOS_BASE_URL is required when using firebase backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.PresupuestosBaseURL != "" {
		if u, err := url.Parse(c.PresupuestosBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid presupuestos base URL '%s': %v", c.PresupuestosBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid presupuestos base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	// Local identity provider
	if c.TokenSigningKey != "" && len(c.TokenSigningKey) < minSigningKeyLength {
		errors = append(errors, fmt.Sprintf("TOKEN_SIGNING_KEY must be at least %d bytes", minSigningKeyLength))
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	if c.LoginMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid login max attempts %d: must be at least 1", c.LoginMaxAttempts))
	}
	if c.LoginLockout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid login lockout %v: must be at least 1 second", c.LoginLockout))
	}

	// Sessions
	validStores := []string{SessionStoreMemory, SessionStoreRedis}
	if !contains(validStores, c.SessionStore) {
		errors = append(errors, fmt.Sprintf("invalid session store '%s': must be one of %v", c.SessionStore, validStores))
	}
	if c.SessionStore == SessionStoreRedis && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis session store")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := forms.ParseResetPolicy(c.FormResetPolicy); err != nil {
		errors = append(errors, fmt.Sprintf("invalid form reset policy '%s': must be 'dispatch' or 'settle'", c.FormResetPolicy))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
