package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; empty URL disables queueing
	AMQPURL         string
	AMQPExchange    string
	AMQPExportQueue string
	AMQPEventsQueue string

	// Auth (Supabase)
	SupabaseProjectID      string
	SupabaseURL            string
	SupabasePublishableKey string
	AuthJWTSecret          string

	// Google Drive
	GoogleScriptURL      string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleOAuthTokenFile string
	GoogleOAuthTokenJSON string

	// Export
	ExportDir string

	// CORS origins allowed to call the API, comma separated in env
	AllowedOrigins []string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/dompet.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "dompet"),
		AMQPExportQueue: getEnv("AMQP_EXPORT_QUEUE", "dompet_exports"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "dompet_sync_events"),

		SupabaseProjectID:      getEnv("SUPABASE_PROJECT_ID", ""),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		AuthJWTSecret:          getEnv("AUTH_JWT_SECRET", ""),

		GoogleScriptURL:      getEnv("GOOGLE_SCRIPT_URL", "https://accounts.google.com/gsi/client"),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleOAuthTokenFile: getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthTokenJSON: getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		ExportDir: getEnv("EXPORT_DIR", ""),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.SupabaseURL == "" && cfg.SupabaseProjectID != "" {
		cfg.SupabaseURL = "https://" + cfg.SupabaseProjectID + ".supabase.co"
	}

	return cfg
}

// AuthIssuer is the expected "iss" claim of access tokens, empty when no
// Supabase project is configured.
func (c *Config) AuthIssuer() string {
	if c.SupabaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1"
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// DriveOAuthEnabled reports whether the server holds its own Google client.
func (c *Config) DriveOAuthEnabled() bool {
	return c.GoogleClientID != ""
}

// Validate validates the API server configuration.
func (c *Config) Validate() error {
	errors := c.validateCommon()

	if c.AuthJWTSecret == "" {
		errors = append(errors, "AUTH_JWT_SECRET is required to verify access tokens")
	}
	return combine(errors)
}

// ValidateWorker validates the export worker configuration, which needs a
// broker but no token verification.
func (c *Config) ValidateWorker() error {
	errors := c.validateCommon()

	if !c.AMQPEnabled() {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.DataBackend == "memory" {
		errors = append(errors, "the export worker needs a persistent data backend (sqlite or postgres)")
	}
	return combine(errors)
}

func (c *Config) validateCommon() []string {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "postgres"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
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
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
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
		if c.AMQPExportQueue == "" || c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.SupabaseURL != "" {
		if u, err := url.Parse(c.SupabaseURL); err != nil || u.Scheme != "https" && u.Scheme != "http" {
			errors = append(errors, fmt.Sprintf("invalid SUPABASE_URL '%s'", c.SupabaseURL))
		}
	}

	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid CORS origin '%s'", origin))
		}
	}

	// The stored Drive token is only usable together with the OAuth client.
	if c.GoogleClientID != "" {
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with GOOGLE_CLIENT_ID")
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	if c.ExportDir != "" {
		if err := os.MkdirAll(c.ExportDir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create export directory '%s': %v", c.ExportDir, err))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
