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

// Backends accepted by DATA_BACKEND.
const (
	BackendAPI    = "api"
	BackendOutbox = "outbox"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port           string
	RequestTimeout time.Duration

	// Backend selection
	DataBackend string

	// Session token verification
	AuthJWKSURL    string
	AuthIssuer     string
	AuthAudience   string
	AuthHMACSecret string

	// Purchase record store
	RecordsAPIURL       string
	RecordsServiceToken string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPNotifyQueue string

	// Generative model
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	SyncBatchSize   int
	SyncInterval    time.Duration
	SyncMaxAttempts int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		AuthJWKSURL:    getEnv("AUTH_JWKS_URL", ""),
		AuthIssuer:     getEnv("AUTH_ISSUER", ""),
		AuthAudience:   getEnv("AUTH_AUDIENCE", ""),
		AuthHMACSecret: getEnv("AUTH_HMAC_SECRET", ""),

		RecordsAPIURL:       getEnv("RECORDS_API_URL", ""),
		RecordsServiceToken: getEnv("RECORDS_SERVICE_TOKEN", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/carbon.db"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "carbon"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "purchase_sync"),
		AMQPNotifyQueue: getEnv("AMQP_NOTIFY_QUEUE", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash-preview-09-2025"),
		GeminiEndpoint: getEnv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta/models"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Purchases"),

		SyncBatchSize:   getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncMaxAttempts: getEnvInt("SYNC_MAX_ATTEMPTS", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration for the web process and returns every
// problem in one error.
func (c *Config) Validate() error {
	return joinProblems(c.problems())
}

// ValidateWeb adds the web process's requirement that session tokens can be
// verified, either against a JWKS or a shared development secret.
func (c *Config) ValidateWeb() error {
	problems := c.problems()
	if c.AuthJWKSURL == "" && c.AuthHMACSecret == "" {
		problems = append(problems, "AUTH_JWKS_URL or AUTH_HMAC_SECRET is required to verify session tokens")
	}
	return joinProblems(problems)
}

// ValidateWorker adds the worker's requirements: the outbox database, the
// record store and the service credential used to write on users' behalf.
func (c *Config) ValidateWorker() error {
	problems := c.problems()
	if c.DataBackend != BackendOutbox {
		problems = append(problems, fmt.Sprintf("worker requires DATA_BACKEND=%s, got '%s'", BackendOutbox, c.DataBackend))
	}
	if c.RecordsServiceToken == "" {
		problems = append(problems, "RECORDS_SERVICE_TOKEN is required for the worker")
	}
	return joinProblems(problems)
}

func (c *Config) problems() []string {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RequestTimeout <= 0 || c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be between 0 and 5 minutes", c.RequestTimeout))
	}

	// Validate data backend
	validBackends := []string{BackendAPI, BackendOutbox, BackendMemory}
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

	// The record store is required by both remote backends
	if c.DataBackend == BackendAPI || c.DataBackend == BackendOutbox {
		if c.RecordsAPIURL == "" {
			errors = append(errors, fmt.Sprintf("RECORDS_API_URL is required when using %s backend", c.DataBackend))
		} else if msg := checkHTTPURL("RECORDS_API_URL", c.RecordsAPIURL); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AuthJWKSURL != "" {
		if msg := checkHTTPURL("AUTH_JWKS_URL", c.AuthJWKSURL); msg != "" {
			errors = append(errors, msg)
		}
		if c.AuthHMACSecret != "" {
			errors = append(errors, "AUTH_JWKS_URL and AUTH_HMAC_SECRET are mutually exclusive")
		}
	} else if c.AuthHMACSecret != "" && len(c.AuthHMACSecret) < 32 {
		errors = append(errors, "AUTH_HMAC_SECRET must be at least 32 characters")
	}

	// Validate SQLite configuration if backend is outbox
	if c.DataBackend == BackendOutbox {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using outbox backend")
		} else {
			// Check if directory exists or can be created
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
		if c.AMQPNotifyQueue != "" && c.AMQPNotifyQueue == c.AMQPQueue {
			errors = append(errors, "AMQP notify queue must differ from the sync queue")
		}
	}

	// The assistant is optional; when enabled the endpoint must be usable
	if c.GeminiAPIKey != "" {
		if msg := checkHTTPURL("GEMINI_ENDPOINT", c.GeminiEndpoint); msg != "" {
			errors = append(errors, msg)
		}
		if strings.TrimSpace(c.GeminiModel) == "" {
			errors = append(errors, "GEMINI_MODEL cannot be empty when GEMINI_API_KEY is set")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncMaxAttempts < 1 || c.SyncMaxAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid sync max attempts %d: must be between 1 and 100", c.SyncMaxAttempts))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	return errors
}

func joinProblems(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func checkHTTPURL(key, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s '%s': %v", key, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", key, raw)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
