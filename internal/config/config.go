package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ndewijer/fci-sync/internal/apperrors"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Upstream UpstreamConfig
	Sync     SyncConfig
	Events   EventsConfig
	Log      LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string
	URL    string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// UpstreamConfig holds the CAFCI API settings.
type UpstreamConfig struct {
	BaseURL        string
	Origin         string
	Referer        string
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RegionID       string
	Status         string
}

// SyncConfig holds the batch runner policy.
type SyncConfig struct {
	RequestDelay     time.Duration
	RateLimitBackoff time.Duration
	StaleMonths      int
	CheckpointEvery  int
	StatusEvery      int
	DataDir          string
	Schedule         string
	LockStaleAfter   time.Duration
}

// EventsConfig holds NATS settings. An empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	p := &parser{}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:   getEnv("DB_PATH", "./data/fci.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("CAFCI_BASE_URL", "https://api.pub.cafci.org.ar"),
			Origin:         getEnv("CAFCI_ORIGIN", "https://www.cafci.org.ar"),
			Referer:        getEnv("CAFCI_REFERER", "https://www.cafci.org.ar/"),
			UserAgent:      getEnv("CAFCI_USER_AGENT", ""),
			Timeout:        p.duration("CAFCI_TIMEOUT", 15*time.Second),
			MaxAttempts:    p.positiveInt("CAFCI_MAX_ATTEMPTS", 3),
			RetryBaseDelay: p.duration("CAFCI_RETRY_BASE_DELAY", 2*time.Second),
			RegionID:       getEnv("CAFCI_REGION_ID", "1"),
			Status:         getEnv("CAFCI_STATUS", "1"),
		},
		Sync: SyncConfig{
			RequestDelay:     p.duration("SYNC_REQUEST_DELAY", 2000*time.Millisecond),
			RateLimitBackoff: p.duration("SYNC_RATE_LIMIT_BACKOFF", 60*time.Second),
			StaleMonths:      p.positiveInt("SYNC_STALE_MONTHS", 1),
			CheckpointEvery:  p.positiveInt("SYNC_CHECKPOINT_EVERY", 1),
			StatusEvery:      p.positiveInt("SYNC_STATUS_EVERY", 10),
			DataDir:          getEnv("SYNC_DATA_DIR", "./data"),
			Schedule:         getEnv("SYNC_SCHEDULE", ""),
			LockStaleAfter:   p.duration("SYNC_LOCK_STALE_AFTER", 24*time.Hour),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "fci.sync"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: p.boolean("LOG_PRETTY", false),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("%w: DB_DRIVER=%q (want sqlite or postgres)", apperrors.ErrUnsupportedDriver, config.Database.Driver)
	}
	if config.Database.Driver == "postgres" && config.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser collects the first malformed value so Load can report it.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

// duration accepts Go durations ("2s", "1500ms") and bare integers as milliseconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			p.fail(key, value, fmt.Errorf("must not be negative"))
			return def
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	if d < 0 {
		p.fail(key, value, fmt.Errorf("must not be negative"))
		return def
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	if n <= 0 {
		p.fail(key, value, fmt.Errorf("must be positive"))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return b
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
