// Package server provides configuration helpers that define runtime defaults,
// validation, storage selection, and rate-limiting parameters for the relay.
package server

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Storage backend identifiers accepted by StoreConfig.Backend.
const (
	StoreBackendFile  = "file"
	StoreBackendMongo = "mongo"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// StoreConfig selects and parameterizes the message persistence backend.
type StoreConfig struct {
	Backend       string
	FileDir       string
	MongoURI      string
	MongoDatabase string
	HistoryLimit  int
}

// Config holds the server configuration settings including security controls
// and message persistence.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	StaticDir      string
	RateLimit      RateLimitConfig
	Store          StoreConfig
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		Store: StoreConfig{
			Backend:       StoreBackendFile,
			FileDir:       "data",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "roomcast",
			HistoryLimit:  1000,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.Store.Backend != StoreBackendMongo {
		cfg.Store.Backend = StoreBackendFile
	}

	if cfg.Store.FileDir == "" {
		cfg.Store.FileDir = "data"
	}

	if cfg.Store.MongoURI == "" {
		cfg.Store.MongoURI = "mongodb://localhost:27017"
	}

	if cfg.Store.MongoDatabase == "" {
		cfg.Store.MongoDatabase = "roomcast"
	}

	if cfg.Store.HistoryLimit <= 0 {
		cfg.Store.HistoryLimit = 1000
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		Port:           cfg.Port,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize: cfg.MaxMessageSize,
		StaticDir:      cfg.StaticDir,
		RateLimit:      cfg.RateLimit,
		Store:          cfg.Store,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if staticDir := os.Getenv("STATIC_DIR"); staticDir != "" {
		cfg.StaticDir = staticDir
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(backend))
	}

	if dir := os.Getenv("FILE_STORE_DIR"); dir != "" {
		cfg.Store.FileDir = dir
	}

	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.Store.MongoURI = uri
	}

	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		cfg.Store.MongoDatabase = db
	}

	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		cfg.Store.HistoryLimit = parseIntValue(limit, cfg.Store.HistoryLimit)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
