package unit

import (
	"testing"
	"time"

	"github.com/roomcast/roomcast/internal/server"
)

// TestNewConfigDefaults verifies the built-in defaults, including the store
// selection.
func TestNewConfigDefaults(t *testing.T) {
	cfg := server.NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %q", cfg.Port)
	}
	if cfg.Store.Backend != server.StoreBackendFile {
		t.Errorf("Expected default backend %q, got %q", server.StoreBackendFile, cfg.Store.Backend)
	}
	if cfg.Store.HistoryLimit != 1000 {
		t.Errorf("Expected default history limit 1000, got %d", cfg.Store.HistoryLimit)
	}
	if cfg.RateLimit.Burst <= 0 {
		t.Error("Expected a positive default rate limit burst")
	}
}

// TestNewConfigFromEnv verifies environment variables override the defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("MONGO_DATABASE", "chat")
	t.Setenv("HISTORY_LIMIT", "500")
	t.Setenv("FILE_STORE_DIR", "/var/lib/roomcast")
	t.Setenv("STATIC_DIR", "public")

	cfg := server.NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example.com" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("Expected burst 3, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Expected refill interval 2s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.Store.Backend != server.StoreBackendMongo {
		t.Errorf("Expected mongo backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.MongoURI != "mongodb://db.internal:27017" {
		t.Errorf("Unexpected mongo URI: %q", cfg.Store.MongoURI)
	}
	if cfg.Store.MongoDatabase != "chat" {
		t.Errorf("Unexpected mongo database: %q", cfg.Store.MongoDatabase)
	}
	if cfg.Store.HistoryLimit != 500 {
		t.Errorf("Expected history limit 500, got %d", cfg.Store.HistoryLimit)
	}
	if cfg.Store.FileDir != "/var/lib/roomcast" {
		t.Errorf("Unexpected file dir: %q", cfg.Store.FileDir)
	}
	if cfg.StaticDir != "public" {
		t.Errorf("Unexpected static dir: %q", cfg.StaticDir)
	}
}

// TestNewConfigFromEnvInvalidValues verifies malformed values fall back to
// defaults rather than erroring.
func TestNewConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-5")
	t.Setenv("HISTORY_LIMIT", "zero")

	cfg := server.NewConfigFromEnv()
	defaults := server.NewConfig()

	if cfg.MaxMessageSize != defaults.MaxMessageSize {
		t.Errorf("Expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != defaults.RateLimit.Burst {
		t.Errorf("Expected default burst, got %d", cfg.RateLimit.Burst)
	}
	if cfg.Store.HistoryLimit != defaults.Store.HistoryLimit {
		t.Errorf("Expected default history limit, got %d", cfg.Store.HistoryLimit)
	}
}

// TestSetConfigDoesNotMutateCaller verifies SetConfig sanitizes a copy and
// leaves the caller's struct untouched.
func TestSetConfigDoesNotMutateCaller(t *testing.T) {
	t.Cleanup(func() { server.SetConfig(nil) })

	cfg := server.NewConfig()
	cfg.Store.Backend = "cassandra"
	cfg.Port = ""
	server.SetConfig(cfg)

	if cfg.Store.Backend != "cassandra" {
		t.Error("SetConfig must not mutate the caller's backend")
	}
	if cfg.Port != "" {
		t.Error("SetConfig must not mutate the caller's port")
	}
}
