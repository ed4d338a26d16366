// Package params loads the execution core's environment configuration, in
// the style of the teacher's config loader: a Default() baseline, optional
// .env overlay via godotenv, then explicit environment variable overrides.
package params

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Hyli carries the external-service endpoints and credentials spec.md §6
// names: where the node/server/registry live, plus the registry API key and
// admin secret. Both credentials are loaded here but read by no other
// package; permissioned actions are gated by Config.HashedSecretHex.
type Hyli struct {
	NodeURL        string
	ServerURL      string
	RegistryURL    string
	RegistryAPIKey string
	AdminSecret    string
	// OrderbookCN is the contract name this execution core's commitments are
	// published under.
	OrderbookCN string
}

// Storage configures the Pebble-backed event log's durability path.
type Storage struct {
	EventLogPath string
}

type Config struct {
	Hyli    Hyli
	Storage Storage
	// HashedSecretHex is the SHA-256 (hex-encoded) of the permissioned-action
	// secret, loaded once at startup and compared against on every
	// permissioned action (see pkg/actions.Dispatcher).
	HashedSecretHex string
	// ListenAddr is the pkg/api HTTP+WebSocket bind address.
	ListenAddr string
	// BatchInterval is loaded with a default but read by no other package:
	// pkg/api commits each accepted action as its own batch, without
	// throttling.
	BatchInterval time.Duration
}

func Default() Config {
	return Config{
		Storage: Storage{
			EventLogPath: "./data/eventlog",
		},
		ListenAddr:    ":8080",
		BatchInterval: 200 * time.Millisecond,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and then
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Hyli.NodeURL = getEnv("HYLI_NODE_URL", cfg.Hyli.NodeURL)
	cfg.Hyli.ServerURL = getEnv("HYLI_SERVER_URL", cfg.Hyli.ServerURL)
	cfg.Hyli.RegistryURL = getEnv("HYLI_REGISTRY_URL", cfg.Hyli.RegistryURL)
	cfg.Hyli.RegistryAPIKey = getEnv("HYLI_REGISTRY_API_KEY", cfg.Hyli.RegistryAPIKey)
	cfg.Hyli.AdminSecret = getEnv("HYLI_ADMIN_SECRET", cfg.Hyli.AdminSecret)
	cfg.Hyli.OrderbookCN = getEnv("ORDERBOOK_CN", cfg.Hyli.OrderbookCN)

	cfg.Storage.EventLogPath = getEnv("EVENT_LOG_PATH", cfg.Storage.EventLogPath)
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.HashedSecretHex = getEnv("HASHED_SECRET_HEX", cfg.HashedSecretHex)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
