// Package config provides hierarchical configuration loading for the
// coordinator. Precedence: defaults < YAML file < environment variables <
// CLI flags.
package config

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConfigHolder provides thread-safe access to a Config with hot-reload
// support. Services that hold pointers into the Config will see updated
// values after a reload because fields are swapped in-place.
type ConfigHolder struct {
	mu       sync.RWMutex
	cfg      Config
	yamlPath string
}

// NewHolder creates a ConfigHolder from an initial Config and the YAML path
// used for reloading.
func NewHolder(cfg *Config, yamlPath string) *ConfigHolder {
	return &ConfigHolder{cfg: *cfg, yamlPath: yamlPath}
}

// Get returns a pointer to the Config. Callers must not store the pointer
// long-term; read values immediately and release.
func (h *ConfigHolder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return &h.cfg
}

// Reload re-reads the YAML file and environment variables, validates, and
// swaps the config in-place. If validation fails, the old config is
// preserved. Fields that cannot be hot-reloaded (bind address, data
// directory) are logged as warnings if they differ.
func (h *ConfigHolder) Reload() error {
	newCfg, err := LoadFrom(h.yamlPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if newCfg.Server.BindAddr != h.cfg.Server.BindAddr {
		slog.Warn("config reload: server.bind_addr changed but requires restart",
			"old", h.cfg.Server.BindAddr, "new", newCfg.Server.BindAddr)
	}
	if newCfg.Server.DataDir != h.cfg.Server.DataDir {
		slog.Warn("config reload: server.data_dir changed but requires restart",
			"old", h.cfg.Server.DataDir, "new", newCfg.Server.DataDir)
	}
	if newCfg.NATS.URL != h.cfg.NATS.URL {
		slog.Warn("config reload: nats.url changed but requires restart",
			"old", h.cfg.NATS.URL, "new", newCfg.NATS.URL)
	}
	if newCfg.Logging.Level != h.cfg.Logging.Level {
		slog.Info("config reload: logging level changed",
			"old", h.cfg.Logging.Level, "new", newCfg.Logging.Level)
	}

	h.cfg = *newCfg
	return nil
}

// Config holds all runtime configuration for the coordinator service.
type Config struct {
	Server  Server  `yaml:"server"`
	Timing  Timing  `yaml:"timing"`
	Limits  Limits  `yaml:"limits"`
	Auth    Auth    `yaml:"auth"`
	Logging Logging `yaml:"logging"`
	Breaker Breaker `yaml:"breaker"`
	NATS    NATS    `yaml:"nats"`
	Cache   Cache   `yaml:"cache"`
	OTEL    OTEL    `yaml:"otel"`
	Consensus Consensus `yaml:"consensus"`
}

// Server holds bind address and on-disk data directory configuration.
type Server struct {
	BindAddr string `yaml:"bind_addr"` // BIND_ADDR, host:port
	DataDir  string `yaml:"data_dir"`  // DATA_DIR, root of per-project directories
}

// Auth holds the shared bearer token configuration. The token is stored
// only as a bcrypt hash; AUTH_TOKEN at startup is hashed once before being
// held in memory.
type Auth struct {
	TokenHash string `yaml:"token_hash" json:"-"` // bcrypt hash of the shared bearer token
}

// Timing holds every duration-valued knob from the specification's
// configuration table. The *_MS environment variables give milliseconds;
// the YAML file takes Go duration strings such as "30s". Both end up as
// time.Duration for in-process use.
type Timing struct {
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`   // HEARTBEAT_TIMEOUT_MS, default 60s
	OrchTimeout       time.Duration `yaml:"orch_timeout"`        // ORCH_TIMEOUT_MS, default 2m
	AuctionDefault    time.Duration `yaml:"auction_default"`     // AUCTION_DEFAULT_MS, default 10s
	MinLeaseTTL       time.Duration `yaml:"min_lease_ttl"`       // MIN_LEASE_TTL_MS, default 30s
	MaxLeaseTTL       time.Duration `yaml:"max_lease_ttl"`       // MAX_LEASE_TTL_MS, default 30m
	ProjectIdle       time.Duration `yaml:"project_idle"`        // PROJECT_IDLE_MS, default 15m
	AgentTTL          time.Duration `yaml:"agent_ttl"`           // AGENT_TTL_MS, default 30m
	PongTimeout       time.Duration `yaml:"pong_timeout"`        // PONG_TIMEOUT_MS, default 20s
	IdleTimeout       time.Duration `yaml:"idle_timeout"`        // IDLE_TIMEOUT_MS, default 90s
	ReapInterval      time.Duration `yaml:"reap_interval"`       // REAP_INTERVAL_MS, default 5s
	ScanInterval      time.Duration `yaml:"scan_interval"`       // SCAN_INTERVAL_MS, default 10s
	SnapshotEveryN    int           `yaml:"snapshot_every_n"`    // SNAPSHOT_EVERY_N, default 500
	SnapshotMaxAge    time.Duration `yaml:"snapshot_max_age"`    // complements SNAPSHOT_EVERY_N, default 60s
}

// Limits holds connection and queue bounds.
type Limits struct {
	MaxConnectionsPerProject int `yaml:"max_connections_per_project"` // MAX_CONNECTIONS_PER_PROJECT, default 64
	MaxEventQueue            int `yaml:"max_event_queue"`             // MAX_EVENT_QUEUE, default 256
	InboxCap                 int `yaml:"inbox_cap"`                   // YAML only (no env variable), default 1000
	RetryWrite               int `yaml:"retry_write"`                 // RETRY_WRITE, default 3
}

// Consensus holds defaults for safety-gate votes opened without an
// explicit quorum/threshold.
type Consensus struct {
	DefaultQuorum    int     `yaml:"default_quorum"`
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for the NATS fan-out path.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NATS holds optional event fan-out publisher configuration. URL == ""
// disables fan-out entirely.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds the L1/L2 read-projection cache configuration.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L2Bucket    string        `yaml:"l2_bucket"`
	L2TTL       time.Duration `yaml:"l2_ttl"`
}

// OTEL holds OpenTelemetry configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Defaults returns a Config with the specification's documented defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			BindAddr: ":8080",
			DataDir:  "data/projects",
		},
		Timing: Timing{
			HeartbeatTimeout: 60 * time.Second,
			OrchTimeout:      2 * time.Minute,
			AuctionDefault:   10 * time.Second,
			MinLeaseTTL:      30 * time.Second,
			MaxLeaseTTL:      30 * time.Minute,
			ProjectIdle:      15 * time.Minute,
			AgentTTL:         30 * time.Minute,
			PongTimeout:      20 * time.Second,
			IdleTimeout:      90 * time.Second,
			ReapInterval:     5 * time.Second,
			ScanInterval:     10 * time.Second,
			SnapshotEveryN:   500,
			SnapshotMaxAge:   60 * time.Second,
		},
		Limits: Limits{
			MaxConnectionsPerProject: 64,
			MaxEventQueue:            256,
			InboxCap:                 1000,
			RetryWrite:               3,
		},
		Consensus: Consensus{
			DefaultQuorum:    1,
			DefaultThreshold: 0.5,
		},
		Logging: Logging{
			Level:   "info",
			Service: "relaymesh-coordinator",
			Async:   true,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		NATS: NATS{
			URL: "",
		},
		Cache: Cache{
			L1MaxSizeMB: 64,
			L2Bucket:    "PROJECTION_CACHE",
			L2TTL:       5 * time.Minute,
		},
		OTEL: OTEL{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "relaymesh-coordinator",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}
