package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "coordinator.yaml"

const minBcryptCost = 10

// CLIFlags holds command-line flag values. Nil pointers indicate unset
// flags that should not override the config. Use ParseFlags to populate
// this struct.
type CLIFlags struct {
	ConfigPath *string
	BindAddr   *string
	DataDir    *string
	LogLevel   *string
	NatsURL    *string
}

// ParseFlags parses command-line arguments into CLIFlags.
// Call this before Load/LoadWithCLI. Passing nil args parses os.Args[1:].
func ParseFlags(args []string) (CLIFlags, error) {
	var flags CLIFlags

	fs := flag.NewFlagSet("coordinator", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	bindAddr := fs.String("bind-addr", "", "address to bind the WebSocket/HTTP server on")
	dataDir := fs.String("data-dir", "", "root directory for per-project state")
	logLevel := fs.String("log-level", "", "logging level (debug, info, warn, error)")
	natsURL := fs.String("nats-url", "", "NATS server URL for event fan-out")

	if err := fs.Parse(args); err != nil {
		return flags, fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = configPath
		case "bind-addr":
			flags.BindAddr = bindAddr
		case "data-dir":
			flags.DataDir = dataDir
		case "log-level":
			flags.LogLevel = logLevel
		case "nats-url":
			flags.NatsURL = natsURL
		}
	})

	return flags, nil
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadWithCLI returns a Config using the full hierarchy:
// defaults < YAML < ENV < CLI flags. The YAML path can be overridden via
// CLIFlags.ConfigPath.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, "", fmt.Errorf("config env: %w", err)
	}
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, yamlPath, nil
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overlays CLI flag values onto cfg. Only non-nil flags override.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.BindAddr != nil {
		cfg.Server.BindAddr = *flags.BindAddr
	}
	if flags.DataDir != nil {
		cfg.Server.DataDir = *flags.DataDir
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg. Only non-empty env
// values override the current config. AUTH_TOKEN, if set, is hashed with
// bcrypt immediately and never retained in plaintext.
func loadEnv(cfg *Config) error {
	setString(&cfg.Server.BindAddr, "BIND_ADDR")
	setString(&cfg.Server.DataDir, "DATA_DIR")

	setDurationMS(&cfg.Timing.HeartbeatTimeout, "HEARTBEAT_TIMEOUT_MS")
	setDurationMS(&cfg.Timing.OrchTimeout, "ORCH_TIMEOUT_MS")
	setDurationMS(&cfg.Timing.AuctionDefault, "AUCTION_DEFAULT_MS")
	setDurationMS(&cfg.Timing.MinLeaseTTL, "MIN_LEASE_TTL_MS")
	setDurationMS(&cfg.Timing.MaxLeaseTTL, "MAX_LEASE_TTL_MS")
	setInt(&cfg.Timing.SnapshotEveryN, "SNAPSHOT_EVERY_N")
	setDurationMS(&cfg.Timing.ProjectIdle, "PROJECT_IDLE_MS")
	setDurationMS(&cfg.Timing.AgentTTL, "AGENT_TTL_MS")
	setDurationMS(&cfg.Timing.PongTimeout, "PONG_TIMEOUT_MS")
	setDurationMS(&cfg.Timing.IdleTimeout, "IDLE_TIMEOUT_MS")
	setDurationMS(&cfg.Timing.ReapInterval, "REAP_INTERVAL_MS")
	setDurationMS(&cfg.Timing.ScanInterval, "SCAN_INTERVAL_MS")

	setInt(&cfg.Limits.MaxConnectionsPerProject, "MAX_CONNECTIONS_PER_PROJECT")
	setInt(&cfg.Limits.MaxEventQueue, "MAX_EVENT_QUEUE")
	setInt(&cfg.Limits.RetryWrite, "RETRY_WRITE")

	setInt(&cfg.Consensus.DefaultQuorum, "CONSENSUS_DEFAULT_QUORUM")
	setFloat64(&cfg.Consensus.DefaultThreshold, "CONSENSUS_DEFAULT_THRESHOLD")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setBool(&cfg.Logging.Async, "LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BREAKER_TIMEOUT")

	setString(&cfg.NATS.URL, "NATS_URL")

	setInt64(&cfg.Cache.L1MaxSizeMB, "CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "CACHE_L2_TTL")

	setBool(&cfg.OTEL.Enabled, "OTEL_EXPORTER_OTLP_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "OTEL_SAMPLE_RATE")

	if raw := os.Getenv("AUTH_TOKEN"); raw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash AUTH_TOKEN: %w", err)
		}
		cfg.Auth.TokenHash = string(hash)
	}

	return nil
}

// validate checks that required fields are set and security constraints
// are met.
func validate(cfg *Config) error {
	if cfg.Server.BindAddr == "" {
		return errors.New("server.bind_addr is required")
	}
	if cfg.Server.DataDir == "" {
		return errors.New("server.data_dir is required")
	}
	if cfg.Auth.TokenHash == "" {
		return errors.New("auth token is required: set AUTH_TOKEN")
	}
	if cfg.Timing.MinLeaseTTL <= 0 || cfg.Timing.MaxLeaseTTL < cfg.Timing.MinLeaseTTL {
		return errors.New("timing.min_lease_ttl/max_lease_ttl are invalid")
	}
	if cfg.Limits.MaxConnectionsPerProject < 1 {
		return errors.New("limits.max_connections_per_project must be >= 1")
	}
	if cfg.Limits.MaxEventQueue < 1 {
		return errors.New("limits.max_event_queue must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Consensus.DefaultThreshold <= 0 || cfg.Consensus.DefaultThreshold > 1 {
		return errors.New("consensus.default_threshold must be in (0, 1]")
	}

	hashCost, err := bcrypt.Cost([]byte(cfg.Auth.TokenHash))
	if err == nil && hashCost < minBcryptCost {
		slog.Warn("auth token hash cost below recommended minimum", "cost", hashCost, "min", minBcryptCost)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setDurationMS reads a millisecond integer env var into a time.Duration
// field, matching the specification's _MS-suffixed variable names.
func setDurationMS(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}
