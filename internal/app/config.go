package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
	pebblestore "github.com/i-melnichenko/dtm0-lab/internal/storage/pebble"
)

// LogBackend selects where the node keeps its DTM0 log.
type LogBackend string

// Supported log backends.
const (
	LogBackendPersistent LogBackend = "persistent"
	LogBackendVolatile   LogBackend = "volatile"
)

// Config contains runtime settings for a node process.
type Config struct {
	NodeID string
	// ProcessFID is the node's DTM0 process FID in "<container:key>" form.
	// Empty derives a stable FID from NodeID.
	ProcessFID string
	LogLevel   string

	GRPCAddr    string
	MetricsAddr string
	PprofAddr   string

	DataDir    string
	LogBackend LogBackend
	Fsync      string
	// SegmentCapacity bounds the live bytes of the log segment. Zero means
	// unbounded.
	SegmentCapacity  uint64
	MaxTxCreditBytes uint64

	// PruneInterval runs the background pruner. Zero disables it.
	PruneInterval time.Duration

	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string
	// TracingSampleRatio samples new root spans. 1 samples everything.
	TracingSampleRatio float64
}

// DefaultConfig returns a local-development configuration.
func DefaultConfig() Config {
	return Config{
		NodeID:             "node-1",
		LogLevel:           "info",
		GRPCAddr:           ":8080",
		MetricsAddr:        ":2112",
		DataDir:            "./var/node-1",
		LogBackend:         LogBackendPersistent,
		Fsync:              "always",
		PruneInterval:      10 * time.Second,
		TracingEndpoint:    "localhost:4317",
		TracingServiceName: "dtm0-lab",
		TracingSampleRatio: 1,
	}
}

// fileConfig is the on-disk form of Config. Unset fields keep their
// current values.
type fileConfig struct {
	NodeID             *string  `json:"node_id"`
	ProcessFID         *string  `json:"process_fid"`
	LogLevel           *string  `json:"log_level"`
	GRPCAddr           *string  `json:"grpc_addr"`
	MetricsAddr        *string  `json:"metrics_addr"`
	PprofAddr          *string  `json:"pprof_addr"`
	DataDir            *string  `json:"data_dir"`
	LogBackend         *string  `json:"log_backend"`
	Fsync              *string  `json:"fsync"`
	SegmentCapacity    *uint64  `json:"segment_capacity"`
	MaxTxCreditBytes   *uint64  `json:"max_tx_credit_bytes"`
	PruneInterval      *string  `json:"prune_interval"`
	TracingEnabled     *bool    `json:"tracing_enabled"`
	TracingEndpoint    *string  `json:"tracing_endpoint"`
	TracingServiceName *string  `json:"tracing_service_name"`
	TracingSampleRatio *float64 `json:"tracing_sample_ratio"`
}

// LoadConfigFile applies the YAML or JSON file at path on top of cfg.
// Unknown keys are rejected.
func LoadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("app: read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(raw, &fc); err != nil {
		return fmt.Errorf("app: parse config file %s: %w", path, err)
	}

	setString(&cfg.NodeID, fc.NodeID)
	setString(&cfg.ProcessFID, fc.ProcessFID)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.PprofAddr, fc.PprofAddr)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.Fsync, fc.Fsync)
	setString(&cfg.TracingEndpoint, fc.TracingEndpoint)
	setString(&cfg.TracingServiceName, fc.TracingServiceName)
	if fc.LogBackend != nil {
		cfg.LogBackend = LogBackend(*fc.LogBackend)
	}
	if fc.SegmentCapacity != nil {
		cfg.SegmentCapacity = *fc.SegmentCapacity
	}
	if fc.MaxTxCreditBytes != nil {
		cfg.MaxTxCreditBytes = *fc.MaxTxCreditBytes
	}
	if fc.TracingEnabled != nil {
		cfg.TracingEnabled = *fc.TracingEnabled
	}
	if fc.TracingSampleRatio != nil {
		cfg.TracingSampleRatio = *fc.TracingSampleRatio
	}
	if fc.PruneInterval != nil {
		d, err := time.ParseDuration(*fc.PruneInterval)
		if err != nil {
			return fmt.Errorf("app: invalid prune_interval %q: %w", *fc.PruneInterval, err)
		}
		cfg.PruneInterval = d
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// LoadConfigFromEnv loads config from environment variables.
//
// Supported vars:
// - APP_CONFIG_FILE (YAML or JSON, applied before the variables below)
// - APP_NODE_ID
// - APP_PROCESS_FID (<container:key>, empty = derived from node id)
// - APP_LOG_LEVEL (debug|info|warn|error)
// - APP_GRPC_ADDR
// - APP_METRICS_ADDR (empty = disabled)
// - APP_PPROF_ADDR (empty = disabled)
// - APP_DATA_DIR
// - APP_LOG_BACKEND (persistent|volatile)
// - APP_FSYNC (always|interval|never)
// - APP_SEGMENT_CAPACITY (bytes, 0 = unbounded)
// - APP_MAX_TX_CREDIT_BYTES (bytes, 0 = unbounded)
// - APP_PRUNE_INTERVAL (duration, 0 = disabled)
// - APP_TRACING_ENABLED (bool)
// - APP_TRACING_ENDPOINT
// - APP_TRACING_SERVICE_NAME
// - APP_TRACING_SAMPLE_RATIO (0..1)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); v != "" {
		if err := LoadConfigFile(v, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("APP_NODE_ID")); v != "" {
		cfg.NodeID = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_PROCESS_FID")); v != "" {
		cfg.ProcessFID = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_GRPC_ADDR")); v != "" {
		cfg.GRPCAddr = v
	}
	if v, ok := os.LookupEnv("APP_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("APP_PPROF_ADDR"); ok {
		cfg.PprofAddr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_BACKEND")); v != "" {
		cfg.LogBackend = LogBackend(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("APP_FSYNC")); v != "" {
		cfg.Fsync = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_SEGMENT_CAPACITY")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_SEGMENT_CAPACITY %q: %w", v, err)
		}
		cfg.SegmentCapacity = n
	}
	if v := strings.TrimSpace(os.Getenv("APP_MAX_TX_CREDIT_BYTES")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_MAX_TX_CREDIT_BYTES %q: %w", v, err)
		}
		cfg.MaxTxCreditBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("APP_PRUNE_INTERVAL")); v != "" {
		d, err := parseDurationOrZero(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_PRUNE_INTERVAL %q: %w", v, err)
		}
		cfg.PruneInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_TRACING_ENABLED %q: %w", v, err)
		}
		cfg.TracingEnabled = b
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENDPOINT")); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_SERVICE_NAME")); v != "" {
		cfg.TracingServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_SAMPLE_RATIO")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_TRACING_SAMPLE_RATIO %q: %w", v, err)
		}
		cfg.TracingSampleRatio = r
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDurationOrZero(v string) (time.Duration, error) {
	if v == "0" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

// Validate checks that required settings are present and supported.
func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("app: node id is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app: unsupported log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return fmt.Errorf("app: grpc addr is required")
	}
	switch c.LogBackend {
	case LogBackendPersistent:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("app: data dir is required for the persistent backend")
		}
		if _, err := pebblestore.ParseSyncMode(c.Fsync); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	case LogBackendVolatile:
	default:
		return fmt.Errorf("app: unsupported log backend %q", c.LogBackend)
	}
	if c.ProcessFID != "" {
		if _, err := dtx.ParseFID(c.ProcessFID); err != nil {
			return fmt.Errorf("app: invalid process fid: %w", err)
		}
	}
	if c.PruneInterval < 0 {
		return fmt.Errorf("app: prune interval must not be negative")
	}
	if c.TracingEnabled && strings.TrimSpace(c.TracingEndpoint) == "" {
		return fmt.Errorf("app: tracing endpoint is required when tracing is enabled")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("app: tracing sample ratio %v is outside [0, 1]", c.TracingSampleRatio)
	}
	return nil
}

// FID returns the process FID of the node. Without an explicit ProcessFID
// it is derived from NodeID, so it survives restarts.
func (c Config) FID() (dtx.FID, error) {
	if c.ProcessFID == "" {
		return dtx.FIDFromUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("dtm0-lab/"+c.NodeID))), nil
	}
	return dtx.ParseFID(c.ProcessFID)
}
