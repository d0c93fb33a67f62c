// Package config provides configuration loading for the planner service.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds all planner service configuration.
type Config struct {
	// DataDir is where the staging and job stores' SQLite databases live
	// (default "/var/lib/clinkerplan").
	DataDir string `json:"data_dir"`

	// DatabaseURL is the canonical store DSN. Scheme determines the driver:
	// "postgres://" selects pgx, "mysql://" selects go-sql-driver/mysql.
	DatabaseURL string `json:"database_url"`

	// Solver selects the default entry in the solver fallback chain
	// ("commercial", "modern-open-source", "legacy-open-source", or "auto").
	Solver SolverConfig `json:"solver,omitempty"`

	// Routing configures the routing resolver's provider chain.
	Routing RoutingConfig `json:"routing,omitempty"`

	// Jobs configures the job queue's worker pool and queue capacity, and
	// carries retry settings (see JobsConfig).
	Jobs JobsConfig `json:"jobs,omitempty"`

	// BatchRetentionDays controls how long promoted/rejected staging batches
	// are kept before being eligible for pruning.
	BatchRetentionDays int `json:"batch_retention_days"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// TracingEndpoint is the OTLP gRPC collector address. Empty disables tracing.
	TracingEndpoint string `json:"tracing_endpoint,omitempty"`
}

// SolverConfig configures the MILP solver driver.
type SolverConfig struct {
	Default          string  `json:"default,omitempty"`
	TimeLimitSeconds int     `json:"time_limit_seconds"`
	MIPGap           float64 `json:"mip_gap"`
}

// RoutingConfig configures the routing resolver's provider fallback chain.
type RoutingConfig struct {
	PrimaryProvider      string `json:"primary_provider,omitempty"`
	SecondaryProvider    string `json:"secondary_provider,omitempty"`
	SecondaryProviderURL string `json:"secondary_provider_url,omitempty"`
	SecondaryProviderKey string `json:"secondary_provider_key,omitempty"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	MaxRetries           int    `json:"max_retries"`
	CacheTTLHours        int    `json:"cache_ttl_hours"`
}

// Credentialed reports whether the secondary routing provider has both an
// endpoint and an API key configured.
func (r RoutingConfig) Credentialed() bool {
	return r.SecondaryProviderURL != "" && r.SecondaryProviderKey != ""
}

// JobsConfig configures the job queue's worker pool and queue capacity. The
// Retry* fields are loaded from file and environment, but cmd/planner does
// not pass them to the scheduler: a job without its own retry policy runs
// once.
type JobsConfig struct {
	WorkerPoolSize      int    `json:"worker_pool_size"`
	QueueCapacity       int    `json:"queue_capacity"`
	RetryMaxAttempts    int    `json:"retry_max_attempts"`
	RetryInitialBackoff string `json:"retry_initial_backoff"`
	RetryMultiplier     float64 `json:"retry_multiplier"`
	RetryMaxBackoff     string `json:"retry_max_backoff"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		DataDir:            "/var/lib/clinkerplan",
		DatabaseURL:        "",
		LogLevel:           "info",
		BatchRetentionDays: 30,
		Solver: SolverConfig{
			Default:          "auto",
			TimeLimitSeconds: 300,
			MIPGap:           0.01,
		},
		Routing: RoutingConfig{
			PrimaryProvider: "internal",
			TimeoutSeconds:  10,
			MaxRetries:      2,
			CacheTTLHours:   24,
		},
		Jobs: JobsConfig{
			WorkerPoolSize:      4,
			QueueCapacity:       256,
			RetryMaxAttempts:    3,
			RetryInitialBackoff: "5s",
			RetryMultiplier:     2.0,
			RetryMaxBackoff:     "5m",
		},
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PLANNER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PLANNER_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PLANNER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PLANNER_TRACING_ENDPOINT"); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := os.Getenv("PLANNER_BATCH_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchRetentionDays = n
		}
	}

	if v := os.Getenv("PLANNER_DEFAULT_SOLVER"); v != "" {
		cfg.Solver.Default = v
	}
	if v := os.Getenv("PLANNER_SOLVER_TIME_LIMIT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Solver.TimeLimitSeconds = n
		}
	}
	if v := os.Getenv("PLANNER_SOLVER_MIP_GAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Solver.MIPGap = f
		}
	}

	if v := os.Getenv("PLANNER_ROUTING_PRIMARY_PROVIDER"); v != "" {
		cfg.Routing.PrimaryProvider = v
	}
	if v := os.Getenv("PLANNER_ROUTING_SECONDARY_PROVIDER"); v != "" {
		cfg.Routing.SecondaryProvider = v
	}
	if v := os.Getenv("PLANNER_ROUTING_SECONDARY_PROVIDER_URL"); v != "" {
		cfg.Routing.SecondaryProviderURL = v
	}
	if v := os.Getenv("PLANNER_ROUTING_SECONDARY_PROVIDER_KEY"); v != "" {
		cfg.Routing.SecondaryProviderKey = v
	}
	if v := os.Getenv("PLANNER_ROUTING_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("PLANNER_ROUTING_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.MaxRetries = n
		}
	}
	if v := os.Getenv("PLANNER_ROUTING_CACHE_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.CacheTTLHours = n
		}
	}

	if v := os.Getenv("PLANNER_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("PLANNER_JOB_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.QueueCapacity = n
		}
	}
	if v := os.Getenv("PLANNER_JOBS_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.RetryMaxAttempts = n
		}
	}
	if v := os.Getenv("PLANNER_JOBS_RETRY_INITIAL_BACKOFF"); v != "" {
		cfg.Jobs.RetryInitialBackoff = v
	}
	if v := os.Getenv("PLANNER_JOBS_RETRY_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Jobs.RetryMultiplier = f
		}
	}
	if v := os.Getenv("PLANNER_JOBS_RETRY_MAX_BACKOFF"); v != "" {
		cfg.Jobs.RetryMaxBackoff = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

// Save writes configuration to a file.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

// HasCanonicalStore reports whether a canonical store DSN has been configured.
func (c Config) HasCanonicalStore() bool {
	return c.DatabaseURL != ""
}
