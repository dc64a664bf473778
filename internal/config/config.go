// Package config loads pipeline run configuration from defaults, an
// optional file, and the environment, the same layering the teacher's
// daemon config loader uses.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix every environment-variable override uses,
// e.g. DEPIO_PIPELINE_REFRESH_PERIOD for pipeline.refresh_period.
const EnvPrefix = "DEPIO"

// Config is the top-level configuration for running a pipeline as a
// standalone program.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	LogLevel string         `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// PipelineConfig mirrors pipeline.Options, decoded from file/env.
type PipelineConfig struct {
	Name                          string        `mapstructure:"name" validate:"required"`
	ClearScreen                   bool          `mapstructure:"clear_screen"`
	HideSuccessfulTerminatedTasks bool          `mapstructure:"hide_successful_terminated_tasks"`
	SubmitOnlyIfRunnable          bool          `mapstructure:"submit_only_if_runnable"`
	Quiet                         bool          `mapstructure:"quiet"`
	RefreshPeriod                 time.Duration `mapstructure:"refresh_period" validate:"required,gt=0"`
}

// ExecutorConfig selects and configures one of the three executor
// backends. Only the block matching Kind is meaningful.
type ExecutorConfig struct {
	Kind    string        `mapstructure:"kind" validate:"required,oneof=inline pool cluster"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Cluster ClusterConfig `mapstructure:"cluster"`
}

// PoolConfig configures internal/executor/pool.
type PoolConfig struct {
	MaxWorkers int     `mapstructure:"max_workers" validate:"omitempty,gt=0"`
	RateLimit  float64 `mapstructure:"rate_limit" validate:"omitempty,gt=0"`
	Burst      int     `mapstructure:"burst" validate:"omitempty,gt=0"`
}

// ClusterConfig configures internal/executor/cluster.
type ClusterConfig struct {
	Address       string        `mapstructure:"address"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxJobsQueued int           `mapstructure:"max_jobs_queued"`
	ScratchPath   string        `mapstructure:"scratch_path"`
}

// MetricsConfig configures the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load reads configuration from defaults, an optional .env file at
// envFilePath (ignored if it doesn't exist), an optional config file
// (YAML/JSON/TOML, resolved by viper from configPath), and finally
// environment variables prefixed with EnvPrefix, which take precedence
// over everything else.
func Load(configPath, envFilePath string) (*Config, error) {
	if envFilePath != "" {
		// a missing .env file is not an error: it is an optional layer.
		_ = godotenv.Load(envFilePath)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load, panicking on error. The CLI calls Load directly
// and returns its error instead.
func MustLoad(configPath, envFilePath string) *Config {
	cfg, err := Load(configPath, envFilePath)
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "pipeline")
	v.SetDefault("pipeline.refresh_period", 200*time.Millisecond)
	v.SetDefault("executor.kind", "inline")
	v.SetDefault("executor.pool.max_workers", 4)
	v.SetDefault("executor.pool.rate_limit", 10.0)
	v.SetDefault("executor.pool.burst", 10)
	v.SetDefault("executor.cluster.poll_interval", 5*time.Second)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("log_level", "info")
}

func validateConfig(cfg *Config) error {
	val := validator.New()
	if err := val.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Executor.Kind == "cluster" && cfg.Executor.Cluster.Address == "" {
		return fmt.Errorf("config: executor.cluster.address is required when executor.kind is cluster")
	}
	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("config: validate: %w", err)
	}
	msg := "config: validation failed:"
	for _, fe := range verrs {
		msg += fmt.Sprintf(" %s failed on %q;", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%s", msg)
}
