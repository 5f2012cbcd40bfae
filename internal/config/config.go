// Package config loads simulation settings from flags, environment and an
// optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sampledlru/internal/workload"
)

// EnvPrefix is prepended to every environment override, e.g.
// SAMPLEDLRU_CAPACITY or SAMPLEDLRU_WORKLOAD_KIND.
const EnvPrefix = "SAMPLEDLRU"

// Keys shared by flag binding and Load.
const (
	KeyCapacity       = "capacity"
	KeyWorkers        = "workers"
	KeySeed           = "seed"
	KeyReportInterval = "report_interval"
	KeyMetricsAddr    = "metrics_addr"
	KeyLogLevel       = "log.level"
	KeyWorkloadKind   = "workload.kind"
	KeyWorkloadKeys   = "workload.keys"
	KeyWorkloadOps    = "workload.ops"
	KeyWorkloadZipfS  = "workload.zipf_s"
	KeyWorkloadWrites = "workload.write_ratio"
)

var ErrInvalid = errors.New("config: invalid")

var envReplacer = strings.NewReplacer(".", "_")

// Config is everything the simulate command needs.
type Config struct {
	Capacity       int
	Workers        int
	Seed           uint64
	ReportInterval time.Duration // <= 0 disables progress logging
	MetricsAddr    string        // empty disables the /metrics listener
	LogLevel       string
	Workload       workload.Config
}

// SetDefaults registers defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyCapacity, 1024)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeySeed, 1)
	v.SetDefault(KeyReportInterval, time.Second)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyWorkloadKind, string(workload.Zipf))
	v.SetDefault(KeyWorkloadKeys, 8192)
	v.SetDefault(KeyWorkloadOps, 1_000_000)
	v.SetDefault(KeyWorkloadZipfS, 1.1)
	v.SetDefault(KeyWorkloadWrites, 0.2)
}

// New returns a viper instance with defaults and environment overrides
// wired. If file is non-empty it is read as the config file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load reads and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	kind, err := workload.ParseKind(v.GetString(KeyWorkloadKind))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Capacity:       v.GetInt(KeyCapacity),
		Workers:        v.GetInt(KeyWorkers),
		Seed:           v.GetUint64(KeySeed),
		ReportInterval: v.GetDuration(KeyReportInterval),
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		LogLevel:       v.GetString(KeyLogLevel),
		Workload: workload.Config{
			Kind:       kind,
			Keys:       v.GetUint64(KeyWorkloadKeys),
			Ops:        v.GetInt(KeyWorkloadOps),
			ZipfS:      v.GetFloat64(KeyWorkloadZipfS),
			WriteRatio: v.GetFloat64(KeyWorkloadWrites),
		},
	}
	cfg.Workload.Seed = cfg.Seed

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalid, c.Capacity)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}
	return c.Workload.Validate()
}
