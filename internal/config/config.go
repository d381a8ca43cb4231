package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	TracingEnabled bool `toml:"tracing_enabled"`

	// analytics constants, shared by all engines so that a diverging
	// default in one engine cannot silently skew the numbers
	BMRKcal        float64 `toml:"bmr_kcal"`
	KcalPerKgFat   float64 `toml:"kcal_per_kg_fat"`
	TargetWeightKg float64 `toml:"target_weight_kg"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.Environment = env

	if cfg.BMRKcal == 0 {
		cfg.BMRKcal = 2000
	}
	if cfg.KcalPerKgFat == 0 {
		cfg.KcalPerKgFat = 7700
	}
	if cfg.TargetWeightKg == 0 {
		cfg.TargetWeightKg = 75
	}

	return cfg, nil
}
