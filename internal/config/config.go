package config

import (
	"fmt"
	"strings"

	coreconfig "monobot/core/config"
	"monobot/core/database"
)

// MonobankConfig holds settings for the Monobank personal API gateway.
type MonobankConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"MONOBANK_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"MONOBANK_TIMEOUT_SECONDS"`
}

// HealthConfig holds the liveness endpoint settings.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// AppConfig is the full bot configuration: the reusable core plus the
// database and the bot-specific sections.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Monobank MonobankConfig  `yaml:"monobank"`
	Health   HealthConfig    `yaml:"health"`
}

// Load reads the application configuration from YAML and the environment.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *AppConfig) error {
	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Monobank.TimeoutSeconds < 0 {
		return fmt.Errorf("monobank.timeout_seconds must be >= 0")
	}
	if strings.TrimSpace(cfg.Health.Listen) == "" {
		cfg.Health.Listen = ":8081"
	}
	return nil
}
