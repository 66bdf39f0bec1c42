package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config.yaml"

// Load reads the configuration and validates it.
//
// Priority is ENV > YAML > env-default tags. The YAML path comes from
// CONFIG_PATH, falling back to ./config.yaml. A missing default file means
// ENV and defaults only; a missing explicit file is an error.
func Load() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path, explicit = defaultConfigPath, false
	}

	cfg, err := read(path, explicit)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func read(path string, explicit bool) (*Config, error) {
	cfg := defaults()

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("config: file %s: %w", path, statErr)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	return &cfg, nil
}

// Describe lists every supported environment variable with its default.
func Describe() (string, error) {
	header := "Environment variables (CONFIG_PATH selects an optional YAML file):"
	return cleanenv.GetDescription(&Config{}, &header)
}
