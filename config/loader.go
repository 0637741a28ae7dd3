package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the specified type.
// T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadGnbConfig reads the station configuration, applies defaults and validates it.
func LoadGnbConfig(path string) (*Gnb, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Gnb](path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gnb configuration validation failed: %w", err)
	}

	logger.Info().Str("name", cfg.NodeName()).Int("amf_count", len(cfg.AmfConfigs)).
		Msg("loaded gnb configuration")
	return cfg, nil
}

// LoadUeConfig reads the device configuration, applies defaults and validates it.
func LoadUeConfig(path string) (*Ue, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Ue](path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ue configuration validation failed: %w", err)
	}

	logger.Info().Str("name", cfg.NodeName()).Int("search_list", len(cfg.GnbSearchList)).
		Msg("loaded ue configuration")
	return cfg, nil
}
