// Package config loads and validates the YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML file at path, applies defaults for unset keys and
// validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func validate(cfg *Config) error {
	parsed, err := url.Parse(cfg.Data.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("data.base_url must be an absolute URL, got %q", cfg.Data.BaseURL)
	}
	switch cfg.Probe.Risk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("probe.risk must be low/medium/high, got %q", cfg.Probe.Risk)
	}
	return nil
}
