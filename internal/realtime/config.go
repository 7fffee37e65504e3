package realtime

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the YAML configuration for the sync client tool.
type ClientConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	ZoneID    string `yaml:"zone_id"`
	PageLimit int    `yaml:"page_limit"`
}

// LoadClientConfig reads and validates a client config file.
func LoadClientConfig(path string) (ClientConfig, error) {
	if path == "" {
		return ClientConfig{}, errors.New("realtime: empty config path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.BaseURL == "" {
		return ClientConfig{}, errors.New("realtime: base_url is required")
	}
	if cfg.ZoneID == "" {
		return ClientConfig{}, errors.New("realtime: zone_id is required")
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	return cfg, nil
}
