package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/lps-games/lastplayer/go/internal/flow"
	"gopkg.in/yaml.v3"
)

// Config holds the optional YAML server configuration. Anything not
// set in the file falls back to the defaults; the file itself is
// optional too.
type Config struct {
	Flow flow.Config `yaml:"flow"`
}

func defaultConfig() *Config {
	return &Config{
		Flow: flow.DefaultConfig(),
	}
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
