// Package config loads the YAML-backed configuration for the cmd/lxsim
// demo harness, grounded on the reference arbitrage bot's config
// loader: a defaulted struct, optionally overlaid from a file on disk.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures the demo harness: which symbol to trade, where to
// expose telemetry and the market-data gateway, and whether to publish
// to a NATS bus.
type Config struct {
	Symbol string `yaml:"symbol"`
	Log    struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Gateway struct {
		Addr string `yaml:"addr"`
	} `yaml:"gateway"`
	Nats struct {
		URL     string `yaml:"url"`
		Enabled bool   `yaml:"enabled"`
	} `yaml:"nats"`
	Traders int `yaml:"traders"`
}

// Default returns the harness configuration used when no file is
// supplied, so the demo runs with zero configuration for local
// experimentation.
func Default() *Config {
	c := &Config{Symbol: "DEMO", Traders: 3}
	c.Log.Level = "info"
	c.Metrics.Addr = ":9090"
	c.Gateway.Addr = ":8080"
	c.Nats.URL = "nats://127.0.0.1:4222"
	c.Nats.Enabled = false
	return c
}

// Load reads and parses the YAML file at path, overlaying it onto
// Default() so a partial file only needs to specify the fields it
// wants to change.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol must not be empty")
	}
	if c.Traders < 2 {
		return fmt.Errorf("config: traders must be at least 2, got %d", c.Traders)
	}
	return nil
}
