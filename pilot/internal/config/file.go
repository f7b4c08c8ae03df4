// Package config holds the pilot configuration read from pilot.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pilot configuration.
type Config struct {
	Browser  BrowserConfig `yaml:"browser"`
	Settings string        `yaml:"settings_db"`
	Metrics  string        `yaml:"metrics_db"`
	Profiles string        `yaml:"profiles_file"`

	RescanInterval   time.Duration `yaml:"rescan_interval"`
	MutationDebounce time.Duration `yaml:"mutation_debounce"`
	SettingsPoll     time.Duration `yaml:"settings_poll"`

	Rewrite RewriteConfig `yaml:"rewrite"`
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	Mode            string        `yaml:"mode"` // headful | headless
	XvfbDisplay     string        `yaml:"xvfb_display"`
	UserDataDir     string        `yaml:"user_data_dir"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	BlockResources  []string      `yaml:"block_resources"`
}

// RewriteConfig selects where rewrites run. Route "local" calls the
// providers in-process; "http" posts to Endpoint, or to the apiEndpoint
// setting when Endpoint is empty.
type RewriteConfig struct {
	Route    string `yaml:"route"`
	Endpoint string `yaml:"endpoint"`
}

// Route values.
const (
	RouteLocal = "local"
	RouteHTTP  = "http"
)

// Browser modes.
const (
	ModeHeadful  = "headful"
	ModeHeadless = "headless"
)

// Default returns a Config with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = ModeHeadful
	}
	if c.Browser.XvfbDisplay == "" && c.Browser.Mode == ModeHeadful && os.Getenv("DISPLAY") == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = "data/chrome"
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 24 * time.Hour
	}
	if c.Settings == "" {
		c.Settings = "data/settings.db"
	}
	if c.RescanInterval <= 0 {
		c.RescanInterval = 2 * time.Second
	}
	if c.MutationDebounce <= 0 {
		c.MutationDebounce = 150 * time.Millisecond
	}
	if c.SettingsPoll <= 0 {
		c.SettingsPoll = time.Second
	}
	if c.Rewrite.Route == "" {
		c.Rewrite.Route = RouteLocal
	}
}

func (c *Config) validate() error {
	switch c.Browser.Mode {
	case ModeHeadful, ModeHeadless:
	default:
		return fmt.Errorf("config: browser.mode %q: want headful or headless", c.Browser.Mode)
	}
	switch c.Rewrite.Route {
	case RouteLocal, RouteHTTP:
	default:
		return fmt.Errorf("config: rewrite.route %q: want local or http", c.Rewrite.Route)
	}
	return nil
}
