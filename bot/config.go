// Package bot wires the conversation state machine into the Telegram runtime.
package bot

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/farhoodi/voucherbot/core/config"
	coredatabase "github.com/farhoodi/voucherbot/core/database"
	"github.com/farhoodi/voucherbot/snapp"
	"github.com/farhoodi/voucherbot/worker"
)

// Config aggregates the transport configuration with the app's own sections.
// When a worker base URL is configured the bot dispatches login and fetch
// tasks to it; otherwise the inline Snappfood client is used.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Worker   worker.Config       `yaml:"worker"`
	Snapp    snapp.Config        `yaml:"snapp"`
	Services []string            `yaml:"services"`
}

// CoreConfig exposes the embedded transport configuration for the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	cfg.Snapp.Normalize()

	return &cfg, nil
}
