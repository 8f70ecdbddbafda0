package snapp

import (
	"strings"
)

// Config carries the upstream endpoint and the fixed request fingerprint.
// The geolocation and client identifiers are constants of the deployment,
// not session state.
type Config struct {
	BaseURL        string `yaml:"base_url" envconfig:"SNAPP_BASE_URL"`
	Latitude       string `yaml:"latitude"`
	Longitude      string `yaml:"longitude"`
	ClientName     string `yaml:"client_name"`
	AppVersion     string `yaml:"app_version"`
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"SNAPP_TIMEOUT_SECONDS"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Normalize fills defaults for unset fields.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://snappfood.ir"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Latitude == "" {
		c.Latitude = "35.774"
	}
	if c.Longitude == "" {
		c.Longitude = "51.418"
	}
	if c.ClientName == "" {
		c.ClientName = "WEBSITE"
	}
	if c.AppVersion == "" {
		c.AppVersion = "8.1.1"
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}
