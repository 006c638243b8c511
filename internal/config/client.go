package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform names a base URL profile. The commerce API is reached through a
// different host depending on where the client runs.
type Platform string

const (
	PlatformEmulator Platform = "emulator"
	PlatformDevice   Platform = "device"
	PlatformDesktop  Platform = "desktop"
)

// ClientConfig configures the commerce client and the CLI.
type ClientConfig struct {
	Platform Platform            `yaml:"platform"`
	BaseURLs map[Platform]string `yaml:"base_urls"`

	// CatalogURL points at the catalog backend (cmd/api).
	CatalogURL string `yaml:"catalog_url"`

	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxBackoff equal to PollInterval turns tracking backoff off.
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	TrackPoints  int           `yaml:"track_points"`

	// StrictParsing makes response shape sniffing fail instead of degrading
	// to empty results. Meant for development builds.
	StrictParsing bool `yaml:"strict_parsing"`

	// PinnedOrderSchema disables order payload probing when set, e.g.
	// "address_id,payment_method,items".
	PinnedOrderSchema string `yaml:"pinned_order_schema"`

	Country   string `yaml:"country"`
	TokenFile string `yaml:"token_file"`
	Verbose   bool   `yaml:"verbose"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Platform: PlatformDesktop,
		BaseURLs: map[Platform]string{
			PlatformEmulator: "http://10.0.2.2:8000/api",
			PlatformDevice:   "http://192.168.1.10:8000/api",
			PlatformDesktop:  "http://localhost:8000/api",
		},
		CatalogURL:   "http://localhost:8080/api",
		Timeout:      15 * time.Second,
		PollInterval: 5 * time.Second,
		MaxBackoff:   time.Minute,
		TrackPoints:  50,
		Country:      "ec",
	}
}

// LoadClient reads path (if it exists) over the defaults and then applies
// environment overrides. A missing file is not an error.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read client config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse client config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaultTokenFile()
	}
	return cfg, cfg.Validate()
}

func (c *ClientConfig) applyEnvOverrides() {
	if v := os.Getenv("APPWINI_PLATFORM"); v != "" {
		c.Platform = Platform(v)
	}
	if v := os.Getenv("APPWINI_API_URL"); v != "" {
		if c.BaseURLs == nil {
			c.BaseURLs = map[Platform]string{}
		}
		c.BaseURLs[c.Platform] = v
	}
	if v := os.Getenv("APPWINI_CATALOG_URL"); v != "" {
		c.CatalogURL = v
	}
	if v := os.Getenv("APPWINI_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("APPWINI_STRICT"); v == "1" || v == "true" {
		c.StrictParsing = true
	}
}

// BaseURL returns the commerce API root for the selected platform.
func (c ClientConfig) BaseURL() string {
	return c.BaseURLs[c.Platform]
}

func (c ClientConfig) Validate() error {
	if c.BaseURL() == "" {
		return fmt.Errorf("no base url configured for platform %q", c.Platform)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.MaxBackoff < c.PollInterval {
		return errors.New("max_backoff must be >= poll_interval")
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".appwini-token"
	}
	return filepath.Join(dir, "appwini", "token.json")
}
