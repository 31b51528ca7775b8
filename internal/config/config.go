package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/stream"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvAPIKey    = "BITVAVO_API_KEY"
	EnvAPISecret = "BITVAVO_API_SECRET"
)

// Config holds every setting of the CLI. Load reads it from YAML, then lets
// the environment override the credentials.
type Config struct {
	API struct {
		RestURL        string `yaml:"rest_url"`
		WSURL          string `yaml:"ws_url"`
		Key            string `yaml:"key"`
		Secret         string `yaml:"secret"`
		AccessWindowMS int    `yaml:"access_window_ms"`
		TimeoutSec     int    `yaml:"timeout_sec"`
		Retries        int    `yaml:"retries"`
	} `yaml:"api"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MinRemaining      int     `yaml:"min_remaining"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Recorder struct {
		Path string `yaml:"path"`
	} `yaml:"recorder"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.API.RestURL = api.DefaultBaseURL
	cfg.API.WSURL = stream.DefaultURL
	cfg.API.AccessWindowMS = int(api.DefaultAccessWindow.Milliseconds())
	cfg.API.TimeoutSec = int(api.DefaultTimeout.Seconds())
	cfg.RateLimit.RequestsPerSecond = 15
	cfg.RateLimit.Burst = 10
	cfg.RateLimit.MinRemaining = 10
	cfg.Logging.Level = "info"
	cfg.Recorder.Path = "bitvavo.db"
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
		if cfg.API.Secret != "" {
			log.Warn().
				Str("path", path).
				Msgf("API secret found in config file, prefer the %s and %s environment variables", EnvAPIKey, EnvAPISecret)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.API.Key = key
	}
	if secret := os.Getenv(EnvAPISecret); secret != "" {
		cfg.API.Secret = secret
	}
}

func (c *Config) Validate() error {
	var errs []error
	if err := checkScheme("rest_url", c.API.RestURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if err := checkScheme("ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	if c.API.AccessWindowMS < 100 || c.API.AccessWindowMS > 60000 {
		errs = append(errs, fmt.Errorf("access_window_ms must be between 100 and 60000, got %d", c.API.AccessWindowMS))
	}
	if c.API.TimeoutSec <= 0 {
		errs = append(errs, errors.New("timeout_sec must be positive"))
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("retries must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests_per_second must be positive"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}
	if (c.API.Key == "") != (c.API.Secret == "") {
		errs = append(errs, errors.New("api key and secret must be set together"))
	}
	return errors.Join(errs...)
}

func checkScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: expected a %v URL", field, raw, schemes)
}

func (c *Config) AccessWindow() time.Duration {
	return time.Duration(c.API.AccessWindowMS) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func (c *Config) HasCredentials() bool {
	return c.API.Key != "" && c.API.Secret != ""
}

// ClientOptions configures an api.Client from the config.
func (c *Config) ClientOptions() []api.Option {
	opts := []api.Option{
		api.WithBaseURL(c.API.RestURL),
		api.WithAccessWindow(c.AccessWindow()),
		api.WithTimeout(c.Timeout()),
		api.WithRetries(c.API.Retries),
		api.WithRateLimit(c.RateLimit.RequestsPerSecond, c.RateLimit.Burst),
		api.WithMinRemaining(c.RateLimit.MinRemaining),
	}
	if c.HasCredentials() {
		opts = append(opts, api.WithCredentials(c.API.Key, c.API.Secret))
	}
	return opts
}

func (c *Config) StreamOptions() []stream.Option {
	opts := []stream.Option{
		stream.WithURL(c.API.WSURL),
		stream.WithAccessWindow(c.AccessWindow()),
	}
	if c.HasCredentials() {
		opts = append(opts, stream.WithCredentials(c.API.Key, c.API.Secret))
	}
	return opts
}
