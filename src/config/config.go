// Package config provides configuration management for the results agent.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read when Load is given an empty path.
	DefaultConfigFile = ".results-agent.yml"

	DefaultResultsServer = "https://test-results.appspot.com"
	DefaultResultDBHost  = "results.api.cr.dev"
)

// Config holds the application configuration.
type Config struct {
	// ResultsServer is the base URL of the test-results server.
	ResultsServer string `yaml:"results_server"`
	// ResultDBHost serves the ResultDB prpc API.
	ResultDBHost string `yaml:"resultdb_host"`

	BBPath       string `yaml:"bb_path"`
	LuciAuthPath string `yaml:"luci_auth_path"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// Retries is handed to the HTTP client unchanged.
	Retries int `yaml:"retries"`

	// Brokers lists Redpanda seed brokers. Empty means build updates stay
	// in process.
	Brokers []string `yaml:"brokers"`

	Watch WatchConfig `yaml:"watch"`

	Debug bool `yaml:"debug"`
}

// WatchConfig configures the build poller.
type WatchConfig struct {
	Builders    []string      `yaml:"builders"`
	TryJobs     bool          `yaml:"try_jobs"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

func defaults() *Config {
	return &Config{
		ResultsServer: DefaultResultsServer,
		ResultDBHost:  DefaultResultDBHost,
		BBPath:        "bb",
		LuciAuthPath:  "luci-auth",
		HTTPTimeout:   30 * time.Second,
		Retries:       0,
		Watch: WatchConfig{
			Interval:    5 * time.Minute,
			Concurrency: 4,
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the defaults with environment overrides only.
func LoadFromEnv() (*Config, error) {
	cfg := defaults()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RESULTS_SERVER"); ok && v != "" {
		c.ResultsServer = v
	}
	if v, ok := lookup("RESULTDB_HOST"); ok && v != "" {
		c.ResultDBHost = v
	}
	if v, ok := lookup("BB_PATH"); ok && v != "" {
		c.BBPath = v
	}
	if v, ok := lookup("LUCI_AUTH_PATH"); ok && v != "" {
		c.LuciAuthPath = v
	}
	if v, ok := lookup("RESULTS_HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RESULTS_HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := lookup("RESULTS_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RESULTS_RETRIES must be an integer: %w", err)
		}
		c.Retries = n
	}
	if v, ok := lookup("REDPANDA_BROKERS"); ok && v != "" {
		c.Brokers = splitList(v)
	}
	if v, ok := lookup("RESULTS_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RESULTS_DEBUG must be a boolean: %w", err)
		}
		c.Debug = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.ResultsServer == "":
		return errors.New("results_server must not be empty")
	case c.ResultDBHost == "":
		return errors.New("resultdb_host must not be empty")
	case c.BBPath == "":
		return errors.New("bb_path must not be empty")
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	case c.HTTPTimeout <= 0:
		return fmt.Errorf("http_timeout must be positive, got %v", c.HTTPTimeout)
	case c.Watch.Concurrency < 1:
		return fmt.Errorf("watch.concurrency must be at least 1, got %d", c.Watch.Concurrency)
	case c.Watch.Interval <= 0:
		return fmt.Errorf("watch.interval must be positive, got %v", c.Watch.Interval)
	}
	return nil
}
