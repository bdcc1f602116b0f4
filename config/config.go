// Package config loads the service configuration from a YAML file, an
// optional .env file and CANDLEFEED_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/yitech/candlefeed/model/interval"
	"github.com/yitech/candlefeed/store"
)

const (
	EnvGRPCAddr    = "CANDLEFEED_GRPC_ADDR"
	EnvMetricsAddr = "CANDLEFEED_METRICS_ADDR"
	EnvLogLevel    = "CANDLEFEED_LOG_LEVEL"

	DefaultGRPCAddr       = ":50051"
	DefaultMetricsAddr    = ":9090"
	DefaultLogLevel       = "info"
	DefaultExchange       = "gate_io"
	DefaultPair           = "BTC-USDT"
	DefaultInterval       = "1m"
	DefaultReconnectDelay = time.Second
)

// Config is the top-level service configuration.
type Config struct {
	GRPCAddr       string        `yaml:"grpc_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	LogLevel       string        `yaml:"log_level"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Feeds          []Feed        `yaml:"feeds"`
}

// Feed configures one exchange/pair/interval feed.
type Feed struct {
	Exchange   string `yaml:"exchange"`
	Pair       string `yaml:"pair"`
	Interval   string `yaml:"interval"`
	MaxRecords int    `yaml:"max_records"`
	// InitialWindow defaults to MaxRecords intervals.
	InitialWindow time.Duration `yaml:"initial_window"`
}

// Load reads envFile (if it exists), then the YAML file at path (if path is
// not empty), applies environment overrides and defaults, and validates the
// result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvGRPCAddr); v != "" {
		c.GRPCAddr = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.GRPCAddr == "" {
		c.GRPCAddr = DefaultGRPCAddr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if len(c.Feeds) == 0 {
		c.Feeds = []Feed{{Exchange: DefaultExchange, Pair: DefaultPair}}
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Exchange == "" {
			f.Exchange = DefaultExchange
		}
		if f.Interval == "" {
			f.Interval = DefaultInterval
		}
		if f.MaxRecords <= 0 {
			f.MaxRecords = store.DefaultMaxRecords
		}
		if f.InitialWindow <= 0 {
			if sec, err := interval.Seconds(f.Interval); err == nil {
				f.InitialWindow = time.Duration(int64(f.MaxRecords)*sec) * time.Second
			}
		}
	}
}

// Validate rejects configurations no feed could run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		base, quote, ok := strings.Cut(f.Pair, "-")
		if !ok || base == "" || quote == "" {
			errs = append(errs, fmt.Errorf("feeds[%d]: pair %q is not BASE-QUOTE", i, f.Pair))
		}
		if !interval.Valid(f.Interval) {
			errs = append(errs, fmt.Errorf("feeds[%d]: unknown interval %q", i, f.Interval))
		}
		if k := f.Key(); seen[k] {
			errs = append(errs, fmt.Errorf("feeds[%d]: duplicate feed %s", i, k))
		} else {
			seen[k] = true
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Key identifies the feed as exchange:pair:interval.
func (f Feed) Key() string { return f.Exchange + ":" + f.Pair + ":" + f.Interval }

// Level returns the parsed log level. Call after Validate.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
