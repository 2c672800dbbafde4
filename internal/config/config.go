package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all flipper settings.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Refresh RefreshConfig `yaml:"refresh"`
	Trading TradingConfig `yaml:"trading"`
	Storage StorageConfig `yaml:"storage"`
}

// APIConfig controls the trading post API client.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Key            string        `yaml:"key"`
	PageSize       int           `yaml:"page_size"`        // hard API limit is 200 ids per request
	MaxRetries     int           `yaml:"max_retries"`      // attempts per page before giving up
	RateLimitWait  time.Duration `yaml:"rate_limit_wait"`  // cooldown after a 429
	TransientWait  time.Duration `yaml:"transient_wait"`   // cooldown after a 5xx
	RequestsPerSec float64       `yaml:"requests_per_sec"` // client-side rate limit
	MaxConcurrent  int           `yaml:"max_concurrent"`   // in-flight request cap
}

// RefreshConfig controls the periodic snapshot cycle.
type RefreshConfig struct {
	Interval time.Duration   `yaml:"interval"`
	Horizons []time.Duration `yaml:"horizons"` // trend tracker windows
	ItemIDs  []int           `yaml:"item_ids"` // tracked item set
}

// TradingConfig holds flip scoring policy.
type TradingConfig struct {
	OutbidFraction float64 `yaml:"outbid_fraction"` // price movement tolerated before we are outbid
	Budget         int     `yaml:"budget"`          // copper available per flip
	TopFlips       int     `yaml:"top_flips"`       // results shown per cycle
}

// StorageConfig controls where cycle results are persisted.
type StorageConfig struct {
	Path string `yaml:"path"` // SQLite file, or ":memory:"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.guildwars2.com/v2",
			PageSize:       200,
			MaxRetries:     10,
			RateLimitWait:  30 * time.Second,
			TransientWait:  5 * time.Second,
			RequestsPerSec: 5,
			MaxConcurrent:  20,
		},
		Refresh: RefreshConfig{
			Interval: 2 * time.Minute,
			Horizons: []time.Duration{
				30 * time.Minute,
				90 * time.Minute,
				6 * time.Hour,
			},
		},
		Trading: TradingConfig{
			OutbidFraction: 0.5,
			Budget:         2_000_000,
			TopFlips:       25,
		},
		Storage: StorageConfig{
			Path: "flipper.db",
		},
	}
}

// Load reads YAML config from path and applies .env / environment
// overrides on top. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// keep defaults
	case err != nil:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments override the file without
// editing it. Only secrets and the most operational knobs are exposed.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GW2_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("GW2_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FLIPPER_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("FLIPPER_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.Budget = n
		}
	}
	if v := os.Getenv("FLIPPER_ITEM_IDS"); v != "" {
		var ids []int
		for _, part := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				ids = append(ids, n)
			}
		}
		if len(ids) > 0 {
			cfg.Refresh.ItemIDs = ids
		}
	}
}

func (c *Config) validate() error {
	if c.API.PageSize <= 0 || c.API.PageSize > 200 {
		return fmt.Errorf("config: page_size %d out of range (1..200)", c.API.PageSize)
	}
	if c.API.MaxRetries <= 0 {
		return fmt.Errorf("config: max_retries must be positive")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("config: refresh interval must be positive")
	}
	if len(c.Refresh.Horizons) == 0 {
		return fmt.Errorf("config: at least one horizon is required")
	}
	for _, h := range c.Refresh.Horizons {
		if h <= 0 {
			return fmt.Errorf("config: horizon %v must be positive", h)
		}
	}
	if c.Trading.OutbidFraction <= 0 {
		return fmt.Errorf("config: outbid_fraction must be positive")
	}
	if c.Trading.TopFlips <= 0 {
		return fmt.Errorf("config: top_flips must be positive")
	}
	return nil
}
