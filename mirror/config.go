package mirror

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuroyagi/resmirror/mirror/fetch"
)

// Config configures the mirror service.
type Config struct {
	// TTL is the maximum age of a cached snapshot before the next read
	// forces a refresh. Only fetched_at is compared against it.
	TTL time.Duration `yaml:"ttl"`

	// MaxCachedThreads bounds the cache; overflow evicts oldest-accessed
	// entries first.
	MaxCachedThreads int `yaml:"max_cached_threads"`

	// HistorySize is the capacity of the recent-search ring buffer.
	HistorySize int `yaml:"history_size"`

	// Fetch settings for the thread page supplier.
	Fetch fetch.Config `yaml:"fetch"`
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.MaxCachedThreads <= 0 {
		c.MaxCachedThreads = 64
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 20
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "resmirror/1.0"
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.defaults()
	return &cfg, nil
}
