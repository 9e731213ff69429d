package regradar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full radar configuration.
type Config struct {
	Listen     string `yaml:"listen"`
	DBPath     string `yaml:"db_path"`
	DigestPath string `yaml:"digest_path"`

	// API authentication. api_key_bcrypt takes precedence over api_key.
	APIKey       string `yaml:"api_key"`
	APIKeyBcrypt string `yaml:"api_key_bcrypt"`

	// OpenAI settings; an empty key selects the deterministic stub.
	OpenAIKey   string `yaml:"openai_api_key"`
	OpenAIModel string `yaml:"openai_model"`

	// Fetch settings.
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
	FetchMaxMB      int    `yaml:"fetch_max_mb"`
	UserAgent       string `yaml:"user_agent"`
	// AllowPrivateHosts disables the loopback/private-address guard, for
	// monitoring sources on internal networks.
	AllowPrivateHosts bool `yaml:"allow_private_hosts"`

	// Scheduler settings.
	CheckIntervalSec int `yaml:"check_interval_sec"`
	MaxFailCount     int `yaml:"max_fail_count"`

	// Assessment settings.
	AssessTimeoutSec int `yaml:"assess_timeout_sec"`
	// Concurrency bounds the per-run source fan-out.
	Concurrency int `yaml:"concurrency"`

	// Sources seeded at startup. Existing URLs are left untouched.
	Sources []SourceSeed `yaml:"sources"`
}

// SourceSeed declares one monitored source in the config file.
type SourceSeed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Type string `yaml:"type"` // rss | web | pdf
}

// DefaultConfig returns the built-in defaults, including the standard
// source list.
func DefaultConfig() *Config {
	return &Config{
		Listen:           ":8090",
		DBPath:           "regradar.db",
		DigestPath:       "digest.md",
		FetchTimeoutSec:  30,
		FetchMaxMB:       10,
		UserAgent:        "regradar/1.0",
		CheckIntervalSec: 60,
		MaxFailCount:     10,
		AssessTimeoutSec: 30,
		Concurrency:      4,
		Sources:          DefaultSources(),
	}
}

// DefaultSources is the standard monitored-source set.
func DefaultSources() []SourceSeed {
	return []SourceSeed{
		{Name: "EUR-Lex latest legislation", URL: "https://eur-lex.europa.eu/EN/display-feed.rss?myRssId=e1Wry5Cyzd1P8DzlpmSSextk5gZW7oZfngManlaqTCI%3D", Type: "rss"},
		{Name: "W3C News", URL: "https://www.w3.org/news/feed/", Type: "rss"},
		{Name: "Hacker News frontpage", URL: "https://hnrss.org/frontpage", Type: "rss"},
		{Name: "UN News", URL: "https://news.un.org/feed/subscribe/en/news/all/rss.xml", Type: "rss"},
		{Name: "EU Commission press corner", URL: "https://ec.europa.eu/commission/presscorner/api/rss?language=en", Type: "rss"},
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.DigestPath == "" {
		c.DigestPath = d.DigestPath
	}
	if c.FetchTimeoutSec <= 0 {
		c.FetchTimeoutSec = d.FetchTimeoutSec
	}
	if c.FetchMaxMB <= 0 {
		c.FetchMaxMB = d.FetchMaxMB
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.CheckIntervalSec <= 0 {
		c.CheckIntervalSec = d.CheckIntervalSec
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = d.MaxFailCount
	}
	if c.AssessTimeoutSec <= 0 {
		c.AssessTimeoutSec = d.AssessTimeoutSec
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, cfg.Validate()
}

// Validate checks field sanity.
func (c *Config) Validate() error {
	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		switch s.Type {
		case "", "rss", "web", "pdf":
		default:
			return fmt.Errorf("sources[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) fetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

func (c *Config) assessTimeout() time.Duration {
	return time.Duration(c.AssessTimeoutSec) * time.Second
}

func (c *Config) checkInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}
