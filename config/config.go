package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ShopPlaceholder is the token in BaseURL replaced by each shop name.
const ShopPlaceholder = "{shop}"

// Config holds harvester configuration. Treated as immutable once validated.
type Config struct {
	WordlistPath string
	OutputPath   string
	StatePath    string
	BaseURL      string

	MaxConcurrent int
	RateLimit     time.Duration
	Timeout       time.Duration

	MaxTries        int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	RetryMaxElapsed time.Duration

	CircuitThreshold int
	CircuitTimeout   time.Duration

	BufferSize      int
	CheckpointEvery int
	Resume          bool

	OutputFormat string // csv, json, dual, or postgres
	PostgresDSN  string

	UserAgent   string
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the defaults used against the public endpoint.
func DefaultConfig() *Config {
	return &Config{
		WordlistPath:     "words.txt",
		OutputPath:       "full_catalog.csv",
		StatePath:        "finder_state.json",
		BaseURL:          "https://shoppi.com/{shop}/products",
		MaxConcurrent:    50,
		RateLimit:        100 * time.Millisecond,
		Timeout:          30 * time.Second,
		MaxTries:         3,
		RetryBackoff:     250 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		RetryMaxElapsed:  60 * time.Second,
		CircuitThreshold: 5,
		CircuitTimeout:   60 * time.Second,
		BufferSize:       100,
		CheckpointEvery:  500,
		Resume:           false,
		OutputFormat:     "csv",
		UserAgent:        "shoppi-shop-finder/1.0",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.WordlistPath == "" {
		return fmt.Errorf("wordlist path cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if !strings.Contains(c.BaseURL, ShopPlaceholder) {
		return fmt.Errorf("base URL must contain the %s placeholder", ShopPlaceholder)
	}

	parsed, err := url.Parse(strings.ReplaceAll(c.BaseURL, ShopPlaceholder, "probe"))
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxTries <= 0 {
		return fmt.Errorf("max tries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RetryMaxElapsed < 0 {
		return fmt.Errorf("retry max elapsed cannot be negative")
	}
	if c.CircuitThreshold <= 0 {
		return fmt.Errorf("circuit threshold must be positive")
	}
	if c.CircuitTimeout <= 0 {
		return fmt.Errorf("circuit timeout must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state path cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres format requires a DSN")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or postgres")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// ShopURL renders the request URL for a shop name.
func (c *Config) ShopURL(shop string) string {
	return strings.ReplaceAll(c.BaseURL, ShopPlaceholder, url.PathEscape(shop))
}
