package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "missing placeholder",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "https://shoppi.com/products"
			},
			wantErr: "placeholder",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "url without host",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "https:///{shop}/products"
			},
			wantErr: "host",
		},
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.MaxConcurrent = 0
			},
			wantErr: "max concurrent",
		},
		{
			name: "negative rate limit",
			mutate: func(cfg *Config) {
				cfg.RateLimit = -time.Second
			},
			wantErr: "rate limit",
		},
		{
			name: "zero timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = 0
			},
			wantErr: "timeout",
		},
		{
			name: "zero max tries",
			mutate: func(cfg *Config) {
				cfg.MaxTries = 0
			},
			wantErr: "max tries",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 10 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "zero circuit threshold",
			mutate: func(cfg *Config) {
				cfg.CircuitThreshold = 0
			},
			wantErr: "circuit threshold",
		},
		{
			name: "zero buffer size",
			mutate: func(cfg *Config) {
				cfg.BufferSize = 0
			},
			wantErr: "buffer size",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "postgres without dsn",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "postgres"
			},
			wantErr: "DSN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestShopURL(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.ShopURL("alpha"); got != "https://shoppi.com/alpha/products" {
		t.Fatalf("ShopURL = %q", got)
	}
	if got := cfg.ShopURL("two words"); got != "https://shoppi.com/two%20words/products" {
		t.Fatalf("ShopURL should escape: %q", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SHOPPI_TEST_STR", "hello")
	t.Setenv("SHOPPI_TEST_INT", "42")
	t.Setenv("SHOPPI_TEST_BAD", "nope")

	if v, ok := EnvString("SHOPPI_TEST_STR"); !ok || v != "hello" {
		t.Fatalf("EnvString = %q, %v", v, ok)
	}
	if _, ok := EnvString("SHOPPI_TEST_UNSET"); ok {
		t.Fatalf("unset key should not report ok")
	}
	if v, ok, err := EnvInt("SHOPPI_TEST_INT"); err != nil || !ok || v != 42 {
		t.Fatalf("EnvInt = %d, %v, %v", v, ok, err)
	}
	if _, _, err := EnvInt("SHOPPI_TEST_BAD"); err == nil {
		t.Fatalf("EnvInt should fail on %q", "nope")
	}
}
