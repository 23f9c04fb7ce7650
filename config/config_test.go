package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid client ids", mutate: func(c *Config) { c.ClientIDs = []string{"36-67", "1-1", "100-1000"} }},
		{name: "client id missing dash", mutate: func(c *Config) { c.ClientIDs = []string{"3667"} }, wantErr: true},
		{name: "client id with letters", mutate: func(c *Config) { c.ClientIDs = []string{"ab-12"} }, wantErr: true},
		{name: "client id too long", mutate: func(c *Config) { c.ClientIDs = []string{"1234-1"} }, wantErr: true},
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "base url without host", mutate: func(c *Config) { c.BaseURL = "/relative/path" }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = -time.Second }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "zero retries allowed", mutate: func(c *Config) { c.MaxRetries = 0 }},
		{name: "backoff exceeds max", mutate: func(c *Config) { c.RetryBackoff = time.Minute; c.RetryBackoffMax = time.Second }, wantErr: true},
		{name: "zero retry-after default", mutate: func(c *Config) { c.RetryAfterDefault = 0 }, wantErr: true},
		{name: "bad proxy", mutate: func(c *Config) { c.ProxyURL = "::not-a-url" }, wantErr: true},
		{name: "good proxy", mutate: func(c *Config) { c.ProxyURL = "http://127.0.0.1:8888" }},
		{name: "empty output dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantErr: true},
		{name: "dual format", mutate: func(c *Config) { c.OutputFormat = "dual" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("DSA_TEST_STRING", "hello")
	t.Setenv("DSA_TEST_INT", "42")
	t.Setenv("DSA_TEST_BOOL", "true")
	t.Setenv("DSA_TEST_DURATION", "1500ms")
	t.Setenv("DSA_TEST_BAD_INT", "forty-two")

	if value, ok := EnvString("DSA_TEST_STRING"); !ok || value != "hello" {
		t.Fatalf("EnvString = %q (%v)", value, ok)
	}
	if _, ok := EnvString("DSA_TEST_ABSENT"); ok {
		t.Fatalf("absent variable reported present")
	}

	if value, ok, err := EnvInt("DSA_TEST_INT"); err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt = %d (%v, %v)", value, ok, err)
	}
	if _, _, err := EnvInt("DSA_TEST_BAD_INT"); err == nil {
		t.Fatalf("bad int must error")
	}

	if value, ok, err := EnvBool("DSA_TEST_BOOL"); err != nil || !ok || !value {
		t.Fatalf("EnvBool = %v (%v, %v)", value, ok, err)
	}
	if value, ok, err := EnvDuration("DSA_TEST_DURATION"); err != nil || !ok || value != 1500*time.Millisecond {
		t.Fatalf("EnvDuration = %v (%v, %v)", value, ok, err)
	}
}
