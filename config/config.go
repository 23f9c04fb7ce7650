// Package config holds runtime configuration for the DSA tracker scraper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the root of the DSA project tracker.
const DefaultBaseURL = "https://www.apps2.dgs.ca.gov/dsa/tracker/"

var clientIDPattern = regexp.MustCompile(`^[0-9]{1,3}-[0-9]{1,4}$`)

// Config holds scraper configuration.
type Config struct {
	BaseURL           string
	ClientIDs         []string
	Delay             time.Duration
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	RetryAfterDefault time.Duration
	ProxyURL          string
	UserAgent         string // empty means pick one at random per session
	AcceptLanguage    string
	OutputDir         string
	OutputFormat      string // csv, json, or dual
	Detailed          bool
	DebugCapture      bool
	MetricsAddr       string
	Verbose           bool
}

// DefaultConfig returns conservative defaults for the tracker site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Delay:             0,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      500 * time.Millisecond,
		RetryBackoffMax:   8 * time.Second,
		RetryAfterDefault: 60 * time.Second,
		AcceptLanguage:    "en-US,en;q=0.5",
		OutputDir:         "output",
		OutputFormat:      "csv",
		Detailed:          true,
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	for _, id := range c.ClientIDs {
		if !clientIDPattern.MatchString(id) {
			return fmt.Errorf("client id %q is not in county-district form (e.g. 36-67)", id)
		}
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RetryAfterDefault <= 0 {
		return fmt.Errorf("retry-after default must be positive")
	}
	if c.ProxyURL != "" {
		proxy, err := url.Parse(c.ProxyURL)
		if err != nil || proxy.Host == "" {
			return fmt.Errorf("invalid proxy URL %q", c.ProxyURL)
		}
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	return nil
}

// LoadDotEnv loads a .env file when one is present. A missing file is not
// an error; anything else is.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting presence.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}

// EnvBool reads a boolean environment variable, reporting presence.
func EnvBool(name string) (bool, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}

// EnvDuration reads a duration environment variable, reporting presence.
func EnvDuration(name string) (time.Duration, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}
