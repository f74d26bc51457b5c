// Package config loads and saves the gwctl configuration file and resolves
// the effective API URL and key-set TTL from flags, file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/gwctl/gwctl/pkg/gwctl/fsutil"
)

const (
	VersionV1 = "v1"

	DefaultAPIURL         = "http://localhost:8000"
	DefaultJWKSTTLSeconds = 3600
	DefaultOutputFormat   = "table"
	DefaultTokenStorage   = "keychain"
	APIURLEnv             = "GWCTL_API_URL"
	defaultStartLoginPath = "/api/cli/start-login"
	defaultCheckLoginPath = "/api/cli/check-login"
	defaultJWKSPath       = "/api/.well-known/jwks.json"
)

type Config struct {
	Version               string    `yaml:"version"`
	APIURL                string    `yaml:"api-url,omitempty"`
	CAFile                string    `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool      `yaml:"insecure-skip-tls-verify,omitempty"`
	JWKS                  JWKS      `yaml:"jwks,omitempty"`
	Endpoints             Endpoints `yaml:"endpoints,omitempty"`
	Settings              Settings  `yaml:"settings,omitempty"`
}

type JWKS struct {
	TTLSeconds int    `yaml:"ttl-seconds,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

type Endpoints struct {
	StartLogin string `yaml:"start-login,omitempty"`
	CheckLogin string `yaml:"check-login,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	TokenStorage string `yaml:"token-storage,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		JWKS: JWKS{
			Path: defaultJWKSPath,
		},
		Endpoints: Endpoints{
			StartLogin: defaultStartLoginPath,
			CheckLogin: defaultCheckLoginPath,
		},
		Settings: Settings{
			OutputFormat: DefaultOutputFormat,
			TokenStorage: DefaultTokenStorage,
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.APIURL != "" {
		if _, err := NormalizeAPIURL(c.APIURL); err != nil {
			return err
		}
	}
	if c.JWKS.TTLSeconds < 0 {
		return fmt.Errorf("jwks ttl-seconds must not be negative, got %d", c.JWKS.TTLSeconds)
	}
	if err := validateChoice("token-storage", c.Settings.TokenStorage, tokenStorages); err != nil {
		return err
	}
	return validateChoice("output-format", c.Settings.OutputFormat, outputFormats)
}

// NormalizeAPIURL requires an http:// or https:// prefix and trims trailing slashes.
func NormalizeAPIURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "", fmt.Errorf("invalid API URL %q: must start with http:// or https://", raw)
	}
	return strings.TrimRight(trimmed, "/"), nil
}

var (
	tokenStorages = []string{"keychain", "file"}
	outputFormats = []string{"table", "json", "yaml"}
)

func validateChoice(key, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %s)", key, value, strings.Join(allowed, ", "))
}

// Keys settable through `gwctl config set`.
const (
	KeyAPIURL       = "api-url"
	KeyJWKSTTL      = "jwks-ttl"
	KeyTokenStorage = "token-storage"
	KeyOutputFormat = "output-format"
)

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := []string{KeyAPIURL, KeyJWKSTTL, KeyTokenStorage, KeyOutputFormat}
	sort.Strings(keys)
	return keys
}

// Get returns the configured value of key; unset values are "".
func (c *Config) Get(key string) (string, error) {
	switch key {
	case KeyAPIURL:
		return c.APIURL, nil
	case KeyJWKSTTL:
		if c.JWKS.TTLSeconds == 0 {
			return "", nil
		}
		return strconv.Itoa(c.JWKS.TTLSeconds), nil
	case KeyTokenStorage:
		return c.Settings.TokenStorage, nil
	case KeyOutputFormat:
		return c.Settings.OutputFormat, nil
	default:
		return "", unknownKey(key)
	}
}

// Set validates value and stores it under key.
func (c *Config) Set(key, value string) error {
	switch key {
	case KeyAPIURL:
		normalized, err := NormalizeAPIURL(value)
		if err != nil {
			return err
		}
		c.APIURL = normalized
	case KeyJWKSTTL:
		ttl, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || ttl <= 0 {
			return fmt.Errorf("invalid %s %q: must be a positive number of seconds", key, value)
		}
		c.JWKS.TTLSeconds = ttl
	case KeyTokenStorage:
		if err := validateChoice(key, value, tokenStorages); err != nil {
			return err
		}
		c.Settings.TokenStorage = value
	case KeyOutputFormat:
		if err := validateChoice(key, value, outputFormats); err != nil {
			return err
		}
		c.Settings.OutputFormat = value
	default:
		return unknownKey(key)
	}
	return nil
}

// Unset clears key and reports whether it held a value.
func (c *Config) Unset(key string) (bool, error) {
	current, err := c.Get(key)
	if err != nil {
		return false, err
	}
	switch key {
	case KeyAPIURL:
		c.APIURL = ""
	case KeyJWKSTTL:
		c.JWKS.TTLSeconds = 0
	case KeyTokenStorage:
		c.Settings.TokenStorage = ""
	case KeyOutputFormat:
		c.Settings.OutputFormat = ""
	}
	return current != "", nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
}
