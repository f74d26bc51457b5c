package config

import (
	"os"
	"time"
)

// ResolveAPIURL picks the API URL by precedence: flag, config file,
// GWCTL_API_URL, then DefaultAPIURL. The winner is validated and trimmed.
func ResolveAPIURL(flagValue string, cfg *Config) (string, error) {
	candidates := []string{flagValue}
	if cfg != nil {
		candidates = append(candidates, cfg.APIURL)
	}
	candidates = append(candidates, os.Getenv(APIURLEnv), DefaultAPIURL)
	for _, c := range candidates {
		if c != "" {
			return NormalizeAPIURL(c)
		}
	}
	return DefaultAPIURL, nil
}

// ResolveJWKSTTL picks the key-set TTL: flag (when positive), config, then the default.
func ResolveJWKSTTL(flagSeconds int, cfg *Config) time.Duration {
	switch {
	case flagSeconds > 0:
		return time.Duration(flagSeconds) * time.Second
	case cfg != nil && cfg.JWKS.TTLSeconds > 0:
		return time.Duration(cfg.JWKS.TTLSeconds) * time.Second
	default:
		return DefaultJWKSTTLSeconds * time.Second
	}
}

// ResolveTokenStorage returns flag, else config, else DefaultTokenStorage.
func ResolveTokenStorage(flagValue string, cfg *Config) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg != nil && cfg.Settings.TokenStorage != "" {
		return cfg.Settings.TokenStorage
	}
	return DefaultTokenStorage
}
