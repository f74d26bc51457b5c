package config

import (
	"os"
	"path/filepath"
)

const (
	HomeEnv   = "GWCTL_HOME"
	ConfigEnv = "GWCTL_CONFIG"

	defaultDirName       = ".gwctl"
	defaultConfigFile    = "config.yaml"
	defaultInstancesFile = "instances.json"
	defaultJWKSCacheFile = "jwks_cache.json"
)

// DefaultDir is $GWCTL_HOME, else ~/.gwctl.
func DefaultDir() string {
	if env := os.Getenv(HomeEnv); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

func DefaultConfigPath() string {
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return filepath.Join(DefaultDir(), defaultConfigFile)
}

func InstancesPath(dir string) string {
	return filepath.Join(dir, defaultInstancesFile)
}

func JWKSCachePath(dir string) string {
	return filepath.Join(dir, defaultJWKSCacheFile)
}
