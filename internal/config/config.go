package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "wifiprov"
	configFile = "config.yaml"
)

// fileMutex serialises Save calls within the process
var fileMutex sync.Mutex

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/wifiprov or $HOME/.config/wifiprov
//   - macOS: $HOME/.config/wifiprov
//   - Windows: %LOCALAPPDATA%\wifiprov
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the configuration at path. A missing file yields Default().
// ${VAR} references are expanded from the environment before parsing, and
// fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} with the variable's value, or with nothing
// when it is unset
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error

	cfg.Portal.Timeout = 0
	if cfg.Portal.TimeoutRaw != "" {
		cfg.Portal.Timeout, err = time.ParseDuration(cfg.Portal.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing portal.timeout %q: %w", cfg.Portal.TimeoutRaw, err)
		}
	}

	cfg.Reconnect.MinInterval = 0
	if cfg.Reconnect.MinIntervalRaw != "" {
		cfg.Reconnect.MinInterval, err = time.ParseDuration(cfg.Reconnect.MinIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect.min_interval %q: %w", cfg.Reconnect.MinIntervalRaw, err)
		}
	}

	return nil
}

// Validate checks required fields and returns the first problem found.
func (c *Config) Validate() error {
	if c.Storage.File == "" {
		return fmt.Errorf("storage.file is required")
	}
	if strings.ContainsAny(c.Storage.File, `/\`) {
		return fmt.Errorf("storage.file must be a bare file name, got %q", c.Storage.File)
	}
	if c.AccessPoint.Name == "" {
		return fmt.Errorf("access_point.name is required")
	}
	if c.Portal.Addr == "" {
		return fmt.Errorf("portal.addr is required")
	}
	if c.Portal.Timeout < 0 {
		return fmt.Errorf("portal.timeout must not be negative")
	}
	if c.Reconnect.MinInterval < 0 {
		return fmt.Errorf("reconnect.min_interval must not be negative")
	}

	seen := make(map[string]bool, len(c.Parameters))
	for i, p := range c.Parameters {
		if p.ID == "" {
			return fmt.Errorf("parameters[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("parameters[%d]: duplicate id %q", i, p.ID)
		}
		if p.BufferSize < 0 {
			return fmt.Errorf("parameters[%d].buffer_size must not be negative", i)
		}
		seen[p.ID] = true
	}
	return nil
}

// StorageDir returns the configured storage directory, or the config
// directory when none is set.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Save writes the configuration to path atomically via a temporary file.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifiprov configuration
#
# Wi-Fi credentials are never stored here. They live with the network
# driver and are entered through the provisioning portal.
#
# ${VAR} references are expanded from the environment on load.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
