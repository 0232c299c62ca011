package config

import (
	"time"

	"github.com/muurk/wifiprov/internal/configstore"
	"github.com/muurk/wifiprov/internal/coordinator"
)

// CurrentVersion is the only config file version this build understands
const CurrentVersion = 1

// Config represents the whole wifiprov configuration file.
type Config struct {
	Version     int             `yaml:"version"`
	Storage     Storage         `yaml:"storage"`
	AccessPoint AccessPoint     `yaml:"access_point"`
	Portal      Portal          `yaml:"portal"`
	Reconnect   Reconnect       `yaml:"reconnect"`
	Parameters  []ParameterSpec `yaml:"parameters,omitempty"`
	Logging     Logging         `yaml:"logging"`
}

// Storage selects where parameter values are persisted.
type Storage struct {
	Dir  string `yaml:"dir"`            // Directory holding the backing file
	File string `yaml:"file,omitempty"` // Backing file name (default config.json)
}

// AccessPoint configures the provisioning access point.
type AccessPoint struct {
	Name string `yaml:"name"`
}

// Portal configures the provisioning HTTP portal.
type Portal struct {
	Addr       string        `yaml:"addr"`
	TimeoutRaw string        `yaml:"timeout,omitempty"` // Duration string, e.g. "5m"; empty waits forever
	Timeout    time.Duration `yaml:"-"`
	Advertise  bool          `yaml:"advertise"` // Announce the portal over mDNS
}

// Reconnect configures automatic reconnection pacing.
type Reconnect struct {
	MinIntervalRaw string        `yaml:"min_interval,omitempty"` // Duration string; "0" means no pacing
	MinInterval    time.Duration `yaml:"-"`
}

// ParameterSpec declares a provisioning parameter to register at startup.
type ParameterSpec struct {
	ID          string `yaml:"id"`
	Placeholder string `yaml:"placeholder,omitempty"`
	BufferSize  int    `yaml:"buffer_size,omitempty"`
}

// Logging configures the log level. WIFIPROV_LOG_LEVEL wins when set.
type Logging struct {
	Level string `yaml:"level,omitempty"`
}

// Default returns a configuration that works out of the box on a
// development machine.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: Storage{
			File: configstore.DefaultFileName,
		},
		AccessPoint: AccessPoint{
			Name: "wifiprov-setup",
		},
		Portal: Portal{
			Addr:       ":8080",
			TimeoutRaw: "5m",
			Timeout:    5 * time.Minute,
			Advertise:  true,
		},
		Reconnect: Reconnect{
			MinIntervalRaw: "5s",
			MinInterval:    5 * time.Second,
		},
	}
}

// Parameter returns the declaration for id, or nil if there is none.
func (c *Config) Parameter(id string) *ParameterSpec {
	for i := range c.Parameters {
		if c.Parameters[i].ID == id {
			return &c.Parameters[i]
		}
	}
	return nil
}

// BufferSizeOrDefault returns the declared buffer size, falling back to the
// coordinator default.
func (p ParameterSpec) BufferSizeOrDefault() int {
	if p.BufferSize <= 0 {
		return coordinator.DefaultBufferSize
	}
	return p.BufferSize
}

// Example returns a configuration with sample parameters, written by
// `wifiprov init-config`.
func Example() *Config {
	cfg := Default()
	cfg.Storage.Dir = "${HOME}/.local/share/wifiprov"
	cfg.Parameters = []ParameterSpec{
		{ID: "mqtt_server", Placeholder: "MQTT server", BufferSize: 40},
		{ID: "mqtt_port", Placeholder: "MQTT port", BufferSize: 6},
	}
	return cfg
}
