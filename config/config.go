// Package config loads the daemon's TOML configuration.
//
// Configuration is resolved from an explicit path or, failing that, the
// first of ./lacpd.toml, ~/.config/lacpd/lacpd.toml, /etc/lacpd/lacpd.toml
// that exists. A missing configuration is not an error: the daemon runs on
// defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/lacpd/errors"
)

// Duration is a time.Duration that decodes from TOML strings like "1s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config holds the daemon configuration.
type Config struct {
	// TickInterval between protocol timer ticks.
	// Default: 1s.
	TickInterval Duration `toml:"tick_interval"`

	// PollInterval bounds the worker's blocking wait per iteration.
	// Default: 500ms.
	PollInterval Duration `toml:"poll_interval"`

	// ControlSocket is the unix-domain socket path for appctl commands.
	// Default: /var/run/lacpd/lacpd.ctl.
	ControlSocket string `toml:"control_socket"`

	// StorePath is the TOML port-configuration file to watch.
	// Empty selects the in-memory store.
	StorePath string `toml:"store_path"`

	// LogLevel is debug, info, warn or error.
	// Default: info.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  Duration{time.Second},
		PollInterval:  Duration{500 * time.Millisecond},
		ControlSocket: "/var/run/lacpd/lacpd.ctl",
		LogLevel:      "info",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TickInterval.Duration < 0 {
		return errors.New(errors.CodeInvalidInput, "tick_interval must not be negative")
	}
	if c.PollInterval.Duration < 0 {
		return errors.New(errors.CodeInvalidInput, "poll_interval must not be negative")
	}
	if c.ControlSocket == "" {
		return errors.New(errors.CodeInvalidInput, "control_socket must not be empty")
	}
	return nil
}

// searchPaths returns candidate config locations in priority order.
func searchPaths() []string {
	paths := []string{"lacpd.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lacpd", "lacpd.toml"))
	}
	paths = append(paths, filepath.Join("/etc", "lacpd", "lacpd.toml"))
	return paths
}

// Load reads configuration from path, or from the search paths when path
// is empty. Defaults fill any field the file leaves unset.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, candidate := range searchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.WrapWithCode(err, errors.CodeInvalidInput, "decode config file")
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.TickInterval.Duration == 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.PollInterval.Duration == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ControlSocket == "" {
		cfg.ControlSocket = def.ControlSocket
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}
