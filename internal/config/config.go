// ABOUTME: Configuration loading and parsing for the base station
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teamera/basestation/internal/params"
)

// Config represents the complete base station configuration
type Config struct {
	Station  StationConfig  `yaml:"station" toml:"station"`
	Agents   AgentsConfig   `yaml:"agents" toml:"agents"`
	RefBox   RefBoxConfig   `yaml:"refbox" toml:"refbox"`
	Feed     FeedConfig     `yaml:"feed" toml:"feed"`
	Recorder RecorderConfig `yaml:"recorder" toml:"recorder"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// StationConfig holds coordinator timing
type StationConfig struct {
	TickPeriod time.Duration `yaml:"-" toml:"-"`

	TickPeriodRaw string `yaml:"tick_period" toml:"tick_period"`
}

// AgentsConfig holds channel timing, the payload decoder and both rosters
type AgentsConfig struct {
	ConnectTimeout time.Duration `yaml:"-" toml:"-"`
	JoinTimeout    time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ConnectTimeoutRaw string `yaml:"connect_timeout" toml:"connect_timeout"`
	JoinTimeoutRaw    string `yaml:"join_timeout" toml:"join_timeout"`

	// Payload names the inbound decoder: "raw" (default) or "json"
	Payload string `yaml:"payload" toml:"payload"`

	// ParamsDir is where per-agent parameter files are saved and loaded
	ParamsDir string `yaml:"params_dir" toml:"params_dir"`

	Team      []AgentConfig `yaml:"team" toml:"team"`
	Opponents []AgentConfig `yaml:"opponents" toml:"opponents"`
}

// AgentConfig describes one roster entry
type AgentConfig struct {
	ID      int    `yaml:"id" toml:"id"`
	Name    string `yaml:"name" toml:"name"`
	Color   string `yaml:"color" toml:"color"`
	Address string `yaml:"address" toml:"address"` // empty: simulated, never dialled
	Port    int    `yaml:"port" toml:"port"`
	Network string `yaml:"network" toml:"network"` // udp (default) or tcp

	Position    [2]float64         `yaml:"position" toml:"position"`
	Orientation float64            `yaml:"orientation" toml:"orientation"`
	Params      map[string]float64 `yaml:"params,omitempty" toml:"params,omitempty"`
}

// RefBoxConfig holds referee-box connection settings
type RefBoxConfig struct {
	Addr        string        `yaml:"addr" toml:"addr"`
	Autostart   bool          `yaml:"autostart" toml:"autostart"`
	DialTimeout time.Duration `yaml:"-" toml:"-"`

	DialTimeoutRaw string `yaml:"dial_timeout" toml:"dial_timeout"`
}

// FeedConfig holds the presentation feed listener. An empty address disables it.
type FeedConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// RecorderConfig holds session recording settings
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Dir     string `yaml:"dir" toml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Unset fields keep the values from Default. The rosters start empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	cfg.Agents.Team = nil
	cfg.Agents.Opponents = nil

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Station.TickPeriod <= 0 {
		return fmt.Errorf("station.tick_period must be positive")
	}

	switch c.Agents.Payload {
	case "", "raw", "json":
	default:
		return fmt.Errorf("agents.payload must be raw or json, got %q", c.Agents.Payload)
	}

	if err := validateRoster("agents.team", c.Agents.Team); err != nil {
		return err
	}
	if err := validateRoster("agents.opponents", c.Agents.Opponents); err != nil {
		return err
	}

	if c.RefBox.Addr == "" {
		return fmt.Errorf("refbox.addr is required")
	}

	if c.Recorder.Enabled && c.Recorder.Dir == "" {
		return fmt.Errorf("recorder.dir is required when recorder is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

func validateRoster(section string, roster []AgentConfig) error {
	seen := make(map[int]bool, len(roster))
	for i, a := range roster {
		if seen[a.ID] {
			return fmt.Errorf("%s[%d]: duplicate id %d", section, i, a.ID)
		}
		seen[a.ID] = true

		if a.Address != "" && (a.Port <= 0 || a.Port > 65535) {
			return fmt.Errorf("%s[%d]: port %d out of range for address %s", section, i, a.Port, a.Address)
		}
		switch a.Network {
		case "", "udp", "tcp":
		default:
			return fmt.Errorf("%s[%d]: network must be udp or tcp, got %q", section, i, a.Network)
		}
		for name := range a.Params {
			if !params.ValidName(name) {
				return fmt.Errorf("%s[%d]: parameter name %q must be a single word", section, i, name)
			}
		}
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"tick_period", cfg.Station.TickPeriodRaw, &cfg.Station.TickPeriod},
		{"connect_timeout", cfg.Agents.ConnectTimeoutRaw, &cfg.Agents.ConnectTimeout},
		{"join_timeout", cfg.Agents.JoinTimeoutRaw, &cfg.Agents.JoinTimeout},
		{"dial_timeout", cfg.RefBox.DialTimeoutRaw, &cfg.RefBox.DialTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
