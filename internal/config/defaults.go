// ABOUTME: Reference deployment defaults and config file writing
// ABOUTME: Five blue players and five red opponents on a 12 x 9 m field

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTickPeriod     = 100 * time.Millisecond
	DefaultConnectTimeout = 2 * time.Second
	DefaultJoinTimeout    = 2 * time.Second
	DefaultRefBoxAddr     = "127.0.0.1:28097"
	DefaultDialTimeout    = 5 * time.Second
	DefaultFeedAddr       = "127.0.0.1:8080"
)

// starting poses for the reference roster: x, y (m), heading (deg)
var (
	teamPoses = [][3]float64{
		{2, 4, 0}, {3, 2, 45}, {4, 6, 90}, {2, 7, 135}, {1, 1, 270},
	}
	opponentPoses = [][3]float64{
		{8, 4, 180}, {9, 2, 220}, {10, 6, 45}, {8, 7, 315}, {10, 3, 90},
	}
)

// Default returns the reference deployment. No agent has an address, so
// connecting leaves every channel inactive until the roster is edited.
func Default() *Config {
	cfg := &Config{
		Station: StationConfig{
			TickPeriod:    DefaultTickPeriod,
			TickPeriodRaw: DefaultTickPeriod.String(),
		},
		Agents: AgentsConfig{
			ConnectTimeout:    DefaultConnectTimeout,
			JoinTimeout:       DefaultJoinTimeout,
			ConnectTimeoutRaw: DefaultConnectTimeout.String(),
			JoinTimeoutRaw:    DefaultJoinTimeout.String(),
			Payload:           "raw",
			ParamsDir:         "params",
		},
		RefBox: RefBoxConfig{
			Addr:           DefaultRefBoxAddr,
			DialTimeout:    DefaultDialTimeout,
			DialTimeoutRaw: DefaultDialTimeout.String(),
		},
		Feed: FeedConfig{
			HTTPAddr: DefaultFeedAddr,
		},
		Recorder: RecorderConfig{
			Dir: "sessions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	for i, p := range teamPoses {
		cfg.Agents.Team = append(cfg.Agents.Team, AgentConfig{
			ID:          i + 1,
			Name:        fmt.Sprintf("Player %d", i+1),
			Color:       "blue",
			Position:    [2]float64{p[0], p[1]},
			Orientation: p[2],
		})
	}
	for i, p := range opponentPoses {
		cfg.Agents.Opponents = append(cfg.Agents.Opponents, AgentConfig{
			ID:          i + 1,
			Name:        fmt.Sprintf("Opponent %d", i+1),
			Color:       "red",
			Position:    [2]float64{p[0], p[1]},
			Orientation: p[2],
		})
	}

	return cfg
}

// Write encodes cfg to path, as TOML when the extension is .toml and YAML
// otherwise. Parent directories are created. An existing file is not
// overwritten.
func Write(path string, cfg *Config) error {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}
