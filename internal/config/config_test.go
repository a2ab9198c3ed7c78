// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "basestation.yaml", `
station:
  tick_period: "50ms"

agents:
  connect_timeout: "1s"
  join_timeout: "3s"
  payload: "json"
  team:
    - id: 1
      name: "Striker"
      color: "blue"
      address: "192.168.1.21"
      port: 5005
      position: [2, 4]
      orientation: 90
      params:
        max_speed: 3.5
    - id: 2
      name: "Keeper"
      color: "blue"
  opponents:
    - id: 1
      name: "Opponent 1"
      color: "red"
      position: [8, 4]

refbox:
  addr: "10.0.0.5:28097"
  autostart: true
  dial_timeout: "750ms"

feed:
  http_addr: "0.0.0.0:9090"

recorder:
  enabled: true
  dir: "/var/lib/basestation/sessions"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Station.TickPeriod != 50*time.Millisecond {
		t.Errorf("Station.TickPeriod = %v, want 50ms", cfg.Station.TickPeriod)
	}
	if cfg.Agents.ConnectTimeout != time.Second {
		t.Errorf("Agents.ConnectTimeout = %v, want 1s", cfg.Agents.ConnectTimeout)
	}
	if cfg.Agents.JoinTimeout != 3*time.Second {
		t.Errorf("Agents.JoinTimeout = %v, want 3s", cfg.Agents.JoinTimeout)
	}
	if cfg.Agents.Payload != "json" {
		t.Errorf("Agents.Payload = %q, want json", cfg.Agents.Payload)
	}

	if len(cfg.Agents.Team) != 2 {
		t.Fatalf("Agents.Team len = %d, want 2", len(cfg.Agents.Team))
	}
	striker := cfg.Agents.Team[0]
	if striker.Address != "192.168.1.21" || striker.Port != 5005 {
		t.Errorf("striker endpoint = %s:%d, want 192.168.1.21:5005", striker.Address, striker.Port)
	}
	if striker.Position != [2]float64{2, 4} || striker.Orientation != 90 {
		t.Errorf("striker pose = %v @ %v", striker.Position, striker.Orientation)
	}
	if striker.Params["max_speed"] != 3.5 {
		t.Errorf("striker max_speed = %v, want 3.5", striker.Params["max_speed"])
	}
	if cfg.Agents.Team[1].Address != "" {
		t.Errorf("keeper should have no address, got %q", cfg.Agents.Team[1].Address)
	}
	if len(cfg.Agents.Opponents) != 1 {
		t.Errorf("Agents.Opponents len = %d, want 1", len(cfg.Agents.Opponents))
	}

	if cfg.RefBox.Addr != "10.0.0.5:28097" || !cfg.RefBox.Autostart {
		t.Errorf("RefBox = %+v", cfg.RefBox)
	}
	if cfg.RefBox.DialTimeout != 750*time.Millisecond {
		t.Errorf("RefBox.DialTimeout = %v, want 750ms", cfg.RefBox.DialTimeout)
	}
	if cfg.Feed.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Feed.HTTPAddr = %q", cfg.Feed.HTTPAddr)
	}
	if !cfg.Recorder.Enabled || cfg.Recorder.Dir != "/var/lib/basestation/sessions" {
		t.Errorf("Recorder = %+v", cfg.Recorder)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "basestation.toml", `
[station]
tick_period = "200ms"

[agents]
payload = "raw"

[[agents.team]]
id = 7
name = "Wing"
color = "blue"
address = "127.0.0.1"
port = 6000
network = "tcp"
position = [3.0, 2.0]
orientation = 45.0

[refbox]
addr = "127.0.0.1:28097"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Station.TickPeriod != 200*time.Millisecond {
		t.Errorf("Station.TickPeriod = %v, want 200ms", cfg.Station.TickPeriod)
	}
	if len(cfg.Agents.Team) != 1 {
		t.Fatalf("Agents.Team len = %d, want 1", len(cfg.Agents.Team))
	}
	wing := cfg.Agents.Team[0]
	if wing.ID != 7 || wing.Network != "tcp" || wing.Port != 6000 {
		t.Errorf("wing = %+v", wing)
	}
	if len(cfg.Agents.Opponents) != 0 {
		t.Errorf("Agents.Opponents len = %d, want 0", len(cfg.Agents.Opponents))
	}
}

func TestLoad_DefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, "basestation.yaml", "logging:\n  level: warn\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Station.TickPeriod != DefaultTickPeriod {
		t.Errorf("Station.TickPeriod = %v, want %v", cfg.Station.TickPeriod, DefaultTickPeriod)
	}
	if cfg.Agents.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Agents.ConnectTimeout = %v, want %v", cfg.Agents.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.RefBox.Addr != DefaultRefBoxAddr {
		t.Errorf("RefBox.Addr = %q, want %q", cfg.RefBox.Addr, DefaultRefBoxAddr)
	}
	if len(cfg.Agents.Team) != 0 {
		t.Errorf("Agents.Team len = %d, want empty roster", len(cfg.Agents.Team))
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_REFBOX_HOST", "10.1.1.1")
	t.Setenv("TEST_ROBOT_ADDR", "10.1.1.21")

	path := writeConfig(t, "basestation.yaml", `
agents:
  team:
    - id: 1
      address: "${TEST_ROBOT_ADDR}"
      port: 5005
refbox:
  addr: "${TEST_REFBOX_HOST}:28097"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RefBox.Addr != "10.1.1.1:28097" {
		t.Errorf("RefBox.Addr = %q, want 10.1.1.1:28097", cfg.RefBox.Addr)
	}
	if cfg.Agents.Team[0].Address != "10.1.1.21" {
		t.Errorf("team[0].Address = %q, want 10.1.1.21", cfg.Agents.Team[0].Address)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/basestation.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "basestation.yaml", "station:\n  tick_period: [unclosed\n")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "basestation.yaml", "agents:\n  join_timeout: \"soon\"\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "join_timeout") {
		t.Errorf("Load() error = %q, want mention of join_timeout", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErrSubstr string
	}{
		{
			name:   "reference deployment",
			mutate: func(*Config) {},
		},
		{
			name:   "empty rosters are allowed",
			mutate: func(c *Config) { c.Agents.Team, c.Agents.Opponents = nil, nil },
		},
		{
			name:          "zero tick period",
			mutate:        func(c *Config) { c.Station.TickPeriod = 0 },
			wantErrSubstr: "station.tick_period",
		},
		{
			name:          "unknown payload decoder",
			mutate:        func(c *Config) { c.Agents.Payload = "protobuf" },
			wantErrSubstr: "agents.payload",
		},
		{
			name:          "duplicate team id",
			mutate:        func(c *Config) { c.Agents.Team[1].ID = c.Agents.Team[0].ID },
			wantErrSubstr: "duplicate id",
		},
		{
			name: "address without port",
			mutate: func(c *Config) {
				c.Agents.Team[0].Address = "127.0.0.1"
				c.Agents.Team[0].Port = 0
			},
			wantErrSubstr: "port 0 out of range",
		},
		{
			name:          "parameter name with space",
			mutate:        func(c *Config) { c.Agents.Team[2].Params = map[string]float64{"max speed": 1} },
			wantErrSubstr: "agents.team[2]: parameter name",
		},
		{
			name:          "bad network",
			mutate:        func(c *Config) { c.Agents.Opponents[0].Network = "sctp" },
			wantErrSubstr: "agents.opponents[0]",
		},
		{
			name:          "missing refbox addr",
			mutate:        func(c *Config) { c.RefBox.Addr = "" },
			wantErrSubstr: "refbox.addr",
		},
		{
			name: "recorder without dir",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Recorder.Dir = ""
			},
			wantErrSubstr: "recorder.dir",
		},
		{
			name:          "bad log level",
			mutate:        func(c *Config) { c.Logging.Level = "verbose" },
			wantErrSubstr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestDefault_ReferenceRoster(t *testing.T) {
	cfg := Default()

	if len(cfg.Agents.Team) != 5 || len(cfg.Agents.Opponents) != 5 {
		t.Fatalf("roster = %d team, %d opponents, want 5 + 5", len(cfg.Agents.Team), len(cfg.Agents.Opponents))
	}
	for i, a := range cfg.Agents.Team {
		if a.ID != i+1 || a.Color != "blue" || a.Address != "" {
			t.Errorf("team[%d] = %+v", i, a)
		}
	}
	if cfg.Agents.Team[0].Name != "Player 1" {
		t.Errorf("team[0].Name = %q, want Player 1", cfg.Agents.Team[0].Name)
	}
	if cfg.Agents.Opponents[4].Position != [2]float64{10, 3} || cfg.Agents.Opponents[4].Orientation != 90 {
		t.Errorf("opponents[4] pose = %v @ %v", cfg.Agents.Opponents[4].Position, cfg.Agents.Opponents[4].Orientation)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	for _, name := range []string{"basestation.yaml", "basestation.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := Write(path, Default()); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(cfg.Agents.Team) != 5 {
				t.Errorf("Agents.Team len = %d, want 5", len(cfg.Agents.Team))
			}
			if cfg.Station.TickPeriod != DefaultTickPeriod {
				t.Errorf("Station.TickPeriod = %v, want %v", cfg.Station.TickPeriod, DefaultTickPeriod)
			}

			if err := Write(path, Default()); err == nil {
				t.Error("Write() should refuse to overwrite an existing file")
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		input string
		want  string
	}{
		{"${FOO}", "bar"},
		{"prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"${FOO}${BAZ}", "barqux"},
		{"${UNSET_VAR_FOR_TEST}", ""},
		{"no vars here", "no vars here"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.input); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
