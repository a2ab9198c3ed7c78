// Package config handles configuration loading for the base station.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension)
// with environment variable expansion. Omitted values fall back to Default,
// the reference deployment.
//
// # Configuration File
//
// The basestation binary looks in order at:
//
//  1. Path from BASESTATION_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/basestation/config.yaml
//  3. ~/.config/basestation/config.yaml
//
// # Environment Variable Expansion
//
//	refbox:
//	  addr: "${REFBOX_HOST}:28097"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	station:
//	  tick_period: "100ms"        # fusion period
//
//	agents:
//	  connect_timeout: "2s"       # per-agent dial bound
//	  join_timeout: "2s"          # receive loop join bound on disconnect
//	  payload: "raw"              # raw or json
//	  params_dir: "params"        # parameter files, one per agent
//	  team:
//	    - id: 1
//	      name: "Player 1"
//	      color: "blue"
//	      address: "192.168.1.21" # omit for a simulated agent
//	      port: 5005
//	      network: "udp"          # udp or tcp
//	      position: [2, 4]
//	      orientation: 0
//	  opponents: [...]
//
//	refbox:
//	  addr: "127.0.0.1:28097"
//	  autostart: false
//	  dial_timeout: "5s"
//
//	feed:
//	  http_addr: "127.0.0.1:8080" # empty disables the feed
//
//	recorder:
//	  enabled: false
//	  dir: "sessions"
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//
// # Validation
//
// Load() validates durations, the payload decoder name, roster ids (unique
// per roster), ports for addressed agents and the log level.
package config
