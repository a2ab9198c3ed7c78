// ABOUTME: Entry point for the base station
// ABOUTME: Serves the coordinator and feed, and offers config, roster and parameter tooling

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/teamera/basestation/internal/agent"
	"github.com/teamera/basestation/internal/config"
	"github.com/teamera/basestation/internal/events"
	"github.com/teamera/basestation/internal/feed"
	"github.com/teamera/basestation/internal/params"
	"github.com/teamera/basestation/internal/recorder"
	"github.com/teamera/basestation/internal/station"
)

// version is set at build time.
var version = "dev"

const banner = `
 _                              _        _   _
| |__   __ _ ___  ___  ___| |_ __ _| |_(_) ___  _ __
| '_ \ / _' / __|/ _ \/ __| __/ _' | __| |/ _ \| '_ \
| |_) | (_| \__ \  __/\__ \ || (_| | |_| | (_) | | | |
|_.__/ \__,_|___/\___||___/\__\__,_|\__|_|\___/|_| |_|
`

// getConfigPath returns the path to the config file.
// Priority: BASESTATION_CONFIG env var > XDG_CONFIG_HOME/basestation/config.yaml > ~/.config/basestation/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BASESTATION_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "basestation.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "basestation", "config.yaml")
}

func usage() {
	fmt.Println("Usage: basestation <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                Run the station (fusion tick, agents, referee box, feed)")
	fmt.Println("  init [path]          Write the reference configuration")
	fmt.Println("  agents               List agents of a running station")
	fmt.Println("  params <file>        Validate and print a parameter file")
	fmt.Println("  replay <session>     Print the events of a recorded session")
	fmt.Println("  health               Check a running station")
	fmt.Println("  version              Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Args[2:])
	case "agents":
		err = runAgents(ctx)
	case "params":
		err = runParams(os.Args[2:])
	case "replay":
		err = runReplay(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no config at %s (run 'basestation init'): %w", configPath, err)
		}
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Team:      %d agents (%d addressed)\n", len(cfg.Agents.Team), countAddressed(cfg.Agents.Team))
	green.Print("    ▶ ")
	fmt.Printf("Opponents: %d\n", len(cfg.Agents.Opponents))
	green.Print("    ▶ ")
	fmt.Printf("RefBox:    %s", cfg.RefBox.Addr)
	if cfg.RefBox.Autostart {
		yellow.Print(" [autostart]")
	}
	fmt.Println()
	green.Print("    ▶ ")
	if cfg.Feed.HTTPAddr != "" {
		fmt.Printf("Feed:      http://%s\n", cfg.Feed.HTTPAddr)
	} else {
		fmt.Print("Feed:      ")
		gray.Println("disabled")
	}
	if cfg.Recorder.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Recording: %s\n", cfg.Recorder.Dir)
	}
	fmt.Println()

	logger.Info("starting basestation",
		"config", configPath,
		"tick_period", cfg.Station.TickPeriod,
		"feed_addr", cfg.Feed.HTTPAddr,
	)

	st, err := station.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating station: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- st.Run(ctx)
	}()

	var feedServer *feed.Server
	if cfg.Feed.HTTPAddr != "" {
		feedServer = feed.New(cfg.Feed.HTTPAddr, st, logger)
		go func() {
			if err := feedServer.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("server error", "error", runErr)
		}
	}

	// The original context is already canceled; shut down on a fresh one.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if feedServer != nil {
		if err := feedServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("feed shutdown", "error", err)
		}
	}
	shutdownErr := st.Shutdown(shutdownCtx)

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

func countAddressed(roster []config.AgentConfig) int {
	n := 0
	for _, a := range roster {
		if a.Address != "" {
			n++
		}
	}
	return n
}

func runInit(args []string) error {
	path := getConfigPath()
	if len(args) > 0 {
		path = args[0]
	}

	if err := config.Write(path, config.Default()); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, not overwriting", path)
		}
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote reference configuration to %s\n", path)
	fmt.Println("  Set address and port for each robot under agents.team, then run 'basestation serve'.")
	return nil
}

func feedURL(path string) (string, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	if cfg.Feed.HTTPAddr == "" {
		return "", errors.New("feed.http_addr is not configured")
	}
	return fmt.Sprintf("http://%s%s", cfg.Feed.HTTPAddr, path), nil
}

func get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return http.DefaultClient.Do(req)
}

func runHealth(ctx context.Context) error {
	url, err := feedURL("/health")
	if err != nil {
		return err
	}

	resp, err := get(ctx, url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context) error {
	url, err := feedURL("/api/agents")
	if err != nil {
		return err
	}

	resp, err := get(ctx, url)
	if err != nil {
		return fmt.Errorf("agents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agents request: status %d: %s", resp.StatusCode, body)
	}

	var snaps []agent.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return fmt.Errorf("decoding agents: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tID\tNAME\tSTATE\tENDPOINT\tPOSITION\tHEADING")
	for _, s := range snaps {
		state := s.State
		switch state {
		case "connected":
			state = color.GreenString(state)
		case "connecting":
			state = color.YellowString(state)
		}
		endpoint := s.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t(%.2f, %.2f)\t%.0f°\n",
			s.Role, s.ID, s.Name, state, endpoint, s.Position.X(), s.Position.Y(), s.Orientation)
	}
	return w.Flush()
}

func runParams(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: basestation params <file>")
	}

	set, err := params.Load(args[0])
	if err != nil {
		return err
	}

	defaults := params.Defaults()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tDEFAULT")
	for _, name := range set.Keys() {
		def := "-"
		if v, ok := defaults[name]; ok {
			def = params.FormatValue(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, params.FormatValue(set[name]), def)
	}
	return w.Flush()
}

func runReplay(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: basestation replay <session.jsonl.zst>")
	}

	evs, err := recorder.ReadSession(args[0])
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	for _, ev := range evs {
		gray.Print(ev.Time.Format("15:04:05.000") + " ")
		switch ev.Type {
		case events.TypeWorldUpdated:
			if ev.World != nil {
				fmt.Printf("world #%d ball=(%.2f, %.2f) obstacles=%d\n",
					ev.World.Tick, ev.World.Ball.X(), ev.World.Ball.Y(), len(ev.World.Obstacles))
			}
		case events.TypeAgentStatus, events.TypeRefBoxStatus:
			connected := ev.Connected != nil && *ev.Connected
			label := "refbox"
			if ev.Type == events.TypeAgentStatus {
				label = fmt.Sprintf("agent %d", ev.AgentID)
			}
			if connected {
				fmt.Printf("%s %s\n", label, color.GreenString("connected"))
			} else {
				fmt.Printf("%s %s\n", label, color.RedString("disconnected"))
			}
		case events.TypeRefBoxMessage:
			fmt.Printf("refbox: %s\n", color.CyanString(ev.Text))
		default:
			fmt.Println(ev.Text)
		}
	}
	fmt.Printf("%d events\n", len(evs))
	return nil
}
