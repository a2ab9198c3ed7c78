// ABOUTME: Station coordinator that owns the agents, the referee-box client and the world estimate
// ABOUTME: Runs the fusion tick and exposes the operator operations

package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/teamera/basestation/internal/agent"
	"github.com/teamera/basestation/internal/config"
	"github.com/teamera/basestation/internal/events"
	"github.com/teamera/basestation/internal/fusion"
	"github.com/teamera/basestation/internal/params"
	"github.com/teamera/basestation/internal/recorder"
	"github.com/teamera/basestation/internal/refbox"
)

// Station coordinates the base station components. It owns the agent
// registry, the referee-box client and the latest world estimate.
type Station struct {
	config   *config.Config
	registry *agent.Registry
	refbox   *refbox.Client
	events   *events.Broadcaster
	recorder *recorder.Recorder
	logger   *slog.Logger

	world atomic.Pointer[fusion.Estimate]
	tick  atomic.Uint64

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Station from the given configuration. Nothing is dialled
// until ConnectAll or StartRefBox is called.
func New(cfg *config.Config, logger *slog.Logger) (*Station, error) {
	if logger == nil {
		logger = slog.Default()
	}

	decoder, err := agent.DecoderByName(cfg.Agents.Payload)
	if err != nil {
		return nil, fmt.Errorf("agents.payload: %w", err)
	}

	broadcaster := events.NewBroadcaster(logger)

	s := &Station{
		config:   cfg,
		events:   broadcaster,
		recorder: recorder.New(cfg.Recorder.Dir, logger),
		logger:   logger.With("component", "station"),
	}

	team := buildAgents(cfg.Agents.Team, agent.RoleTeam)
	opponents := buildAgents(cfg.Agents.Opponents, agent.RoleOpponent)

	registry, err := agent.NewRegistry(team, opponents, agent.ChannelOptions{
		ConnectTimeout: cfg.Agents.ConnectTimeout,
		JoinTimeout:    cfg.Agents.JoinTimeout,
		Decoder:        decoder,
		OnStatus: func(agentID int, connected bool) {
			broadcaster.Publish(events.AgentStatus(agentID, connected))
		},
		Logger: logger.With("component", "agent"),
	}, logger.With("component", "registry"))
	if err != nil {
		return nil, fmt.Errorf("creating agent registry: %w", err)
	}
	s.registry = registry

	refboxLogger := logger.With("component", "refbox")
	s.refbox = refbox.New(refbox.Options{
		DialTimeout: cfg.RefBox.DialTimeout,
		Handler:     refbox.LogHandler{Logger: refboxLogger},
		OnStatus: func(connected bool) {
			broadcaster.Publish(events.RefBoxStatus(connected))
		},
		OnMessage: func(text string) {
			broadcaster.Publish(events.RefBoxMessage(text))
		},
		Logger: refboxLogger,
	})

	empty := fusion.Empty()
	empty.Time = time.Now()
	s.world.Store(empty)

	return s, nil
}

func buildAgents(roster []config.AgentConfig, role agent.Role) []*agent.Agent {
	out := make([]*agent.Agent, 0, len(roster))
	for _, rc := range roster {
		var p params.Set
		if len(rc.Params) > 0 {
			p = params.Set(rc.Params)
		}
		out = append(out, agent.New(agent.Config{
			ID:          rc.ID,
			Name:        rc.Name,
			Color:       rc.Color,
			Role:        role,
			Address:     rc.Address,
			Port:        rc.Port,
			Network:     rc.Network,
			Position:    orb.Point(rc.Position),
			Orientation: rc.Orientation,
			Params:      p,
		}))
	}
	return out
}

// Run drives the fusion tick until ctx is cancelled. It starts the referee
// box first when refbox.autostart is set, and a recording when
// recorder.enabled is set. Run returns nil on cancellation; it does not shut
// the station down, call Shutdown for that.
func (s *Station) Run(ctx context.Context) error {
	if s.config.RefBox.Autostart {
		s.StartRefBox("")
	}
	if s.config.Recorder.Enabled {
		if _, err := s.StartRecording(); err != nil {
			s.logger.Warn("recording not started", "error", err)
		}
	}

	period := s.config.Station.TickPeriod
	if period <= 0 {
		period = config.DefaultTickPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("station running",
		"tick_period", period,
		"team", len(s.registry.Team()),
		"opponents", len(s.registry.Opponents()),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context canceled, stopping tick")
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step fuses the team's observations once and publishes the result.
// Publication never waits on consumers.
func (s *Station) Step() *fusion.Estimate {
	est := fusion.Fuse(s.registry.Team())
	est.Tick = s.tick.Add(1)
	est.Time = time.Now()

	s.world.Store(est)
	s.events.Publish(events.WorldUpdated(est))
	return est
}

// World returns the most recently published estimate. Callers must treat
// it as read-only.
func (s *Station) World() *fusion.Estimate {
	return s.world.Load()
}

// Events returns the broadcaster carrying every station event.
func (s *Station) Events() *events.Broadcaster {
	return s.events
}

// Registry returns the agent registry.
func (s *Station) Registry() *agent.Registry {
	return s.registry
}

// RefBox returns the referee-box client.
func (s *Station) RefBox() *refbox.Client {
	return s.refbox
}

// ConnectAll connects every team agent and reports each outcome to the
// operator log.
func (s *Station) ConnectAll(ctx context.Context) []agent.ConnectResult {
	results := s.registry.ConnectAll(ctx)
	for _, res := range results {
		switch {
		case res.Err != nil:
			s.logf("Failed to connect to %s: %v", res.Name, res.Err)
		case res.Inactive:
			s.logf("%s has no address configured, skipping", res.Name)
		default:
			s.logf("Connected to %s", res.Name)
		}
	}
	return results
}

// DisconnectAll disconnects every team agent.
func (s *Station) DisconnectAll() {
	s.registry.DisconnectAll()
	s.logf("Disconnected from all robots")
}

// StartRefBox begins listening to the referee box at addr, or at the
// configured address when addr is empty. It reports false when a connection
// is already open or being opened.
func (s *Station) StartRefBox(addr string) bool {
	if addr == "" {
		addr = s.config.RefBox.Addr
	}
	if !s.refbox.Start(addr) {
		s.logf("Referee box already connected")
		return false
	}
	s.logf("Connecting to referee box at %s", addr)
	return true
}

// StopRefBox closes the referee-box connection.
func (s *Station) StopRefBox() {
	s.refbox.Stop()
	s.logf("Stopped listening to referee box")
}

// ConnectedCount returns how many team agents are connected.
func (s *Station) ConnectedCount() int {
	return s.registry.ConnectedCount()
}

// Agents returns presentation snapshots of every team agent then every
// opponent.
func (s *Station) Agents() []agent.Snapshot {
	return s.registry.Snapshots()
}

func (s *Station) teamAgent(id int) (*agent.Agent, error) {
	a, ok := s.registry.Agent(id)
	if !ok {
		return nil, fmt.Errorf("agent %d: %w", id, agent.ErrAgentNotFound)
	}
	return a, nil
}

func (s *Station) paramsPath(a *agent.Agent) string {
	return filepath.Join(s.config.Agents.ParamsDir, fmt.Sprintf("agent-%d.json", a.ID))
}

// SetParameters validates raw operator input and applies it to one team
// agent. Any invalid value rejects the whole update.
func (s *Station) SetParameters(id int, raw map[string]string) error {
	a, err := s.teamAgent(id)
	if err != nil {
		return err
	}
	values, err := params.Parse(raw)
	if err != nil {
		return err
	}
	a.SetParameters(values)
	s.logf("Updated %d parameters for %s", len(values), a.Name)
	return nil
}

// SendParameters sends every parameter of one team agent as SET commands.
// Sending stops at the first failure.
func (s *Station) SendParameters(id int) error {
	a, err := s.teamAgent(id)
	if err != nil {
		return err
	}
	for _, cmd := range a.Parameters().Commands() {
		if err := s.registry.Send(id, cmd); err != nil {
			s.logf("Failed to send parameters to %s: %v", a.Name, err)
			return err
		}
	}
	s.logf("Sent parameters to %s", a.Name)
	return nil
}

// SendParametersToAll validates raw once, applies it to every team agent and
// sends the resulting parameters to each. Agents that cannot be reached are
// reported in the joined error; the others still receive their commands.
func (s *Station) SendParametersToAll(raw map[string]string) error {
	values, err := params.Parse(raw)
	if err != nil {
		return err
	}

	var errs []error
	for _, a := range s.registry.Team() {
		a.SetParameters(values)
		if err := s.SendParameters(a.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveParameters writes one team agent's parameters to path. An empty path
// uses agents.params_dir.
func (s *Station) SaveParameters(id int, path string) (string, error) {
	a, err := s.teamAgent(id)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = s.paramsPath(a)
	}
	if err := params.Save(path, a.Parameters()); err != nil {
		return "", err
	}
	s.logf("Saved parameters for %s to %s", a.Name, path)
	return path, nil
}

// LoadParameters reads a parameter file into one team agent. Only names the
// agent already has are applied; the rest are returned.
func (s *Station) LoadParameters(id int, path string) ([]string, error) {
	a, err := s.teamAgent(id)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = s.paramsPath(a)
	}
	loaded, err := params.Load(path)
	if err != nil {
		return nil, err
	}
	current := a.Parameters()
	ignored := params.ApplyKnown(current, loaded)
	a.SetParameters(current)

	s.logf("Loaded parameters for %s from %s", a.Name, path)
	if len(ignored) > 0 {
		s.logger.Warn("ignored unknown parameters", "agent_id", id, "names", ignored)
	}
	return ignored, nil
}

// Move records an operator jog request for one team agent.
func (s *Station) Move(id int, direction string) error {
	a, err := s.teamAgent(id)
	if err != nil {
		return err
	}
	if !ValidDirection(direction) {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	s.logf("Moved %s %s", a.Name, direction)
	return nil
}

// StartRecording opens a new session file.
func (s *Station) StartRecording() (string, error) {
	path, err := s.recorder.Start(s.events)
	if err != nil {
		return "", err
	}
	s.logf("Started recording to %s", path)
	return path, nil
}

// StopRecording closes the current session file.
func (s *Station) StopRecording() (string, error) {
	path, err := s.recorder.Stop()
	if err != nil {
		return path, err
	}
	s.logf("Saved recording to %s", path)
	return path, nil
}

// Recording reports the open session file, if any.
func (s *Station) Recording() (string, bool) {
	return s.recorder.Recording()
}

// logf writes an operator-visible log line and publishes it.
func (s *Station) logf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	s.logger.Info(text)
	s.events.Publish(events.Log(text))
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown disconnects every agent, stops the referee box, closes any open
// recording and finally the broadcaster. Safe to call more than once.
func (s *Station) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down station")

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.registry.DisconnectAll()
			s.refbox.Stop()
		}()

		var errs []error
		select {
		case <-done:
		case <-ctx.Done():
			errs = appendCloseError(errs, "disconnect", ctx.Err())
		}

		if _, recording := s.recorder.Recording(); recording {
			_, err := s.recorder.Stop()
			errs = appendCloseError(errs, "recorder stop", err)
		}

		s.events.Close()

		if len(errs) > 0 {
			s.shutdownErr = fmt.Errorf("shutdown errors: %v", errs)
		}
	})
	return s.shutdownErr
}
