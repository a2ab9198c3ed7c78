// ABOUTME: Registry of team agents and tracked opponents with their channels.
// ABOUTME: Connects and disconnects all team agents with independent per-agent outcomes.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrAgentAlreadyRegistered indicates two agents share an ID within a role.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// Registry holds the fixed, ordered team and opponent collections. Only team
// agents get channels; opponents are tracked, never connected.
type Registry struct {
	team      []*Agent
	opponents []*Agent
	channels  map[int]*Channel
	logger    *slog.Logger
}

// NewRegistry builds a registry and one channel per team agent.
func NewRegistry(team, opponents []*Agent, opts ChannelOptions, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}

	r := &Registry{
		team:      slices.Clone(team),
		opponents: slices.Clone(opponents),
		channels:  make(map[int]*Channel, len(team)),
		logger:    logger,
	}

	for _, a := range team {
		if _, exists := r.channels[a.ID]; exists {
			return nil, fmt.Errorf("team agent %d: %w", a.ID, ErrAgentAlreadyRegistered)
		}
		r.channels[a.ID] = NewChannel(a, opts)
	}

	seen := make(map[int]bool, len(opponents))
	for _, a := range opponents {
		if seen[a.ID] {
			return nil, fmt.Errorf("opponent %d: %w", a.ID, ErrAgentAlreadyRegistered)
		}
		seen[a.ID] = true
	}

	return r, nil
}

// Team returns the team agents in registry order.
func (r *Registry) Team() []*Agent {
	return slices.Clone(r.team)
}

// Opponents returns the tracked opponents in registry order.
func (r *Registry) Opponents() []*Agent {
	return slices.Clone(r.opponents)
}

// Agent retrieves a team agent by ID.
func (r *Registry) Agent(id int) (*Agent, bool) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, false
	}
	return ch.Agent(), true
}

// Channel retrieves a team agent's channel by ID.
func (r *Registry) Channel(id int) (*Channel, bool) {
	ch, ok := r.channels[id]
	return ch, ok
}

// ConnectResult is the outcome of connecting one agent.
type ConnectResult struct {
	AgentID  int
	Name     string
	State    State
	Inactive bool // no address configured
	Err      error
}

// ConnectAll connects every team agent concurrently. Each attempt is bounded
// by the channel's connect timeout and a failure never stops the others.
// Results are returned in registry order.
func (r *Registry) ConnectAll(ctx context.Context) []ConnectResult {
	results := make([]ConnectResult, len(r.team))

	var wg sync.WaitGroup
	for i, a := range r.team {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.channels[a.ID].Connect(ctx)
			_, hasAddr := a.Endpoint()
			results[i] = ConnectResult{
				AgentID:  a.ID,
				Name:     a.Name,
				State:    a.State(),
				Inactive: !hasAddr,
				Err:      err,
			}
		}()
	}
	wg.Wait()

	connected, failed := 0, 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case res.State == StateConnected:
			connected++
		}
	}
	r.logger.Info("connect all finished",
		"connected", connected,
		"failed", failed,
		"total_agents", len(r.team),
	)
	return results
}

// DisconnectAll disconnects every team agent, joining each receive loop.
func (r *Registry) DisconnectAll() {
	var wg sync.WaitGroup
	for _, a := range r.team {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.channels[a.ID].Disconnect()
		}()
	}
	wg.Wait()
	r.logger.Info("disconnected from all agents", "total_agents", len(r.team))
}

// Send routes a text command to one team agent.
func (r *Registry) Send(id int, msg string) error {
	ch, ok := r.channels[id]
	if !ok {
		return fmt.Errorf("agent %d: %w", id, ErrAgentNotFound)
	}
	return ch.Send(msg)
}

// ConnectedCount returns how many team agents are currently connected.
func (r *Registry) ConnectedCount() int {
	n := 0
	for _, a := range r.team {
		if a.State() == StateConnected {
			n++
		}
	}
	return n
}

// Snapshots returns presentation copies of every team agent followed by
// every opponent.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.team)+len(r.opponents))
	for _, a := range r.team {
		out = append(out, a.Snapshot())
	}
	for _, a := range r.opponents {
		out = append(out, a.Snapshot())
	}
	return out
}
