// ABOUTME: Agent record for one team robot or tracked opponent.
// ABOUTME: Observation and parameter fields are guarded by the agent's own mutex.

package agent

import (
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/teamera/basestation/internal/field"
	"github.com/teamera/basestation/internal/params"
)

// Role tells team agents apart from tracked opponents.
type Role int

const (
	RoleTeam Role = iota
	RoleOpponent
)

func (r Role) String() string {
	if r == RoleOpponent {
		return "opponent"
	}
	return "team"
}

// State is the connection state of an agent's channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Observation is what an agent senses locally.
type Observation struct {
	Position    orb.Point   // meters, field-relative
	Orientation float64     // degrees, 0 = east
	Ball        orb.Point   // locally sensed ball position
	Obstacles   []orb.Point // locally sensed obstacles
}

func (o Observation) clone() Observation {
	o.Obstacles = slices.Clone(o.Obstacles)
	return o
}

// Config describes an agent's static identity and network endpoint.
type Config struct {
	ID      int
	Name    string
	Color   string
	Role    Role
	Address string // empty means simulated / never connected
	Port    int
	Network string // "udp" (default) or "tcp"

	Position    orb.Point
	Orientation float64
	Params      params.Set // nil means defaults
}

// Agent is one robot tracked by the base station.
type Agent struct {
	ID      int
	Name    string
	Color   string
	Role    Role
	Address string
	Port    int
	Network string

	state atomic.Int32

	mu     sync.Mutex
	obs    Observation
	params params.Set
}

// New creates an agent from its config. The ball starts at the center spot.
func New(cfg Config) *Agent {
	p := params.Defaults()
	if cfg.Params != nil {
		p.Merge(cfg.Params)
	}
	network := cfg.Network
	if network == "" {
		network = "udp"
	}
	return &Agent{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Color:   cfg.Color,
		Role:    cfg.Role,
		Address: cfg.Address,
		Port:    cfg.Port,
		Network: network,
		obs: Observation{
			Position:    cfg.Position,
			Orientation: cfg.Orientation,
			Ball:        field.Center(),
		},
		params: p,
	}
}

// Endpoint returns the agent's "host:port" and whether one is configured.
func (a *Agent) Endpoint() (string, bool) {
	if a.Address == "" {
		return "", false
	}
	return net.JoinHostPort(a.Address, strconv.Itoa(a.Port)), true
}

// State returns the current connection state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Observe returns the locally sensed ball and a copy of the obstacle list.
func (a *Agent) Observe() (ball orb.Point, obstacles []orb.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.obs.Ball, slices.Clone(a.obs.Obstacles)
}

// Observation returns a consistent copy of everything the agent senses.
func (a *Agent) Observation() Observation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.obs.clone()
}

// Update runs fn with the agent's lock held.
func (a *Agent) Update(fn func(obs *Observation)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.obs)
}

// Parameters returns a copy of the agent's parameters.
func (a *Agent) Parameters() params.Set {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.params.Clone()
}

// SetParameters merges values into the agent's parameters.
func (a *Agent) SetParameters(values params.Set) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params.Merge(values)
}

// Snapshot is a read-only copy of an agent for presentation.
type Snapshot struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Role        string      `json:"role"`
	Endpoint    string      `json:"endpoint,omitempty"`
	State       string      `json:"state"`
	Position    orb.Point   `json:"position"`
	Orientation float64     `json:"orientation"`
	Ball        orb.Point   `json:"ball"`
	Obstacles   []orb.Point `json:"obstacles"`
	Params      params.Set  `json:"params"`
}

// Snapshot copies the agent under its lock.
func (a *Agent) Snapshot() Snapshot {
	endpoint, _ := a.Endpoint()
	state := a.State()

	a.mu.Lock()
	defer a.mu.Unlock()
	obs := a.obs.clone()
	if obs.Obstacles == nil {
		obs.Obstacles = []orb.Point{}
	}
	return Snapshot{
		ID:          a.ID,
		Name:        a.Name,
		Color:       a.Color,
		Role:        a.Role.String(),
		Endpoint:    endpoint,
		State:       state.String(),
		Position:    obs.Position,
		Orientation: obs.Orientation,
		Ball:        obs.Ball,
		Obstacles:   obs.Obstacles,
		Params:      a.params.Clone(),
	}
}
