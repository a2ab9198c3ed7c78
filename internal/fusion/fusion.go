// ABOUTME: World-state fusion: combines team agents' local observations into one estimate
// ABOUTME: Ball is the unweighted mean; obstacles are concatenated without deduplication

package fusion

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/teamera/basestation/internal/field"
)

// Observer is the read side of an agent that fusion needs. Observe must
// return a consistent copy taken under the agent's own lock.
type Observer interface {
	Observe() (ball orb.Point, obstacles []orb.Point)
}

// Estimate is a point-in-time shared world estimate. It is rebuilt from
// scratch every tick and never mutated after publication.
type Estimate struct {
	Tick      uint64      `json:"tick"`
	Time      time.Time   `json:"time"`
	Field     [2]float64  `json:"field"` // width, height in meters
	Ball      orb.Point   `json:"ball"`
	Obstacles []orb.Point `json:"obstacles"`
	Sources   int         `json:"sources"`
}

// Empty returns the estimate used before any agent has been fused.
func Empty() *Estimate {
	return &Estimate{
		Field:     [2]float64{field.Width, field.Height},
		Ball:      field.Center(),
		Obstacles: []orb.Point{},
	}
}

// Fuse builds a new estimate from the given team agents. Each agent is read
// under its own lock, one at a time; no two locks are ever held together.
//
// Every agent contributes, connected or not: a disconnected agent keeps its
// last observation (or the center-spot default if it never reported), and
// that value is averaged in like any other.
func Fuse[T Observer](team []T) *Estimate {
	est := Empty()
	if len(team) == 0 {
		return est
	}

	balls := make([]orb.Point, 0, len(team))
	for _, a := range team {
		ball, obstacles := a.Observe()
		balls = append(balls, ball)
		est.Obstacles = append(est.Obstacles, obstacles...)
	}

	if mean, ok := field.Mean(balls); ok {
		est.Ball = mean
	}
	est.Sources = len(balls)
	return est
}
