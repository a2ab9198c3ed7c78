// ABOUTME: Tests for world-state fusion
// ABOUTME: Covers the mean, the empty default, obstacle concatenation and concurrent writers

package fusion

import (
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamera/basestation/internal/agent"
)

func agentWith(id int, ball orb.Point, obstacles ...orb.Point) *agent.Agent {
	a := agent.New(agent.Config{ID: id})
	a.Update(func(obs *agent.Observation) {
		obs.Ball = ball
		obs.Obstacles = obstacles
	})
	return a
}

func TestFuseMean(t *testing.T) {
	est := Fuse([]*agent.Agent{
		agentWith(1, orb.Point{0, 0}),
		agentWith(2, orb.Point{12, 9}),
	})

	assert.Equal(t, orb.Point{6, 4.5}, est.Ball)
	assert.Equal(t, 2, est.Sources)
	assert.Equal(t, [2]float64{12, 9}, est.Field)
}

func TestFuseEmpty(t *testing.T) {
	est := Fuse([]*agent.Agent{})

	assert.Equal(t, orb.Point{6, 4.5}, est.Ball)
	assert.NotNil(t, est.Obstacles)
	assert.Empty(t, est.Obstacles)
	assert.Equal(t, 0, est.Sources)

	est = Fuse[*agent.Agent](nil)
	assert.Equal(t, orb.Point{6, 4.5}, est.Ball)
}

func TestFuseConcatenatesObstacles(t *testing.T) {
	est := Fuse([]*agent.Agent{
		agentWith(1, orb.Point{1, 1}, orb.Point{2, 2}, orb.Point{3, 3}),
		agentWith(2, orb.Point{1, 1}),
		agentWith(3, orb.Point{1, 1}, orb.Point{2, 2}),
	})

	assert.Equal(t, []orb.Point{{2, 2}, {3, 3}, {2, 2}}, est.Obstacles, "no deduplication")
}

func TestFuseIncludesNeverConnectedAgents(t *testing.T) {
	// A fresh agent reports the center spot, which pulls the mean toward it.
	est := Fuse([]*agent.Agent{
		agentWith(1, orb.Point{0, 0}),
		agent.New(agent.Config{ID: 2}),
	})
	assert.Equal(t, orb.Point{3, 2.25}, est.Ball)
}

func TestFuseDoesNotAliasAgentState(t *testing.T) {
	a := agentWith(1, orb.Point{1, 1}, orb.Point{4, 4})
	est := Fuse([]*agent.Agent{a})
	est.Obstacles[0] = orb.Point{0, 0}

	_, obstacles := a.Observe()
	assert.Equal(t, []orb.Point{{4, 4}}, obstacles)
}

func TestFuseWithConcurrentWriters(t *testing.T) {
	team := []*agent.Agent{
		agentWith(1, orb.Point{2, 2}),
		agentWith(2, orb.Point{4, 4}),
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for _, a := range team {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				a.Update(func(obs *agent.Observation) {
					obs.Obstacles = append(obs.Obstacles[:0], orb.Point{1, 1})
				})
			}
		}()
	}

	for range 100 {
		est := Fuse(team)
		require.Equal(t, orb.Point{3, 3}, est.Ball)
	}
	close(stop)
	wg.Wait()
}
