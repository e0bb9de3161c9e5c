package path

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrealm/server/internal/world"
)

// gridMap is a test Map with per-cell terrain and a blocked set.
type gridMap struct {
	w, h    int
	walls   map[world.Pos]bool
	cost    map[world.Pos]float64
	blocked map[world.Pos]bool
	probes  int
}

func newGridMap(w, h int) *gridMap {
	return &gridMap{w: w, h: h, walls: map[world.Pos]bool{}, cost: map[world.Pos]float64{}, blocked: map[world.Pos]bool{}}
}

func (g *gridMap) InBounds(p world.Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.w && p.Y < g.h
}

func (g *gridMap) Passable(p world.Pos) bool {
	g.probes++
	return !g.walls[p]
}

func (g *gridMap) MoveCost(p world.Pos) float64 {
	if c, ok := g.cost[p]; ok {
		return c
	}
	return 1
}

func (g *gridMap) Blocked(p world.Pos) bool { return g.blocked[p] }

func defaultPlanner() *Planner { return NewPlanner(0, 0, 0) }

func TestFindPathStraight(t *testing.T) {
	m := newGridMap(10, 10)
	steps, err := defaultPlanner().FindPath(m, world.Pos{}, world.Pos{X: 3})
	require.NoError(t, err)
	assert.Equal(t, []world.Pos{{X: 1}, {X: 2}, {X: 3}}, steps)
	assert.InDelta(t, 3.0, Cost(m, world.Pos{}, steps), 1e-9)
}

func TestFindPathDiagonal(t *testing.T) {
	m := newGridMap(10, 10)
	steps, err := defaultPlanner().FindPath(m, world.Pos{}, world.Pos{X: 2, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, []world.Pos{{X: 1, Y: 1}, {X: 2, Y: 2}}, steps)
	assert.InDelta(t, 2*math.Sqrt2, Cost(m, world.Pos{}, steps), 1e-9)
}

func TestFindPathPrefersCheapTerrain(t *testing.T) {
	m := newGridMap(5, 3)
	// A costly band across the straight route.
	m.cost[world.Pos{X: 2, Y: 1}] = 5
	steps, err := defaultPlanner().FindPath(m, world.Pos{X: 0, Y: 1}, world.Pos{X: 4, Y: 1})
	require.NoError(t, err)
	assert.NotContains(t, steps, world.Pos{X: 2, Y: 1})
	assert.Less(t, Cost(m, world.Pos{X: 0, Y: 1}, steps), 5.0)
}

func TestFindPathRoutesAroundWallsAndOccupants(t *testing.T) {
	m := newGridMap(5, 5)
	for y := 0; y < 4; y++ {
		m.walls[world.Pos{X: 2, Y: y}] = true
	}
	m.blocked[world.Pos{X: 1, Y: 4}] = true
	steps, err := defaultPlanner().FindPath(m, world.Pos{X: 0, Y: 0}, world.Pos{X: 4, Y: 0})
	require.NoError(t, err)
	assert.Contains(t, steps, world.Pos{X: 2, Y: 4})
	assert.NotContains(t, steps, world.Pos{X: 1, Y: 4})
	assert.Equal(t, world.Pos{X: 4, Y: 0}, steps[len(steps)-1])
}

func TestFindPathGoalExemptFromOccupancy(t *testing.T) {
	m := newGridMap(4, 1)
	goal := world.Pos{X: 3}
	m.blocked[goal] = true
	steps, err := defaultPlanner().FindPath(m, world.Pos{}, goal)
	require.NoError(t, err)
	assert.Equal(t, goal, steps[len(steps)-1])
}

func TestFindPathUnreachable(t *testing.T) {
	m := newGridMap(5, 5)
	for y := 0; y < 5; y++ {
		m.walls[world.Pos{X: 2, Y: y}] = true
	}
	_, err := defaultPlanner().FindPath(m, world.Pos{}, world.Pos{X: 4, Y: 4})
	assert.ErrorIs(t, err, world.ErrPathNotFound)
}

func TestFindPathNodeBudget(t *testing.T) {
	m := newGridMap(30, 30)
	// Reachable only through the gap at the bottom of the wall.
	for y := 0; y < 29; y++ {
		m.walls[world.Pos{X: 20, Y: y}] = true
	}
	_, err := NewPlanner(1, 20000, 100).FindPath(m, world.Pos{}, world.Pos{X: 25, Y: 25})
	require.NoError(t, err)

	_, err = NewPlanner(1, 50, 100).FindPath(m, world.Pos{}, world.Pos{X: 25, Y: 25})
	assert.ErrorIs(t, err, world.ErrPathNotFound)
}

func TestFindPathDeterministic(t *testing.T) {
	m := newGridMap(12, 12)
	m.walls[world.Pos{X: 5, Y: 5}] = true
	first, err := defaultPlanner().FindPath(m, world.Pos{X: 1, Y: 1}, world.Pos{X: 10, Y: 8})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := defaultPlanner().FindPath(m, world.Pos{X: 1, Y: 1}, world.Pos{X: 10, Y: 8})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRequestMoveToRejectsFarTargetFast(t *testing.T) {
	m := newGridMap(1000, 1000)
	start := time.Now()
	_, err := defaultPlanner().RequestMoveTo(m, world.Pos{}, world.Pos{X: 500, Y: 500})
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, world.ErrTargetTooFar)
	assert.Less(t, elapsed, 50*time.Millisecond)
	assert.Zero(t, m.probes, "distance check must run before any terrain lookup")
}

func TestRequestMoveToPrechecks(t *testing.T) {
	m := newGridMap(10, 10)
	m.walls[world.Pos{X: 5, Y: 5}] = true
	pl := defaultPlanner()

	_, err := pl.RequestMoveTo(m, world.Pos{}, world.Pos{X: -1, Y: 0})
	assert.ErrorIs(t, err, world.ErrInvalidMove)

	_, err = pl.RequestMoveTo(m, world.Pos{}, world.Pos{X: 5, Y: 5})
	assert.ErrorIs(t, err, world.ErrInvalidMove)

	steps, err := pl.RequestMoveTo(m, world.Pos{}, world.Pos{X: 4, Y: 0})
	require.NoError(t, err)
	assert.Len(t, steps, 4)
}

func TestValidateStep(t *testing.T) {
	m := newGridMap(5, 5)
	m.walls[world.Pos{X: 2, Y: 1}] = true
	m.blocked[world.Pos{X: 1, Y: 2}] = true
	pl := defaultPlanner()
	from := world.Pos{X: 1, Y: 1}
	target := world.Pos{X: 1, Y: 2}

	cases := []struct {
		name   string
		to     world.Pos
		target *world.Pos
		want   error
	}{
		{"orthogonal", world.Pos{X: 1, Y: 0}, nil, nil},
		{"diagonal", world.Pos{X: 0, Y: 0}, nil, nil},
		{"same cell", from, nil, world.ErrInvalidMove},
		{"too far", world.Pos{X: 3, Y: 1}, nil, world.ErrInvalidMove},
		{"out of bounds", world.Pos{X: -1, Y: 1}, nil, world.ErrInvalidMove},
		{"impassable", world.Pos{X: 2, Y: 1}, nil, world.ErrInvalidMove},
		{"occupied", world.Pos{X: 1, Y: 2}, nil, world.ErrPositionOccupied},
		{"occupied by target", world.Pos{X: 1, Y: 2}, &target, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := pl.ValidateStep(m, from, tc.to, tc.target)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestWorldSatisfiesMap(t *testing.T) {
	var _ Map = (*world.World)(nil)
}
