// Package path validates single steps and plans multi-step routes on the grid.
package path

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/gridrealm/server/internal/world"
)

const (
	DefaultMaxStep     = 1
	DefaultMaxNodes    = 20000
	DefaultMaxDistance = 20.0
)

// Map is the terrain and occupancy view the planner reads. *world.World
// satisfies it; callers hold the store lock for the duration of a call.
type Map interface {
	InBounds(p world.Pos) bool
	Passable(p world.Pos) bool
	MoveCost(p world.Pos) float64
	Blocked(p world.Pos) bool
}

type neighbor struct {
	d        world.Pos
	cost     float64
	diagonal bool
}

var neighbors = [...]neighbor{
	{d: world.Pos{X: 0, Y: -1}, cost: 1},
	{d: world.Pos{X: 1, Y: 0}, cost: 1},
	{d: world.Pos{X: 0, Y: 1}, cost: 1},
	{d: world.Pos{X: -1, Y: 0}, cost: 1},
	{d: world.Pos{X: 1, Y: -1}, cost: math.Sqrt2, diagonal: true},
	{d: world.Pos{X: 1, Y: 1}, cost: math.Sqrt2, diagonal: true},
	{d: world.Pos{X: -1, Y: 1}, cost: math.Sqrt2, diagonal: true},
	{d: world.Pos{X: -1, Y: -1}, cost: math.Sqrt2, diagonal: true},
}

// Planner holds the movement limits. It is stateless between calls.
type Planner struct {
	MaxStep     int
	MaxNodes    int
	MaxDistance float64
}

func NewPlanner(maxStep, maxNodes int, maxDistance float64) *Planner {
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Planner{MaxStep: maxStep, MaxNodes: maxNodes, MaxDistance: maxDistance}
}

// ValidateStep checks one move from -> to. target, when set, names a cell
// whose occupant is the intended combat target and so does not block.
func (pl *Planner) ValidateStep(m Map, from, to world.Pos, target *world.Pos) error {
	if !m.InBounds(to) {
		return fmt.Errorf("%s is out of bounds: %w", to, world.ErrInvalidMove)
	}
	d := world.Chebyshev(from, to)
	if d == 0 || d > pl.MaxStep {
		return fmt.Errorf("%s is not adjacent to %s: %w", to, from, world.ErrInvalidMove)
	}
	if !m.Passable(to) {
		return fmt.Errorf("%s is impassable: %w", to, world.ErrInvalidMove)
	}
	if target != nil && *target == to {
		return nil
	}
	if m.Blocked(to) {
		return fmt.Errorf("%s: %w", to, world.ErrPositionOccupied)
	}
	return nil
}

type node struct {
	pos    world.Pos
	g      float64
	f      float64
	seq    uint64
	index  int
	parent *node
}

// openSet orders by f, then by insertion sequence so equal-f nodes pop in
// the order they were discovered.
type openSet []*node

func (q openSet) Len() int { return len(q) }

func (q openSet) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}

func (q openSet) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *openSet) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// FindPath runs A* from start to goal and returns the steps after start.
// Occupied cells block every step except the goal. The search gives up with
// ErrPathNotFound once it has expanded MaxNodes nodes.
func (pl *Planner) FindPath(m Map, start, goal world.Pos) ([]world.Pos, error) {
	if !m.InBounds(start) || !m.InBounds(goal) {
		return nil, fmt.Errorf("find path %s -> %s: %w", start, goal, world.ErrInvalidMove)
	}
	if start == goal {
		return nil, nil
	}

	var seq uint64
	open := &openSet{}
	heap.Push(open, &node{pos: start, f: world.Euclidean(start, goal), seq: seq})
	gScore := map[world.Pos]float64{start: 0}
	closed := make(map[world.Pos]struct{})

	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if _, seen := closed[cur.pos]; seen {
			continue
		}
		if cur.pos == goal {
			return reconstruct(cur), nil
		}
		closed[cur.pos] = struct{}{}
		expanded++
		if expanded > pl.MaxNodes {
			break
		}

		for _, nb := range neighbors {
			next := cur.pos.Add(nb.d)
			if !m.InBounds(next) || !m.Passable(next) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			if next != goal && m.Blocked(next) {
				continue
			}
			g := cur.g + nb.cost*m.MoveCost(next)
			if prev, ok := gScore[next]; ok && g >= prev {
				continue
			}
			gScore[next] = g
			seq++
			heap.Push(open, &node{
				pos:    next,
				g:      g,
				f:      g + world.Euclidean(next, goal),
				seq:    seq,
				parent: cur,
			})
		}
	}
	return nil, fmt.Errorf("find path %s -> %s: %w", start, goal, world.ErrPathNotFound)
}

func reconstruct(end *node) []world.Pos {
	var out []world.Pos
	for n := end; n.parent != nil; n = n.parent {
		out = append(out, n.pos)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Cost sums the step costs of path starting from start, the same way
// FindPath scores it.
func Cost(m Map, start world.Pos, path []world.Pos) float64 {
	total := 0.0
	prev := start
	for _, p := range path {
		step := 1.0
		if p.X != prev.X && p.Y != prev.Y {
			step = math.Sqrt2
		}
		total += step * m.MoveCost(p)
		prev = p
	}
	return total
}

// RequestMoveTo plans a route for a player. The distance check runs first
// and costs O(1), so far targets never reach the search.
func (pl *Planner) RequestMoveTo(m Map, from, target world.Pos) ([]world.Pos, error) {
	if world.Euclidean(from, target) > pl.MaxDistance {
		return nil, fmt.Errorf("move to %s: %w", target, world.ErrTargetTooFar)
	}
	if !m.InBounds(target) {
		return nil, fmt.Errorf("move to %s: out of bounds: %w", target, world.ErrInvalidMove)
	}
	if !m.Passable(target) {
		return nil, fmt.Errorf("move to %s: impassable: %w", target, world.ErrInvalidMove)
	}
	if target == from {
		return nil, fmt.Errorf("move to %s: already there: %w", target, world.ErrInvalidMove)
	}
	steps, err := pl.FindPath(m, from, target)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("move to %s: %w", target, world.ErrPathNotFound)
	}
	return steps, nil
}
