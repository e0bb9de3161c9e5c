package world

import (
	"fmt"
	"math"
)

// Pos is a grid coordinate. X grows east, Y grows south.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add returns p shifted by d.
func (p Pos) Add(d Pos) Pos {
	return Pos{X: p.X + d.X, Y: p.Y + d.Y}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Chebyshev returns the king-move distance between a and b.
func Chebyshev(a, b Pos) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dy > dx {
		return dy
	}
	return dx
}

// Manhattan returns |dx| + |dy|.
func Manhattan(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Euclidean returns the straight-line distance between a and b.
func Euclidean(a, b Pos) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
