package world

// Tile describes one grid cell's terrain. Tiles are values; the grid is only
// rewritten during world generation and cataclysm ring regeneration.
type Tile struct {
	Terrain   string  `json:"type"`
	MoveCost  float64 `json:"movementCost"`
	Passable  bool    `json:"passable"`
	Spawnable bool    `json:"spawnable"`
	Defense   int     `json:"defenseBonus"`
}

// Grid is a fixed-size row-major terrain array.
type Grid struct {
	width  int
	height int
	tiles  []Tile
}

// NewGrid creates a width×height grid filled with fill.
func NewGrid(width, height int, fill Tile) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
	}
	for i := range g.tiles {
		g.tiles[i] = fill
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// At returns the tile at p. Out-of-bounds positions return the zero Tile,
// which is impassable and not spawnable.
func (g *Grid) At(p Pos) Tile {
	if !g.InBounds(p) {
		return Tile{}
	}
	return g.tiles[p.Y*g.width+p.X]
}

// Set overwrites the tile at p. Out-of-bounds writes are ignored.
func (g *Grid) Set(p Pos, t Tile) {
	if !g.InBounds(p) {
		return
	}
	g.tiles[p.Y*g.width+p.X] = t
}

// DisallowedFraction is the share of cells whose terrain forbids spawning.
func (g *Grid) DisallowedFraction() float64 {
	if len(g.tiles) == 0 {
		return 0
	}
	n := 0
	for _, t := range g.tiles {
		if !t.Spawnable {
			n++
		}
	}
	return float64(n) / float64(len(g.tiles))
}

// Rows returns a copy of the grid as [y][x], the shape clients render.
func (g *Grid) Rows() [][]Tile {
	rows := make([][]Tile, g.height)
	for y := 0; y < g.height; y++ {
		row := make([]Tile, g.width)
		copy(row, g.tiles[y*g.width:(y+1)*g.width])
		rows[y] = row
	}
	return rows
}

// Center returns the middle cell, rounding down.
func (g *Grid) Center() Pos {
	return Pos{X: g.width / 2, Y: g.height / 2}
}
