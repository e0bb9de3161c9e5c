package world

// Phase is the world's macro state.
type Phase string

const (
	PhaseExploration Phase = "exploration"
	PhaseCataclysm   Phase = "cataclysm"
	PhaseRebirth     Phase = "rebirth"
)

// Cataclysm is the shrinking-circle event. Tick fields are logical ticks.
type Cataclysm struct {
	Center         Pos     `json:"center"`
	Radius         int     `json:"radius"`
	InitialRadius  int     `json:"initialRadius"`
	Active         bool    `json:"isActive"`
	NextShrinkTick uint64  `json:"nextShrinkTick"`
	Roughness      float64 `json:"roughness"`
	Phase          Phase   `json:"phase"`
	RebirthEndTick uint64  `json:"rebirthEndTick,omitempty"`
}

// NewCataclysm returns the idle state for a grid.
func NewCataclysm(g *Grid) Cataclysm {
	r := g.Width()
	if g.Height() > r {
		r = g.Height()
	}
	return Cataclysm{
		Center:        g.Center(),
		Radius:        r,
		InitialRadius: r,
		Roughness:     1,
		Phase:         PhaseExploration,
	}
}

// Outside reports whether p lies beyond the current safe radius.
func (c *Cataclysm) Outside(p Pos) bool {
	return Euclidean(p, c.Center) >= float64(c.Radius)
}
