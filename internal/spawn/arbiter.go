// Package spawn picks collision-free spawn cells for joins and NPC placement.
package spawn

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/world"
)

const (
	// DefaultSamples is the number of random probes in the sampling phase.
	DefaultSamples = 500
	// DefaultDegradedThreshold is the non-spawnable share of the grid above
	// which the last-resort scan accepts non-spawnable (but passable) cells.
	DefaultDegradedThreshold = 0.70
)

// Arbiter finds and reserves spawn cells. Every probe is a test-and-set on
// the world's occupancy index under the store lock, so two joins can never
// be handed the same cell.
type Arbiter struct {
	store     *world.Store
	samples   int
	threshold float64
	log       *zap.Logger
}

func NewArbiter(store *world.Store, samples int, threshold float64, log *zap.Logger) *Arbiter {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if threshold <= 0 {
		threshold = DefaultDegradedThreshold
	}
	return &Arbiter{store: store, samples: samples, threshold: threshold, log: log}
}

// Reservation is an exclusive claim on one cell. It is released exactly once,
// either explicitly or when the claimed cell is committed to an entity.
type Reservation struct {
	Pos      world.Pos
	Degraded bool // taken by the fallback scan on non-spawnable terrain

	store *world.Store
	done  atomic.Bool
}

// Release drops the claim. Safe to call any number of times; only the first
// call has an effect, and it reports whether it did.
func (r *Reservation) Release() bool {
	if !r.done.CompareAndSwap(false, true) {
		return false
	}
	r.store.View(func(w *world.World) { w.Release(r.Pos) })
	return true
}

// ReleaseIn is Release for callers already holding the store lock. Commit
// paths use it to swap the reservation for a live entity atomically.
func (r *Reservation) ReleaseIn(w *world.World) bool {
	if !r.done.CompareAndSwap(false, true) {
		return false
	}
	w.Release(r.Pos)
	return true
}

// Released reports whether the claim has been dropped.
func (r *Reservation) Released() bool {
	return r.done.Load()
}

// FindAndReserve searches for a free cell and claims it. It returns false
// when every phase is exhausted.
func (a *Arbiter) FindAndReserve() (*Reservation, bool) {
	var res *Reservation
	var ok bool
	a.store.View(func(w *world.World) {
		res, ok = a.ReserveIn(w)
	})
	return res, ok
}

// ReserveIn runs the search for a caller already holding the store lock.
//
// Phases, in order: the four corners, the remaining edge cells, the rings
// around the grid center in shuffled order, random samples over the whole
// grid, and finally a linear scan. The linear scan accepts non-spawnable
// terrain only when the grid is mostly non-spawnable; otherwise a
// mountain-heavy map could never seat a player.
func (a *Arbiter) ReserveIn(w *world.World) (*Reservation, bool) {
	g := w.Grid()
	wd, ht := g.Width(), g.Height()
	if wd == 0 || ht == 0 {
		return nil, false
	}

	try := func(p world.Pos, allowDisallowed bool) (*Reservation, bool) {
		if w.TryReserve(p, allowDisallowed) {
			return &Reservation{Pos: p, Degraded: allowDisallowed && !g.At(p).Spawnable, store: a.store}, true
		}
		return nil, false
	}

	for _, p := range corners(wd, ht) {
		if r, ok := try(p, false); ok {
			return r, true
		}
	}
	for _, p := range edges(wd, ht) {
		if r, ok := try(p, false); ok {
			return r, true
		}
	}

	rings := rings(g.Center(), wd, ht)
	rng := w.Rand()
	rng.Shuffle(len(rings), func(i, j int) { rings[i], rings[j] = rings[j], rings[i] })
	for _, p := range rings {
		if r, ok := try(p, false); ok {
			return r, true
		}
	}

	for i := 0; i < a.samples; i++ {
		p := world.Pos{X: rng.Intn(wd), Y: rng.Intn(ht)}
		if r, ok := try(p, false); ok {
			return r, true
		}
	}

	degraded := w.DisallowedFraction() > a.threshold
	if degraded {
		a.log.Warn(fmt.Sprintf("出生點降級掃描  disallowed=%.2f  threshold=%.2f",
			w.DisallowedFraction(), a.threshold))
	}
	for y := 0; y < ht; y++ {
		for x := 0; x < wd; x++ {
			if r, ok := try(world.Pos{X: x, Y: y}, degraded); ok {
				return r, true
			}
		}
	}
	return nil, false
}

// ReserveAt claims exactly p, or reports false. The caller holds the lock.
func (a *Arbiter) ReserveAt(w *world.World, p world.Pos) (*Reservation, bool) {
	if !w.TryReserve(p, false) {
		return nil, false
	}
	return &Reservation{Pos: p, store: a.store}, true
}

func corners(w, h int) []world.Pos {
	ps := []world.Pos{{X: 0, Y: 0}, {X: w - 1, Y: 0}, {X: 0, Y: h - 1}, {X: w - 1, Y: h - 1}}
	// Dedupe for 1-wide or 1-tall grids.
	seen := make(map[world.Pos]bool, 4)
	out := ps[:0]
	for _, p := range ps {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func edges(w, h int) []world.Pos {
	var out []world.Pos
	for x := 1; x < w-1; x++ {
		out = append(out, world.Pos{X: x, Y: 0})
		if h > 1 {
			out = append(out, world.Pos{X: x, Y: h - 1})
		}
	}
	for y := 1; y < h-1; y++ {
		out = append(out, world.Pos{X: 0, Y: y})
		if w > 1 {
			out = append(out, world.Pos{X: w - 1, Y: y})
		}
	}
	return out
}

// rings lists every in-bounds cell on the square rings around center, inner
// ring first.
func rings(center world.Pos, w, h int) []world.Pos {
	maxR := w
	if h > maxR {
		maxR = h
	}
	out := []world.Pos{center}
	for r := 1; r <= maxR; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				p := world.Pos{X: center.X + dx, Y: center.Y + dy}
				if p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
