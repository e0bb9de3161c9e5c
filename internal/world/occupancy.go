package world

// OccupancyIndex is a cell occupancy map for O(1) collision checks.
// It tracks live entities per cell plus transient spawn reservations.
// A cell can briefly hold more than one entity id while a single mutation
// is in flight; at rest every live entity owns exactly one cell.
type OccupancyIndex struct {
	cells    map[Pos]map[string]struct{}
	reserved map[Pos]struct{}
}

func NewOccupancyIndex() *OccupancyIndex {
	return &OccupancyIndex{
		cells:    make(map[Pos]map[string]struct{}),
		reserved: make(map[Pos]struct{}),
	}
}

// Occupy marks an entity as occupying a cell.
func (o *OccupancyIndex) Occupy(p Pos, id string) {
	cell := o.cells[p]
	if cell == nil {
		cell = make(map[string]struct{}, 1)
		o.cells[p] = cell
	}
	cell[id] = struct{}{}
}

// Vacate removes an entity from a cell.
func (o *OccupancyIndex) Vacate(p Pos, id string) {
	cell := o.cells[p]
	if cell == nil {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(o.cells, p)
	}
}

// Move vacates from and occupies to in one step.
func (o *OccupancyIndex) Move(from, to Pos, id string) {
	if from == to {
		return
	}
	o.Vacate(from, id)
	o.Occupy(to, id)
}

// IsOccupied reports whether any entity other than exclude occupies p.
func (o *OccupancyIndex) IsOccupied(p Pos, exclude string) bool {
	for id := range o.cells[p] {
		if id != exclude {
			return true
		}
	}
	return false
}

// OccupantAt returns one occupant of p, or "" if the cell is empty.
func (o *OccupancyIndex) OccupantAt(p Pos) string {
	for id := range o.cells[p] {
		return id
	}
	return ""
}

// Reserve claims p for an in-flight spawn. It fails if p is occupied or
// already reserved, so check-and-claim happen in one call.
func (o *OccupancyIndex) Reserve(p Pos) bool {
	if _, ok := o.reserved[p]; ok {
		return false
	}
	if len(o.cells[p]) > 0 {
		return false
	}
	o.reserved[p] = struct{}{}
	return true
}

// Unreserve drops a reservation. Returns false if p was not reserved.
func (o *OccupancyIndex) Unreserve(p Pos) bool {
	if _, ok := o.reserved[p]; !ok {
		return false
	}
	delete(o.reserved, p)
	return true
}

func (o *OccupancyIndex) IsReserved(p Pos) bool {
	_, ok := o.reserved[p]
	return ok
}

// Blocked reports whether p is occupied by anyone or reserved.
func (o *OccupancyIndex) Blocked(p Pos) bool {
	return len(o.cells[p]) > 0 || o.IsReserved(p)
}

// Reservations returns the number of outstanding reservations.
func (o *OccupancyIndex) Reservations() int {
	return len(o.reserved)
}

// each calls fn for every (cell, occupant) pair.
func (o *OccupancyIndex) each(fn func(p Pos, id string)) {
	for p, cell := range o.cells {
		for id := range cell {
			fn(p, id)
		}
	}
}
