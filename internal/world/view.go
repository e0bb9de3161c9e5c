package world

import "time"

// PlayerView is the wire shape of a player. Views are copies, safe to use
// after the Store lock is released.
type PlayerView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Class      Class      `json:"class"`
	Position   Pos        `json:"position"`
	Stats      Stats      `json:"stats"`
	Level      int        `json:"level"`
	Experience int        `json:"experience"`
	Inventory  []ItemView `json:"inventory"`
	Alive      bool       `json:"isAlive"`
	Connected  bool       `json:"isConnected"`
	Path       []Pos      `json:"path,omitempty"`

	// Volatile; carried for clients but ignored by Same.
	LastActive   time.Time `json:"lastActive"`
	LastMoveTick uint64    `json:"lastMoveTick"`
}

// Same compares the state fields of two views, ignoring volatile timestamps.
func (v PlayerView) Same(o PlayerView) bool {
	if v.ID != o.ID || v.Name != o.Name || v.Class != o.Class ||
		v.Position != o.Position || v.Stats != o.Stats ||
		v.Level != o.Level || v.Experience != o.Experience ||
		v.Alive != o.Alive || v.Connected != o.Connected {
		return false
	}
	if len(v.Inventory) != len(o.Inventory) || len(v.Path) != len(o.Path) {
		return false
	}
	for i := range v.Inventory {
		if !v.Inventory[i].Same(o.Inventory[i]) {
			return false
		}
	}
	for i := range v.Path {
		if v.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}

type NPCView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"type"`
	Position Pos    `json:"position"`
	Stats    Stats  `json:"stats"`
	Level    int    `json:"level"`
	Alive    bool   `json:"isAlive"`
	Behavior string `json:"behavior"`

	LastMoveTick uint64 `json:"lastMoveTick"`
}

func (v NPCView) Same(o NPCView) bool {
	v.LastMoveTick, o.LastMoveTick = 0, 0
	return v == o
}

type ItemView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Kind           ItemKind  `json:"type"`
	Rarity         Rarity    `json:"rarity"`
	Description    string    `json:"description,omitempty"`
	Stats          ItemStats `json:"stats"`
	Position       *Pos      `json:"position,omitempty"`
	Hidden         bool      `json:"isHidden"`
	Revealing      bool      `json:"isRevealing"`
	RevealProgress float64   `json:"revealProgress"`
	Lootable       bool      `json:"isLootable"`

	RevealStartTick uint64 `json:"revealStartTick,omitempty"`
}

func (v ItemView) Same(o ItemView) bool {
	if (v.Position == nil) != (o.Position == nil) {
		return false
	}
	if v.Position != nil && *v.Position != *o.Position {
		return false
	}
	return v.ID == o.ID && v.Name == o.Name && v.Kind == o.Kind &&
		v.Rarity == o.Rarity && v.Description == o.Description &&
		v.Stats == o.Stats && v.Hidden == o.Hidden &&
		v.Revealing == o.Revealing && v.RevealProgress == o.RevealProgress &&
		v.Lootable == o.Lootable
}

func (p *Player) View() PlayerView {
	v := PlayerView{
		ID:           p.ID,
		Name:         p.Name,
		Class:        p.Class,
		Position:     p.Pos,
		Stats:        p.Stats,
		Level:        p.Level,
		Experience:   p.Experience,
		Inventory:    make([]ItemView, 0, len(p.Inventory)),
		Alive:        p.Alive,
		Connected:    p.Connected,
		LastActive:   p.LastActive,
		LastMoveTick: p.LastMoveTick,
	}
	for _, it := range p.Inventory {
		v.Inventory = append(v.Inventory, it.View())
	}
	if len(p.Path) > 0 {
		v.Path = append([]Pos(nil), p.Path...)
	}
	return v
}

func (n *NPC) View() NPCView {
	return NPCView{
		ID:           n.ID,
		Name:         n.Name,
		Kind:         n.Kind,
		Position:     n.Pos,
		Stats:        n.Stats,
		Level:        n.Level,
		Alive:        n.Alive,
		Behavior:     n.Behavior,
		LastMoveTick: n.LastMoveTick,
	}
}

func (it *Item) View() ItemView {
	v := ItemView{
		ID:              it.ID,
		Name:            it.Name,
		Kind:            it.Kind,
		Rarity:          it.Rarity,
		Description:     it.Description,
		Stats:           it.Stats,
		Hidden:          it.Hidden,
		Revealing:       it.Revealing,
		RevealProgress:  it.RevealProgress,
		Lootable:        it.Lootable,
		RevealStartTick: it.RevealStartTick,
	}
	if it.Pos != nil {
		p := *it.Pos
		v.Position = &p
	}
	return v
}

// Frame is the entity state the delta broadcaster diffs tick to tick. Rev
// is the store revision it was read at.
type Frame struct {
	Rev     uint64
	Players []PlayerView
	NPCs    []NPCView
	Items   []ItemView
}

// Frame captures every entity in id order.
func (w *World) Frame() Frame {
	f := Frame{Rev: w.rev}
	for _, p := range w.Players() {
		f.Players = append(f.Players, p.View())
	}
	for _, n := range w.NPCs() {
		f.NPCs = append(f.NPCs, n.View())
	}
	for _, it := range w.Items() {
		f.Items = append(f.Items, it.View())
	}
	return f
}

// Snapshot is the full world state sent once on join.
type Snapshot struct {
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Grid      [][]Tile     `json:"grid"`
	Players   []PlayerView `json:"players"`
	NPCs      []NPCView    `json:"npcs"`
	Items     []ItemView   `json:"items"`
	Cataclysm Cataclysm    `json:"cataclysm"`
	Phase     Phase        `json:"phase"`
	Tick      uint64       `json:"tick"`
	Rev       uint64       `json:"-"`
}

func (w *World) Snapshot() Snapshot {
	f := w.Frame()
	return Snapshot{
		Width:     w.grid.Width(),
		Height:    w.grid.Height(),
		Grid:      w.grid.Rows(),
		Players:   f.Players,
		NPCs:      f.NPCs,
		Items:     f.Items,
		Cataclysm: w.cataclysm,
		Phase:     w.cataclysm.Phase,
		Tick:      w.tick,
		Rev:       f.Rev,
	}
}
