package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: reserved for inbound drains
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: game logic
	PhasePostUpdate              // 3: consistency checks
	PhaseOutput                  // 4: build + send deltas
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: end-of-tick bookkeeping
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one unit of per-tick work. A non-nil error aborts the rest of
// the tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration) error
}
