package scripting

import (
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed scripts/*.lua
var builtin embed.FS

// Engine wraps a single gopher-lua VM for combat formulas.
// Calls are serialized by mu; an LState is not goroutine safe.
// Every bridge falls back to the Go formula when the script fails, so a bad
// override degrades to default balance instead of breaking attacks.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine with the built-in scripts, then loads any
// .lua files from scriptsDir on top so they can redefine functions.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	entries, err := builtin.ReadDir("scripts")
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("list builtin scripts: %w", err)
	}
	for _, entry := range entries {
		src, err := builtin.ReadFile("scripts/" + entry.Name())
		if err != nil {
			vm.Close()
			return nil, fmt.Errorf("read builtin %s: %w", entry.Name(), err)
		}
		if err := vm.DoString(string(src)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load builtin %s: %w", entry.Name(), err)
		}
	}

	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Combatant is the slice of an entity the damage formula reads.
type Combatant struct {
	Attack  int
	Defense int
	Terrain string // terrain under the combatant
}

// Rolls are the random inputs to one attack, drawn by the caller.
type Rolls struct {
	Crit   bool
	Spread float64 // 0.9..1.1
}

// CalcDamage calls the Lua calc_damage function.
func (e *Engine) CalcDamage(att, def Combatant, r Rolls) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_damage")
	if fn == lua.LNil {
		e.log.Error("lua function calc_damage not found")
		return goDamage(att, def, r)
	}

	t := e.vm.NewTable()

	a := e.vm.NewTable()
	a.RawSetString("attack", lua.LNumber(att.Attack))
	t.RawSetString("attacker", a)

	d := e.vm.NewTable()
	d.RawSetString("defense", lua.LNumber(def.Defense))
	d.RawSetString("terrain", lua.LString(def.Terrain))
	t.RawSetString("defender", d)

	rt := e.vm.NewTable()
	rt.RawSetString("crit", lua.LBool(r.Crit))
	rt.RawSetString("spread", lua.LNumber(r.Spread))
	t.RawSetString("rolls", rt)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_damage error", zap.Error(err))
		return goDamage(att, def, r)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua calc_damage returned non-number")
		return goDamage(att, def, r)
	}
	return int(n)
}

// ExpForLevel calls Lua exp_for_level(level).
func (e *Engine) ExpForLevel(level int) int {
	if v, ok := e.callIntFunc("exp_for_level", level); ok && v > 0 {
		return v
	}
	return 100 * level
}

// LevelUpStat calls Lua level_up_stat(newLevel).
func (e *Engine) LevelUpStat(newLevel int) int {
	if v, ok := e.callIntFunc("level_up_stat", newLevel); ok {
		return v
	}
	return newLevel/2 + 1
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0, false
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result)), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

func goDamage(att, def Combatant, r Rolls) int {
	dmg := float64(att.Attack) * 1.2
	dmg *= 1 - math.Min(float64(def.Defense)*0.1, 0.8)
	if r.Crit {
		dmg *= 2
	}
	switch def.Terrain {
	case "forest":
		dmg *= 0.9
	case "mountain":
		dmg *= 0.85
	}
	n := int(math.Floor(dmg * r.Spread))
	if n < 5 {
		n = 5
	}
	if n > 50 {
		n = 50
	}
	return n
}
