// Package scripting runs Lua scripts against a world through the "dod"
// module.
package scripting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const (
	refTypeName = "dod.ref"
	tickHook    = "on_tick"
)

// Console wraps a single gopher-lua VM. Single-goroutine access only (the
// tick loop).
type Console struct {
	vm    *lua.LState
	world *ecs.World
	log   *zap.Logger
}

// NewConsole creates a VM with the dod module preloaded.
func NewConsole(world *ecs.World, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Console{
		vm:    lua.NewState(),
		world: world,
		log:   log,
	}
	c.vm.SetGlobal("API_VERSION", lua.LNumber(1))

	mt := c.vm.NewTypeMetatable(refTypeName)
	c.vm.SetField(mt, "__tostring", c.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkRef(L, 1).String()))
		return 1
	}))
	c.vm.SetField(mt, "__eq", c.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkRef(L, 1) == checkRef(L, 2)))
		return 1
	}))

	c.vm.PreloadModule("dod", c.loader)
	return c
}

func (c *Console) loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"create_entity":    c.createEntity,
		"destroy_entity":   c.destroyEntity,
		"mark_for_destroy": c.markForDestroy,
		"create_component": c.createComponent,
		"component":        c.component,
		"create_resources": c.createResources,
		"create_resource":  c.createResource,
		"destroy_resource": c.destroyResource,
		"resource":         c.resource,
		"alive":            c.alive,
		"set":              c.set,
		"get":              c.get,
		"reset":            c.reset,
		"count":            c.count,
		"log":              c.logLine,
	})
	L.Push(mod)
	return 1
}

// LoadDir runs every .lua file in dir in name order. A missing directory is
// not an error.
func (c *Console) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := c.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		c.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Exec runs one chunk of Lua source.
func (c *Console) Exec(src string) error {
	return c.vm.DoString(src)
}

// Tick calls the global on_tick(dt) if a script defined one.
func (c *Console) Tick(dt float64) {
	fn := c.vm.GetGlobal(tickHook)
	if fn == lua.LNil {
		return
	}
	if err := c.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(dt)); err != nil {
		c.log.Error("lua on_tick error", zap.Error(err))
	}
}

func (c *Console) Close() {
	c.vm.Close()
}

func pushRef(L *lua.LState, ref ecs.Ref) {
	if !ref.IsValid() {
		L.Push(lua.LNil)
		return
	}
	ud := L.NewUserData()
	ud.Value = ref
	L.SetMetatable(ud, L.GetTypeMetatable(refTypeName))
	L.Push(ud)
}

func checkRef(L *lua.LState, n int) ecs.Ref {
	ud := L.CheckUserData(n)
	if ref, ok := ud.Value.(ecs.Ref); ok {
		return ref
	}
	L.ArgError(n, "ref expected")
	return ecs.InvalidRef
}

// manager finds the manager of any kind, including entities.
func (c *Console) manager(L *lua.LState, kind string) *ecs.Manager {
	if kind == ecs.EntityKind {
		return &c.world.Entities().Manager
	}
	reg := c.world.Registry()
	if m, err := reg.Component(kind); err == nil {
		return &m.Manager
	}
	m, err := reg.Resource(kind)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return nil
	}
	return &m.Manager
}

func (c *Console) componentManager(L *lua.LState, kind string) *ecs.ComponentManager {
	m, err := c.world.Registry().Component(kind)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return m
}

func (c *Console) resourceManager(L *lua.LState, kind string) *ecs.ResourceManager {
	m, err := c.world.Registry().Resource(kind)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return m
}

func raise(L *lua.LState, err error) {
	L.RaiseError("%s", err.Error())
}

// dod.create_entity(name) -> ref
func (c *Console) createEntity(L *lua.LState) int {
	ref, err := c.world.CreateEntity(L.CheckString(1))
	if err != nil {
		raise(L, err)
	}
	pushRef(L, ref)
	return 1
}

// dod.destroy_entity(ref)
func (c *Console) destroyEntity(L *lua.LState) int {
	if err := c.world.DestroyEntity(checkRef(L, 1)); err != nil {
		raise(L, err)
	}
	return 0
}

// dod.mark_for_destroy(ref) defers destruction to the end of the tick.
func (c *Console) markForDestroy(L *lua.LState) int {
	c.world.MarkForDestruction(checkRef(L, 1))
	return 0
}

// dod.create_component(kind, entity) -> ref
func (c *Console) createComponent(L *lua.LState) int {
	ref, err := c.world.AddComponent(checkRef(L, 2), L.CheckString(1))
	if err != nil {
		raise(L, err)
	}
	pushRef(L, ref)
	return 1
}

// dod.component(kind, entity) -> ref or nil
func (c *Console) component(L *lua.LState) int {
	m := c.componentManager(L, L.CheckString(1))
	pushRef(L, m.ForEntity(checkRef(L, 2)))
	return 1
}

// dod.create_resources(kind, ref...) runs the kind's secondary resource hook.
func (c *Console) createResources(L *lua.LState) int {
	m := c.componentManager(L, L.CheckString(1))
	refs := make([]ecs.Ref, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		refs = append(refs, checkRef(L, i))
	}
	m.CreateResources(refs)
	return 0
}

// dod.create_resource(kind, name) -> ref
func (c *Console) createResource(L *lua.LState) int {
	m := c.resourceManager(L, L.CheckString(1))
	ref, err := m.Create(L.CheckString(2))
	if err != nil {
		raise(L, err)
	}
	m.ResetToDefault(ref)
	pushRef(L, ref)
	return 1
}

// dod.destroy_resource(kind, ref)
func (c *Console) destroyResource(L *lua.LState) int {
	m := c.resourceManager(L, L.CheckString(1))
	if err := m.Destroy(checkRef(L, 2)); err != nil {
		raise(L, err)
	}
	return 0
}

// dod.resource(kind, name) -> ref or nil
func (c *Console) resource(L *lua.LState) int {
	m := c.resourceManager(L, L.CheckString(1))
	pushRef(L, m.ByName(L.CheckString(2)))
	return 1
}

// dod.alive(kind, ref) -> bool
func (c *Console) alive(L *lua.LState) int {
	m := c.manager(L, L.CheckString(1))
	ref := ecs.InvalidRef
	if L.Get(2) != lua.LNil {
		ref = checkRef(L, 2)
	}
	L.Push(lua.LBool(m.Alive(ref)))
	return 1
}

// dod.count(kind) -> number of live instances
func (c *Console) count(L *lua.LState) int {
	L.Push(lua.LNumber(c.manager(L, L.CheckString(1)).Len()))
	return 1
}

// dod.set(kind, ref, property, value) goes through the descriptor path, so
// conversions and type checks match loading from a file.
func (c *Console) set(L *lua.LState) int {
	m := c.manager(L, L.CheckString(1))
	ref := checkRef(L, 2)
	name := L.CheckString(3)
	raw, err := json.Marshal(fromLua(L.CheckAny(4)))
	if err != nil {
		raise(L, err)
	}
	if err := m.InitFromDescriptor(ref, ecs.Fragment{name: {Value: raw}}); err != nil {
		raise(L, err)
	}
	return 0
}

// dod.get(kind, ref, property) -> value
func (c *Console) get(L *lua.LState) int {
	m := c.manager(L, L.CheckString(1))
	ref := checkRef(L, 2)
	name := L.CheckString(3)
	frag, err := m.CompileDescriptor(ref, ecs.CompileOptions{EmitDefaults: true})
	if err != nil {
		raise(L, err)
	}
	prop, ok := frag[name]
	if !ok {
		L.ArgError(3, fmt.Sprintf("%s has no property %q", m.Kind(), name))
	}
	var v any
	if err := json.Unmarshal(prop.Value, &v); err != nil {
		raise(L, err)
	}
	L.Push(toLua(L, v))
	return 1
}

// dod.reset(kind, ref)
func (c *Console) reset(L *lua.LState) int {
	m := c.manager(L, L.CheckString(1))
	ref := checkRef(L, 2)
	if !m.Alive(ref) {
		raise(L, fmt.Errorf("%s %s: %w", m.Kind(), ref, ecs.ErrInvalidReference))
	}
	m.ResetToDefault(ref)
	return 0
}

// dod.log(msg)
func (c *Console) logLine(L *lua.LState) int {
	c.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// fromLua converts a Lua value to its JSON shape. Tables with a non-empty
// array part become arrays, other tables objects.
func fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if n := v.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(v.RawGetInt(i)))
			}
			return out
		}
		out := map[string]any{}
		v.ForEach(func(k, val lua.LValue) {
			out[k.String()] = fromLua(val)
		})
		return out
	}
	return nil
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := L.CreateTable(len(v), 0)
		for _, e := range v {
			t.Append(toLua(L, e))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(v))
		for k, e := range v {
			t.RawSetString(k, toLua(L, e))
		}
		return t
	}
	return lua.LNil
}
