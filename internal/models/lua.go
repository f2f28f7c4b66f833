package models

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/state"
)

// luaModel is a Model whose Exec runs a user-supplied Lua script
// against a small host API, letting an operator stub an unmodelled
// import without a Go recompile (spec §5.14's "non-essential to the
// core" override mechanism). A fresh lua.LState is spun up, and the
// script file re-run, on every Exec call; LoadLuaOverride runs it once
// at linker setup only to check that it defines `exec`. Lua never runs
// per instruction, only when the override's sentinel PC is reached.
type luaModel struct {
	name string
	path string
	a    arch.Architecture
	cc   arch.CallConv
}

// LoadLuaOverride loads a Lua script defining a global `exec(api)`
// function and returns it as a Model named name, bound to a's integer
// calling convention. The script must call `api:handle_return()` or
// `api:exit(code)` before returning, mirroring the exec-then-hand-back
// contract every Go Model follows.
func LoadLuaOverride(name, path string, a arch.Architecture, cc arch.CallConv) (Model, error) {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("models: LoadLuaOverride(%s): %w", path, err)
	}
	if L.GetGlobal("exec") == lua.LNil {
		return nil, fmt.Errorf("models: LoadLuaOverride(%s): script defines no global `exec`", path)
	}
	return &luaModel{name: name, path: path, a: a, cc: cc}, nil
}

func (m *luaModel) Name() string { return m.name }

func (m *luaModel) Exec(s *state.State) state.Successors {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoFile(m.path); err != nil {
		panic(fmt.Sprintf("models: lua override %s: %s", m.name, err))
	}

	var succ state.Successors
	api := m.newAPI(L, s, &succ)

	fn := L.GetGlobal("exec")
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, api); err != nil {
		panic(fmt.Sprintf("models: lua override %s: exec: %s", m.name, err))
	}
	if len(succ.Active) == 0 && len(succ.Exited) == 0 {
		panic(fmt.Sprintf("models: lua override %s: exec did not call handle_return or exit", m.name))
	}
	return succ
}

// newAPI builds the `api` userdata table exposed to the script: int
// parameter access, a concrete-only memory window, and the two ways a
// model call can conclude.
func (m *luaModel) newAPI(L *lua.LState, s *state.State, succ *state.Successors) *lua.LTable {
	api := L.NewTable()

	api.RawSetString("get_int_param", L.NewFunction(func(L *lua.LState) int {
		i := uint32(L.CheckInt(2))
		v := m.a.GetIntParam(m.cc, s, i)
		if v.Kind() != expr.KindConst {
			L.RaiseError("get_int_param(%d): symbolic value", i)
		}
		u, err := v.AsConst().AsU64()
		if err != nil {
			L.RaiseError("get_int_param(%d): %s", i, err)
		}
		L.Push(lua.LNumber(u))
		return 1
	}))

	api.RawSetString("set_return_int", L.NewFunction(func(L *lua.LState) int {
		v := uint64(L.CheckInt64(2))
		m.a.SetReturnIntValue(m.cc, s, s.B.ConstU64(v, uint32(m.a.PtrSize())))
		return 0
	}))

	api.RawSetString("read_byte", L.NewFunction(func(L *lua.LState) int {
		addr := uint64(L.CheckInt64(2))
		n := s.Read(addr, 1)
		if n.Kind() != expr.KindConst {
			L.RaiseError("read_byte(0x%x): symbolic byte", addr)
		}
		v, err := n.AsConst().AsU64()
		if err != nil {
			L.RaiseError("read_byte(0x%x): %s", addr, err)
		}
		L.Push(lua.LNumber(v))
		return 1
	}))

	api.RawSetString("write_byte", L.NewFunction(func(L *lua.LState) int {
		addr := uint64(L.CheckInt64(2))
		val := uint64(L.CheckInt64(3))
		s.Write(addr, s.B.ConstU64(val, 8))
		return 0
	}))

	api.RawSetString("handle_return", L.NewFunction(func(L *lua.LState) int {
		m.a.HandleReturn(s, succ)
		return 0
	}))

	api.RawSetString("exit", L.NewFunction(func(L *lua.LState) int {
		code := int32(L.CheckInt(2))
		s.MarkExited(code, "lua override: "+m.name)
		succ.Exited = append(succ.Exited, s)
		return 0
	}))

	return api
}
