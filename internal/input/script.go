package input

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ErrNoPollFunction is returned when a script does not define poll(step)
var ErrNoPollFunction = errors.New("script does not define a poll function")

const pollFunction = "poll"

// ScriptSource drives the controller byte from a Lua script. The script
// defines a global poll(step) returning the byte for that instruction; the
// button constants A, B, SELECT, START, UP, DOWN, LEFT and RIGHT are
// predefined. A nil or missing return means no buttons.
//
// A ScriptSource is not safe for concurrent use.
type ScriptSource struct {
	state *lua.LState
	poll  lua.LValue
	name  string
}

// NewScriptSource loads a script from a file
func NewScriptSource(path string) (*ScriptSource, error) {
	return newScriptSource(path, func(L *lua.LState) error { return L.DoFile(path) })
}

// NewScriptSourceString loads a script from source text
func NewScriptSourceString(name, source string) (*ScriptSource, error) {
	return newScriptSource(name, func(L *lua.LState) error { return L.DoString(source) })
}

func newScriptSource(name string, load func(*lua.LState) error) (*ScriptSource, error) {
	L := lua.NewState()
	for i, button := range buttonNames {
		L.SetGlobal(strings.ToUpper(button), lua.LNumber(int(1)<<i))
	}

	if err := load(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load input script %s: %w", name, err)
	}

	fn := L.GetGlobal(pollFunction)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNoPollFunction)
	}

	return &ScriptSource{state: L, poll: fn, name: name}, nil
}

// Poll implements Source by calling poll(step)
func (s *ScriptSource) Poll(step uint64) (uint8, error) {
	L := s.state
	err := L.CallByParam(lua.P{
		Fn:      s.poll,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(step))
	if err != nil {
		return 0, fmt.Errorf("input script %s at step %d: %w", s.name, step, err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case lua.LNumber:
		return uint8(int64(v)), nil
	case *lua.LNilType:
		return 0, nil
	default:
		return 0, fmt.Errorf("input script %s: poll returned %s, want number", s.name, ret.Type())
	}
}

// Close releases the Lua state
func (s *ScriptSource) Close() {
	s.state.Close()
}
