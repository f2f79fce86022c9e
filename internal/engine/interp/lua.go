package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"practicelab/internal/engine/result"

	lua "github.com/yuin/gopher-lua"
)

const (
	defaultCallStackSize = 256
	defaultRegistrySize  = 1024 * 20
	defaultRunTimeout    = 10 * time.Second
	maxOutputBytes       = 1 << 20
)

var errRuntimeClosed = errors.New("interpreter runtime is closed")

// LuaConfig holds interpreter limits.
type LuaConfig struct {
	CallStackSize int           `yaml:"callStackSize"`
	RegistrySize  int           `yaml:"registrySize"`
	RunTimeout    time.Duration `yaml:"runTimeout"`
}

// Lua implements Runtime with a sandboxed gopher-lua state. Only the base,
// table, string and math libraries are available and print is captured.
type Lua struct {
	mu      sync.Mutex
	state   *lua.LState
	out     strings.Builder
	timeout time.Duration
	closed  bool
}

func NewLua(cfg LuaConfig) (*Lua, error) {
	if cfg.CallStackSize <= 0 {
		cfg.CallStackSize = defaultCallStackSize
	}
	if cfg.RegistrySize <= 0 {
		cfg.RegistrySize = defaultRegistrySize
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}

	state := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: cfg.CallStackSize,
		RegistrySize:  cfg.RegistrySize,
	})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := state.CallByParam(lua.P{Fn: state.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			state.Close()
			return nil, fmt.Errorf("open lua library %s failed: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "require", "module", "collectgarbage"} {
		state.SetGlobal(name, lua.LNil)
	}

	l := &Lua{state: state, timeout: cfg.RunTimeout}
	state.SetGlobal("print", state.NewFunction(l.print))
	return l, nil
}

func (l *Lua) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	if l.out.Len() < maxOutputBytes {
		l.out.WriteString(strings.Join(parts, "\t"))
		l.out.WriteByte('\n')
	}
	return 0
}

func (l *Lua) Bind(ctx context.Context, variable string, frame Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errRuntimeClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.state.SetGlobal(variable, l.frameTable(frame))
	return nil
}

// frameTable builds {columns, rows, data, n}: rows is a list of records and
// data maps each column to its values.
func (l *Lua) frameTable(frame Frame) *lua.LTable {
	L := l.state
	columns := L.NewTable()
	data := L.NewTable()
	series := make(map[string]*lua.LTable, len(frame.Columns))
	for _, c := range frame.Columns {
		columns.Append(lua.LString(c))
		s := L.NewTable()
		series[c] = s
		data.RawSetString(c, s)
	}

	rows := L.NewTable()
	for i, row := range frame.Rows {
		record := L.NewTable()
		for _, c := range frame.Columns {
			v := toLua(row[c])
			record.RawSetString(c, v)
			series[c].RawSetInt(i+1, v)
		}
		rows.RawSetInt(i+1, record)
	}

	tbl := L.NewTable()
	tbl.RawSetString("columns", columns)
	tbl.RawSetString("rows", rows)
	tbl.RawSetString("data", data)
	tbl.RawSetString("n", lua.LNumber(len(frame.Rows)))
	return tbl
}

func (l *Lua) Run(ctx context.Context, code string) (result.ScriptResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return result.ScriptResult{}, errRuntimeClosed
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	l.state.SetContext(runCtx)
	defer l.state.RemoveContext()

	l.out.Reset()
	err := l.state.DoString(code)
	l.state.SetTop(0)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return result.ScriptError("Script timed out."), nil
		}
		return result.ScriptError(luaErrorMessage(err)), nil
	}
	return result.ScriptResult{Output: l.out.String()}, nil
}

func (l *Lua) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.state.Close()
}

func luaErrorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

func toLua(v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(t)
	case int64:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case bool:
		return lua.LBool(t)
	}
	return lua.LString(fmt.Sprint(v))
}
