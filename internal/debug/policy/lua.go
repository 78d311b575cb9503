package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/dapviz/internal/debug/program"
)

// KeepFunction is the global a filter script must define:
//
//	function keep(name, type, value, reference) return true end
const KeepFunction = "keep"

// DefaultExecutionTimeout bounds a single keep call.
const DefaultExecutionTimeout = 5 * time.Second

// ErrFilterClosed is returned after Close.
var ErrFilterClosed = errors.New("lua filter closed")

// LuaFilter evaluates a user script for every variable. A script error keeps
// the variable and is counted in Failures.
//
// gopher-lua states are not goroutine-safe; calls are serialized.
type LuaFilter struct {
	mu       sync.Mutex
	L        *lua.LState
	fn       *lua.LFunction
	timeout  time.Duration
	closed   bool
	failures atomic.Int64
	lastErr  atomic.Value
}

// LuaOption configures a LuaFilter.
type LuaOption func(*LuaFilter)

// WithExecutionTimeout sets the timeout for each keep call. Zero or less
// disables it.
func WithExecutionTimeout(d time.Duration) LuaOption {
	return func(f *LuaFilter) {
		f.timeout = d
	}
}

// NewLuaFilter compiles script and looks up its keep function.
func NewLuaFilter(script string, opts ...LuaOption) (*LuaFilter, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := doWithRecovery(func() error { return L.DoString(script) }); err != nil {
		L.Close()
		return nil, fmt.Errorf("load filter script: %w", err)
	}

	fn, ok := L.GetGlobal(KeepFunction).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("filter script must define function %q", KeepFunction)
	}

	f := &LuaFilter{L: L, fn: fn, timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// NewLuaFilterFile loads a filter script from path.
func NewLuaFilterFile(path string, opts ...LuaOption) (*LuaFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter script %s: %w", path, err)
	}
	return NewLuaFilter(string(data), opts...)
}

// openSafeLibraries opens the libraries a filter needs and nothing that
// touches the file system or process.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// errBox gives atomic.Value one concrete type for every error.
type errBox struct{ err error }

func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Evaluate runs the script's keep function for v.
func (f *LuaFilter) Evaluate(v program.Variable) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return true, ErrFilterClosed
	}

	if f.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		f.L.SetContext(ctx)
		defer f.L.RemoveContext()
	}

	top := f.L.GetTop()
	err := doWithRecovery(func() error {
		return f.L.CallByParam(lua.P{Fn: f.fn, NRet: 1, Protect: true},
			lua.LString(v.Name),
			lua.LString(v.Type),
			lua.LString(v.Value),
			lua.LNumber(v.Reference),
		)
	})
	if err != nil {
		f.L.SetTop(top)
		return true, err
	}

	ret := f.L.Get(-1)
	f.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Keep implements Filter.
func (f *LuaFilter) Keep(v program.Variable) bool {
	keep, err := f.Evaluate(v)
	if err != nil {
		f.failures.Add(1)
		f.lastErr.Store(errBox{err})
	}
	return keep
}

// Failures returns how many evaluations failed.
func (f *LuaFilter) Failures() int64 {
	return f.failures.Load()
}

// LastError returns the most recent evaluation error.
func (f *LuaFilter) LastError() error {
	box, _ := f.lastErr.Load().(errBox)
	return box.err
}

// Close releases the Lua state.
func (f *LuaFilter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		f.L.Close()
	}
	return nil
}
