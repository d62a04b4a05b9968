// Package luahost implements host.Host on a sandboxed Lua state, so host
// behavior can be replayed from a script without the real application.
//
// A script describes the runtime and namespaces as globals and may define a
// scenario function that fires native events:
//
//	runtime = { version = "13.345", dependency = "4.1.0", companions = { "lib-wrapper" } }
//	CONFIG = { DND5E = { dice = { d20 = true } } }
//
//	function scenario()
//	  hooks.call("createActor", { name = "Goblin" }, {}, "user-1")
//	  console.warn("The Application V1 framework is deprecated")
//	end
//
// Lua API available to scripts:
//
//	hooks.call(name, ...)  invoke every Go callback registered for name; returns the count
//	hooks.count(name)      number of callbacks registered for name
//	console.warn(...)      route a warning through the current warning sink
//
// gopher-lua states are not goroutine-safe. A Host must be driven from one
// goroutine at a time; the callbacks and the warning sink it holds are
// guarded separately so Go code may register callbacks concurrently.
package luahost

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/host"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Warnings that reach the default sink are
// logged at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// Host is a scripted host.Host.
type Host struct {
	L *lua.LState

	logger *zap.Logger

	mu        sync.Mutex
	callbacks map[string][]host.Callback
	sink      host.Sink
	warnings  [][]any
	closed    bool
}

// unsafeGlobals are removed from the base library.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// New creates a host with an empty runtime description.
func New(opts ...Option) *Host {
	h := &Host{
		logger:    zap.NewNop(),
		callbacks: make(map[string][]host.Callback),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("luahost")
	h.sink = h.defaultSink

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("hooks", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"call":  h.luaCall,
		"count": h.luaCount,
	}))
	L.SetGlobal("console", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"warn": h.luaWarn,
	}))
	L.SetGlobal("runtime", L.NewTable())

	h.L = L
	return h
}

// defaultSink is the sink installed before anyone wraps it.
func (h *Host) defaultSink(args ...any) {
	h.mu.Lock()
	h.warnings = append(h.warnings, args)
	h.mu.Unlock()
	h.logger.Warn("host warning", zap.Any("args", args))
}

// LoadString executes Lua source in the host.
func (h *Host) LoadString(ctx context.Context, src string) error {
	return h.exec(ctx, func() error { return h.L.DoString(src) })
}

// LoadFile executes a Lua file in the host.
func (h *Host) LoadFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return h.exec(ctx, func() error { return h.L.DoString(string(src)) })
}

// RunScenario calls the script's global scenario function.
func (h *Host) RunScenario(ctx context.Context) error {
	return h.exec(ctx, func() error {
		fn, ok := h.L.GetGlobal("scenario").(*lua.LFunction)
		if !ok {
			return ErrNoScenario
		}
		return h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
}

// exec runs fn with ctx attached to the state. Cancellation or an expired
// deadline stops the script.
func (h *Host) exec(ctx context.Context, fn func() error) (err error) {
	if h.isClosed() {
		return ErrClosed
	}
	if ctx != nil {
		h.L.SetContext(ctx)
		defer h.L.RemoveContext()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.L.Close()
}

func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// On implements host.Events.
func (h *Host) On(name string, cb host.Callback) {
	if cb == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks[name] = append(h.callbacks[name], cb)
}

// Fire invokes the callbacks registered for name from Go, as hooks.call
// does from Lua, and returns how many ran.
func (h *Host) Fire(name string, args ...any) int {
	h.mu.Lock()
	cbs := append([]host.Callback(nil), h.callbacks[name]...)
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(args...)
	}
	return len(cbs)
}

// Registered returns the native event names with callbacks, sorted.
func (h *Host) Registered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.callbacks))
	for name := range h.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Warnings returns the warnings that reached the default sink.
func (h *Host) Warnings() [][]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]any(nil), h.warnings...)
}

// HostVersion implements host.Metadata. It reads runtime.version.
func (h *Host) HostVersion() string {
	return h.runtimeString("version")
}

// DependencyVersion implements host.Metadata. It reads runtime.dependency.
func (h *Host) DependencyVersion() string {
	return h.runtimeString("dependency")
}

// Companions implements host.Metadata. It reads runtime.companions, an
// array of ids.
func (h *Host) Companions() []string {
	if h.isClosed() {
		return nil
	}
	rt, ok := h.L.GetGlobal("runtime").(*lua.LTable)
	if !ok {
		return nil
	}
	list, ok := rt.RawGetString("companions").(*lua.LTable)
	if !ok {
		return nil
	}

	var ids []string
	for i := 1; i <= list.Len(); i++ {
		if s, ok := list.RawGetInt(i).(lua.LString); ok {
			ids = append(ids, string(s))
		}
	}
	return ids
}

func (h *Host) runtimeString(key string) string {
	if h.isClosed() {
		return ""
	}
	rt, ok := h.L.GetGlobal("runtime").(*lua.LTable)
	if !ok {
		return ""
	}
	switch v := rt.RawGetString(key).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		return ""
	}
}

// Lookup implements host.Metadata.
func (h *Host) Lookup(path string) (any, bool, error) {
	if h.isClosed() {
		return nil, false, ErrClosed
	}
	lv, err := h.resolve(path)
	if err != nil {
		return nil, false, err
	}
	if lv == lua.LNil {
		return nil, false, nil
	}
	return toGo(lv), true, nil
}

// WarnSink implements host.Console.
func (h *Host) WarnSink() host.Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sink
}

// SetWarnSink implements host.Console. A nil sink restores the default.
func (h *Host) SetWarnSink(s host.Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s == nil {
		s = h.defaultSink
	}
	h.sink = s
}

// Alias implements host.Mutator.
func (h *Host) Alias(from, to string) error {
	if h.isClosed() {
		return ErrClosed
	}
	lv, err := h.resolve(from)
	if err != nil {
		return err
	}
	if lv == lua.LNil {
		return fmt.Errorf("alias %s: %w: %s", to, ErrNotFound, from)
	}
	return h.assign(to, lv)
}

// Set implements host.Mutator.
func (h *Host) Set(path string, value any) error {
	if h.isClosed() {
		return ErrClosed
	}
	return h.assign(path, toLua(h.L, value))
}

func (h *Host) luaCall(L *lua.LState) int {
	name := L.CheckString(1)
	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, toGo(L.Get(i)))
	}

	n := h.Fire(name, args...)
	L.Push(lua.LNumber(n))
	return 1
}

func (h *Host) luaCount(L *lua.LState) int {
	name := L.CheckString(1)
	h.mu.Lock()
	n := len(h.callbacks[name])
	h.mu.Unlock()
	L.Push(lua.LNumber(n))
	return 1
}

func (h *Host) luaWarn(L *lua.LState) int {
	args := make([]any, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		args = append(args, toGo(L.Get(i)))
	}
	h.WarnSink()(args...)
	return 0
}

var _ host.Host = (*Host)(nil)
