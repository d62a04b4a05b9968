package luahost

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// resolve walks a dotted path from the globals table. A missing segment, or
// one reached through a non-table value, resolves to LNil.
func (h *Host) resolve(path string) (lua.LValue, error) {
	segs, err := splitPath(path)
	if err != nil {
		return lua.LNil, err
	}

	cur := h.L.GetGlobal(segs[0])
	for _, seg := range segs[1:] {
		t, ok := cur.(*lua.LTable)
		if !ok {
			return lua.LNil, nil
		}
		cur = t.RawGetString(seg)
	}
	return cur, nil
}

// assign stores v at path, creating missing intermediate tables. It fails
// when an intermediate segment holds a non-table value.
func (h *Host) assign(path string, v lua.LValue) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 1 {
		h.L.SetGlobal(segs[0], v)
		return nil
	}

	root := h.L.GetGlobal(segs[0])
	if root == lua.LNil {
		root = h.L.NewTable()
		h.L.SetGlobal(segs[0], root)
	}
	cur, ok := root.(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTable, segs[0])
	}

	for i, seg := range segs[1 : len(segs)-1] {
		next := cur.RawGetString(seg)
		if next == lua.LNil {
			next = h.L.NewTable()
			cur.RawSetString(seg, next)
		}
		t, ok := next.(*lua.LTable)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotTable, strings.Join(segs[:i+2], "."))
		}
		cur = t
	}
	cur.RawSetString(segs[len(segs)-1], v)
	return nil
}
