// Package policy holds caller-supplied rules that decide which variables
// reach the heap graph builder.
package policy

import (
	"strings"

	"github.com/dshills/dapviz/internal/debug/program"
)

// Filter decides whether a variable is kept.
type Filter interface {
	Keep(v program.Variable) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(v program.Variable) bool

// Keep implements Filter.
func (f FilterFunc) Keep(v program.Variable) bool {
	return f(v)
}

// KeepAll keeps every variable.
var KeepAll Filter = FilterFunc(func(program.Variable) bool { return true })

// ExcludePrefix drops variables whose name starts with prefix.
// An empty prefix keeps everything.
func ExcludePrefix(prefix string) Filter {
	if prefix == "" {
		return KeepAll
	}
	return FilterFunc(func(v program.Variable) bool {
		return !strings.HasPrefix(v.Name, prefix)
	})
}

// Chain keeps a variable only if every filter keeps it. Nil filters are
// skipped.
func Chain(filters ...Filter) Filter {
	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return KeepAll
	case 1:
		return active[0]
	}
	return FilterFunc(func(v program.Variable) bool {
		for _, f := range active {
			if !f.Keep(v) {
				return false
			}
		}
		return true
	})
}

// Apply returns the variables kept by f, in order. The input is not modified.
func Apply(f Filter, vars []program.Variable) []program.Variable {
	if f == nil {
		f = KeepAll
	}
	kept := make([]program.Variable, 0, len(vars))
	for _, v := range vars {
		if f.Keep(v) {
			kept = append(kept, v)
		}
	}
	return kept
}
