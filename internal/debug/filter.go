package debug

import (
	"github.com/dshills/dapviz/internal/config"
	"github.com/dshills/dapviz/internal/debug/policy"
)

// closingFilter keeps the Close of a Lua filter reachable behind a chain.
type closingFilter struct {
	policy.Filter
	close func() error
}

func (f closingFilter) Close() error {
	return f.close()
}

// FilterFromConfig builds the variable filter for the filter settings:
// a name prefix exclusion followed by an optional Lua script. If the
// result holds a Lua state it implements Close.
func FilterFromConfig(cfg config.Filter) (policy.Filter, error) {
	prefix := policy.ExcludePrefix(cfg.ExcludePrefix)
	if cfg.Script == "" {
		return prefix, nil
	}

	lf, err := policy.NewLuaFilterFile(cfg.Script)
	if err != nil {
		return nil, err
	}
	return closingFilter{Filter: policy.Chain(prefix, lf), close: lf.Close}, nil
}
