// Package config loads dapviz settings.
//
// Settings start from Default, are overlaid by a TOML or YAML file and then
// by DAPVIZ_* environment variables, and are validated before use. Watch
// reloads the file when it changes.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dshills/dapviz/internal/config/loader"
	"github.com/dshills/dapviz/internal/debug/heap"
	"github.com/dshills/dapviz/internal/debug/program"
	"github.com/dshills/dapviz/internal/logging"
)

// DefaultURL is the bridge endpoint used when none is configured.
const DefaultURL = "ws://localhost:8080/api/events"

// Config is the full set of dapviz settings.
type Config struct {
	Endpoint   Endpoint   `json:"endpoint"`
	Classifier Classifier `json:"classifier"`
	Reducer    Reducer    `json:"reducer"`
	Graph      Graph      `json:"graph"`
	Filter     Filter     `json:"filter"`
	Logging    Logging    `json:"logging"`
}

// Endpoint locates the debug bridge.
type Endpoint struct {
	URL              string   `json:"url"`
	HandshakeTimeout Duration `json:"handshake_timeout"`
}

// Classifier configures stack/heap classification.
type Classifier struct {
	PrimitiveTypes StringList `json:"primitive_types"`
}

// Reducer configures how inbound messages change program state.
type Reducer struct {
	// Unsuccessful is "retain" or "clear".
	Unsuccessful     string     `json:"unsuccessful"`
	VariableCommands StringList `json:"variable_commands"`
}

// Graph bounds heap graph traversal.
type Graph struct {
	MaxDepth int `json:"max_depth"`
}

// Filter selects the variables shown in the graph.
type Filter struct {
	ExcludePrefix string `json:"exclude_prefix"`
	// Script is a path to a Lua file defining keep(name, type, value, ref).
	Script string `json:"script"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Endpoint: Endpoint{
			URL:              DefaultURL,
			HandshakeTimeout: Duration(10 * time.Second),
		},
		Classifier: Classifier{
			PrimitiveTypes: append(StringList(nil), heap.DefaultPrimitiveTypes...),
		},
		Reducer: Reducer{
			Unsuccessful:     program.UnsuccessfulRetain.String(),
			VariableCommands: append(StringList(nil), program.DefaultVariableCommands...),
		},
		Graph: Graph{
			MaxDepth: heap.DefaultMaxDepth,
		},
		Logging: Logging{
			Level:  "info",
			Format: string(logging.FormatText),
		},
	}
}

// Load reads settings from path (optional) and the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.Environ())
}

// LoadWith is Load with an explicit environment.
func LoadWith(path string, environ []string) (Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}

	var file map[string]any
	if path != "" {
		l, err := loader.ForPath(path)
		if err != nil {
			return Config{}, err
		}
		file, err = l.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, err
		}
	}

	env, err := loader.NewEnvLoaderFrom(loader.DefaultEnvPrefix, environ).Load()
	if err != nil {
		return Config{}, err
	}

	cfg, err := fromMap(loader.Merge(base, file, typeLike(base, env)))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all failures together.
func (c Config) Validate() error {
	var errs ValidationErrors
	fail := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if u, err := url.Parse(c.Endpoint.URL); err != nil {
		fail("endpoint.url", err.Error(), c.Endpoint.URL)
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		fail("endpoint.url", "scheme must be ws or wss", c.Endpoint.URL)
	} else if u.Host == "" {
		fail("endpoint.url", "missing host", c.Endpoint.URL)
	}
	if c.Endpoint.HandshakeTimeout < 0 {
		fail("endpoint.handshake_timeout", "must not be negative", c.Endpoint.HandshakeTimeout.Std())
	}
	if _, err := program.ParseUnsuccessfulPolicy(c.Reducer.Unsuccessful); err != nil {
		fail("reducer.unsuccessful", "must be retain or clear", c.Reducer.Unsuccessful)
	}
	if len(c.Reducer.VariableCommands) == 0 {
		fail("reducer.variable_commands", "must name at least one command", c.Reducer.VariableCommands)
	}
	if c.Graph.MaxDepth < 0 {
		fail("graph.max_depth", "must not be negative", c.Graph.MaxDepth)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		fail("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		fail("logging.format", "must be text or json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UnsuccessfulPolicy returns the parsed reducer policy.
func (c Config) UnsuccessfulPolicy() program.UnsuccessfulPolicy {
	p, _ := program.ParseUnsuccessfulPolicy(c.Reducer.Unsuccessful)
	return p
}

// LoggerConfig returns the logging settings in the form logging.New takes.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: logging.Format(c.Logging.Format)}
}

// Map returns the settings as a nested map keyed like the config file.
func (c Config) Map() map[string]any {
	m, _ := toMap(c)
	return m
}

func toMap(c Config) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return m, nil
}

// typeLike converts environment strings to the kind of the matching default.
// Numeric and boolean settings decode from their text; every other setting
// keeps the exact string, so DAPVIZ_FILTER_EXCLUDE_PREFIX=1 stays "1".
func typeLike(base, env map[string]any) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		switch ev := v.(type) {
		case map[string]any:
			sub, _ := base[k].(map[string]any)
			out[k] = typeLike(sub, ev)
		case string:
			out[k] = typeString(base[k], ev)
		default:
			out[k] = v
		}
	}
	return out
}

func typeString(like any, s string) any {
	switch like.(type) {
	case float64:
		if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n
		}
	case bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

func fromMap(m map[string]any) (Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encode config: %w", err)
	}
	var c Config
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}
