package loader

import (
	"os"
	"strings"
)

// DefaultEnvPrefix is the prefix scanned by NewEnvLoader callers in dapviz.
const DefaultEnvPrefix = "DAPVIZ_"

// EnvLoader loads configuration from environment variables.
//
// DAPVIZ_GRAPH_MAX_DEPTH maps to graph.max_depth: the first segment after
// the prefix names the section and the rest form the snake_case key.
// Values are left as strings; the consumer decides how to type them.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom reads from a fixed environment instead of the process's.
func NewEnvLoaderFrom(prefix string, env []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return env }
	return l
}

// defaultEnvMapping holds shorthands that do not follow the section rule.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "URL":       "endpoint.url",
		prefix + "LOG_LEVEL": "logging.level",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// Load reads environment variables and returns a configuration map.
// Empty values are kept as empty strings.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, value)
	}

	return config, nil
}

// envToPath converts DAPVIZ_REDUCER_VARIABLE_COMMANDS to
// reducer.variable_commands.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := m

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
