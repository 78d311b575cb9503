package loader

import (
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct {
	fileLoader
}

// NewYAMLLoader creates a new YAML loader for the given path.
func NewYAMLLoader(path string) *YAMLLoader {
	return NewYAMLLoaderWithFS(DefaultFS(), path)
}

// NewYAMLLoaderWithFS creates a YAML loader with a custom file system.
func NewYAMLLoaderWithFS(fs FileSystem, path string) *YAMLLoader {
	return &YAMLLoader{fileLoader{
		fs:       fs,
		path:     path,
		decode:   yaml.Unmarshal,
		position: yamlPosition,
	}}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// yamlPosition reads the line number yaml.v3 embeds in its messages.
func yamlPosition(err error) (int, int) {
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, 0
	}
	line, _ := strconv.Atoi(m[1])
	return line, 0
}
