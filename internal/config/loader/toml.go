package loader

import (
	"errors"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct {
	fileLoader
}

// NewTOMLLoader creates a new TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return NewTOMLLoaderWithFS(DefaultFS(), path)
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fs FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{fileLoader{
		fs:       fs,
		path:     path,
		decode:   toml.Unmarshal,
		position: tomlPosition,
	}}
}

func tomlPosition(err error) (int, int) {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		return derr.Position()
	}
	return 0, 0
}
