package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/phonecam/internal/logging"
)

// Transform holds the transform a new session starts with.
type Transform struct {
	Rotation       int  `toml:"rotation"`
	FlipHorizontal bool `toml:"flip_horizontal"`
	FlipVertical   bool `toml:"flip_vertical"`
}

// Runtime is the subset of the config file that can change while the
// process is running. Everything else requires a restart.
type Runtime struct {
	Logging   logging.Config `toml:"logging"`
	Transform Transform      `toml:"transform"`
}

// LoadRuntime reads the reloadable sections of the config file at path.
// Unknown sections are ignored so the full config file can be passed in.
func LoadRuntime(path string) (Runtime, error) {
	var rt Runtime

	data, err := os.ReadFile(path)
	if err != nil {
		return rt, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &rt); err != nil {
		return rt, fmt.Errorf("parse config: %w", err)
	}
	if rt.Logging.Level == "" {
		rt.Logging.Level = "info"
	}
	return rt, nil
}
