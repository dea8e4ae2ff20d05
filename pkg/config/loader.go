package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnvServer overrides server.url.
const EnvServer = "SVCONSOLE_SERVER"

const (
	appDir            = "svconsole"
	configFileName    = "config.yaml"
	projectConfigFile = ".svconsole.yaml"
)

// For mocking in tests
var (
	osUserConfigDir = os.UserConfigDir
	osGetwd         = os.Getwd
	osLookupEnv     = os.LookupEnv
)

// UserConfigPath returns the per-user config file location.
func UserConfigPath() (string, error) {
	dir, err := osUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, configFileName), nil
}

// UserDataPath returns a path for name next to the user config file.
func UserDataPath(name string) (string, error) {
	dir, err := osUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, name), nil
}

func projectConfigPath() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigFile), nil
}

// Overrides are the highest-priority layers.
type Overrides struct {
	File   string // explicit --config; must exist
	Server string // --server
}

// Resolve layers default ← user file ← project file ← explicit file ←
// $SVCONSOLE_SERVER ← flag. Missing user and project files are skipped.
// It returns the effective config and the files that contributed to it.
func Resolve(o Overrides) (*Config, []string, error) {
	c := Default()
	var sources []string

	optional := func(path string, err error) error {
		if err != nil {
			// No home or working dir: nothing to layer.
			return nil
		}
		if err := LoadFile(path, c); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		sources = append(sources, path)
		return nil
	}

	if err := optional(UserConfigPath()); err != nil {
		return nil, nil, fmt.Errorf("user config: %w", err)
	}
	if err := optional(projectConfigPath()); err != nil {
		return nil, nil, fmt.Errorf("project config: %w", err)
	}
	if o.File != "" {
		if err := LoadFile(o.File, c); err != nil {
			return nil, nil, fmt.Errorf("config file: %w", err)
		}
		sources = append(sources, o.File)
	}

	if v, ok := osLookupEnv(EnvServer); ok && v != "" {
		c.Server.URL = v
	}
	if o.Server != "" {
		c.Server.URL = o.Server
	}
	return c, sources, nil
}
