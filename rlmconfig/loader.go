// Package rlmconfig loads operator configuration: LLM endpoint
// credentials from the environment, and engine knobs (iteration caps,
// per-topic defaults) from a cue file, following the same search order
// and file-naming convention the teacher's own config loader used.
package rlmconfig

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/logs"
)

//go:embed schema.cue
var schema string

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	var paths []string
	defer func() {
		if len(paths) > 0 {
			logger.Info("config file", "paths", paths)
		}
	}()

	filenames := []string{
		"rlmcore.cue",
		".rlmcore.cue",
	}

	if workingDir, err := os.Getwd(); err == nil {
		for _, filename := range filenames {
			path := filepath.Join(workingDir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		for _, filename := range filenames {
			path := filepath.Join(configDir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	for _, filename := range filenames {
		path := filepath.Join("/etc", filename)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}

	return configs.NewLoader(paths, schema)
}
