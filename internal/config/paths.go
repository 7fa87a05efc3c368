// ABOUTME: Standard filesystem paths for tandem configuration and data
// ABOUTME: Resolves ~/.tandem/ for global and .tandem/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".tandem"
	projectDirName = ".tandem"
)

// GlobalDir returns the user-global config directory (~/.tandem/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory (.tandem/ under root).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// GlobalConfigFile returns the path to the global config file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), "config.yaml")
}

// ProjectConfigFile returns the path to the project-local config file.
func ProjectConfigFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "config.yaml")
}

// ConsentFile returns the default path of the YAML consent store.
func ConsentFile() string {
	return filepath.Join(GlobalDir(), "consent.yaml")
}

// ConsentDB returns the default path of the SQLite consent store.
func ConsentDB() string {
	return filepath.Join(GlobalDir(), "consent.db")
}

// EnsureDir creates a directory and all parents if they don't exist.
// 0o700 because the tree holds credentials and consent decisions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}
