// ABOUTME: YAML-backed consent store with atomic rewrite on every Set
// ABOUTME: Suitable for per-user config directories; one small file per store

package consent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File persists consent levels in a YAML map keyed by tool name. Every Set
// rewrites the whole file through a rename, so readers never observe a
// partial write.
type File struct {
	path string

	mu     sync.Mutex
	levels map[string]Level
}

// OpenFile loads or creates the store at path. A missing file is an empty
// store; a malformed one is an error, not a silent reset.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, levels: make(map[string]Level)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read consent file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f.levels); err != nil {
		return nil, fmt.Errorf("parse consent file %s: %w", path, err)
	}
	for tool, level := range f.levels {
		if !level.Valid() {
			return nil, fmt.Errorf("consent file %s: tool %q has invalid level %q", path, tool, level)
		}
	}
	return f, nil
}

// Get returns the recorded level for tool, or LevelAsk.
func (f *File) Get(tool string) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if level, ok := f.levels[NormalizeTool(tool)]; ok {
		return level, nil
	}
	return LevelAsk, nil
}

// Set records level for tool and rewrites the file.
func (f *File) Set(tool string, level Level) error {
	if err := checkSettable(level); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[NormalizeTool(tool)] = level
	return f.flush()
}

// flush writes the current map to a temp file and renames it into place.
// Caller holds f.mu.
func (f *File) flush() error {
	data, err := yaml.Marshal(f.levels)
	if err != nil {
		return fmt.Errorf("encode consent levels: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create consent dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write consent file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace consent file: %w", err)
	}
	return nil
}
