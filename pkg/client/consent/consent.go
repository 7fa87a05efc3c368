// ABOUTME: Per-tool consent levels and the narrow key-value Store interface
// ABOUTME: Durable stores hold allow_always/deny_always; session grants never persist

package consent

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Level is a consent policy for one tool.
type Level string

const (
	// LevelAsk re-prompts on every call. Lookups for unknown tools
	// resolve to this.
	LevelAsk Level = "ask"
	// LevelSession approves for the lifetime of one runtime instance.
	// Controllers hold session grants in memory; durable stores reject
	// the level outright.
	LevelSession Level = "session"
	// LevelAllowAlways approves without prompting, durably.
	LevelAllowAlways Level = "allow_always"
	// LevelDenyAlways rejects without prompting, durably.
	LevelDenyAlways Level = "deny_always"
)

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	switch l {
	case LevelAsk, LevelSession, LevelAllowAlways, LevelDenyAlways:
		return true
	}
	return false
}

// Store is the persistence collaborator the controller reads and writes
// through. Implementations are safe for concurrent use. Get returns
// LevelAsk for tools with no recorded decision.
type Store interface {
	Get(tool string) (Level, error)
	Set(tool string, level Level) error
}

// NormalizeTool canonicalizes a tool name for use as a consent key, so
// composed and decomposed spellings of the same name share one entry.
func NormalizeTool(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// checkSettable rejects levels a durable store must not hold.
func checkSettable(level Level) error {
	if !level.Valid() {
		return fmt.Errorf("invalid consent level %q", level)
	}
	if level == LevelSession {
		return fmt.Errorf("session consent is never persisted")
	}
	return nil
}

// Memory is an in-process Store for tests and ephemeral configurations.
type Memory struct {
	mu     sync.RWMutex
	levels map[string]Level
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{levels: make(map[string]Level)}
}

// Get returns the recorded level for tool, or LevelAsk.
func (m *Memory) Get(tool string) (Level, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if level, ok := m.levels[NormalizeTool(tool)]; ok {
		return level, nil
	}
	return LevelAsk, nil
}

// Set records level for tool.
func (m *Memory) Set(tool string, level Level) error {
	if err := checkSettable(level); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[NormalizeTool(tool)] = level
	return nil
}
