// ABOUTME: Tests for the SQLite consent store: reopen durability and upsert
// ABOUTME: Runs against a throwaway database file per test

package consent

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consent.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSQLiteDefaultsToAsk(t *testing.T) {
	t.Parallel()

	store, _ := openTestDB(t)
	level, err := store.Get("shell")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if level != LevelAsk {
		t.Errorf("unknown tool level = %q, want ask", level)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	t.Parallel()

	store, path := openTestDB(t)
	if err := store.Set("shell", LevelDenyAlways); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	level, err := reopened.Get("shell")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if level != LevelDenyAlways {
		t.Errorf("level = %q after reopen, want deny_always", level)
	}
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	t.Parallel()

	store, _ := openTestDB(t)
	if err := store.Set("shell", LevelAllowAlways); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set("shell", LevelDenyAlways); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	level, err := store.Get("shell")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if level != LevelDenyAlways {
		t.Errorf("level = %q, want deny_always after overwrite", level)
	}
}

func TestSQLiteRejectsSessionLevel(t *testing.T) {
	t.Parallel()

	store, _ := openTestDB(t)
	if err := store.Set("shell", LevelSession); err == nil {
		t.Error("session level must not be persisted")
	}
}

func TestSQLiteNormalizesKeys(t *testing.T) {
	t.Parallel()

	store, _ := openTestDB(t)
	if err := store.Set("café", LevelAllowAlways); err != nil {
		t.Fatalf("Set: %v", err)
	}
	level, err := store.Get("café")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if level != LevelAllowAlways {
		t.Errorf("decomposed lookup = %q, want allow_always", level)
	}
}
