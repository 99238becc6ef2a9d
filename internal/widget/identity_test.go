package widget

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestIdentityStoreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_id")
	store := NewIdentityStore(path)

	first := store.GetOrCreate()
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("expected uuid, got %q: %v", first, err)
	}

	for i := 0; i < 5; i++ {
		if got := store.GetOrCreate(); got != first {
			t.Fatalf("expected stable identity %q, got %q", first, got)
		}
	}
}

func TestIdentityStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_id")

	first := NewIdentityStore(path).GetOrCreate()
	second := NewIdentityStore(path).GetOrCreate()
	if first != second {
		t.Fatalf("identity changed across restarts: %q vs %q", first, second)
	}
}

func TestIdentityStoreReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_id")
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	got := NewIdentityStore(path).GetOrCreate()
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected fresh uuid, got %q", got)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back identity: %v", err)
	}
	if string(raw) != got {
		t.Fatalf("corrupt file not replaced: %q vs %q", string(raw), got)
	}
}

func TestIdentityStoreDegradesToMemoryOnUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	// A directory at the key path makes both read and write fail.
	path := filepath.Join(dir, "visitor_id")
	if err := os.Mkdir(path, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	store := NewIdentityStore(path)
	first := store.GetOrCreate()
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("expected uuid despite unwritable storage, got %q", first)
	}
	if got := store.GetOrCreate(); got != first {
		t.Fatalf("in-memory identity must stay stable, got %q vs %q", got, first)
	}
}
