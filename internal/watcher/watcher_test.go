package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

func TestWalkDirs_SkipsMetaDirs(t *testing.T) {
	root := t.TempDir()

	mkdirAll(t, filepath.Join(root, "notes", "nested"))
	mkdirAll(t, filepath.Join(root, ".git"))
	mkdirAll(t, filepath.Join(root, ".markvault"))
	mkdirAll(t, filepath.Join(root, ".trash"))

	got := walkDirs(root)
	relSet := make(map[string]bool, len(got))
	for _, p := range got {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("rel path: %v", err)
		}
		relSet[filepath.ToSlash(rel)] = true
	}

	if !relSet["."] {
		t.Fatalf("expected vault root in watched dirs")
	}
	if !relSet["notes"] || !relSet["notes/nested"] {
		t.Fatalf("expected notes dirs to be watched, got: %#v", relSet)
	}
	for _, skipped := range []string{".git", ".markvault", ".trash"} {
		if relSet[skipped] {
			t.Fatalf("expected %s to be skipped, got: %#v", skipped, relSet)
		}
	}
}

func TestRemoveFromIndex_DeletesIndexedDoc(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()

	insertDoc(t, db, "renamed")

	v := vault.At(t.TempDir())
	removeFromIndex(db, v, filepath.Join(v.Root, "renamed.md"))

	count, err := db.DocumentCount()
	if err != nil {
		t.Fatalf("document count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected doc to be removed, count=%d", count)
	}
}

func TestReindexFiles_MissingPathDeletesIndexedEntry(t *testing.T) {
	t.Setenv("MARKVAULT_EMBED_PROVIDER", "none")

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()

	insertDoc(t, db, "missing")

	v := vault.At(t.TempDir())
	reindexFiles(db, v, []string{filepath.Join(v.Root, "missing.md")})

	count, err := db.DocumentCount()
	if err != nil {
		t.Fatalf("document count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected stale doc to be removed, count=%d", count)
	}
}

func insertDoc(t *testing.T, db *store.DB, id string) {
	t.Helper()
	err := db.UpsertDocument(&store.DocumentRecord{
		ID:        id,
		Title:     "Test Note",
		Body:      "body",
		Tags:      "[]",
		CreatedAt: "2026-01-01T00:00:00.000Z",
		UpdatedAt: "2026-01-01T00:00:00.000Z",
	})
	if err != nil {
		t.Fatalf("insert doc: %v", err)
	}
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
