package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadExists(t *testing.T) {
	v := At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	if v.Exists("abc") {
		t.Error("Exists before write")
	}
	if err := v.Write("abc", "# Hello\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !v.Exists("abc") {
		t.Error("Exists after write")
	}

	got, err := v.Read("abc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "# Hello\n" {
		t.Errorf("read = %q", got)
	}
}

func TestTrash(t *testing.T) {
	v := At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := v.Write("gone", "body"); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := v.Trash("gone"); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if v.Exists("gone") {
		t.Error("file still in vault after trash")
	}

	entries, err := os.ReadDir(filepath.Join(v.Root, TrashDir))
	if err != nil {
		t.Fatalf("read trash dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("trash entries = %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "gone.") {
		t.Errorf("trash entry = %q", entries[0].Name())
	}
}

func TestTrashMissing(t *testing.T) {
	v := At(t.TempDir())
	if err := v.Trash("nope"); err == nil {
		t.Error("expected error trashing missing file")
	}
}

func TestListSkipsDirs(t *testing.T) {
	v := At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	mustWrite := func(rel, content string) {
		path := filepath.Join(v.Root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("one.md", "a")
	mustWrite("sub/two.md", "b")
	mustWrite("sub/ignore.txt", "c")
	mustWrite(".trash/old.md", "d")
	mustWrite("node_modules/pkg/readme.md", "e")

	paths, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := map[string]bool{"one.md": true, "sub/two.md": true}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}
}

func TestIDForPath(t *testing.T) {
	if got := IDForPath("/vault/abc-123.md"); got != "abc-123" {
		t.Errorf("IDForPath = %q", got)
	}
	if got := IDForPath("/vault/readme.txt"); got != "" {
		t.Errorf("IDForPath for non-markdown = %q", got)
	}
}
