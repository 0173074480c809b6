// Package vault handles the on-disk layout of a note vault: one
// Markdown file per document, addressed deterministically by id, with
// retired notes moved to .trash instead of deleted.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sgx-labs/markvault/internal/config"
)

// TrashDir is where retired notes go, relative to the vault root.
const TrashDir = ".trash"

// Vault is a notes directory.
type Vault struct {
	Root string
}

// Open returns a Vault for the configured root.
func Open() (*Vault, error) {
	root := config.VaultPath()
	if root == "" {
		return nil, config.ErrNoVault
	}
	return &Vault{Root: root}, nil
}

// At returns a Vault rooted at an explicit path.
func At(root string) *Vault {
	return &Vault{Root: root}
}

// Init creates the vault layout: the root itself plus the .markvault
// metadata directory.
func (v *Vault) Init() error {
	if err := os.MkdirAll(v.Root, 0o755); err != nil {
		return fmt.Errorf("create vault root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(v.Root, ".markvault"), 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	return nil
}

// PathForID maps a document id to its file path inside the vault.
func (v *Vault) PathForID(id string) string {
	return filepath.Join(v.Root, id+".md")
}

// Read returns the raw file content for a document id.
func (v *Vault) Read(id string) (string, error) {
	data, err := os.ReadFile(v.PathForID(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadPath returns the raw content of an arbitrary vault-relative path.
func (v *Vault) ReadPath(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(v.Root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write stores the file content for a document id.
func (v *Vault) Write(id, content string) error {
	return os.WriteFile(v.PathForID(id), []byte(content), 0o644)
}

// Exists reports whether a document file is present.
func (v *Vault) Exists(id string) bool {
	_, err := os.Stat(v.PathForID(id))
	return err == nil
}

// Trash retires a document by moving its file into .trash. The moved
// file gets a timestamp suffix so repeated trashing never collides.
func (v *Vault) Trash(id string) error {
	src := v.PathForID(id)
	if _, err := os.Stat(src); err != nil {
		return err
	}

	trashDir := filepath.Join(v.Root, TrashDir)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}

	dst := filepath.Join(trashDir, fmt.Sprintf("%s.%d.md", id, time.Now().Unix()))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move to trash: %w", err)
	}
	return nil
}

// List walks the vault and returns the relative paths of all markdown
// files, skipping the configured skip directories.
func (v *Vault) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(v.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if config.SkipDirs[d.Name()] && path != v.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".md") {
			paths = append(paths, v.RelativePath(path))
		}
		return nil
	})
	return paths, err
}

// RelativePath converts an absolute path to a vault-relative slash path.
func (v *Vault) RelativePath(abs string) string {
	rel, err := filepath.Rel(v.Root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// IDForPath derives the document id from a vault file path: the base
// name without the .md extension. Returns "" for non-markdown files.
func IDForPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".md") {
		return ""
	}
	return strings.TrimSuffix(base, ".md")
}
