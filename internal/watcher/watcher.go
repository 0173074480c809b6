// Package watcher monitors a vault for file changes and triggers incremental reindexing.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sgx-labs/markvault/internal/config"
	"github.com/sgx-labs/markvault/internal/embedding"
	"github.com/sgx-labs/markvault/internal/indexer"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

// Watch starts watching the vault for changes and reindexes modified
// files. It blocks until the watcher channel closes or an unrecoverable
// error occurs.
func Watch(db *store.DB, v *vault.Vault) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dirs := walkDirs(v.Root)
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			fmt.Fprintf(os.Stderr, "  [WARN] Could not watch %s: %v\n", d, err)
		}
	}

	fmt.Fprintf(os.Stderr, "Watching %d directories in %s\n", len(dirs), v.Root)
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop.\n\n")

	// Debounce: collect changed files over a window before reindexing
	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
	)

	const debounceDelay = 2 * time.Second

	flush := func() {
		mu.Lock()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = make(map[string]bool)
		mu.Unlock()

		if len(paths) == 0 {
			return
		}

		fmt.Fprintf(os.Stderr, "  Reindexing %d changed file(s)...\n", len(paths))
		reindexFiles(db, v, paths)
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			if !strings.HasSuffix(event.Name, ".md") {
				// But watch new directories
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						name := filepath.Base(event.Name)
						if !config.SkipDirs[name] {
							if err := w.Add(event.Name); err != nil {
								fmt.Fprintf(os.Stderr, "  [WARN] Could not watch %s: %v\n", event.Name, err)
							}
						}
					}
				}
				continue
			}

			if event.Has(fsnotify.Rename) {
				// fsnotify rename events carry the old path. Drop the
				// stale index entry so moves don't leave ghosts.
				removeFromIndex(db, v, event.Name)
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				mu.Lock()
				pending[event.Name] = true
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, flush)
				mu.Unlock()
			}

			if event.Has(fsnotify.Remove) {
				removeFromIndex(db, v, event.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "  [WARN] Watch error: %v\n", err)
		}
	}
}

func reindexFiles(db *store.DB, v *vault.Vault, paths []string) {
	provider, err := indexer.ProviderFromConfig()
	if err != nil && !errors.Is(err, embedding.ErrKeywordOnly) {
		fmt.Fprintf(os.Stderr, "  [ERROR] embedding provider: %v\n", err)
		return
	}

	for _, fp := range paths {
		relPath := v.RelativePath(fp)
		info, statErr := os.Stat(fp)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				// File disappeared before the debounce flush (common on
				// renames and deletes).
				removeFromIndex(db, v, fp)
			} else {
				fmt.Fprintf(os.Stderr, "  [ERROR] stat %s: %v\n", relPath, statErr)
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		if err := indexer.IndexSingleFile(db, v, relPath, provider); err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] %s: %v\n", relPath, err)
			continue
		}

		if provider == nil {
			fmt.Fprintf(os.Stderr, "  Indexed (keyword-only): %s\n", relPath)
		} else {
			fmt.Fprintf(os.Stderr, "  Indexed: %s\n", relPath)
		}
	}
}

// removeFromIndex deletes the index entry for a vault file path. The
// file is usually gone by now, so the id comes from the filename.
func removeFromIndex(db *store.DB, v *vault.Vault, absPath string) {
	relPath := v.RelativePath(absPath)
	id := vault.IDForPath(relPath)
	if id == "" {
		return
	}
	if err := db.DeleteDocument(id); err != nil {
		fmt.Fprintf(os.Stderr, "  [ERROR] remove %s: %v\n", relPath, err)
		return
	}
	fmt.Fprintf(os.Stderr, "  Removed from index: %s\n", relPath)
}

func walkDirs(root string) []string {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if config.SkipDirs[name] && path != root {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}
