package indexer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/vault"
)

// foreignMeta covers the YAML frontmatter keys common to Obsidian and
// similar tools. Anything else is ignored.
type foreignMeta struct {
	Title   string   `yaml:"title"`
	Tags    []string `yaml:"tags"`
	Banner  string   `yaml:"banner"`
	Created string   `yaml:"created"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   int
}

// ImportDir copies markdown files from a foreign directory into the
// vault, converting their YAML frontmatter into native metadata. Each
// imported note gets a fresh id; tags are normalized. Files that fail
// to read are counted, never fatal.
func ImportDir(v *vault.Vault, srcDir string) (*ImportResult, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("import source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("import source is not a directory: %s", srcDir)
	}

	res := &ImportResult{}
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			res.Skipped++
			return nil
		}
		if err := importFile(v, path, d.Name()); err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] import %s: %v\n", path, err)
			res.Errors++
			return nil
		}
		res.Imported++
		return nil
	})
	return res, err
}

func importFile(v *vault.Vault, path, base string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var meta foreignMeta
	body, err := frontmatter.Parse(strings.NewReader(string(content)), &meta)
	if err != nil {
		// Garbled frontmatter: treat the whole file as body
		body = content
		meta = foreignMeta{}
	}

	n := convertForeign(meta, string(body), base)
	return v.Write(n.Meta.ID, note.EncodeFile(n))
}

// convertForeign builds a native note from foreign frontmatter fields.
func convertForeign(meta foreignMeta, body, filename string) note.Note {
	m := note.NewMetadata()
	if meta.Created != "" {
		m.CreatedAt = meta.Created
		if m.UpdatedAt < m.CreatedAt {
			m.UpdatedAt = m.CreatedAt
		}
	}
	if meta.Banner != "" {
		banner := meta.Banner
		m.BannerImageURL = &banner
	}
	m.Tags = note.NormalizeTags(meta.Tags)

	title := meta.Title
	body = strings.TrimSpace(body)

	// No frontmatter title: promote a leading "# " heading, else fall
	// back to the filename.
	if title == "" {
		if strings.HasPrefix(body, "# ") {
			line := body
			if nl := strings.Index(body, "\n"); nl >= 0 {
				line = body[:nl]
				body = strings.TrimLeft(body[nl+1:], "\n")
			} else {
				body = ""
			}
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		} else {
			title = strings.TrimSuffix(filename, ".md")
		}
	}

	return note.Note{Meta: m, Title: title, Body: body}
}
