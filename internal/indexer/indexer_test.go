package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

// fakeProvider returns deterministic vectors without a network.
type fakeProvider struct{}

func (fakeProvider) GetEmbedding(text, _ string) ([]float32, error) {
	v := make([]float32, 768)
	for i := range v {
		v[i] = float32(len(text)%7) + 0.1
	}
	return v, nil
}
func (p fakeProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}
func (p fakeProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}
func (fakeProvider) Name() string    { return "fake" }
func (fakeProvider) Model() string   { return "fake-embed" }
func (fakeProvider) Dimensions() int { return 768 }

// failingProvider simulates a down embedding backend.
type failingProvider struct{}

func (failingProvider) GetEmbedding(string, string) ([]float32, error) {
	return nil, fmt.Errorf("connection refused")
}
func (p failingProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}
func (p failingProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}
func (failingProvider) Name() string    { return "failing" }
func (failingProvider) Model() string   { return "failing" }
func (failingProvider) Dimensions() int { return 768 }

func sampleNote(id, title, body string, tags []string) string {
	return note.EncodeFile(note.Note{
		Meta: note.Metadata{
			ID:        id,
			CreatedAt: "2026-01-01T00:00:00.000Z",
			UpdatedAt: "2026-01-02T00:00:00.000Z",
			Tags:      tags,
		},
		Title: title,
		Body:  body,
	})
}

func TestBuildDocument(t *testing.T) {
	content := sampleNote("doc-1", "Deep Work", "Some **bold** thoughts.\n\nA second paragraph.", []string{"work"})

	rec, chunks, embeddings, err := buildDocument(content, "doc-1.md", fakeProvider{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rec.ID != "doc-1" || rec.Title != "Deep Work" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Tags != `["work"]` {
		t.Errorf("tags = %q", rec.Tags)
	}
	if rec.CreatedAt != "2026-01-01T00:00:00.000Z" {
		t.Errorf("created = %q", rec.CreatedAt)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %+v", chunks)
	}
	if !strings.HasPrefix(chunks[0].Text, "Deep Work") {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
	// The FTS text is the collapsed plain rendition, marks stripped
	if rec.SearchText != "Some bold thoughts. A second paragraph." {
		t.Errorf("search text = %q", rec.SearchText)
	}
	if chunks[0].Model != "fake-embed" {
		t.Errorf("model = %q", chunks[0].Model)
	}
	if len(embeddings) != 1 || len(embeddings[0]) != 768 {
		t.Errorf("embeddings shape wrong")
	}
}

func TestBuildDocumentLite(t *testing.T) {
	content := sampleNote("doc-1", "Title", "Body text.", nil)

	rec, chunks, embeddings, err := buildDocument(content, "doc-1.md", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if embeddings != nil {
		t.Errorf("expected nil embeddings in keyword-only mode")
	}
	if len(chunks) != 1 || chunks[0].Model != "" {
		t.Errorf("chunks = %+v", chunks)
	}
	if rec.Tags != "[]" {
		t.Errorf("tags = %q", rec.Tags)
	}
}

func TestBuildDocumentAllEmbedsFail(t *testing.T) {
	content := sampleNote("doc-1", "Title", "Body text.", nil)

	_, _, _, err := buildDocument(content, "doc-1.md", failingProvider{})
	if !errors.Is(err, errNoEmbeddingsForFile) {
		t.Errorf("err = %v, want errNoEmbeddingsForFile", err)
	}
}

func TestDocIDFor(t *testing.T) {
	withID := sampleNote("front-id", "T", "b", nil)
	if got := docIDFor(withID, "other-name.md"); got != "front-id" {
		t.Errorf("frontmatter id not preferred: %q", got)
	}

	if got := docIDFor("# Just a heading\n\nbody\n", "file-id.md"); got != "file-id" {
		t.Errorf("filename fallback = %q", got)
	}

	if got := docIDFor("plain text", ""); got == "" {
		t.Error("expected generated id for anonymous content")
	}
}

func TestIndexSingleFile(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	v := vault.At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatal(err)
	}
	if err := v.Write("n1", sampleNote("n1", "Gardening", "Tomatoes need sun.", []string{"garden"})); err != nil {
		t.Fatal(err)
	}

	if err := IndexSingleFile(db, v, "n1.md", fakeProvider{}); err != nil {
		t.Fatalf("index: %v", err)
	}

	rec, err := db.GetDocument("n1")
	if err != nil || rec == nil {
		t.Fatalf("doc not stored: %v", err)
	}
	chunks, _ := db.GetChunks("n1")
	if len(chunks) != 1 {
		t.Errorf("chunks = %+v", chunks)
	}

	// Re-index with new content replaces, not duplicates
	if err := v.Write("n1", sampleNote("n1", "Gardening v2", "Rewritten.", nil)); err != nil {
		t.Fatal(err)
	}
	if err := IndexSingleFile(db, v, "n1.md", fakeProvider{}); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	count, _ := db.DocumentCount()
	if count != 1 {
		t.Errorf("document count = %d", count)
	}
	rec, _ = db.GetDocument("n1")
	if rec.Title != "Gardening v2" {
		t.Errorf("title = %q", rec.Title)
	}
}

func TestConvertForeign(t *testing.T) {
	n := convertForeign(foreignMeta{
		Title:  "From Obsidian",
		Tags:   []string{"  Deep Work ", "#work"},
		Banner: "https://example.com/b.png",
	}, "Body here.", "from-obsidian.md")

	if n.Title != "From Obsidian" || n.Body != "Body here." {
		t.Errorf("note = %+v", n)
	}
	if n.Meta.ID == "" {
		t.Error("no generated id")
	}
	if len(n.Meta.Tags) != 2 || n.Meta.Tags[0] != "deep_work" || n.Meta.Tags[1] != "work" {
		t.Errorf("tags = %v", n.Meta.Tags)
	}
	if n.Meta.BannerImageURL == nil || *n.Meta.BannerImageURL != "https://example.com/b.png" {
		t.Error("banner not carried over")
	}
}

func TestConvertForeignHeadingPromotion(t *testing.T) {
	n := convertForeign(foreignMeta{}, "# Promoted Title\n\nRest of body.", "file.md")
	if n.Title != "Promoted Title" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Body != "Rest of body." {
		t.Errorf("body = %q", n.Body)
	}

	n = convertForeign(foreignMeta{}, "no heading at all", "fallback-name.md")
	if n.Title != "fallback-name" {
		t.Errorf("title = %q", n.Title)
	}
}

func TestImportDir(t *testing.T) {
	src := t.TempDir()
	foreign := "---\ntitle: Imported\ntags: [alpha, beta]\n---\n\nImported body.\n"
	if err := os.WriteFile(filepath.Join(src, "a.md"), []byte(foreign), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "skip.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := vault.At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatal(err)
	}

	res, err := ImportDir(v, src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 1 || res.Skipped != 1 || res.Errors != 0 {
		t.Errorf("result = %+v", res)
	}

	paths, _ := v.List()
	if len(paths) != 1 {
		t.Fatalf("vault paths = %v", paths)
	}
	content, _ := v.ReadPath(paths[0])
	got := note.DecodeFile(content)
	if got.Title != "Imported" || got.Body != "Imported body." {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.Meta.Tags) != 2 || got.Meta.Tags[0] != "alpha" {
		t.Errorf("tags = %v", got.Meta.Tags)
	}
}
