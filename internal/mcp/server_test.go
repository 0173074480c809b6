package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

// setupServer wires the package globals to an in-memory database and a
// temp vault in keyword-only mode, so handlers run without a network.
func setupServer(t *testing.T) {
	t.Helper()

	memDB, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { memDB.Close() })

	v := vault.At(t.TempDir())
	if err := v.Init(); err != nil {
		t.Fatal(err)
	}

	db = memDB
	vlt = v
	vaultRoot, _ = filepath.Abs(v.Root)
	embedClient = nil
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T", res.Content[0])
	}
	return tc.Text
}

func TestCreateGetRoundTrip(t *testing.T) {
	setupServer(t)

	res, _, err := handleCreateNote(context.Background(), nil, createInput{
		Title: "Sourdough Log",
		Body:  "Fed the starter.",
		Tags:  "  Baking , #bread",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var created struct {
		ID   string   `json:"id"`
		Path string   `json:"path"`
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &created); err != nil {
		t.Fatalf("create response: %v", err)
	}
	if created.ID == "" || created.Path != created.ID+".md" {
		t.Errorf("created = %+v", created)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "baking" || created.Tags[1] != "bread" {
		t.Errorf("tags = %v", created.Tags)
	}

	res, _, err = handleGetNote(context.Background(), nil, getInput{ID: created.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	content := resultText(t, res)
	got := note.DecodeFile(content)
	if got.Title != "Sourdough Log" || got.Body != "Fed the starter." {
		t.Errorf("decoded = %+v", got)
	}

	// Indexed immediately
	rec, err := db.GetDocument(created.ID)
	if err != nil || rec == nil {
		t.Fatalf("note not indexed: %v", err)
	}
}

func TestCreateNoteSuggestsTags(t *testing.T) {
	setupServer(t)

	res, _, err := handleCreateNote(context.Background(), nil, createInput{
		Title: "Quarterly Planning Review",
		Body:  "Notes.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var created struct {
		Suggested []string `json:"suggested_tags"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &created); err != nil {
		t.Fatalf("response: %v", err)
	}
	if len(created.Suggested) == 0 {
		t.Error("expected tag suggestions for untagged note")
	}
	for _, s := range created.Suggested {
		if len(s) < 3 || s != strings.ToLower(s) {
			t.Errorf("bad suggestion %q", s)
		}
	}
}

func TestCreateNoteRequiresTitle(t *testing.T) {
	setupServer(t)

	res, _, err := handleCreateNote(context.Background(), nil, createInput{Title: "   "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(resultText(t, res), "title is required") {
		t.Errorf("response = %q", resultText(t, res))
	}
}

func TestSearchNotesKeywordOnly(t *testing.T) {
	setupServer(t)

	_, _, err := handleCreateNote(context.Background(), nil, createInput{
		Title: "Tomato Gardening",
		Body:  "Tomatoes need at least six hours of sun.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, _, err := handleSearchNotes(context.Background(), nil, searchInput{Query: "tomato"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Tomato Gardening") {
		t.Errorf("search response = %q", text)
	}
}

func TestGetNoteRejectsTraversal(t *testing.T) {
	setupServer(t)

	for _, bad := range []string{"../outside.md", "/etc/passwd", "a/../../b.md"} {
		res, _, err := handleGetNote(context.Background(), nil, getInput{ID: bad})
		if err != nil {
			t.Fatalf("get %q: %v", bad, err)
		}
		text := resultText(t, res)
		if !strings.Contains(text, "Error") && !strings.Contains(text, "not found") {
			t.Errorf("traversal %q not rejected: %q", bad, text)
		}
	}
}

func TestListTags(t *testing.T) {
	setupServer(t)

	handleCreateNote(context.Background(), nil, createInput{Title: "A", Body: "x", Tags: "work"})
	handleCreateNote(context.Background(), nil, createInput{Title: "B", Body: "y", Tags: "work, focus"})

	res, _, err := handleListTags(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}

	var tags []struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &tags); err != nil {
		t.Fatalf("response: %v", err)
	}
	if len(tags) != 2 || tags[0].Tag != "work" || tags[0].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestSafeVaultPath(t *testing.T) {
	setupServer(t)

	if got := safeVaultPath("notes/a.md"); got != "notes/a.md" {
		t.Errorf("safeVaultPath = %q", got)
	}
	for _, bad := range []string{"../escape.md", "/abs/path.md", "../../x"} {
		if got := safeVaultPath(bad); got != "" {
			t.Errorf("safeVaultPath(%q) = %q, want rejection", bad, got)
		}
	}
}

func TestClampTopK(t *testing.T) {
	if clampTopK(0, 10) != 10 || clampTopK(-3, 5) != 5 {
		t.Error("default not applied")
	}
	if clampTopK(500, 10) != 100 {
		t.Error("cap not applied")
	}
	if clampTopK(25, 10) != 25 {
		t.Error("valid value changed")
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitTags = %v", got)
	}
	if splitTags("") != nil {
		t.Error("empty input should yield nil")
	}
}
