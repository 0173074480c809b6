// Package mcp implements the MCP server for markvault.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sgx-labs/markvault/internal/config"
	"github.com/sgx-labs/markvault/internal/embedding"
	"github.com/sgx-labs/markvault/internal/indexer"
	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/query"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

var (
	db              *store.DB
	embedClient     embedding.Provider // nil in keyword-only mode
	vlt             *vault.Vault
	vaultRoot       string
	lastReindexTime time.Time
	reindexMu       sync.Mutex
)

const reindexCooldown = 60 * time.Second

// Version is set by the caller (main) before calling Serve.
var Version = "dev"

// Serve starts the MCP server on stdio.
func Serve() error {
	var err error
	db, err = store.Open()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	vlt, err = vault.Open()
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	vaultRoot, _ = filepath.Abs(vlt.Root)

	embedClient, err = indexer.ProviderFromConfig()
	if err != nil && !errors.Is(err, embedding.ErrKeywordOnly) {
		return fmt.Errorf("embedding provider: %w", err)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "markvault",
		Version: Version,
	}, nil)

	registerTools(server)

	return server.Run(context.Background(), &mcp.StdioTransport{})
}

func registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the user's notes with hybrid semantic + keyword matching. Use this when you need background on a topic or want to find a specific note.\n\nArgs:\n  query: Natural language search query (e.g. 'ml deployment checklist')\n  top_k: Number of results (default 10, max 100)\n\nReturns a ranked list of notes with ids, titles, snippets, and scores.",
	}, handleSearchNotes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_note",
		Description: "Read the full content of a note. Use this after search_notes returns a relevant result and you need the complete text.\n\nArgs:\n  id: Note id (as returned by search_notes) or a vault-relative file path\n\nReturns the stored markdown file including frontmatter.",
	}, handleGetNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_note",
		Description: "Create a new note in the vault and index it immediately.\n\nArgs:\n  title: Note title\n  body: Markdown body\n  tags: Comma-separated tags (optional; normalized automatically)\n  banner_url: Banner image URL (optional)\n\nReturns the new note's id and normalized tags. When no tags are given, the response includes tag suggestions derived from the title.",
	}, handleCreateNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List every tag in use with its document count, most used first.\n\nReturns tag/count pairs.",
	}, handleListTags)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reindex",
		Description: "Re-scan and re-index all markdown notes. Use this if the user has added or changed notes and search results seem stale. Incremental by default (only re-embeds changed files).\n\nArgs:\n  force: Re-embed all files regardless of changes (default false)\n\nReturns indexing statistics.",
	}, handleReindex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Check the health and size of the note index. Use this to verify the index is up to date or to report stats to the user.\n\nReturns document count, chunk count, index mode, and database size.",
	}, handleIndexStats)
}

// Tool input types

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language search query"`
	TopK  int    `json:"top_k" jsonschema:"Number of results (default 10, max 100)"`
}

type getInput struct {
	ID string `json:"id" jsonschema:"Note id or vault-relative path"`
}

type createInput struct {
	Title     string `json:"title" jsonschema:"Note title"`
	Body      string `json:"body" jsonschema:"Markdown body"`
	Tags      string `json:"tags,omitempty" jsonschema:"Comma-separated tags"`
	BannerURL string `json:"banner_url,omitempty" jsonschema:"Banner image URL"`
}

type reindexInput struct {
	Force bool `json:"force" jsonschema:"Re-embed all files regardless of changes"`
}

type emptyInput struct{}

// Tool handlers

func handleSearchNotes(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	topK := clampTopK(input.TopK, 10)
	_, minScore := config.SearchDefaults()

	p := query.Preprocess(input.Query)

	var queryVec []float32
	if embedClient != nil && p.SemanticWeight > 0 {
		vec, err := embedClient.GetQueryEmbedding(p.Normalized)
		if err != nil {
			return textResult(fmt.Sprintf("Error embedding query: %v", err)), nil, nil
		}
		queryVec = vec
	}

	semWeight, bm25Weight := p.SemanticWeight, p.BM25Weight
	if queryVec == nil {
		// Keyword-only: all weight to BM25 so scores stay comparable
		semWeight, bm25Weight = 0.0, 1.0
	}

	hits, err := db.HybridSearch(store.SearchRequest{
		Vector:         queryVec,
		FTSQuery:       p.FTSQuery,
		SemanticWeight: semWeight,
		BM25Weight:     bm25Weight,
		Limit:          topK,
		MinScore:       minScore,
	})
	if err != nil {
		return textResult(fmt.Sprintf("Search error: %v", err)), nil, nil
	}
	if len(hits) == 0 {
		return textResult("No results found. The index may be empty — try running reindex() first."), nil, nil
	}

	data, _ := json.MarshalIndent(hits, "", "  ")
	return textResult(string(data)), nil, nil
}

func handleGetNote(ctx context.Context, req *mcp.CallToolRequest, input getInput) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return textResult("Error: id is required."), nil, nil
	}

	// Plain id first, then as a vault-relative path
	if !strings.Contains(id, "/") && !strings.HasSuffix(id, ".md") {
		if content, err := vlt.Read(id); err == nil {
			return textResult(content), nil, nil
		}
	}

	rel := safeVaultPath(id)
	if rel == "" {
		return textResult("Error: id must be a note id or a relative path within the vault."), nil, nil
	}
	content, err := vlt.ReadPath(rel)
	if err != nil {
		return textResult("Note not found."), nil, nil
	}
	return textResult(content), nil, nil
}

func handleCreateNote(ctx context.Context, req *mcp.CallToolRequest, input createInput) (*mcp.CallToolResult, any, error) {
	title := note.SanitizeTitle(input.Title)
	if title == "" {
		return textResult("Error: title is required."), nil, nil
	}

	meta := note.NewMetadata()
	meta.Tags = note.NormalizeTags(splitTags(input.Tags))
	if input.BannerURL != "" {
		banner := input.BannerURL
		meta.BannerImageURL = &banner
	}

	n := note.Note{Meta: meta, Title: title, Body: input.Body}
	if err := vlt.Write(meta.ID, note.EncodeFile(n)); err != nil {
		return textResult(fmt.Sprintf("Error writing note: %v", err)), nil, nil
	}

	if err := indexer.IndexSingleFile(db, vlt, meta.ID+".md", embedClient); err != nil {
		return textResult(fmt.Sprintf("Note created as %s.md but indexing failed: %v", meta.ID, err)), nil, nil
	}

	resp := map[string]interface{}{
		"id":   meta.ID,
		"path": meta.ID + ".md",
		"tags": meta.Tags,
	}
	if len(meta.Tags) == 0 {
		if suggested := note.NormalizeSuggested(strings.Fields(title)); len(suggested) > 0 {
			resp["suggested_tags"] = suggested
		}
	}

	data, _ := json.MarshalIndent(resp, "", "  ")
	return textResult(string(data)), nil, nil
}

func handleListTags(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	counts, err := db.TagCounts()
	if err != nil {
		return textResult(fmt.Sprintf("Error listing tags: %v", err)), nil, nil
	}
	if len(counts) == 0 {
		return textResult("No tags in the index."), nil, nil
	}

	tags := make([]map[string]interface{}, 0, len(counts))
	for _, tc := range counts {
		tags = append(tags, map[string]interface{}{"tag": tc.Tag, "count": tc.Count})
	}
	data, _ := json.MarshalIndent(tags, "", "  ")
	return textResult(string(data)), nil, nil
}

func handleReindex(ctx context.Context, req *mcp.CallToolRequest, input reindexInput) (*mcp.CallToolResult, any, error) {
	reindexMu.Lock()
	defer reindexMu.Unlock()

	if time.Since(lastReindexTime) < reindexCooldown {
		remaining := int(reindexCooldown.Seconds() - time.Since(lastReindexTime).Seconds())
		data, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("Reindex cooldown active. Try again in %ds.", remaining),
		})
		return textResult(string(data)), nil, nil
	}
	lastReindexTime = time.Now()

	stats, err := indexer.Reindex(db, vlt, input.Force)
	if err != nil {
		return textResult(fmt.Sprintf("Reindex error: %v", err)), nil, nil
	}

	data, _ := json.MarshalIndent(stats, "", "  ")
	return textResult(string(data)), nil, nil
}

func handleIndexStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	stats := indexer.GetStats(db)
	data, _ := json.MarshalIndent(stats, "", "  ")
	return textResult(string(data)), nil, nil
}

// Helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func clampTopK(topK, defaultVal int) int {
	if topK <= 0 {
		return defaultVal
	}
	if topK > 100 {
		return 100
	}
	return topK
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// safeVaultPath validates a vault-relative path, blocking traversal out
// of the vault root. Returns the cleaned relative path, or "".
func safeVaultPath(path string) string {
	if filepath.IsAbs(path) {
		return ""
	}
	full, err := filepath.Abs(filepath.Join(vaultRoot, filepath.FromSlash(path)))
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(full, vaultRoot+string(filepath.Separator)) && full != vaultRoot {
		return ""
	}
	rel, err := filepath.Rel(vaultRoot, full)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}
