// Package main is the entrypoint for the markvault CLI.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/markvault/internal/cli"
	"github.com/sgx-labs/markvault/internal/config"
	"github.com/sgx-labs/markvault/internal/embedding"
	"github.com/sgx-labs/markvault/internal/indexer"
	mcpserver "github.com/sgx-labs/markvault/internal/mcp"
	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/query"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
	"github.com/sgx-labs/markvault/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "markvault",
		Short: "Portable markdown notes with hybrid search",
		Long:  "markvault — a plain-markdown note vault with semantic + keyword search, served over CLI and MCP.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	root.AddCommand(newCmd())
	root.AddCommand(showCmd())
	root.AddCommand(listCmd())
	root.AddCommand(tagsCmd())
	root.AddCommand(trashCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(importCmd())
	root.AddCommand(reindexCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(vaultCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(configCmd())

	// Global --vault flag
	root.PersistentFlags().StringVar(&config.VaultOverride, "vault", "", "Vault name or path (overrides auto-detect)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the markvault version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("markvault %s\n", Version)
			return nil
		},
	}
}

// ---------- init ----------

func initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a vault and write a default config",
		Long:  "Creates the vault directory (default: current directory), drops the .markvault marker and a commented config.toml, and optionally registers the vault under an alias.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(path, name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Register the vault under this alias")
	return cmd
}

func runInit(path, name string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	v := vault.At(absPath)
	if err := v.Init(); err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	configPath := config.ConfigFilePath(absPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.GenerateConfig(absPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}

	if name != "" {
		reg := config.LoadRegistry()
		reg.Vaults[name] = absPath
		if len(reg.Vaults) == 1 {
			reg.Default = name
		}
		if err := reg.Save(); err != nil {
			return fmt.Errorf("save registry: %w", err)
		}
	}

	cli.Banner(Version)
	lines := []string{
		"Vault:  " + cli.ShortenHome(absPath),
		"Config: " + cli.ShortenHome(configPath),
	}
	if name != "" {
		lines = append(lines, "Alias:  "+name)
	}
	cli.Box(lines)
	cli.Section("Next steps")
	fmt.Println("  markvault new \"My first note\"   create a note")
	fmt.Println("  markvault import <dir>          copy existing markdown in")
	fmt.Println("  markvault reindex               build the search index")
	fmt.Println("  markvault mcp                   serve tools over MCP stdio")
	fmt.Println()
	return nil
}

// ---------- new / show / list / tags / trash ----------

func newCmd() *cobra.Command {
	var (
		tags   string
		body   string
		banner string
	)
	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a note in the vault",
		Long:  "Creates a note with frontmatter and indexes it. Body comes from --body, or from stdin when piped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return runNew(title, body, tags, banner)
		},
	}
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&body, "body", "", "Markdown body (reads stdin when omitted and piped)")
	cmd.Flags().StringVar(&banner, "banner", "", "Banner image URL")
	return cmd
}

func runNew(title, body, tags, banner string) error {
	title = note.SanitizeTitle(title)
	if title == "" {
		return userError("Title is required", "markvault new \"Meeting notes\"")
	}

	if body == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			var b strings.Builder
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				b.WriteString(scanner.Text())
				b.WriteString("\n")
			}
			body = strings.TrimRight(b.String(), "\n")
		}
	}

	v, err := vault.Open()
	if err != nil {
		return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
	}

	meta := note.NewMetadata()
	meta.Tags = note.NormalizeTags(splitCommaTags(tags))
	if banner != "" {
		meta.BannerImageURL = &banner
	}

	n := note.Note{Meta: meta, Title: title, Body: body}
	if err := v.Write(meta.ID, note.EncodeFile(n)); err != nil {
		return fmt.Errorf("write note: %w", err)
	}

	fmt.Printf("Created %s.md\n", meta.ID)
	if len(meta.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(meta.Tags, ", "))
	} else if suggested := note.NormalizeSuggested(strings.Fields(title)); len(suggested) > 0 {
		fmt.Printf("Suggested tags: %s\n", strings.Join(suggested, ", "))
	}

	// Index the new note right away; keyword-only mode is fine.
	db, err := store.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  [WARN] Not indexed (no database): run 'markvault reindex'\n")
		return nil
	}
	defer db.Close()

	provider, err := indexer.ProviderFromConfig()
	if err != nil && !errors.Is(err, embedding.ErrKeywordOnly) {
		fmt.Fprintf(os.Stderr, "  [WARN] Not indexed (embedding provider): %v\n", err)
		return nil
	}
	if err := indexer.IndexSingleFile(db, v, meta.ID+".md", provider); err != nil {
		fmt.Fprintf(os.Stderr, "  [WARN] Not indexed: %v\n", err)
	}
	return nil
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print a note's stored markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault.Open()
			if err != nil {
				return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
			}
			content, err := v.Read(args[0])
			if err != nil {
				return userError(fmt.Sprintf("Note %q not found", args[0]),
					"'markvault list' shows known ids")
			}
			fmt.Print(content)
			if !strings.HasSuffix(content, "\n") {
				fmt.Println()
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed notes, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runList(jsonOut bool) error {
	db, err := store.Open()
	if err != nil {
		return userError("Cannot open markvault database",
			"Run 'markvault reindex' first, or 'markvault doctor' to diagnose")
	}
	defer db.Close()

	docs, err := db.AllDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if jsonOut {
		type listEntry struct {
			ID        string   `json:"id"`
			Title     string   `json:"title"`
			Tags      []string `json:"tags"`
			UpdatedAt string   `json:"updated_at"`
		}
		entries := make([]listEntry, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, listEntry{
				ID:        d.ID,
				Title:     d.Title,
				Tags:      store.ParseTags(d.Tags),
				UpdatedAt: d.UpdatedAt,
			})
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		fmt.Println("No notes indexed. Run 'markvault reindex' after adding notes.")
		return nil
	}

	fmt.Println()
	for _, d := range docs {
		updated := d.UpdatedAt
		if len(updated) >= 10 {
			updated = updated[:10]
		}
		line := fmt.Sprintf("  %s  %-40s %s", updated, cli.Truncate(d.Title, 40), d.ID)
		fmt.Println(line)
		if tags := store.ParseTags(d.Tags); len(tags) > 0 {
			fmt.Printf("              %s#%s%s\n", cli.Dim, strings.Join(tags, " #"), cli.Reset)
		}
	}
	fmt.Printf("\n  %s notes\n\n", cli.FormatNumber(len(docs)))
	return nil
}

func tagsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags in use, most used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runTags(jsonOut bool) error {
	db, err := store.Open()
	if err != nil {
		return userError("Cannot open markvault database",
			"Run 'markvault reindex' first, or 'markvault doctor' to diagnose")
	}
	defer db.Close()

	counts, err := db.TagCounts()
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	if jsonOut {
		data, _ := json.MarshalIndent(counts, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(counts) == 0 {
		fmt.Println("No tags in the index.")
		return nil
	}
	fmt.Println()
	for _, tc := range counts {
		fmt.Printf("  %4d  %s\n", tc.Count, tc.Tag)
	}
	fmt.Println()
	return nil
}

func trashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trash [id]",
		Short: "Move a note to the vault's .trash directory",
		Long:  "Moves the note file into .trash (timestamped, recoverable by hand) and drops it from the search index.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrash(args[0])
		},
	}
}

func runTrash(id string) error {
	v, err := vault.Open()
	if err != nil {
		return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
	}

	if err := v.Trash(id); err != nil {
		return userError(fmt.Sprintf("Note %q not found", id),
			"'markvault list' shows known ids")
	}
	fmt.Printf("Trashed %s.md\n", id)

	db, err := store.Open()
	if err != nil {
		// No index to clean up.
		return nil
	}
	defer db.Close()
	if err := db.DeleteDocument(id); err != nil {
		fmt.Fprintf(os.Stderr, "  [WARN] Could not remove from index: %v\n", err)
	}
	return nil
}

// ---------- search ----------

func searchCmd() *cobra.Command {
	var (
		topK    int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search notes with hybrid semantic + keyword matching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), topK, jsonOut)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runSearch(rawQuery string, topK int, jsonOut bool) error {
	db, err := store.Open()
	if err != nil {
		return userError("Cannot open markvault database",
			"Run 'markvault reindex' first, or 'markvault doctor' to diagnose")
	}
	defer db.Close()

	defaultLimit, minScore := config.SearchDefaults()
	if topK <= 0 {
		topK = defaultLimit
	}

	p := query.Preprocess(rawQuery)

	var queryVec []float32
	provider, err := indexer.ProviderFromConfig()
	if err != nil && !errors.Is(err, embedding.ErrKeywordOnly) {
		return fmt.Errorf("embedding provider: %w", err)
	}
	if provider != nil && p.SemanticWeight > 0 {
		vec, err := provider.GetQueryEmbedding(p.Normalized)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [WARN] Embedding failed, falling back to keyword search: %v\n", err)
		} else {
			queryVec = vec
		}
	}

	semWeight, bm25Weight := p.SemanticWeight, p.BM25Weight
	if queryVec == nil {
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
		return fmt.Errorf("search: %w", err)
	}

	if jsonOut {
		data, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, h := range hits {
		fmt.Printf("\n%d. %s\n", i+1, h.Title)
		fmt.Printf("   %s  Score: %.3f\n", h.DocID, h.Score)
		snippet := strings.ReplaceAll(h.Snippet, "\n", " ")
		fmt.Printf("   %s\n", cli.Truncate(snippet, 150))
	}
	fmt.Println()
	return nil
}

// ---------- import / reindex / stats ----------

func importCmd() *cobra.Command {
	var noIndex bool
	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import foreign markdown files into the vault",
		Long:  "Converts markdown files with arbitrary (Obsidian-style) frontmatter into vault notes with canonical frontmatter, then reindexes. Source files are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0], noIndex)
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Skip reindexing after import")
	return cmd
}

func runImport(srcDir string, noIndex bool) error {
	v, err := vault.Open()
	if err != nil {
		return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
	}

	res, err := indexer.ImportDir(v, srcDir)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Printf("Imported %d note(s), skipped %d, %d error(s)\n",
		res.Imported, res.Skipped, res.Errors)

	if noIndex || res.Imported == 0 {
		return nil
	}

	db, err := store.Open()
	if err != nil {
		fmt.Println("Run 'markvault reindex' to make the imported notes searchable.")
		return nil
	}
	defer db.Close()

	stats, err := indexer.Reindex(db, v, false)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d new file(s) (%s mode)\n", stats.NewlyIndexed, stats.Mode)
	return nil
}

func reindexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Index the vault into SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-embed all files regardless of changes")
	return cmd
}

func runReindex(force bool) error {
	v, err := vault.Open()
	if err != nil {
		return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
	}
	db, err := store.Open()
	if err != nil {
		return userError("Cannot open markvault database",
			"Run 'markvault init' to set up, or check VAULT_PATH")
	}
	defer db.Close()

	stats, err := indexer.Reindex(db, v, force)
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(data))
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open()
			if err != nil {
				return userError("Cannot open markvault database",
					"Run 'markvault init' to set up, or 'markvault doctor' to diagnose")
			}
			defer db.Close()

			stats := indexer.GetStats(db)
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

// ---------- status ----------

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault status at a glance",
		Long:  "Like 'git status' — shows the vault path, index state, search mode, and embedding provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	vp := config.VaultPath()
	if vp == "" {
		return userError("No vault found",
			"Run 'markvault init' to set up, or set VAULT_PATH")
	}

	cli.Header("markvault status")
	fmt.Println()
	fmt.Printf("  Vault:   %s\n", cli.ShortenHome(vp))

	db, err := store.Open()
	if err != nil {
		fmt.Printf("  Index:   %snot initialized%s\n\n", cli.Red, cli.Reset)
		fmt.Printf("  Run 'markvault reindex' to build it.\n\n")
		return nil
	}
	defer db.Close()

	docCount, _ := db.DocumentCount()
	chunkCount, _ := db.ChunkCount()
	vecCount, _ := db.VectorCount()
	fmt.Printf("  Notes:   %s indexed\n", cli.FormatNumber(docCount))
	fmt.Printf("  Chunks:  %s\n", cli.FormatNumber(chunkCount))

	mode := "keyword-only"
	if vecCount > 0 {
		mode = "full (semantic + keyword)"
	}
	fmt.Printf("  Mode:    %s\n", mode)

	if db.FTSAvailable() {
		fmt.Printf("  FTS5:    %savailable%s\n", cli.Green, cli.Reset)
	} else {
		fmt.Printf("  FTS5:    %sunavailable (LIKE fallback)%s\n", cli.Yellow, cli.Reset)
	}

	if info, err := os.Stat(config.DBPath()); err == nil {
		fmt.Printf("  DB:      %.1f MB\n", float64(info.Size())/(1024*1024))
	}

	statsPath := filepath.Join(config.DataDir(), "index_stats.json")
	if info, err := os.Stat(statsPath); err == nil {
		fmt.Printf("  Indexed: %s ago\n", formatDuration(time.Since(info.ModTime())))
	}

	ec := config.EmbeddingProviderConfig()
	if ec.Provider == "none" {
		fmt.Printf("\n  Embeddings: %sdisabled%s (keyword-only mode)\n", cli.Dim, cli.Reset)
	} else {
		model := ec.Model
		if model == "" {
			model = config.DefaultEmbeddingModel
		}
		fmt.Printf("\n  Embeddings: %s (%s, %d dims)\n", ec.Provider, model, config.EmbeddingDim())
	}

	fmt.Println()
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// ---------- doctor ----------

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system health: vault, database, embeddings, search",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

func runDoctor() error {
	passed := 0
	failed := 0

	check := func(name string, hint string, fn func() (string, error)) {
		detail, err := fn()
		if err != nil {
			fmt.Printf("  %s✗%s %s: %s\n",
				cli.Red, cli.Reset, name, err)
			if hint != "" {
				fmt.Printf("    → %s\n", hint)
			}
			failed++
		} else {
			if detail != "" {
				fmt.Printf("  %s✓%s %s (%s)\n",
					cli.Green, cli.Reset, name, detail)
			} else {
				fmt.Printf("  %s✓%s %s\n",
					cli.Green, cli.Reset, name)
			}
			passed++
		}
	}

	cli.Header("markvault health check")
	fmt.Println()

	// 1. Vault path
	check("Vault path", "run 'markvault init' or set VAULT_PATH", func() (string, error) {
		vp := config.VaultPath()
		if vp == "" {
			return "", fmt.Errorf("no vault found")
		}
		info, err := os.Stat(vp)
		if err != nil {
			return "", fmt.Errorf("path does not exist")
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory")
		}
		return cli.ShortenHome(vp), nil
	})

	// 2. Database
	check("Database", "run 'markvault reindex'", func() (string, error) {
		db, err := store.Open()
		if err != nil {
			return "", fmt.Errorf("cannot open")
		}
		defer db.Close()
		docCount, err := db.DocumentCount()
		if err != nil {
			return "", fmt.Errorf("cannot query")
		}
		chunkCount, err := db.ChunkCount()
		if err != nil {
			return "", fmt.Errorf("cannot query")
		}
		if docCount == 0 {
			return "", fmt.Errorf("empty")
		}
		return fmt.Sprintf("%s notes, %s chunks",
			cli.FormatNumber(docCount),
			cli.FormatNumber(chunkCount)), nil
	})

	// 3. Full-text search
	check("Full-text search", "rebuild sqlite3 with FTS5 for BM25 ranking", func() (string, error) {
		db, err := store.Open()
		if err != nil {
			return "", fmt.Errorf("cannot open database")
		}
		defer db.Close()
		if !db.FTSAvailable() {
			return "", fmt.Errorf("FTS5 unavailable, using LIKE fallback")
		}
		return "FTS5 + BM25", nil
	})

	keywordOnly := config.EmbeddingProviderConfig().Provider == "none"

	// 4. Embedding provider
	check("Embedding provider", "start Ollama, or set provider = \"none\" for keyword-only", func() (string, error) {
		if keywordOnly {
			return "disabled (keyword-only mode)", nil
		}
		provider, err := indexer.ProviderFromConfig()
		if err != nil {
			return "", err
		}
		vec, err := provider.GetQueryEmbedding("test")
		if err != nil {
			return "", fmt.Errorf("connection refused")
		}
		return fmt.Sprintf("%s, %d-dim embeddings", provider.Name(), len(vec)), nil
	})

	// 5. Vector search
	check("Vector search", "run 'markvault reindex'", func() (string, error) {
		if keywordOnly {
			return "skipped (keyword-only mode)", nil
		}
		db, err := store.Open()
		if err != nil {
			return "", err
		}
		defer db.Close()

		vecCount, err := db.VectorCount()
		if err != nil {
			return "", fmt.Errorf("vec0 table missing")
		}
		if vecCount == 0 {
			return "", fmt.Errorf("no vectors indexed")
		}

		provider, err := indexer.ProviderFromConfig()
		if err != nil {
			return "", fmt.Errorf("embedding provider unavailable")
		}
		vec, err := provider.GetQueryEmbedding("test query")
		if err != nil {
			return "", fmt.Errorf("embedding failed")
		}
		hits, err := db.HybridSearch(store.SearchRequest{
			Vector:         vec,
			SemanticWeight: 1.0,
			Limit:          1,
		})
		if err != nil {
			return "", fmt.Errorf("search failed")
		}
		if len(hits) == 0 {
			return "", fmt.Errorf("no results")
		}
		return "", nil
	})

	// 6. Ollama localhost only
	check("Ollama localhost only", "set OLLAMA_URL to localhost", func() (string, error) {
		ec := config.EmbeddingProviderConfig()
		if ec.Provider != "ollama" && ec.Provider != "" {
			return "not using ollama", nil
		}
		if _, err := config.OllamaURL(); err != nil {
			return "", err
		}
		return "", nil
	})

	fmt.Printf("\n  %d passed, %d failed\n\n", passed, failed)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// ---------- vault registry ----------

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage vault registrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered vaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := config.LoadRegistry()
			if len(reg.Vaults) == 0 {
				fmt.Println("No vaults registered. Use 'markvault vault add <name> <path>' to register one.")
				fmt.Printf("Current vault (auto-detected): %s\n", config.VaultPath())
				return nil
			}
			fmt.Println("Registered vaults:")
			for name, path := range reg.Vaults {
				marker := "  "
				if name == reg.Default {
					marker = "* "
				}
				fmt.Printf("  %s%-15s %s\n", marker, name, path)
			}
			if reg.Default != "" {
				fmt.Printf("\n  (* = default)\n")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [name] [path]",
		Short: "Register a vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
				return fmt.Errorf("path does not exist or is not a directory: %s", absPath)
			}
			reg := config.LoadRegistry()
			reg.Vaults[name] = absPath
			if len(reg.Vaults) == 1 {
				reg.Default = name
			}
			if err := reg.Save(); err != nil {
				return fmt.Errorf("save registry: %w", err)
			}
			fmt.Printf("Registered vault %q at %s\n", name, absPath)
			if reg.Default == name {
				fmt.Println("Set as default vault.")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [name]",
		Short: "Unregister a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			reg := config.LoadRegistry()
			if _, ok := reg.Vaults[name]; !ok {
				return fmt.Errorf("vault %q not registered", name)
			}
			delete(reg.Vaults, name)
			if reg.Default == name {
				reg.Default = ""
			}
			if err := reg.Save(); err != nil {
				return fmt.Errorf("save registry: %w", err)
			}
			fmt.Printf("Removed vault %q\n", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "default [name]",
		Short: "Set the default vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			reg := config.LoadRegistry()
			if _, ok := reg.Vaults[name]; !ok {
				return fmt.Errorf("vault %q not registered", name)
			}
			reg.Default = name
			if err := reg.Save(); err != nil {
				return fmt.Errorf("save registry: %w", err)
			}
			fmt.Printf("Default vault set to %q (%s)\n", name, reg.Vaults[name])
			return nil
		},
	})

	return cmd
}

// ---------- watch / mcp ----------

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault for changes and auto-reindex",
		Long:  "Monitor the vault filesystem for markdown file changes. Automatically reindexes modified, created, or deleted notes with a 2-second debounce.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault.Open()
			if err != nil {
				return userError("No vault found", "Run 'markvault init' or set VAULT_PATH")
			}
			db, err := store.Open()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return watcher.Watch(db, v)
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			mcpserver.Version = Version
			return mcpserver.Serve()
		},
	}
}

// ---------- config ----------

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage markvault configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.ShowConfig())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print path to config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			vp := config.VaultPath()
			if vp == "" {
				return fmt.Errorf("no vault found — run 'markvault init' or set VAULT_PATH")
			}
			fmt.Println(config.ConfigFilePath(vp))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open config file in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			vp := config.VaultPath()
			if vp == "" {
				return fmt.Errorf("no vault found — run 'markvault init' or set VAULT_PATH")
			}
			configPath := config.ConfigFilePath(vp)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Println("No config file found. Generating default...")
				if err := config.GenerateConfig(vp); err != nil {
					return err
				}
			}
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			fmt.Printf("Opening %s in %s...\n", configPath, editor)
			return runEditor(editor, configPath)
		},
	})

	return cmd
}

func runEditor(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ---------- helpers ----------

func splitCommaTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

type vaultError struct {
	message string
	hint    string
}

func (e *vaultError) Error() string {
	return fmt.Sprintf("%s\n  Hint: %s", e.message, e.hint)
}

func userError(message, hint string) error {
	return &vaultError{message: message, hint: hint}
}
