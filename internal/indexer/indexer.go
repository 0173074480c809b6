// Package indexer walks the vault, decodes notes, builds chunks, and
// writes them to the search index.
package indexer

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sgx-labs/markvault/internal/chunk"
	"github.com/sgx-labs/markvault/internal/config"
	"github.com/sgx-labs/markvault/internal/doc"
	"github.com/sgx-labs/markvault/internal/embedding"
	"github.com/sgx-labs/markvault/internal/note"
	"github.com/sgx-labs/markvault/internal/store"
	"github.com/sgx-labs/markvault/internal/vault"
)

// Stats holds reindex statistics.
type Stats struct {
	TotalFiles       int    `json:"total_files"`
	NewlyIndexed     int    `json:"newly_indexed"`
	SkippedUnchanged int    `json:"skipped_unchanged"`
	Errors           int    `json:"errors"`
	DocsInIndex      int    `json:"total_docs_in_index"`
	ChunksInIndex    int    `json:"total_chunks_in_index"`
	Mode             string `json:"mode"` // "full" or "keyword-only"
	Timestamp        string `json:"timestamp"`
}

// ProgressFunc is called during indexing. current is the number of
// files processed so far, total the total count, path the file just
// handled.
type ProgressFunc func(current, total int, path string)

var errNoEmbeddingsForFile = errors.New("no embeddings generated for file")

// ProviderFromConfig builds the embedding provider from the loaded
// config. Returns embedding.ErrKeywordOnly (wrapped) when the provider
// is "none"; callers index without vectors in that case.
func ProviderFromConfig() (embedding.Provider, error) {
	ec := config.EmbeddingProviderConfig()
	provCfg := embedding.ProviderConfig{
		Provider:   ec.Provider,
		Model:      ec.Model,
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Dimensions: ec.Dimensions,
	}
	// For ollama, fall back to the legacy [ollama] URL when no base_url is set
	if (provCfg.Provider == "ollama" || provCfg.Provider == "") && provCfg.BaseURL == "" {
		ollamaURL, err := config.OllamaURL()
		if err != nil {
			return nil, fmt.Errorf("ollama URL: %w", err)
		}
		provCfg.BaseURL = ollamaURL
	}
	return embedding.NewProvider(provCfg)
}

// Reindex walks the vault, builds documents and chunks, embeds them,
// and stores everything in the database.
func Reindex(db *store.DB, v *vault.Vault, force bool) (*Stats, error) {
	return ReindexWithProgress(db, v, force, nil)
}

// ReindexWithProgress is like Reindex but accepts an optional progress
// callback.
func ReindexWithProgress(db *store.DB, v *vault.Vault, force bool, progress ProgressFunc) (*Stats, error) {
	provider, err := ProviderFromConfig()
	if err != nil && !errors.Is(err, embedding.ErrKeywordOnly) {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	files, err := v.List()
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}

	stats := &Stats{
		TotalFiles: len(files),
		Mode:       "full",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if provider == nil {
		stats.Mode = "keyword-only"
	}

	var existingHashes map[string]string
	if !force {
		existingHashes, err = db.GetContentHashes()
		if err != nil {
			existingHashes = make(map[string]string)
		}
	}

	if force {
		if err := db.DeleteAll(); err != nil {
			return nil, fmt.Errorf("clear existing data: %w", err)
		}
	}

	// Build the work queue, skipping files whose content hash is
	// unchanged since the last reindex.
	type fileWork struct {
		relPath string
		content string
	}
	const largeNoteThreshold = 30 * 1024
	var work []fileWork
	for _, relPath := range files {
		content, err := v.ReadPath(relPath)
		if err != nil {
			stats.Errors++
			continue
		}
		if len(content) > largeNoteThreshold {
			fmt.Fprintf(os.Stderr, "markvault: warning: %s is %dKB, large notes reduce search quality\n",
				relPath, len(content)/1024)
		}
		if !force {
			id := docIDFor(content, relPath)
			if existing, ok := existingHashes[id]; ok && existing == sha256Hash(content) {
				stats.SkippedUnchanged++
				continue
			}
		}
		work = append(work, fileWork{relPath: relPath, content: content})
	}

	type buildResult struct {
		rec        *store.DocumentRecord
		chunks     []store.ChunkRecord
		embeddings [][]float32
		relPath    string
		err        error
	}

	// Embed files with a worker pool (4 goroutines)
	const numWorkers = 4
	workCh := make(chan fileWork, len(work))
	resultCh := make(chan buildResult, len(work))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				rec, chunks, embeddings, err := buildDocument(w.content, w.relPath, provider)
				resultCh <- buildResult{
					rec: rec, chunks: chunks, embeddings: embeddings,
					relPath: w.relPath, err: err,
				}
			}
		}()
	}
	for _, w := range work {
		workCh <- w
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	embeddingFileFailures := 0
	for result := range resultCh {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] %s: %v\n", result.relPath, result.err)
			if errors.Is(result.err, errNoEmbeddingsForFile) {
				embeddingFileFailures++
			}
			stats.Errors++
			continue
		}

		if err := db.UpsertDocument(result.rec); err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] storing %s: %v\n", result.relPath, err)
			stats.Errors++
			continue
		}
		if err := db.ReplaceChunks(result.rec.ID, result.chunks, result.embeddings); err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] chunks for %s: %v\n", result.relPath, err)
			stats.Errors++
			continue
		}

		stats.NewlyIndexed++
		processed := stats.NewlyIndexed + stats.SkippedUnchanged + stats.Errors
		if progress != nil {
			progress(processed, stats.TotalFiles, result.relPath)
		} else {
			fmt.Fprintf(os.Stderr, "  [%d/%d] Indexed: %s (%d chunks)\n",
				processed, stats.TotalFiles, result.relPath, len(result.chunks))
		}
	}

	docCount, _ := db.DocumentCount()
	chunkCount, _ := db.ChunkCount()
	stats.DocsInIndex = docCount
	stats.ChunksInIndex = chunkCount

	// Every file failing to embed usually means the backend is down;
	// surface it so callers can suggest keyword-only mode.
	if provider != nil && len(work) > 0 && stats.NewlyIndexed == 0 && embeddingFileFailures == len(work) {
		return nil, fmt.Errorf("embedding backend unavailable: failed to embed any indexed files")
	}

	saveStats(stats)
	return stats, nil
}

// IndexSingleFile indexes (or re-indexes) one vault file. provider may
// be nil in keyword-only mode. Used by the watcher to avoid a full
// reindex when a single file changes.
func IndexSingleFile(db *store.DB, v *vault.Vault, relPath string, provider embedding.Provider) error {
	content, err := v.ReadPath(relPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rec, chunks, embeddings, err := buildDocument(content, relPath, provider)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}
	if err := db.UpsertDocument(rec); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := db.ReplaceChunks(rec.ID, chunks, embeddings); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

// DocIDForFile returns the index id a vault file would be stored under.
// Exported for the watcher, which needs it to delete removed files.
func DocIDForFile(v *vault.Vault, relPath string) string {
	content, err := v.ReadPath(relPath)
	if err != nil {
		return vault.IDForPath(relPath)
	}
	return docIDFor(content, relPath)
}

// docIDFor resolves the stable index id for a file: the frontmatter id
// when present, otherwise the filename-derived id. Only a file with
// neither gets a generated id.
func docIDFor(content, relPath string) string {
	n := note.DecodeFile(content)
	if n.Meta.ID != "" {
		return n.Meta.ID
	}
	if id := vault.IDForPath(relPath); id != "" {
		return id
	}
	n.Meta.EnsureIdentity()
	return n.Meta.ID
}

// buildDocument decodes a stored note and produces its index record,
// chunks, and embeddings. With a nil provider, embeddings are nil.
func buildDocument(content, relPath string, provider embedding.Provider) (*store.DocumentRecord, []store.ChunkRecord, [][]float32, error) {
	n := note.DecodeFile(content)

	id := docIDFor(content, relPath)
	title := n.Title
	if title == "" {
		title = vault.IDForPath(relPath)
	}

	created := n.Meta.CreatedAt
	if created == "" {
		created = note.Now()
	}
	updated := n.Meta.UpdatedAt
	if updated == "" || updated < created {
		updated = created
	}

	banner := ""
	if n.Meta.BannerImageURL != nil {
		banner = *n.Meta.BannerImageURL
	}

	tags := note.NormalizeTags(n.Meta.Tags)
	tagsJSON, _ := json.Marshal(tags)
	if tags == nil {
		tagsJSON = []byte("[]")
	}

	// Collapsed plain text (markup stripped) feeds the keyword index;
	// chunking runs on the raw body, whose blank lines mark paragraphs.
	plain := doc.ExtractText(doc.Parse(n.Body))

	rec := &store.DocumentRecord{
		ID:          id,
		Title:       title,
		Body:        n.Body,
		Tags:        string(tagsJSON),
		BannerURL:   banner,
		CreatedAt:   created,
		UpdatedAt:   updated,
		ContentHash: sha256Hash(content),
		SearchText:  plain,
	}

	pieces := chunk.Split(title, n.Body)

	model := ""
	if provider != nil {
		model = provider.Model()
	}

	chunks := make([]store.ChunkRecord, 0, len(pieces))
	var embeddings [][]float32
	if provider != nil {
		embeddings = make([][]float32, 0, len(pieces))
	}

	embedFailures := 0
	for _, p := range pieces {
		chunks = append(chunks, store.ChunkRecord{
			DocID:      id,
			ChunkIndex: p.Index,
			Text:       p.Text,
			Model:      model,
		})
		if provider == nil {
			continue
		}
		vec, err := provider.GetDocumentEmbedding(p.Text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [WARN] Failed to embed %s chunk %d: %v\n", relPath, p.Index, err)
			embedFailures++
			embeddings = append(embeddings, nil)
			continue
		}
		embeddings = append(embeddings, vec)
	}

	if provider != nil && len(pieces) > 0 && embedFailures == len(pieces) {
		return nil, nil, nil, fmt.Errorf("%w: %s", errNoEmbeddingsForFile, relPath)
	}

	return rec, chunks, embeddings, nil
}

// GetStats reads the last saved index stats, falling back to live
// counts when no stats file exists.
func GetStats(db *store.DB) map[string]interface{} {
	statsPath := filepath.Join(config.DataDir(), "index_stats.json")
	data, err := os.ReadFile(statsPath)
	if err != nil {
		docCount, err1 := db.DocumentCount()
		chunkCount, err2 := db.ChunkCount()
		if err1 == nil && err2 == nil {
			result := map[string]interface{}{
				"total_docs_in_index":   docCount,
				"total_chunks_in_index": chunkCount,
				"status":                "live query (no saved stats)",
			}
			enrichStats(db, result)
			return result
		}
		return map[string]interface{}{
			"status": "no index found",
			"hint":   "run 'markvault reindex' first",
		}
	}

	var result map[string]interface{}
	json.Unmarshal(data, &result)
	result["embedding_dimensions"] = config.EmbeddingDim()
	enrichStats(db, result)
	return result
}

// enrichStats adds database size and mode details.
func enrichStats(db *store.DB, result map[string]interface{}) {
	dbPath := config.DBPath()
	if info, err := os.Stat(dbPath); err == nil {
		sizeMB := float64(info.Size()) / (1024 * 1024)
		result["db_size_mb"] = fmt.Sprintf("%.1f", sizeMB)
		result["db_path"] = filepath.Base(dbPath)
	}
	if vecs, err := db.VectorCount(); err == nil {
		if vecs > 0 {
			result["mode"] = "full"
		} else {
			result["mode"] = "keyword-only"
		}
	}
	statsPath := filepath.Join(config.DataDir(), "index_stats.json")
	if info, err := os.Stat(statsPath); err == nil {
		result["last_reindex"] = info.ModTime().Format("2006-01-02 15:04:05")
	}
}

func saveStats(stats *Stats) {
	dataDir := config.DataDir()
	os.MkdirAll(dataDir, 0o755)
	data, _ := json.MarshalIndent(stats, "", "  ")
	os.WriteFile(filepath.Join(dataDir, "index_stats.json"), data, 0o644)
}

func sha256Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
