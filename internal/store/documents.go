package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// DocumentRecord is a stored note document.
type DocumentRecord struct {
	ID          string
	Title       string
	Body        string
	Tags        string // JSON array string
	BannerURL   string
	CreatedAt   string
	UpdatedAt   string
	ContentHash string

	// SearchText is the collapsed plain-text rendition of Body, used
	// for the FTS index only. Not persisted in the documents table;
	// empty means index Body as-is.
	SearchText string
}

// ChunkRecord is one indexed chunk of a document.
type ChunkRecord struct {
	ID         int64
	DocID      string
	ChunkIndex int
	Text       string
	Model      string
}

// TagCount pairs a tag with the number of documents carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// UpsertDocument inserts or replaces a document row and refreshes its
// tag and FTS entries.
func (db *DB) UpsertDocument(rec *DocumentRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO documents (id, title, body, tags, banner_url, created_at, updated_at, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, body = excluded.body, tags = excluded.tags,
			banner_url = excluded.banner_url, created_at = excluded.created_at,
			updated_at = excluded.updated_at, content_hash = excluded.content_hash`,
		rec.ID, rec.Title, rec.Body, rec.Tags, rec.BannerURL,
		rec.CreatedAt, rec.UpdatedAt, rec.ContentHash,
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM doc_tags WHERE doc_id = ?", rec.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range ParseTags(rec.Tags) {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO doc_tags (doc_id, tag) VALUES (?, ?)",
			rec.ID, tag,
		); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	if db.ftsAvailable {
		if _, err := tx.Exec("DELETE FROM documents_fts WHERE doc_id = ?", rec.ID); err != nil {
			return fmt.Errorf("clear fts: %w", err)
		}
		searchBody := rec.SearchText
		if searchBody == "" {
			searchBody = rec.Body
		}
		if _, err := tx.Exec(
			"INSERT INTO documents_fts (doc_id, title, body) VALUES (?, ?, ?)",
			rec.ID, rec.Title, searchBody,
		); err != nil {
			return fmt.Errorf("insert fts: %w", err)
		}
	}

	return tx.Commit()
}

// ReplaceChunks swaps out all chunks (and their vectors) for a document
// in one transaction. embeddings may be nil in keyword-only mode;
// otherwise it must be parallel to chunks, with nil entries allowed for
// chunks that failed to embed.
func (db *DB) ReplaceChunks(docID string, chunks []ChunkRecord, embeddings [][]float32) error {
	if embeddings != nil && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunks and embeddings must have same length")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunksTx(tx, docID); err != nil {
		return err
	}

	chunkStmt, err := tx.Prepare(
		"INSERT INTO document_chunks (doc_id, chunk_index, text, model) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare chunk stmt: %w", err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.Prepare(
		"INSERT INTO document_chunks_vec (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare vec stmt: %w", err)
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		res, err := chunkStmt.Exec(docID, c.ChunkIndex, c.Text, c.Model)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}

		if embeddings == nil || embeddings[i] == nil {
			continue
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id %d: %w", i, err)
		}
		vecData, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding %d: %w", i, err)
		}
		if _, err := vecStmt.Exec(id, vecData); err != nil {
			return fmt.Errorf("insert vector %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document with its chunks, vectors, tags and
// FTS entry.
func (db *DB) DeleteDocument(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunksTx(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM doc_tags WHERE doc_id = ?", id); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	if db.ftsAvailable {
		if _, err := tx.Exec("DELETE FROM documents_fts WHERE doc_id = ?", id); err != nil {
			return fmt.Errorf("delete fts: %w", err)
		}
	}
	if _, err := tx.Exec("DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return tx.Commit()
}

// DeleteAll clears the whole index. Used for force reindex.
func (db *DB) DeleteAll() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DELETE FROM document_chunks_vec",
		"DELETE FROM document_chunks",
		"DELETE FROM doc_tags",
		"DELETE FROM documents",
	}
	if db.ftsAvailable {
		stmts = append(stmts, "DELETE FROM documents_fts")
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}
	return tx.Commit()
}

// deleteChunksTx removes a document's chunks and vectors. Vectors go
// first (referential).
func deleteChunksTx(tx *sql.Tx, docID string) error {
	if _, err := tx.Exec(
		"DELETE FROM document_chunks_vec WHERE chunk_id IN (SELECT id FROM document_chunks WHERE doc_id = ?)",
		docID,
	); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM document_chunks WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// GetDocument returns a document by id, or nil when absent.
func (db *DB) GetDocument(id string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := db.conn.QueryRow(`
		SELECT id, title, body, tags, banner_url, created_at, updated_at, content_hash
		FROM documents WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Title, &rec.Body, &rec.Tags, &rec.BannerURL,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AllDocuments returns every document, most recently updated first.
func (db *DB) AllDocuments() ([]DocumentRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, body, tags, banner_url, created_at, updated_at, content_hash
		FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Body, &rec.Tags, &rec.BannerURL,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.ContentHash); err != nil {
			return nil, err
		}
		docs = append(docs, rec)
	}
	return docs, rows.Err()
}

// GetContentHashes returns id -> content_hash for incremental reindexing.
func (db *DB) GetContentHashes() (map[string]string, error) {
	rows, err := db.conn.Query("SELECT id, content_hash FROM documents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}

// GetChunks returns a document's chunks ordered by index.
func (db *DB) GetChunks(docID string) ([]ChunkRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, doc_id, chunk_index, text, model
		FROM document_chunks WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Text, &c.Model); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DocumentCount returns the number of indexed documents.
func (db *DB) DocumentCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// ChunkCount returns the total number of chunks in the index.
func (db *DB) ChunkCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM document_chunks").Scan(&count)
	return count, err
}

// VectorCount returns the number of stored embeddings. Zero means the
// index is running in keyword-only mode.
func (db *DB) VectorCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM document_chunks_vec").Scan(&count)
	return count, err
}

// TagCounts returns tag usage across all documents, most used first,
// ties broken alphabetically.
func (db *DB) TagCounts() ([]TagCount, error) {
	rows, err := db.conn.Query(
		"SELECT tag, COUNT(*) FROM doc_tags GROUP BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tag < counts[j].Tag
	})
	return counts, nil
}

// ChunkEmbedding returns the stored vector for a chunk, or nil if the
// chunk has no embedding.
func (db *DB) ChunkEmbedding(chunkID int64) ([]float32, error) {
	var vecData []byte
	err := db.conn.QueryRow(
		"SELECT embedding FROM document_chunks_vec WHERE chunk_id = ?", chunkID,
	).Scan(&vecData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deserializeFloat32(vecData)
}

// deserializeFloat32 converts raw little-endian bytes back to []float32.
func deserializeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data length: %d", len(data))
	}
	n := len(data) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : (i+1)*4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// ParseTags parses the JSON tags string into a slice.
func ParseTags(tagsJSON string) []string {
	var tags []string
	json.Unmarshal([]byte(tagsJSON), &tags)
	return tags
}
