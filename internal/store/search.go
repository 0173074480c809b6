package store

import (
	"fmt"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// SearchRequest configures a hybrid search. Vector may be nil in
// keyword-only mode; FTSQuery is the raw query text. SemanticWeight and
// BM25Weight come from query preprocessing and sum to 1.0.
type SearchRequest struct {
	Vector         []float32
	FTSQuery       string
	SemanticWeight float64
	BM25Weight     float64
	Limit          int
	MinScore       float64
	ExcludeID      string
}

// SearchHit is one scored document in search results.
type SearchHit struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// HybridSearch blends vector KNN scores with keyword scores over the
// union of both result sets: score = semWeight*semantic + bm25Weight*keyword,
// with a missing component contributing zero.
func (db *DB) HybridSearch(req SearchRequest) ([]SearchHit, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	semScores := map[string]float64{}
	if len(req.Vector) > 0 && req.SemanticWeight > 0 {
		var err error
		semScores, err = db.vectorScores(req.Vector, limit)
		if err != nil {
			return nil, err
		}
	}

	kwScores := map[string]float64{}
	if strings.TrimSpace(req.FTSQuery) != "" && req.BM25Weight > 0 {
		kwScores = db.keywordScores(req.FTSQuery, limit)
	}

	blended := make(map[string]float64, len(semScores)+len(kwScores))
	for id, s := range semScores {
		blended[id] += req.SemanticWeight * s
	}
	for id, s := range kwScores {
		blended[id] += req.BM25Weight * s
	}
	delete(blended, req.ExcludeID)

	hits := make([]SearchHit, 0, len(blended))
	for id, score := range blended {
		if score < req.MinScore {
			continue
		}
		hits = append(hits, SearchHit{DocID: id, Score: round3(score)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	if err := db.hydrateHits(hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// vectorScores runs a KNN query and returns doc_id -> score in [0,1],
// keeping the best chunk distance per document and min-max normalizing.
func (db *DB) vectorScores(queryVec []float32, limit int) (map[string]float64, error) {
	vecData, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}

	// Fetch extra chunks so per-document deduplication still fills limit
	fetchK := limit * 5

	rows, err := db.conn.Query(`
		SELECT v.distance, c.doc_id
		FROM document_chunks_vec v
		JOIN document_chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		vecData, fetchK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	type docDist struct {
		id   string
		dist float64
	}
	var ordered []docDist
	seen := make(map[string]bool)
	for rows.Next() {
		var dist float64
		var docID string
		if err := rows.Scan(&dist, &docID); err != nil {
			return nil, err
		}
		// rows arrive distance-ascending, so first hit per doc is its best chunk
		if seen[docID] {
			continue
		}
		seen[docID] = true
		ordered = append(ordered, docDist{id: docID, dist: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return map[string]float64{}, nil
	}

	minDist := ordered[0].dist
	maxDist := ordered[len(ordered)-1].dist
	distRange := maxDist - minDist
	if distRange <= 0 {
		distRange = 1.0
	}

	scores := make(map[string]float64, len(ordered))
	for _, d := range ordered {
		scores[d.id] = 1.0 - ((d.dist - minDist) / distRange)
	}
	return scores, nil
}

// keywordScores returns doc_id -> score in [0,1] from the FTS5 index,
// falling back to LIKE matching when FTS5 is unavailable or the query
// does not parse as FTS5 syntax. Keyword failures never fail the
// search; they just contribute nothing.
func (db *DB) keywordScores(query string, limit int) map[string]float64 {
	if db.ftsAvailable {
		scores, err := db.ftsScores(query, limit)
		if err == nil {
			return scores
		}
	}
	return db.likeScores(query, limit)
}

func (db *DB) ftsScores(query string, limit int) (map[string]float64, error) {
	rows, err := db.conn.Query(`
		SELECT doc_id, bm25(documents_fts) AS rank
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		query, limit*5,
	)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	type docRank struct {
		id   string
		rank float64
	}
	var ordered []docRank
	for rows.Next() {
		var r docRank
		if err := rows.Scan(&r.id, &r.rank); err != nil {
			return nil, err
		}
		ordered = append(ordered, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return map[string]float64{}, nil
	}

	// bm25() ranks ascending (more negative = better). Min-max to 0-1.
	best := ordered[0].rank
	worst := ordered[len(ordered)-1].rank
	rankRange := worst - best
	if rankRange <= 0 {
		rankRange = 1.0
	}

	scores := make(map[string]float64, len(ordered))
	for _, r := range ordered {
		scores[r.id] = 1.0 - ((r.rank - best) / rankRange)
	}
	return scores, nil
}

// likeScores scores documents by the fraction of query terms appearing
// in the title or body.
func (db *DB) likeScores(query string, limit int) map[string]float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return map[string]float64{}
	}

	var matchExprs []string
	var conditions []string
	var args []interface{}
	for _, term := range terms {
		pattern := "%" + term + "%"
		matchExprs = append(matchExprs,
			"(CASE WHEN LOWER(title) LIKE ? OR LOWER(body) LIKE ? THEN 1 ELSE 0 END)")
		args = append(args, pattern, pattern)
	}
	scoreExpr := strings.Join(matchExprs, " + ")
	for _, term := range terms {
		pattern := "%" + term + "%"
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(body) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	args = append(args, limit*5)

	query = fmt.Sprintf(`
		SELECT id, (%s) AS matched
		FROM documents
		WHERE %s
		ORDER BY matched DESC, updated_at DESC
		LIMIT ?`,
		scoreExpr, strings.Join(conditions, " OR "))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return map[string]float64{}
	}
	defer rows.Close()

	scores := make(map[string]float64)
	total := float64(len(terms))
	for rows.Next() {
		var id string
		var matched int
		if err := rows.Scan(&id, &matched); err != nil {
			continue
		}
		scores[id] = float64(matched) / total
	}
	return scores
}

// hydrateHits fills in titles and snippets for the final hit list.
func (db *DB) hydrateHits(hits []SearchHit) error {
	for i := range hits {
		var title, body string
		err := db.conn.QueryRow(
			"SELECT title, body FROM documents WHERE id = ?", hits[i].DocID,
		).Scan(&title, &body)
		if err != nil {
			continue
		}
		hits[i].Title = title
		hits[i].Snippet = snippet(body, 200)
	}
	return nil
}

// snippet truncates text at a rune boundary.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
