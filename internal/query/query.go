// Package query normalizes raw search input for hybrid retrieval: a
// verbatim lexical form, an abbreviation-expanded semantic form, and
// the blend weights the search backend consumes.
package query

import "strings"

// Processed is the per-request search preparation. SemanticWeight and
// BM25Weight always sum to 1.0.
type Processed struct {
	Normalized     string
	FTSQuery       string
	SemanticWeight float64
	BM25Weight     float64
}

// longTokenLen is the length at which a lone search term stops looking
// like an exact-match lookup and earns a small semantic component.
const longTokenLen = 8

// abbreviations expands common shorthand so the embedding model sees
// the concept, not the acronym. The lexical query keeps the original
// term verbatim.
var abbreviations = map[string]string{
	"ml":   "machine learning",
	"ai":   "artificial intelligence",
	"api":  "application programming interface",
	"db":   "database",
	"ui":   "user interface",
	"ux":   "user experience",
	"k8s":  "kubernetes",
	"js":   "javascript",
	"ts":   "typescript",
	"auth": "authentication",
	"repo": "repository",
	"docs": "documentation",
}

// Preprocess prepares a raw query string. It never fails: empty or
// degenerate input yields lexical-only weighting.
func Preprocess(raw string) Processed {
	trimmed := strings.TrimSpace(raw)

	tokens := strings.Fields(trimmed)
	expanded := make([]string, len(tokens))
	for i, tok := range tokens {
		if exp, ok := abbreviations[strings.ToLower(tok)]; ok {
			expanded[i] = exp
		} else {
			expanded[i] = tok
		}
	}
	normalized := strings.Join(expanded, " ")

	semantic, bm25 := weights(strings.Fields(normalized))
	return Processed{
		Normalized:     normalized,
		FTSQuery:       trimmed,
		SemanticWeight: semantic,
		BM25Weight:     bm25,
	}
}

// weights picks the blend by token count of the expanded query. Short
// queries are exact-term lookups; long ones describe a concept and
// lean on the embedding.
func weights(tokens []string) (semantic, bm25 float64) {
	switch n := len(tokens); {
	case n == 0:
		return 0.0, 1.0
	case n == 1:
		if len(tokens[0]) >= longTokenLen {
			return 0.2, 0.8
		}
		return 0.0, 1.0
	case n <= 4:
		return 0.6, 0.4
	default:
		return 0.8, 0.2
	}
}
