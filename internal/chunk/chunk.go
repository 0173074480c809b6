// Package chunk splits extracted note text into overlapping retrieval
// chunks sized for embedding.
package chunk

import "strings"

const (
	// TargetSize is the soft upper bound on chunk length in bytes.
	TargetSize = 800
	// Overlap is how many trailing bytes of a flushed chunk seed the
	// next one, so sentences straddling a boundary stay searchable.
	Overlap = 200
)

// Chunk is one retrieval unit: the note title prepended to a slice of
// its body, plus its zero-based position.
type Chunk struct {
	Text  string
	Index int
}

// Split chunks a note's plain-text body. The result is never empty: an
// empty body yields a single title-only chunk, a short body a single
// title+body chunk, and a long body paragraph-accumulated chunks with
// Overlap bytes of carry-over between neighbors.
func Split(title, body string) []Chunk {
	body = strings.TrimSpace(body)

	if body == "" {
		return []Chunk{{Text: title, Index: 0}}
	}
	if len(body) <= TargetSize {
		return []Chunk{{Text: withTitle(title, body), Index: 0}}
	}

	var chunks []Chunk
	var buf string
	for _, para := range splitParagraphs(body) {
		candidate := joinBlank(buf, para)
		if len(candidate) > TargetSize && buf != "" {
			chunks = append(chunks, Chunk{Text: withTitle(title, buf), Index: len(chunks)})
			tail := buf
			if len(tail) > Overlap {
				tail = tail[len(tail)-Overlap:]
			}
			buf = joinBlank(tail, para)
			continue
		}
		buf = candidate
	}
	if strings.TrimSpace(buf) != "" {
		chunks = append(chunks, Chunk{Text: withTitle(title, buf), Index: len(chunks)})
	}
	if len(chunks) == 0 {
		chunks = []Chunk{{Text: withTitle(title, body), Index: 0}}
	}
	return chunks
}

func withTitle(title, text string) string {
	if title == "" {
		return text
	}
	return title + "\n\n" + text
}

func joinBlank(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n\n" + b
}

// splitParagraphs splits on blank-line boundaries, tolerating lines of
// pure whitespace as separators.
func splitParagraphs(text string) []string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}
