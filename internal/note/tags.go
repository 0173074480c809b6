package note

import (
	"strings"
	"unicode"
)

// NormalizeTags canonicalizes free-text tags: trim, strip leading #,
// lowercase, collapse whitespace/underscore runs to a single
// underscore, drop empties, de-duplicate preserving first-seen order.
// Invalid entries are dropped silently.
func NormalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		tag := normalizeTag(r, '_')
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// NormalizeSuggested is the stricter policy applied to AI-suggested
// tags only: hyphen separator and a 3-character minimum. Stored tags
// always use NormalizeTags; this is a caller-side post-filter.
func NormalizeSuggested(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		tag := normalizeTag(r, '-')
		if len(tag) < 3 || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func normalizeTag(s string, sep rune) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	s = strings.ToLower(s)

	var b strings.Builder
	pending := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == sep {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteRune(sep)
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
