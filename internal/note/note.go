package note

import "strings"

// Note is one stored document: metadata header, title, Markdown body.
type Note struct {
	Meta  Metadata
	Title string
	Body  string
}

// EncodeFile renders the full stored file: frontmatter, a "# <title>"
// heading, a blank line, then the body. An empty body still gets the
// heading line with a trailing newline.
func EncodeFile(n Note) string {
	var b strings.Builder
	b.WriteString(SerializeFrontmatter(n.Meta))
	b.WriteString("# " + SanitizeTitle(n.Title) + "\n")
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Body)
		if !strings.HasSuffix(n.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// DecodeFile parses a stored file back into a Note. Missing or garbled
// frontmatter leaves empty metadata (the caller fills in identity); a
// missing title heading leaves the title empty and keeps the full text
// as body. Never fails.
func DecodeFile(text string) Note {
	meta, rest := ParseFrontmatter(text)

	title := ""
	body := rest
	trimmed := strings.TrimLeft(rest, "\n")
	if strings.HasPrefix(trimmed, "# ") {
		line := trimmed
		if nl := strings.Index(trimmed, "\n"); nl >= 0 {
			line = trimmed[:nl]
			body = trimmed[nl+1:]
		} else {
			body = ""
		}
		title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		body = strings.TrimPrefix(body, "\n")
	}

	return Note{
		Meta:  meta,
		Title: title,
		Body:  strings.TrimRight(body, "\n"),
	}
}

// SanitizeTitle makes a string safe to embed as the file's "#" heading:
// leading hash characters are stripped and embedded newlines collapse
// to spaces.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimLeft(title, "#")
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	return strings.TrimSpace(title)
}
