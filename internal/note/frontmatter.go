package note

import (
	"encoding/json"
	"strings"
)

// SerializeFrontmatter emits the metadata header: a block delimited by
// "---" lines with one key per line in fixed order, followed by a
// blank line.
// Strings are double-quoted with backslash escaping; an absent banner
// renders as the bare token null; tags render as a compact JSON array.
func SerializeFrontmatter(m Metadata) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("id: " + quote(m.ID) + "\n")
	b.WriteString("created_at: " + quote(m.CreatedAt) + "\n")
	b.WriteString("updated_at: " + quote(m.UpdatedAt) + "\n")
	if m.BannerImageURL == nil {
		b.WriteString("banner_image_url: null\n")
	} else {
		b.WriteString("banner_image_url: " + quote(*m.BannerImageURL) + "\n")
	}
	b.WriteString("tags: " + encodeTags(m.Tags) + "\n")
	b.WriteString("---\n\n")
	return b.String()
}

// ParseFrontmatter splits a stored file into metadata and body. A file
// that does not open with the delimiter, or whose header never closes,
// is returned whole as body with empty metadata. Header lines without
// a colon and unrecognized keys are ignored.
func ParseFrontmatter(text string) (Metadata, string) {
	var m Metadata

	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return m, text
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return m, text
	}

	for _, line := range lines[1:end] {
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch key {
		case "id":
			m.ID = unquote(value)
		case "created_at":
			m.CreatedAt = unquote(value)
		case "updated_at":
			m.UpdatedAt = unquote(value)
		case "banner_image_url":
			if value != "null" {
				url := unquote(value)
				m.BannerImageURL = &url
			}
		case "tags":
			m.Tags = parseTagArray(value)
		}
	}

	body := strings.Join(lines[end+1:], "\n")
	return m, strings.TrimPrefix(body, "\n")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func unquote(s string) string {
	if s == "null" {
		return ""
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	out, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(out)
}

// parseTagArray tries strict JSON first, then falls back to manual
// comma-splitting so hand-edited headers still load. An unparseable
// value yields an empty tag list.
func parseTagArray(value string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(value), &tags); err == nil {
		return tags
	}

	// The manual fallback only applies to values that at least look
	// like an array; anything else is an empty tag list.
	inner := strings.TrimSpace(value)
	if !strings.HasPrefix(inner, "[") || !strings.HasSuffix(inner, "]") {
		return nil
	}
	inner = strings.TrimPrefix(inner, "[")
	inner = strings.TrimSuffix(inner, "]")
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
