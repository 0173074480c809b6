package doc

import (
	"fmt"
	"strings"
)

// maxRenderDepth bounds recursion over user-controlled trees. Content
// nested deeper is dropped, mirroring the extraction bound.
const maxRenderDepth = 256

// Render converts a document tree to Markdown body text. Blocks are
// rendered independently, trimmed, and joined by a blank line; empty
// blocks are dropped.
func Render(root Node) string {
	var blocks []string
	for _, child := range root.Content {
		s := strings.TrimSpace(renderBlock(child, 0))
		if s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderBlock(n Node, depth int) string {
	if depth >= maxRenderDepth {
		return ""
	}

	switch n.Type {
	case NodeHeading:
		level := 1
		if n.Attrs != nil {
			level = n.Attrs.Level
		}
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		return strings.Repeat("#", level) + " " + renderInline(n.Content, depth+1)

	case NodeParagraph:
		return renderInline(n.Content, depth+1)

	case NodeBulletList:
		return renderList(n, depth, func(int) string { return "- " })

	case NodeOrderedList:
		start := 1
		if n.Attrs != nil && n.Attrs.Start != nil && *n.Attrs.Start >= 1 {
			start = *n.Attrs.Start
		}
		return renderList(n, depth, func(i int) string { return fmt.Sprintf("%d. ", start+i) })

	case NodeBlockquote:
		var parts []string
		for _, child := range n.Content {
			s := strings.TrimSpace(renderBlock(child, depth+1))
			if s != "" {
				parts = append(parts, s)
			}
		}
		joined := strings.Join(parts, "\n\n")
		lines := strings.Split(joined, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")

	case NodeCodeBlock:
		var b strings.Builder
		for _, child := range n.Content {
			b.WriteString(child.Text)
		}
		return "```\n" + b.String() + "\n```"

	case NodeHorizontalRule:
		return "---"

	default:
		// Unknown block: flatten to its inline text only.
		return renderInline(n.Content, depth+1)
	}
}

// renderList renders each listItem by concatenating its rendered block
// children, prefixing the first line with the item marker and indenting
// continuation lines under it.
func renderList(n Node, depth int, marker func(i int) string) string {
	var items []string
	for i, item := range n.Content {
		var parts []string
		for _, child := range item.Content {
			s := strings.TrimSpace(renderBlock(child, depth+2))
			if s != "" {
				parts = append(parts, s)
			}
		}
		lines := strings.Split(strings.Join(parts, "\n"), "\n")
		for j, line := range lines {
			if j == 0 {
				lines[j] = marker(i) + line
			} else {
				lines[j] = "  " + line
			}
		}
		items = append(items, strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n")
}

// renderInline renders a sequence of inline nodes. Text marks wrap
// innermost-first: the first mark in the list wraps the raw text and
// later marks wrap the already-wrapped result.
func renderInline(nodes []Node, depth int) string {
	if depth >= maxRenderDepth {
		return ""
	}

	var b strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case NodeText:
			s := n.Text
			for _, m := range n.Marks {
				switch m.Type {
				case MarkCode:
					s = "`" + strings.ReplaceAll(s, "`", "\\`") + "`"
				case MarkBold:
					s = "**" + s + "**"
				case MarkItalic:
					s = "*" + s + "*"
				case MarkStrike:
					s = "~~" + s + "~~"
				}
			}
			b.WriteString(s)
		case NodeHardBreak:
			b.WriteString("  \n")
		default:
			b.WriteString(renderInline(n.Content, depth+1))
		}
	}
	return b.String()
}
