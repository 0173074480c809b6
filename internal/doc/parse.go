package doc

import (
	"strconv"
	"strings"
)

// Parse converts Markdown body text (title heading already stripped by
// the caller) into a document tree. The scanner is line-oriented with a
// fixed dispatch order; inline emphasis is recognized by an explicit
// finite-state scanner, not regex. Input that matches nothing still
// produces paragraphs, never an error.
func Parse(markdown string) Node {
	lines := strings.Split(markdown, "\n")
	var blocks []Node

	i := 0
	for i < len(lines) {
		line := lines[i]

		// 1. Blank line.
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		// 2. Fenced code block.
		if isFence(line) {
			var body []string
			i++
			for i < len(lines) && !isFence(lines[i]) {
				body = append(body, lines[i])
				i++
			}
			if i < len(lines) {
				i++ // closing fence
			}
			blocks = append(blocks, Node{
				Type:    NodeCodeBlock,
				Content: []Node{Text(strings.Join(body, "\n"))},
			})
			continue
		}

		// 3. ATX heading.
		if level, rest, ok := headingLine(line); ok {
			blocks = append(blocks, Node{
				Type:    NodeHeading,
				Attrs:   &Attrs{Level: level},
				Content: parseInline(rest),
			})
			i++
			continue
		}

		// 4. Bullet list run.
		if _, ok := bulletItem(line); ok {
			var items []Node
			for i < len(lines) {
				text, ok := bulletItem(lines[i])
				if !ok {
					break
				}
				items = append(items, listItem(text))
				i++
			}
			blocks = append(blocks, Node{Type: NodeBulletList, Content: items})
			continue
		}

		// 5. Ordered list run.
		if num, _, ok := orderedItem(line); ok {
			start := num
			var items []Node
			for i < len(lines) {
				_, text, ok := orderedItem(lines[i])
				if !ok {
					break
				}
				items = append(items, listItem(text))
				i++
			}
			blocks = append(blocks, Node{
				Type:    NodeOrderedList,
				Attrs:   &Attrs{Start: &start},
				Content: items,
			})
			continue
		}

		// 6. Blockquote run.
		if _, ok := quotedLine(line); ok {
			var quoted []string
			for i < len(lines) {
				text, ok := quotedLine(lines[i])
				if !ok {
					break
				}
				quoted = append(quoted, text)
				i++
			}
			joined := strings.TrimSpace(strings.Join(quoted, "\n"))
			blocks = append(blocks, Node{
				Type:    NodeBlockquote,
				Content: []Node{Paragraph(parseInline(joined)...)},
			})
			continue
		}

		// 7. Horizontal rule.
		if strings.TrimSpace(line) == "---" {
			blocks = append(blocks, Node{Type: NodeHorizontalRule})
			i++
			continue
		}

		// 8. Paragraph run: this line plus following lines that are
		// neither blank nor the start of another block.
		var run []string
		for i < len(lines) {
			l := lines[i]
			if strings.TrimSpace(l) == "" || isBlockStart(l) {
				break
			}
			run = append(run, l)
			i++
		}
		blocks = append(blocks, Paragraph(parseInline(strings.Join(run, "\n"))...))
	}

	return NewDoc(blocks...)
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

func headingLine(line string) (level int, rest string, ok bool) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n < 1 || n > 6 || n >= len(line) || line[n] != ' ' {
		return 0, "", false
	}
	return n, line[n+1:], true
}

func bulletItem(line string) (string, bool) {
	t := strings.TrimLeft(line, " ")
	if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") {
		return t[2:], true
	}
	return "", false
}

func orderedItem(line string) (num int, text string, ok bool) {
	t := strings.TrimLeft(line, " ")
	dot := strings.Index(t, ". ")
	if dot < 1 {
		return 0, "", false
	}
	n, err := strconv.Atoi(t[:dot])
	if err != nil || n < 1 {
		return 0, "", false
	}
	return n, t[dot+2:], true
}

func quotedLine(line string) (string, bool) {
	t := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(t, ">") {
		return "", false
	}
	t = t[1:]
	t = strings.TrimPrefix(t, " ")
	return t, true
}

// isBlockStart reports whether a line would terminate a paragraph run
// by opening one of the non-paragraph block forms.
func isBlockStart(line string) bool {
	if isFence(line) {
		return true
	}
	if _, _, ok := headingLine(line); ok {
		return true
	}
	if _, ok := bulletItem(line); ok {
		return true
	}
	if _, _, ok := orderedItem(line); ok {
		return true
	}
	if _, ok := quotedLine(line); ok {
		return true
	}
	return strings.TrimSpace(line) == "---"
}

func listItem(text string) Node {
	return Node{Type: NodeListItem, Content: []Node{Paragraph(parseInline(text)...)}}
}

// Inline scanner states.
const (
	statePlain = iota
	stateBold
	stateItalic
	stateStrike
	stateCode
)

// parseInline converts a paragraph run into inline nodes. Embedded
// newlines (preserved by the paragraph scanner) become hardBreak nodes;
// each physical line is scanned independently with trailing hard-break
// spaces stripped.
func parseInline(text string) []Node {
	var nodes []Node
	for i, seg := range strings.Split(text, "\n") {
		if i > 0 {
			nodes = append(nodes, Node{Type: NodeHardBreak})
		}
		nodes = append(nodes, scanInline(strings.TrimRight(seg, " "))...)
	}
	return nodes
}

// scanInline is the finite-state emphasis scanner. In the plain state
// it looks for an opening token at the cursor, checked in fixed
// precedence order (** before ~~ before ` before *); in a marked state
// it consumes up to the matching closer and emits a single-marked text
// node. An opener whose closer never arrives is replayed as literal
// text and scanning resumes in the plain state.
func scanInline(line string) []Node {
	var nodes []Node
	var plain strings.Builder
	state := statePlain
	opener := ""
	markType := ""
	i := 0

	flush := func() {
		if plain.Len() > 0 {
			nodes = append(nodes, Text(plain.String()))
			plain.Reset()
		}
	}

	for i < len(line) {
		switch state {
		case statePlain:
			tok, mark := openerAt(line, i)
			if tok == "" {
				plain.WriteByte(line[i])
				i++
				continue
			}
			state, opener, markType = stateFor(mark), tok, mark
			i += len(tok)

		case stateCode:
			end := closingBacktick(line, i)
			if end < 0 {
				plain.WriteString(opener)
				state = statePlain
				continue
			}
			flush()
			span := strings.ReplaceAll(line[i:end], "\\`", "`")
			if span != "" {
				nodes = append(nodes, Text(span, Mark{Type: markType}))
			}
			i = end + 1
			state = statePlain

		default: // stateBold, stateItalic, stateStrike
			end := strings.Index(line[i:], opener)
			if end < 0 {
				plain.WriteString(opener)
				state = statePlain
				continue
			}
			flush()
			if span := line[i : i+end]; span != "" {
				nodes = append(nodes, Text(span, Mark{Type: markType}))
			}
			i += end + len(opener)
			state = statePlain
		}
	}

	// An opener still pending at end of line is literal text.
	if state != statePlain {
		plain.WriteString(opener)
	}
	flush()
	return nodes
}

func openerAt(line string, i int) (token, mark string) {
	rest := line[i:]
	switch {
	case strings.HasPrefix(rest, "**"):
		return "**", MarkBold
	case strings.HasPrefix(rest, "~~"):
		return "~~", MarkStrike
	case strings.HasPrefix(rest, "`"):
		return "`", MarkCode
	case strings.HasPrefix(rest, "*"):
		return "*", MarkItalic
	}
	return "", ""
}

func stateFor(mark string) int {
	switch mark {
	case MarkBold:
		return stateBold
	case MarkStrike:
		return stateStrike
	case MarkCode:
		return stateCode
	default:
		return stateItalic
	}
}

func closingBacktick(line string, from int) int {
	for j := from; j < len(line); j++ {
		if line[j] == '`' && (j == 0 || line[j-1] != '\\') {
			return j
		}
	}
	return -1
}
