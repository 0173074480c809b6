package doc

import "strings"

// Traversal bounds for user-controlled trees. A pathological document
// yields a truncated extraction instead of unbounded stack growth.
const (
	maxExtractNodes = 100000
	maxExtractDepth = 256
)

// ExtractText flattens a document tree to plain text: every text leaf
// in document order, a newline for each hardBreak, joined with spaces
// and whitespace-collapsed. Uses an explicit work stack with node and
// depth bounds; never fails.
func ExtractText(root Node) string {
	type frame struct {
		node  Node
		depth int
	}

	var fragments []string
	stack := []frame{{root, 0}}
	visited := 0

	for len(stack) > 0 && visited < maxExtractNodes {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		switch f.node.Type {
		case NodeText:
			if f.node.Text != "" {
				fragments = append(fragments, f.node.Text)
			}
		case NodeHardBreak:
			fragments = append(fragments, "\n")
		default:
			if f.depth >= maxExtractDepth {
				continue
			}
			// Push children in reverse so they pop in document order.
			for i := len(f.node.Content) - 1; i >= 0; i-- {
				stack = append(stack, frame{f.node.Content[i], f.depth + 1})
			}
		}
	}

	return collapse(strings.Join(fragments, " "))
}

// ExtractFromJSON extracts plain text from the JSON form of a document
// tree. If the input is not a well-formed tree it falls back to the raw
// string, collapsed and trimmed.
func ExtractFromJSON(raw string) string {
	node, err := Decode([]byte(raw))
	if err != nil || node.Type == "" {
		return collapse(raw)
	}
	return ExtractText(node)
}

// collapse squeezes all whitespace runs to single spaces and trims.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
