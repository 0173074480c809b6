package doc

import (
	"strings"
	"testing"
)

func TestExtractTextCollapsesWhitespace(t *testing.T) {
	tree := NewDoc(
		Heading(1, Text("  Spaced   Title ")),
		Paragraph(Text("one"), Node{Type: NodeHardBreak}, Text("two")),
	)
	if got := ExtractText(tree); got != "Spaced Title one two" {
		t.Errorf("ExtractText = %q", got)
	}
}

func TestExtractTextDeepTreeTruncates(t *testing.T) {
	// Nest far past the depth bound; must return without overflowing.
	node := Text("leaf")
	for i := 0; i < 10000; i++ {
		node = Node{Type: NodeParagraph, Content: []Node{node}}
	}
	got := ExtractText(NewDoc(node))
	if got != "" {
		t.Errorf("expected truncated extraction, got %q", got)
	}
}

func TestExtractTextWideTree(t *testing.T) {
	blocks := make([]Node, 500)
	for i := range blocks {
		blocks[i] = Paragraph(Text("p"))
	}
	got := ExtractText(NewDoc(blocks...))
	if len(strings.Fields(got)) != 500 {
		t.Errorf("expected 500 fragments, got %d", len(strings.Fields(got)))
	}
}

func TestExtractFromJSONFallback(t *testing.T) {
	if got := ExtractFromJSON("just   raw\n\ntext"); got != "just raw text" {
		t.Errorf("fallback = %q", got)
	}
	raw := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"hi"}]}]}`
	if got := ExtractFromJSON(raw); got != "hi" {
		t.Errorf("tree extract = %q", got)
	}
}
