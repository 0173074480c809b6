// Package doc implements the structured rich-document model and its
// bidirectional Markdown codec. A document is a tree of typed nodes
// (the shape the editor serializes as JSON); the codec renders the tree
// to portable Markdown and parses it back. Malformed input never
// panics — every path degrades to plain text.
package doc

import "encoding/json"

// Block node types.
const (
	NodeDoc            = "doc"
	NodeParagraph      = "paragraph"
	NodeHeading        = "heading"
	NodeBulletList     = "bulletList"
	NodeOrderedList    = "orderedList"
	NodeListItem       = "listItem"
	NodeBlockquote     = "blockquote"
	NodeCodeBlock      = "codeBlock"
	NodeHorizontalRule = "horizontalRule"
)

// Inline node types.
const (
	NodeText      = "text"
	NodeHardBreak = "hardBreak"
)

// Mark types.
const (
	MarkBold   = "bold"
	MarkItalic = "italic"
	MarkStrike = "strike"
	MarkCode   = "code"
)

// Node is one node of the document tree. Type discriminates the
// variant; unrecognized types are tolerated and treated as opaque
// containers during rendering and text extraction.
type Node struct {
	Type    string `json:"type"`
	Attrs   *Attrs `json:"attrs,omitempty"`
	Content []Node `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
}

// Attrs holds the per-type node attributes. Level applies to headings,
// Start to ordered lists.
type Attrs struct {
	Level int  `json:"level,omitempty"`
	Start *int `json:"start,omitempty"`
}

// Mark is an inline decoration attached to a text node.
type Mark struct {
	Type string `json:"type"`
}

// Decode parses the JSON form of a document tree. Unknown fields and
// node types are preserved as-is rather than rejected.
func Decode(data []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return Node{}, err
	}
	return n, nil
}

// Encode serializes a document tree to its JSON form.
func Encode(n Node) ([]byte, error) {
	return json.Marshal(n)
}

// NewDoc builds a doc root around the given blocks.
func NewDoc(blocks ...Node) Node {
	return Node{Type: NodeDoc, Content: blocks}
}

// Text builds a plain text node.
func Text(s string, marks ...Mark) Node {
	return Node{Type: NodeText, Text: s, Marks: marks}
}

// Paragraph builds a paragraph around the given inline nodes.
func Paragraph(inline ...Node) Node {
	return Node{Type: NodeParagraph, Content: inline}
}

// Heading builds a heading at the given level.
func Heading(level int, inline ...Node) Node {
	return Node{Type: NodeHeading, Attrs: &Attrs{Level: level}, Content: inline}
}
