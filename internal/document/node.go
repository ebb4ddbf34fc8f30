// Package document models the live rich-text document tree produced by
// the editing surface. Nodes are decoded tolerantly: unrecognized node
// types are preserved as opaque data so round-trips never lose content.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Structural node types emitted by the editing surface.
const (
	NodeTypeDoc            = "doc"
	NodeTypeParagraph      = "paragraph"
	NodeTypeHeading        = "heading"
	NodeTypeText           = "text"
	NodeTypeBulletList     = "bulletList"
	NodeTypeOrderedList    = "orderedList"
	NodeTypeListItem       = "listItem"
	NodeTypeBlockquote     = "blockquote"
	NodeTypeCodeBlock      = "codeBlock"
	NodeTypeHorizontalRule = "horizontalRule"
	NodeTypeTable          = "table"
	NodeTypeTableRow       = "tableRow"
	NodeTypeTableHeader    = "tableHeader"
	NodeTypeTableCell      = "tableCell"
	NodeTypeHardBreak      = "hardBreak"
)

// Embedded-object node types.
const (
	NodeTypeCustomImage         = "customImage"
	NodeTypeCustomVideo         = "customVideo"
	NodeTypeCustomYoutube       = "customYoutube"
	NodeTypeCustomQuiz          = "customQuiz"
	NodeTypeCustomMultiFileCode = "customMultiFileCode"
)

// Mark types applied to text nodes.
const (
	MarkTypeBold      = "bold"
	MarkTypeItalic    = "italic"
	MarkTypeUnderline = "underline"
	MarkTypeStrike    = "strike"
	MarkTypeCode      = "code"
	MarkTypeLink      = "link"
	MarkTypeTextStyle = "textStyle"
)

// ErrInvalidDocument indicates a document payload that is not decodable.
var ErrInvalidDocument = errors.New("document: invalid document payload")

// Mark is an inline formatting annotation on a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one node of the rich-text document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Parse decodes a document tree from its persisted JSON form. Unknown
// node types decode like any other node; only malformed JSON fails.
func Parse(payload []byte) (Node, error) {
	var root Node
	if err := json.Unmarshal(payload, &root); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if root.Type == "" {
		return Node{}, fmt.Errorf("%w: missing node type", ErrInvalidDocument)
	}
	return root, nil
}

// Encode serializes a node back to its persisted JSON form.
func Encode(node Node) ([]byte, error) {
	return json.Marshal(node)
}

// AttrString reads a string attribute, returning the fallback when the
// attribute is absent or not a string.
func (n Node) AttrString(key, fallback string) string {
	if n.Attrs == nil {
		return fallback
	}
	if value, ok := n.Attrs[key].(string); ok {
		return value
	}
	return fallback
}

// AttrInt reads a numeric attribute, tolerating the float64 shape JSON
// decoding produces.
func (n Node) AttrInt(key string, fallback int) int {
	if n.Attrs == nil {
		return fallback
	}
	switch value := n.Attrs[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return fallback
}

// MarkAttrString reads a string attribute off a mark.
func (m Mark) MarkAttrString(key string) string {
	if m.Attrs == nil {
		return ""
	}
	if value, ok := m.Attrs[key].(string); ok {
		return value
	}
	return ""
}
