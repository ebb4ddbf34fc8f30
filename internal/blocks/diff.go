package blocks

import (
	"bytes"
	"encoding/json"

	"github.com/lessonforge/lessonforge/internal/document"
)

// Attributes the editing surface attaches for display only. They carry no
// persisted meaning and must not trigger block rewrites.
var volatileAttrs = map[string]struct{}{
	"selected": {},
	"focused":  {},
	"dragging": {},
}

// BlocksDiffer reports whether two block contents differ structurally.
// The comparison is conservative: any marshalling doubt counts as a
// difference, so a real change is never missed. An unnecessary write is
// tolerable; a missed one is not.
func BlocksDiffer(previous, current document.Node) bool {
	previousJSON, err := json.Marshal(stripVolatile(previous))
	if err != nil {
		return true
	}
	currentJSON, err := json.Marshal(stripVolatile(current))
	if err != nil {
		return true
	}
	return !bytes.Equal(previousJSON, currentJSON)
}

// stripVolatile returns a copy of the node with display-only attributes
// removed, recursively. The input is never mutated.
func stripVolatile(node document.Node) document.Node {
	cleaned := node
	if len(node.Attrs) > 0 {
		attrs := make(map[string]any, len(node.Attrs))
		for key, value := range node.Attrs {
			if _, volatile := volatileAttrs[key]; volatile {
				continue
			}
			attrs[key] = value
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		cleaned.Attrs = attrs
	}
	if len(node.Content) > 0 {
		children := make([]document.Node, len(node.Content))
		for i, child := range node.Content {
			children[i] = stripVolatile(child)
		}
		cleaned.Content = children
	}
	return cleaned
}
