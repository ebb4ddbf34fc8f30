package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

var inlineElements = []string{
	"p", "strong", "b", "em", "i", "u", "s", "strike", "code", "span",
	"a", "br", "blockquote", "ul", "ol", "li",
	"h1", "h2", "h3", "h4", "h5", "h6",
}

var tableElements = []string{"table", "thead", "tbody", "tr", "th", "td"}

// Sanitizer strips everything outside a fixed tag allow-list. Only the
// style attribute is permitted (inline color, size and alignment depend
// on it) plus href on anchors, restricted to web schemes. Script tags,
// event handler attributes and unknown tags are silently removed; this
// is a security boundary, not a user-visible error.
type Sanitizer struct {
	editorPolicy *bluemonday.Policy
	readerPolicy *bluemonday.Policy
}

// NewSanitizer builds the shared sanitizer. Policies are immutable after
// construction and safe for concurrent use.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		editorPolicy: buildPolicy(false),
		readerPolicy: buildPolicy(true),
	}
}

func buildPolicy(allowTables bool) *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(inlineElements...)
	if allowTables {
		policy.AllowElements(tableElements...)
	}
	policy.AllowAttrs("style").Globally()
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowURLSchemes("http", "https", "mailto")
	return policy
}

// CleanEditor sanitizes markup destined for the authoring surface.
func (s *Sanitizer) CleanEditor(fragment string) string {
	return s.editorPolicy.Sanitize(fragment)
}

// CleanReader sanitizes markup destined for the read-only surface, where
// rendered tables are additionally allowed.
func (s *Sanitizer) CleanReader(fragment string) string {
	return s.readerPolicy.Sanitize(fragment)
}

// RepairAndCleanReader applies the legacy repair pass before the reader
// allow-list. Repair is best-effort; the allow-list is not.
func (s *Sanitizer) RepairAndCleanReader(fragment string) string {
	return s.CleanReader(RepairLegacyMarkup(fragment))
}
