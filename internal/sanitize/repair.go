// Package sanitize cleans persisted markup in two independent stages:
// a best-effort repair pass for legacy encoding artifacts, and an
// allow-list sanitization pass that is the hard security boundary. The
// stages are deliberately separate so compatibility tweaks can never
// weaken the security guarantee.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

// Legacy saves stored already-escaped markup, sometimes escaped twice.
// The repair pass unwinds at most this many encoding layers.
const maxDecodePasses = 3

var (
	strayOpenSpanPattern  = regexp.MustCompile(`&lt;span style=(?:"|&quot;)[^"&]*(?:"|&quot;)&gt;`)
	strayCloseSpanPattern = regexp.MustCompile(`&lt;/span&gt;`)
)

// RepairLegacyMarkup corrects artifacts left by earlier content formats:
// double-encoded HTML entities are decoded back to markup, and literal
// span style tag text that survives as escaped text content is stripped.
// The pass is cosmetic only; incomplete repair is acceptable because the
// sanitization stage still guarantees no unsafe markup escapes.
func RepairLegacyMarkup(fragment string) string {
	repaired := decodeDoubleEncoded(fragment)
	repaired = strayOpenSpanPattern.ReplaceAllString(repaired, "")
	repaired = strayCloseSpanPattern.ReplaceAllString(repaired, "")
	return repaired
}

// decodeDoubleEncoded unescapes fragments that contain only escaped
// markup. A fragment holding real tags is left alone so legitimate
// entity text such as "a &lt; b" inside markup is preserved.
func decodeDoubleEncoded(fragment string) string {
	current := fragment
	for pass := 0; pass < maxDecodePasses; pass++ {
		if !looksFullyEscaped(current) {
			return current
		}
		decoded := html.UnescapeString(current)
		if decoded == current {
			return current
		}
		current = decoded
	}
	return current
}

func looksFullyEscaped(fragment string) bool {
	if strings.Contains(fragment, "<") {
		return false
	}
	return strings.Contains(fragment, "&lt;") || strings.Contains(fragment, "&amp;lt;")
}
