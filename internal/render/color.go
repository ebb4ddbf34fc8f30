package render

import (
	"fmt"
	"regexp"
	"strings"
)

// Colors that only read well on a dark editing surface. The reader
// surface is light, so these are dropped rather than applied; text would
// otherwise be invisible. This is a compatibility heuristic, not a theme
// system.
var darkSurfaceOnlyColors = map[string]struct{}{
	"#ffffff": {},
	"#fefefe": {},
	"#fafafa": {},
	"#f9fafb": {},
	"#f3f4f6": {},
	"#e5e7eb": {},
	"#d1d5db": {},
	"#eeeeee": {},
	"#dddddd": {},
	"#cccccc": {},
}

var (
	hexColorPattern   = regexp.MustCompile(`^#(?:[0-9a-f]{3}|[0-9a-f]{6})$`)
	rgbColorPattern   = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*[\d.]+\s*)?\)$`)
	namedColorPattern = regexp.MustCompile(`^[a-z]{3,20}$`)
)

// normalizeColor lowercases the value and rewrites rgb()/rgba() and
// shorthand hex forms to six-digit hex. It returns false for anything
// that is not a recognizable color, which also keeps style-attribute
// injection out of rendered output.
func normalizeColor(rawColor string) (string, bool) {
	color := strings.ToLower(strings.TrimSpace(rawColor))
	if color == "" {
		return "", false
	}

	if match := rgbColorPattern.FindStringSubmatch(color); match != nil {
		var red, green, blue int
		fmt.Sscanf(match[1], "%d", &red)
		fmt.Sscanf(match[2], "%d", &green)
		fmt.Sscanf(match[3], "%d", &blue)
		if red > 255 || green > 255 || blue > 255 {
			return "", false
		}
		return fmt.Sprintf("#%02x%02x%02x", red, green, blue), true
	}

	if hexColorPattern.MatchString(color) {
		if len(color) == 4 {
			expanded := []byte{'#', color[1], color[1], color[2], color[2], color[3], color[3]}
			return string(expanded), true
		}
		return color, true
	}

	if namedColorPattern.MatchString(color) {
		return color, true
	}

	return "", false
}

// usableReaderColor validates a textStyle color for the reader surface.
// It returns the normalized color and whether it should be applied at
// all: dark-surface-only palette entries are filtered out.
func usableReaderColor(rawColor string) (string, bool) {
	color, ok := normalizeColor(rawColor)
	if !ok {
		return "", false
	}
	if _, darkOnly := darkSurfaceOnlyColors[color]; darkOnly {
		return "", false
	}
	return color, true
}
