package content

// Spacing captures optional pixel insets shared by every content unit.
// A nil field means "use the caller's default", which is distinct from
// an explicit zero inset.
type Spacing struct {
	Top    *float64 `json:"top,omitempty"`
	Right  *float64 `json:"right,omitempty"`
	Bottom *float64 `json:"bottom,omitempty"`
	Left   *float64 `json:"left,omitempty"`
}

// Inset returns a pointer to the provided pixel value, for building
// Spacing literals.
func Inset(pixels float64) *float64 {
	return &pixels
}
