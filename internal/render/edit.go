package render

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lessonforge/lessonforge/internal/content"
)

// ErrImmutableField indicates an edit that tried to change a unit's
// identity or variant. Both are assigned at creation and never change.
var ErrImmutableField = errors.New("render: unit id and type are immutable")

// ApplyEdit merges a field patch into a content unit and returns the
// updated copy. The input unit is never mutated; the caller decides what
// to do with the result. Unknown patch fields are dropped by the codec.
func ApplyEdit(unit content.Unit, patch map[string]any) (content.Unit, error) {
	if unit == nil {
		return nil, fmt.Errorf("%w: nil unit", content.ErrInvalidUnitPayload)
	}

	if patchedID, ok := patch["id"]; ok && patchedID != unit.UnitID() {
		return nil, fmt.Errorf("%w: id", ErrImmutableField)
	}
	if patchedType, ok := patch["type"]; ok && patchedType != string(unit.Kind()) {
		return nil, fmt.Errorf("%w: type", ErrImmutableField)
	}

	encoded, err := content.EncodeUnit(unit)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", content.ErrInvalidUnitPayload, err)
	}

	for key, value := range patch {
		if key == "id" || key == "type" {
			continue
		}
		if value == nil {
			delete(fields, key)
			continue
		}
		fields[key] = value
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", content.ErrInvalidUnitPayload, err)
	}
	return content.DecodeUnit(merged)
}
