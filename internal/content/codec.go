package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidUnitPayload indicates a persisted unit payload that cannot be
// decoded into any variant.
var ErrInvalidUnitPayload = errors.New("content: invalid unit payload")

type unitEnvelope struct {
	Type string `json:"type"`
}

// DecodeUnit parses a persisted unit payload by inspecting its type
// discriminator and decoding into the matching variant struct.
func DecodeUnit(payload []byte) (Unit, error) {
	var envelope unitEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnitPayload, err)
	}

	unitType, err := ParseUnitType(envelope.Type)
	if err != nil {
		return nil, err
	}

	var unit Unit
	switch unitType {
	case UnitTypeHeader:
		unit = &Header{}
	case UnitTypeText:
		unit = &Text{}
	case UnitTypeImage:
		unit = &Image{}
	case UnitTypeVideo:
		unit = &Video{}
	case UnitTypeCode:
		unit = &Code{}
	case UnitTypeMultiFileCode:
		unit = &MultiFileCode{}
	case UnitTypeCTA:
		unit = &CTA{}
	case UnitTypeDivider:
		unit = &Divider{}
	case UnitTypeSpacer:
		unit = &Spacer{}
	case UnitTypeSyllabus:
		unit = &Syllabus{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnitType, envelope.Type)
	}

	if err := json.Unmarshal(payload, unit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnitPayload, err)
	}
	return unit, nil
}

// EncodeUnit serializes a unit into its persisted JSON shape.
func EncodeUnit(unit Unit) ([]byte, error) {
	if unit == nil {
		return nil, fmt.Errorf("%w: nil unit", ErrInvalidUnitPayload)
	}
	return json.Marshal(unit)
}
