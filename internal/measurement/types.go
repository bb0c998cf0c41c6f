package measurement

import (
	"fmt"
	"strings"

	apperrors "go-optical-measure/internal/errors"
)

// Type selects which quantities a measurement emphasises
type Type string

const (
	TypeDefault           Type = "default"
	TypePD                Type = "pd"
	TypeMonocularPD       Type = "monocular_pd"
	TypeOpticalCenter     Type = "optical_center"
	TypeCalibrationObject Type = "calibration_object"
	TypeSegmentHeight     Type = "segment_height"
	TypeBridgeWidth       Type = "bridge_width"
	TypeTempleLength      Type = "temple_length"
	TypePantoscopicTilt   Type = "pantoscopic_tilt"
	TypeWrapAngle         Type = "wrap_angle"
)

var allTypes = []Type{
	TypeDefault,
	TypePD,
	TypeMonocularPD,
	TypeOpticalCenter,
	TypeCalibrationObject,
	TypeSegmentHeight,
	TypeBridgeWidth,
	TypeTempleLength,
	TypePantoscopicTilt,
	TypeWrapAngle,
}

// Types returns every supported measurement type
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is a supported type
func (t Type) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType maps a request value to a Type. An empty value selects TypeDefault.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeDefault, nil
	}
	t := Type(s)
	if !t.Valid() {
		return "", apperrors.NewInputError(
			"unknown measurement type",
			fmt.Errorf("%q is not one of %v", s, allTypes),
		)
	}
	return t, nil
}
