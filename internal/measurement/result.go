package measurement

import (
	"slices"

	"go-optical-measure/internal/geometry"
)

// Field names used by PrimaryField and Defaulted
const (
	FieldPupillaryDistance = "pupillary_distance"
	FieldMonocularPD       = "monocular_pd"
	FieldOpticalCenter     = "optical_center"
	FieldSegmentHeight     = "segment_height"
	FieldFaceWidth         = "face_width"
	FieldNoseBridgeWidth   = "nose_bridge_width"
	FieldBridgeWidth       = "bridge_width"
	FieldTempleLength      = "temple_length"
	FieldPantoscopicTilt   = "pantoscopic_tilt"
	FieldWrapAngle         = "wrap_angle"
	FieldVertexDistance    = "vertex_distance"
	FieldMmPerPixel        = "mm_per_pixel"
)

// Result is the flat measurement record. Lengths are millimetres, angles degrees.
// Sides are image-space: left is the eye with the smaller x.
type Result struct {
	MeasurementType Type   `json:"measurement_type"`
	PrimaryField    string `json:"primary_field"`

	PupillaryDistance   float64 `json:"pupillary_distance"`
	MonocularPDLeft     float64 `json:"monocular_pd_left"`
	MonocularPDRight    float64 `json:"monocular_pd_right"`
	OpticalCenterLeftX  float64 `json:"optical_center_left_x"`
	OpticalCenterLeftY  float64 `json:"optical_center_left_y"`
	OpticalCenterRightX float64 `json:"optical_center_right_x"`
	OpticalCenterRightY float64 `json:"optical_center_right_y"`
	SegmentHeightLeft   float64 `json:"segment_height_left"`
	SegmentHeightRight  float64 `json:"segment_height_right"`
	FaceWidth           float64 `json:"face_width"`
	FaceHeight          float64 `json:"face_height"`
	NoseBridgeWidth     float64 `json:"nose_bridge_width"`
	BridgeWidth         float64 `json:"bridge_width"`
	TempleLength        float64 `json:"temple_length"`
	PantoscopicTilt     float64 `json:"pantoscopic_tilt"`
	WrapAngle           float64 `json:"wrap_angle"`
	VertexDistance      float64 `json:"vertex_distance"`

	MeasurementQuality      float64 `json:"measurement_quality"`
	FaceDetectionConfidence float64 `json:"face_detection_confidence"`
	LightingCondition       string  `json:"lighting_condition"`

	MmPerPixel             float64 `json:"mm_per_pixel"`
	CalibrationMode        string  `json:"calibration_mode"`
	CalibrationApproximate bool    `json:"calibration_approximate"`
	LandmarkStrategy       string  `json:"landmark_strategy"`

	// Defaulted lists estimate fields that fell back to their declared default
	Defaulted []string `json:"defaulted,omitempty"`
	Issues    []string `json:"issues,omitempty"`
}

// IsDefaulted reports whether field fell back to its default
func (r Result) IsDefaulted(field string) bool {
	return slices.Contains(r.Defaulted, field)
}

// withEstimate stores an estimate and keeps Defaulted in step. The slice is
// copied so results sharing a backing array never observe each other's edits.
func (r Result) withEstimate(field string, e geometry.Estimate) Result {
	switch field {
	case FieldBridgeWidth:
		r.BridgeWidth = e.Value
	case FieldTempleLength:
		r.TempleLength = e.Value
	case FieldPantoscopicTilt:
		r.PantoscopicTilt = e.Value
	case FieldWrapAngle:
		r.WrapAngle = e.Value
	case FieldVertexDistance:
		r.VertexDistance = e.Value
	default:
		return r
	}

	defaulted := slices.DeleteFunc(slices.Clone(r.Defaulted), func(f string) bool { return f == field })
	if e.Defaulted {
		defaulted = append(defaulted, field)
		slices.Sort(defaulted)
	}
	if len(defaulted) == 0 {
		defaulted = nil
	}
	r.Defaulted = defaulted
	return r
}
