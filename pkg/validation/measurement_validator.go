package validation

import (
	"math"

	"go-optical-measure/internal/calibration"
	"go-optical-measure/internal/geometry"
	"go-optical-measure/internal/measurement"
)

// Issue types reported by MeasurementValidator
const (
	IssuePDOutOfRange       = "pd_out_of_range"
	IssueMonocularAsymmetry = "monocular_asymmetry"
	IssueDefaultCalibration = "default_calibration"
	IssueDefaultedEstimate  = "defaulted_estimate"
)

// MeasurementThresholds defines the plausibility bounds for a result
type MeasurementThresholds struct {
	MinPDMm float64
	MaxPDMm float64

	// MaxMonocularAsymmetryMm is the largest left/right monocular PD difference
	// accepted without a warning
	MaxMonocularAsymmetryMm float64
}

// DefaultMeasurementThresholds returns the physiological defaults
func DefaultMeasurementThresholds() MeasurementThresholds {
	return MeasurementThresholds{
		MinPDMm:                 geometry.PDMinMm,
		MaxPDMm:                 geometry.PDMaxMm,
		MaxMonocularAsymmetryMm: 3.0,
	}
}

// ThresholdsWithAsymmetry returns the defaults with the monocular gap replaced;
// mm <= 0 keeps the default gap
func ThresholdsWithAsymmetry(mm float64) MeasurementThresholds {
	t := DefaultMeasurementThresholds()
	if mm > 0 {
		t.MaxMonocularAsymmetryMm = mm
	}
	return t
}

// Issue is a finding about a measurement. Issues never reject a result.
type Issue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "warning", "info"
	Field       string  `json:"field,omitempty"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// MeasurementValidator flags results that need manual review
type MeasurementValidator struct {
	thresholds MeasurementThresholds
}

// NewMeasurementValidator creates a validator with default thresholds
func NewMeasurementValidator() *MeasurementValidator {
	return &MeasurementValidator{thresholds: DefaultMeasurementThresholds()}
}

// NewMeasurementValidatorWithThresholds creates a validator with custom thresholds
func NewMeasurementValidatorWithThresholds(thresholds MeasurementThresholds) *MeasurementValidator {
	return &MeasurementValidator{thresholds: thresholds}
}

// Validate inspects r. Values are reported as measured and never adjusted.
func (v *MeasurementValidator) Validate(r measurement.Result) []Issue {
	var issues []Issue

	if r.PupillaryDistance < v.thresholds.MinPDMm {
		issues = append(issues, Issue{
			Type:        IssuePDOutOfRange,
			Message:     "Pupillary distance is below the physiological range. Check the calibration reference.",
			Severity:    "warning",
			Field:       measurement.FieldPupillaryDistance,
			ActualValue: r.PupillaryDistance,
			Threshold:   v.thresholds.MinPDMm,
		})
	} else if r.PupillaryDistance > v.thresholds.MaxPDMm {
		issues = append(issues, Issue{
			Type:        IssuePDOutOfRange,
			Message:     "Pupillary distance is above the physiological range. Check the calibration reference.",
			Severity:    "warning",
			Field:       measurement.FieldPupillaryDistance,
			ActualValue: r.PupillaryDistance,
			Threshold:   v.thresholds.MaxPDMm,
		})
	}

	if diff := math.Abs(r.MonocularPDLeft - r.MonocularPDRight); diff > v.thresholds.MaxMonocularAsymmetryMm {
		issues = append(issues, Issue{
			Type:        IssueMonocularAsymmetry,
			Message:     "Monocular distances differ noticeably. Make sure the face is centred and looking at the camera.",
			Severity:    "warning",
			Field:       measurement.FieldMonocularPD,
			ActualValue: diff,
			Threshold:   v.thresholds.MaxMonocularAsymmetryMm,
		})
	}

	if r.CalibrationMode == string(calibration.ModeDefault) {
		issues = append(issues, Issue{
			Type:     IssueDefaultCalibration,
			Message:  "No reference object was used. Millimetre values are approximate.",
			Severity: "warning",
			Field:    measurement.FieldMmPerPixel,
		})
	}

	for _, field := range r.Defaulted {
		if field == measurement.FieldVertexDistance {
			// a frontal image never carries depth
			continue
		}
		issues = append(issues, Issue{
			Type:     IssueDefaultedEstimate,
			Message:  "Estimate could not be derived from the image and uses the standard value.",
			Severity: "info",
			Field:    field,
		})
	}

	return issues
}

// IssueTypes returns the distinct issue types in order of first appearance
func (v *MeasurementValidator) IssueTypes(issues []Issue) []string {
	var types []string
	seen := make(map[string]bool, len(issues))
	for _, issue := range issues {
		if seen[issue.Type] {
			continue
		}
		seen[issue.Type] = true
		types = append(types, issue.Type)
	}
	return types
}

// ConvertIssuesToMessages converts issues to plain messages
func (v *MeasurementValidator) ConvertIssuesToMessages(issues []Issue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasWarnings reports whether any issue is more severe than informational
func (v *MeasurementValidator) HasWarnings(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == "warning" {
			return true
		}
	}
	return false
}
