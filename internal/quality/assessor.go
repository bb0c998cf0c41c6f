// Package quality turns detection confidence, image statistics and calibration
// provenance into a single measurement quality score.
package quality

import (
	"math"

	"go-optical-measure/internal/analyzer"
	"go-optical-measure/internal/calibration"
	"go-optical-measure/internal/geometry"
	"go-optical-measure/internal/landmark"
)

// Lighting is a coarse lighting bucket
type Lighting string

const (
	LightingGood Lighting = "good"
	LightingFair Lighting = "fair"
	LightingPoor Lighting = "poor"
)

// Lighting thresholds on normalised luminance and its standard deviation
const (
	GoodLuminanceMin = 0.30
	GoodLuminanceMax = 0.80
	GoodContrastMin  = 0.10

	PoorLuminanceMin = 0.15
	PoorLuminanceMax = 0.92
	PoorContrastMin  = 0.04
)

// Score weights and penalties
const (
	confidenceWeight  = 0.5
	lightingWeight    = 0.2
	calibrationWeight = 0.3

	// defaultCalibrationScore sits below the lowest grounded score of 0.5
	defaultCalibrationScore = 0.15

	smallSidePx       = 240
	smallPenalty      = 0.6
	mediumSidePx      = 480
	mediumPenalty     = 0.85
	outOfRangePenalty = 0.5
)

// Signals are the inputs to an assessment
type Signals struct {
	Confidence  float64
	Strategy    landmark.Strategy
	Lighting    analyzer.LightingStats
	Calibration calibration.Calibration
	ImageWidth  int
	ImageHeight int
	// PDMm is the measured pupillary distance. Anything outside the
	// plausible envelope, zero included, is penalised.
	PDMm float64
}

// Report is the outcome of an assessment. All scores are in [0, 1].
type Report struct {
	MeasurementQuality      float64  `json:"measurement_quality"`
	FaceDetectionConfidence float64  `json:"face_detection_confidence"`
	LightingCondition       Lighting `json:"lighting_condition"`
	Luminance               float64  `json:"luminance"`
	Contrast                float64  `json:"contrast"`
	ResolutionPenalty       float64  `json:"resolution_penalty"`
}

// Assessor scores measurements
type Assessor struct{}

// NewAssessor creates an assessor
func NewAssessor() *Assessor {
	return &Assessor{}
}

// Assess combines the signals into a report
func (a *Assessor) Assess(s Signals) Report {
	confidence := DetectionConfidence(s.Confidence, s.Strategy)
	lighting := ClassifyLighting(s.Lighting)
	resolution := ResolutionPenalty(s.ImageWidth, s.ImageHeight)

	score := confidenceWeight*confidence +
		lightingWeight*lightingScore(lighting) +
		calibrationWeight*CalibrationScore(s.Calibration)
	score *= resolution
	if !geometry.WithinPDEnvelope(s.PDMm) {
		score *= outOfRangePenalty
	}

	return Report{
		MeasurementQuality:      clamp01(score),
		FaceDetectionConfidence: confidence,
		LightingCondition:       lighting,
		Luminance:               s.Lighting.Luminance,
		Contrast:                s.Lighting.Contrast,
		ResolutionPenalty:       resolution,
	}
}

// DetectionConfidence passes model scores through and caps heuristic ones
func DetectionConfidence(confidence float64, strategy landmark.Strategy) float64 {
	confidence = clamp01(confidence)
	if strategy == landmark.StrategyHeuristic {
		confidence = math.Min(confidence, landmark.HeuristicConfidenceCeiling)
	}
	return confidence
}

// ClassifyLighting buckets frame lighting
func ClassifyLighting(stats analyzer.LightingStats) Lighting {
	lum, contrast := stats.Luminance, stats.Contrast
	switch {
	case lum < PoorLuminanceMin || lum > PoorLuminanceMax || contrast < PoorContrastMin:
		return LightingPoor
	case lum >= GoodLuminanceMin && lum <= GoodLuminanceMax && contrast >= GoodContrastMin:
		return LightingGood
	default:
		return LightingFair
	}
}

// CalibrationScore rates how a ratio was obtained
func CalibrationScore(c calibration.Calibration) float64 {
	if !c.Grounded() {
		return defaultCalibrationScore
	}
	return 0.5 + 0.5*clamp01(c.Confidence)
}

// ResolutionPenalty is a multiplier for small frames
func ResolutionPenalty(width, height int) float64 {
	side := min(width, height)
	switch {
	case side < smallSidePx:
		return smallPenalty
	case side < mediumSidePx:
		return mediumPenalty
	default:
		return 1
	}
}

func lightingScore(l Lighting) float64 {
	switch l {
	case LightingGood:
		return 1
	case LightingFair:
		return 0.6
	default:
		return 0.2
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
