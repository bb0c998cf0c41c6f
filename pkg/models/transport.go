package models

import (
	"time"

	"go-optical-measure/internal/analyzer"
	"go-optical-measure/internal/measurement"
	"go-optical-measure/internal/observer"
)

// CalibrationHint describes a reference object in the frame. PixelWidth, when
// the capture client measured it, is in original image pixels.
type CalibrationHint struct {
	ObjectType string  `json:"object_type" binding:"required"`
	RealSizeMm float64 `json:"real_size_mm,omitempty" binding:"omitempty,gt=0"`
	PixelWidth float64 `json:"pixel_width,omitempty" binding:"omitempty,gt=0"`
}

// MeasurementRequest carries exactly one of Image (base64) or ImageURL
type MeasurementRequest struct {
	Image           string           `json:"image,omitempty" binding:"required_without=ImageURL,excluded_with=ImageURL"`
	ImageURL        string           `json:"image_url,omitempty" binding:"omitempty,url"`
	CalibrationHint *CalibrationHint `json:"calibration_hint,omitempty"`
	MeasurementType string           `json:"measurement_type,omitempty" binding:"omitempty,measurement_type"`
}

// MeasurementResponse is the flat measurement record plus request metadata
type MeasurementResponse struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`
	Source            string    `json:"source"`
	ImageURL          string    `json:"image_url,omitempty"`

	measurement.Result

	// Warnings are human-readable forms of Issues
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MeasurementTypesResponse lists what the service can measure
type MeasurementTypesResponse struct {
	Types              []string `json:"types"`
	CalibrationObjects []string `json:"calibration_objects"`
}

// HealthResponse reports service readiness
type HealthResponse struct {
	Status    string    `json:"status"`
	Strategy  string    `json:"landmark_strategy"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsResponse reports request counters and worker pool usage
type StatsResponse struct {
	Measurements observer.Metrics   `json:"measurements"`
	WorkerPool   analyzer.PoolStats `json:"worker_pool"`
}
