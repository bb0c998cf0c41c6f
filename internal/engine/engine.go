// Package engine runs one measurement end to end: prepare the frame, locate
// landmarks, resolve calibration, compute the requested measurements and score them.
package engine

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"go-optical-measure/internal/analyzer"
	"go-optical-measure/internal/calibration"
	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/measurement"
	"go-optical-measure/internal/quality"
	"go-optical-measure/internal/raster"
	"go-optical-measure/pkg/validation"
)

// Engine is safe for concurrent use. Its only shared state is the landmark
// provider and the strip worker pool.
type Engine struct {
	provider   landmark.Provider
	metrics    analyzer.MetricsCalculator
	resolver   *calibration.Resolver
	dispatcher *measurement.Dispatcher
	assessor   *quality.Assessor
	validator  *validation.MeasurementValidator
	opts       Options
}

// New creates an engine around provider
func New(provider landmark.Provider, opts Options) *Engine {
	metrics := analyzer.NewMetricsCalculator(opts.Workers)

	cardOpts := calibration.DefaultCardDetectorOptions()
	if opts.CardMinConfidence > 0 {
		cardOpts.MinConfidence = opts.CardMinConfidence
	}

	return &Engine{
		provider:   provider,
		metrics:    metrics,
		resolver:   calibration.NewResolver(opts.DefaultDPI, calibration.NewCardDetector(metrics, cardOpts)),
		dispatcher: measurement.NewDispatcher(),
		assessor:   quality.NewAssessor(),
		validator:  validation.NewMeasurementValidatorWithThresholds(validation.ThresholdsWithAsymmetry(opts.MaxMonocularAsymmetryMm)),
		opts:       opts,
	}
}

// Strategy returns the landmark strategy in use
func (e *Engine) Strategy() landmark.Strategy {
	return e.provider.Strategy()
}

// MeasureBytes decodes data and measures it
func (e *Engine) MeasureBytes(ctx context.Context, data []byte, ref *calibration.Reference, typ measurement.Type) (*measurement.Result, error) {
	img, _, err := raster.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.Measure(ctx, img, ref, typ)
}

// Measure computes a full measurement record for img. ref, when given, must be
// measurable; an unmeasurable reference is a CalibrationError and is never
// replaced by the default. Detection failures are returned as they occur.
func (e *Engine) Measure(ctx context.Context, img image.Image, ref *calibration.Reference, typ measurement.Type) (*measurement.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("measurement cancelled before it started", err)
	}
	typ, err := measurement.ParseType(string(typ))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	frame, err := raster.Prepare(img, e.opts.MaxDimension)
	if err != nil {
		return nil, err
	}
	lighting := e.metrics.CalculateLighting(frame.RGBA)

	set, err := e.provider.Detect(ctx, frame)
	if err != nil {
		return nil, detectionError(err)
	}

	cal, err := e.calibrate(frame, ref, typ)
	if err != nil {
		return nil, err
	}

	result := e.dispatcher.Compute(measurement.Input{
		Landmarks:   set,
		Calibration: cal,
		ImageWidth:  frame.Width(),
		ImageHeight: frame.Height(),
		Type:        typ,
	})
	result.Issues = e.validator.IssueTypes(e.validator.Validate(result))

	report := e.assessor.Assess(quality.Signals{
		Confidence:  set.Confidence,
		Strategy:    set.Strategy,
		Lighting:    lighting,
		Calibration: cal,
		ImageWidth:  frame.Width(),
		ImageHeight: frame.Height(),
		PDMm:        result.PupillaryDistance,
	})
	result.MeasurementQuality = report.MeasurementQuality
	result.FaceDetectionConfidence = report.FaceDetectionConfidence
	result.LightingCondition = string(report.LightingCondition)

	logger.WithRequestID(ctx).WithFields(logrus.Fields{
		"measurement_type": typ,
		"strategy":         set.Strategy,
		"calibration_mode": cal.Mode,
		"scale":            frame.Scale,
		"resized":          frame.Resized(),
		"quality":          result.MeasurementQuality,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Debug("Measurement computed")

	return &result, nil
}

func (e *Engine) calibrate(frame *raster.Image, ref *calibration.Reference, typ measurement.Type) (calibration.Calibration, error) {
	if ref == nil && typ == measurement.TypeCalibrationObject {
		return e.resolver.DetectOrDefault(frame)
	}
	return e.resolver.Resolve(frame, ref)
}

func detectionError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, landmark.ErrNoFace):
		return apperrors.NewDetectionError("no face found in image", err)
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("landmark detection did not finish in time", err)
	default:
		return apperrors.NewInternalError("landmark detection failed", err)
	}
}

// Stats reports strip worker pool usage
func (e *Engine) Stats() analyzer.PoolStats {
	return e.metrics.Stats()
}

// Close releases the worker pool
func (e *Engine) Close() {
	e.metrics.Close()
}
