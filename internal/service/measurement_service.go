package service

import (
	"context"
	"encoding/base64"
	"image"
	"strings"
	"time"

	"go-optical-measure/internal/analyzer"
	"go-optical-measure/internal/calibration"
	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/measurement"
	"go-optical-measure/internal/observer"
	"go-optical-measure/internal/repository"
	"go-optical-measure/pkg/models"
	"go-optical-measure/pkg/validation"
)

// Image sources recorded on responses and events
const (
	SourceInline = "inline"
	SourceURL    = "url"
	SourceUpload = "upload"
)

// Measurer is the measurement engine as seen by the service
type Measurer interface {
	Measure(ctx context.Context, img image.Image, ref *calibration.Reference, typ measurement.Type) (*measurement.Result, error)
	MeasureBytes(ctx context.Context, data []byte, ref *calibration.Reference, typ measurement.Type) (*measurement.Result, error)
	Strategy() landmark.Strategy
	Stats() analyzer.PoolStats
}

// MeasurementService resolves request payloads and runs measurements
type MeasurementService interface {
	// Measure handles a JSON request carrying a base64 image or an image URL
	Measure(ctx context.Context, req models.MeasurementRequest) (*models.MeasurementResponse, error)

	// MeasureUpload handles raw uploaded image bytes
	MeasureUpload(ctx context.Context, data []byte, hint *models.CalibrationHint, measurementType string) (*models.MeasurementResponse, error)

	MeasurementTypes() models.MeasurementTypesResponse
	Stats() models.StatsResponse
	Strategy() string
}

// Options bounds the time spent per request stage
type Options struct {
	FetchTimeout   time.Duration
	MeasureTimeout time.Duration

	// MaxMonocularAsymmetryMm is the monocular PD gap reported as a warning; 0 keeps the default
	MaxMonocularAsymmetryMm float64
}

type measurementService struct {
	imageRepo repository.ImageRepository
	measurer  Measurer
	publisher observer.Subject
	metrics   *observer.MetricsObserver
	validator *validation.MeasurementValidator
	opts      Options
}

// NewMeasurementService creates a measurement service. metrics may be nil.
func NewMeasurementService(
	imageRepository repository.ImageRepository,
	measurer Measurer,
	publisher observer.Subject,
	metrics *observer.MetricsObserver,
	opts Options,
) MeasurementService {
	if metrics == nil {
		metrics = observer.NewMetricsObserver()
	}
	return &measurementService{
		imageRepo: imageRepository,
		measurer:  measurer,
		publisher: publisher,
		metrics:   metrics,
		validator: validation.NewMeasurementValidatorWithThresholds(validation.ThresholdsWithAsymmetry(opts.MaxMonocularAsymmetryMm)),
		opts:      opts,
	}
}

func (s *measurementService) Measure(ctx context.Context, req models.MeasurementRequest) (*models.MeasurementResponse, error) {
	switch {
	case req.Image != "" && req.ImageURL != "":
		return nil, apperrors.NewValidationError("provide either image or image_url, not both", nil)
	case req.ImageURL != "":
		return s.run(ctx, SourceURL, req.ImageURL, nil, req.CalibrationHint, req.MeasurementType)
	case req.Image != "":
		data, err := decodeBase64Image(req.Image)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, SourceInline, "", data, req.CalibrationHint, req.MeasurementType)
	default:
		return nil, apperrors.NewInputError("image payload is missing", nil)
	}
}

func (s *measurementService) MeasureUpload(ctx context.Context, data []byte, hint *models.CalibrationHint, measurementType string) (*models.MeasurementResponse, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInputError("image payload is missing", nil)
	}
	return s.run(ctx, SourceUpload, "", data, hint, measurementType)
}

func (s *measurementService) run(ctx context.Context, source, imageURL string, data []byte, hint *models.CalibrationHint, rawType string) (*models.MeasurementResponse, error) {
	start := time.Now()
	requestID := logger.RequestID(ctx)

	typ, err := measurement.ParseType(rawType)
	if err != nil {
		return nil, err
	}
	event := observer.MeasurementEvent{
		RequestID:       requestID,
		Source:          source,
		ImageURL:        imageURL,
		MeasurementType: string(typ),
	}
	s.publish(ctx, event, observer.MeasurementStarted, nil, 0)

	fail := func(err error) (*models.MeasurementResponse, error) {
		s.publish(ctx, event, observer.MeasurementFailed, err, time.Since(start))
		return nil, err
	}

	if source == SourceURL {
		data, err = s.fetch(ctx, event, imageURL)
		if err != nil {
			return fail(err)
		}
	}

	measureCtx, cancel := context.WithTimeout(ctx, s.opts.measureTimeout())
	defer cancel()
	result, err := s.measurer.MeasureBytes(measureCtx, data, referenceFromHint(hint), typ)
	if err != nil {
		return fail(err)
	}

	elapsed := time.Since(start)
	s.publish(ctx, event, observer.MeasurementCompleted, nil, elapsed)

	issues := s.validator.Validate(*result)
	if s.validator.HasWarnings(issues) {
		logger.WithRequestID(ctx).WithField("issues", s.validator.IssueTypes(issues)).
			Warn("Measurement needs manual review")
	}

	return &models.MeasurementResponse{
		RequestID:         requestID,
		Timestamp:         start.UTC(),
		ProcessingTimeSec: elapsed.Seconds(),
		Source:            source,
		ImageURL:          imageURL,
		Result:            *result,
		Warnings:          s.validator.ConvertIssuesToMessages(issues),
	}, nil
}

func (s *measurementService) fetch(ctx context.Context, event observer.MeasurementEvent, imageURL string) ([]byte, error) {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.fetchTimeout())
	defer cancel()

	data, err := s.imageRepo.FetchImage(fetchCtx, imageURL)
	if err != nil {
		s.publish(ctx, event, observer.ImageFetchFailed, err, time.Since(start))
		return nil, err
	}
	s.publish(ctx, event, observer.ImageFetched, nil, time.Since(start))
	return data, nil
}

func (s *measurementService) publish(ctx context.Context, event observer.MeasurementEvent, typ observer.EventType, err error, elapsed time.Duration) {
	if s.publisher == nil {
		return
	}
	event.EventType = typ
	event.Timestamp = time.Now()
	event.ProcessingTime = elapsed
	event.Success = err == nil && typ != observer.MeasurementStarted
	if err != nil {
		event.ErrorKind = string(apperrors.KindOf(err))
		event.ErrorMessage = err.Error()
	}
	s.publisher.NotifyObservers(ctx, event)
}

func (s *measurementService) MeasurementTypes() models.MeasurementTypesResponse {
	types := measurement.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return models.MeasurementTypesResponse{
		Types:              names,
		CalibrationObjects: calibration.KnownObjects(),
	}
}

func (s *measurementService) Stats() models.StatsResponse {
	return models.StatsResponse{
		Measurements: s.metrics.GetMetrics(),
		WorkerPool:   s.measurer.Stats(),
	}
}

func (s *measurementService) Strategy() string {
	return string(s.measurer.Strategy())
}

func (o Options) fetchTimeout() time.Duration {
	if o.FetchTimeout <= 0 {
		return 15 * time.Second
	}
	return o.FetchTimeout
}

func (o Options) measureTimeout() time.Duration {
	if o.MeasureTimeout <= 0 {
		return 20 * time.Second
	}
	return o.MeasureTimeout
}

func referenceFromHint(hint *models.CalibrationHint) *calibration.Reference {
	if hint == nil {
		return nil
	}
	return &calibration.Reference{
		ObjectType: hint.ObjectType,
		RealSizeMm: hint.RealSizeMm,
		PixelWidth: hint.PixelWidth,
	}
}

// decodeBase64Image accepts plain or data-URL base64, with or without padding
func decodeBase64Image(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, apperrors.NewInputError("image data URL must be base64 encoded", nil)
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, apperrors.NewInputError("image is not valid base64", err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewInputError("image payload is missing", nil)
	}
	return data, nil
}
