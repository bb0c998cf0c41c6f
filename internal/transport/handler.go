package transport

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/measurement"
	"go-optical-measure/internal/service"
	"go-optical-measure/pkg/models"
)

// Options configures the HTTP surface
type Options struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	RateLimitRPS       float64
	RateLimitBurst     int
}

var registerValidators sync.Once

// NewHandler builds the gin router for the measurement API
func NewHandler(svc service.MeasurementService, opts Options) http.Handler {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("measurement_type", validMeasurementType)
		}
	})

	r := gin.New()
	r.Use(
		requestID(),
		accessLog(),
		recovery(),
		errorHandler(),
	)

	r.GET("/health", healthCheck(svc))

	api := r.Group("/api/v1")
	api.GET("/measurement-types", measurementTypes(svc))
	api.GET("/stats", stats(svc))

	measure := api.Group("/measure", rateLimit(opts.RateLimitRPS, opts.RateLimitBurst), requestSizeLimiter(opts.MaxRequestBodySize))
	measure.POST("", measureJSON(svc, opts))
	measure.POST("/upload", measureUpload(svc, opts))

	return r
}

func validMeasurementType(fl validator.FieldLevel) bool {
	_, err := measurement.ParseType(fl.Field().String())
	return err == nil
}

func measureJSON(svc service.MeasurementService, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, opts)
		defer cancel()

		var req models.MeasurementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(bindError(err))
			return
		}

		logger.WithRequestID(ctx).WithFields(logrus.Fields{
			"image_url":        req.ImageURL,
			"inline":           req.Image != "",
			"measurement_type": req.MeasurementType,
			"calibrated":       req.CalibrationHint != nil,
		}).Info("Processing measurement request")

		resp, err := svc.Measure(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func measureUpload(svc service.MeasurementService, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, opts)
		defer cancel()

		file, err := c.FormFile("image")
		if err != nil {
			_ = c.Error(bindError(err))
			return
		}
		f, err := file.Open()
		if err != nil {
			_ = c.Error(apperrors.NewInputError("uploaded image could not be read", err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			_ = c.Error(apperrors.NewInputError("uploaded image could not be read", err))
			return
		}

		hint, err := formCalibrationHint(c)
		if err != nil {
			_ = c.Error(err)
			return
		}
		typ := c.PostForm("measurement_type")

		logger.WithRequestID(ctx).WithFields(logrus.Fields{
			"filename":         file.Filename,
			"size":             file.Size,
			"measurement_type": typ,
			"calibrated":       hint != nil,
		}).Info("Processing measurement upload")

		resp, err := svc.MeasureUpload(ctx, data, hint, typ)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// formCalibrationHint reads the optional reference object fields of a multipart form
func formCalibrationHint(c *gin.Context) (*models.CalibrationHint, error) {
	objectType := strings.TrimSpace(c.PostForm("object_type"))
	realSize := c.PostForm("real_size_mm")
	pixelWidth := c.PostForm("pixel_width")
	if objectType == "" {
		if realSize != "" || pixelWidth != "" {
			return nil, apperrors.NewValidationError("object_type is required with a calibration reference", nil)
		}
		return nil, nil
	}

	hint := &models.CalibrationHint{ObjectType: objectType}
	var err error
	if hint.RealSizeMm, err = formFloat("real_size_mm", realSize); err != nil {
		return nil, err
	}
	if hint.PixelWidth, err = formFloat("pixel_width", pixelWidth); err != nil {
		return nil, err
	}
	return hint, nil
}

func formFloat(name, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, apperrors.NewValidationError(name+" must be a finite positive number", err)
	}
	return f, nil
}

func measurementTypes(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.MeasurementTypes())
	}
}

func stats(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Stats())
	}
}

func healthCheck(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "available",
			Strategy:  svc.Strategy(),
			Timestamp: time.Now().UTC(),
		})
	}
}

func requestContext(c *gin.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), opts.RequestTimeout)
}

// bindError classifies request decoding failures
func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		appErr := apperrors.NewInputError("request body too large", err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	if errors.Is(err, http.ErrMissingFile) {
		return apperrors.NewInputError("image file is required", err)
	}
	return apperrors.NewValidationError("invalid request format", err)
}

// toAppError maps any handler error onto an AppError
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("request timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("request cancelled", err)
	default:
		return apperrors.NewInternalError("request processing failed", err)
	}
}

func abortWithError(c *gin.Context, err error) {
	appErr := toAppError(err)
	entry := logger.WithRequestID(c.Request.Context()).WithError(err).WithFields(logrus.Fields{
		"status_code": appErr.StatusCode,
		"kind":        appErr.Kind,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(appErr.StatusCode, models.ErrorResponse{
		Kind:      string(appErr.Kind),
		Error:     http.StatusText(appErr.StatusCode),
		Message:   appErr.Message,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}
