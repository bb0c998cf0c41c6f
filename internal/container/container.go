package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-optical-measure/internal/config"
	"go-optical-measure/internal/engine"
	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/factory"
	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/observer"
	"go-optical-measure/internal/repository"
	"go-optical-measure/internal/service"
	"go-optical-measure/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config             *config.Config
	provider           landmark.Provider
	engine             *engine.Engine
	imageRepository    repository.ImageRepository
	publisher          *observer.EventPublisher
	metrics            *observer.MetricsObserver
	measurementService service.MeasurementService
	handler            http.Handler
}

// NewContainer builds the dependency graph. Providers that need a model are
// loaded here so a broken model fails startup instead of the first request.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	provider, err := components.CreateProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark provider: %w", err)
	}
	if loader, ok := provider.(landmark.Loader); ok {
		if err := loader.Load(ctx); err != nil {
			return nil, apperrors.NewInitializationError("failed to load landmark model", err)
		}
	}

	imageRepository, err := components.CreateImageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to create image repository: %w", err)
	}

	eng := engine.New(provider, engine.DefaultOptions().
		WithMaxDimension(cfg.MaxImageDimension).
		WithDefaultDPI(cfg.DefaultDPI).
		WithCardConfidence(cfg.CardMinConfidence).
		WithMonocularAsymmetry(cfg.MaxMonocularAsymmetryMm))

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	measurementService := service.NewMeasurementService(imageRepository, eng, publisher, metrics, service.Options{
		FetchTimeout:   cfg.ImageFetchTimeout,
		MeasureTimeout: cfg.MeasureTimeout,

		MaxMonocularAsymmetryMm: cfg.MaxMonocularAsymmetryMm,
	})

	handler := transport.NewHandler(measurementService, transport.Options{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	logger.WithFields(logrus.Fields{
		"landmark_strategy": provider.Strategy(),
		"azure_storage":     cfg.AzureEnabled(),
		"max_dimension":     cfg.MaxImageDimension,
	}).Info("Container initialized")

	return &Container{
		config:             cfg,
		provider:           provider,
		engine:             eng,
		imageRepository:    imageRepository,
		publisher:          publisher,
		metrics:            metrics,
		measurementService: measurementService,
		handler:            handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the measurement service
func (c *Container) Service() service.MeasurementService {
	return c.measurementService
}

// Close drains pending events and stops the engine workers
func (c *Container) Close() {
	c.publisher.Flush()
	c.engine.Close()
}
