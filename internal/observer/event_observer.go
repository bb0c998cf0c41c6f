package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MeasurementEvent describes one step of a measurement request
type MeasurementEvent struct {
	EventType       EventType              `json:"event_type"`
	Timestamp       time.Time              `json:"timestamp"`
	RequestID       string                 `json:"request_id,omitempty"`
	Source          string                 `json:"source,omitempty"`
	ImageURL        string                 `json:"image_url,omitempty"`
	MeasurementType string                 `json:"measurement_type,omitempty"`
	ProcessingTime  time.Duration          `json:"processing_time"`
	Success         bool                   `json:"success"`
	ErrorKind       string                 `json:"error_kind,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of measurement event
type EventType string

const (
	MeasurementStarted   EventType = "measurement_started"
	MeasurementCompleted EventType = "measurement_completed"
	MeasurementFailed    EventType = "measurement_failed"
	ImageFetched         EventType = "image_fetched"
	ImageFetchFailed     EventType = "image_fetch_failed"
)

// Observer receives measurement events
type Observer interface {
	OnEvent(ctx context.Context, event MeasurementEvent)
	GetObserverName() string
}

// Subject publishes measurement events
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event MeasurementEvent)
}

// LoggingObserver logs measurement events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent logs event at a level matching its type
func (o *LoggingObserver) OnEvent(ctx context.Context, event MeasurementEvent) {
	fields := logrus.Fields{
		"event_type":       event.EventType,
		"request_id":       event.RequestID,
		"source":           event.Source,
		"measurement_type": event.MeasurementType,
		"processing_time":  event.ProcessingTime,
		"success":          event.Success,
	}
	if event.ImageURL != "" {
		fields["image_url"] = event.ImageURL
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_kind"] = event.ErrorKind
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case MeasurementStarted:
		entry.Info("Measurement started")
	case MeasurementCompleted:
		entry.Info("Measurement completed")
	case MeasurementFailed:
		entry.Error("Measurement failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Measurement event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a point-in-time copy of MetricsObserver counters
type Metrics struct {
	TotalMeasurements      int64            `json:"total_measurements"`
	SuccessfulMeasurements int64            `json:"successful_measurements"`
	FailedMeasurements     int64            `json:"failed_measurements"`
	ImageFetchFailures     int64            `json:"image_fetch_failures"`
	ByType                 map[string]int64 `json:"by_type"`
	FailuresByKind         map[string]int64 `json:"failures_by_kind"`
	TotalProcessingTime    time.Duration    `json:"total_processing_time"`
	AvgProcessingTime      time.Duration    `json:"avg_processing_time"`
}

// MetricsObserver counts measurement events
type MetricsObserver struct {
	mu                  sync.RWMutex
	total               int64
	successful          int64
	failed              int64
	fetchFailures       int64
	byType              map[string]int64
	failuresByKind      map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		byType:         make(map[string]int64),
		failuresByKind: make(map[string]int64),
	}
}

// OnEvent updates the counters
func (o *MetricsObserver) OnEvent(ctx context.Context, event MeasurementEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case MeasurementStarted:
		o.total++
		if event.MeasurementType != "" {
			o.byType[event.MeasurementType]++
		}
	case MeasurementCompleted:
		o.successful++
		o.totalProcessingTime += event.ProcessingTime
	case MeasurementFailed:
		o.failed++
		if event.ErrorKind != "" {
			o.failuresByKind[event.ErrorKind]++
		}
	case ImageFetchFailed:
		o.fetchFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a copy of the current counters
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := Metrics{
		TotalMeasurements:      o.total,
		SuccessfulMeasurements: o.successful,
		FailedMeasurements:     o.failed,
		ImageFetchFailures:     o.fetchFailures,
		ByType:                 make(map[string]int64, len(o.byType)),
		FailuresByKind:         make(map[string]int64, len(o.failuresByKind)),
		TotalProcessingTime:    o.totalProcessingTime,
	}
	for k, v := range o.byType {
		m.ByType[k] = v
	}
	for k, v := range o.failuresByKind {
		m.FailuresByKind[k] = v
	}
	if o.successful > 0 {
		m.AvgProcessingTime = o.totalProcessingTime / time.Duration(o.successful)
	}
	return m
}

// EventPublisher fans events out to its observers
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the first observer with the same name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer concurrently. Delivery
// outlives ctx cancellation so a finished request still records its events.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event MeasurementEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush waits for every delivery started so far
func (p *EventPublisher) Flush() {
	p.inflight.Wait()
}
