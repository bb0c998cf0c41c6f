package engine

import (
	"go-optical-measure/internal/calibration"
	"go-optical-measure/internal/raster"
)

// Options configures an Engine
type Options struct {
	// MaxDimension caps the longest side of the prepared frame; 0 disables the cap
	MaxDimension int

	// DefaultDPI is the nominal capture density used without a reference
	DefaultDPI float64

	// CardMinConfidence is the detection confidence required for an in-image card
	CardMinConfidence float64

	// Workers sizes the strip worker pool; 0 uses the CPU count
	Workers int

	// MaxMonocularAsymmetryMm overrides the review threshold for the
	// left/right monocular PD gap; 0 keeps the default
	MaxMonocularAsymmetryMm float64
}

// DefaultOptions returns options suited to clinical captures
func DefaultOptions() Options {
	return Options{
		MaxDimension:      raster.DefaultMaxDimension,
		DefaultDPI:        calibration.DefaultDPI,
		CardMinConfidence: calibration.DefaultCardMinConfidence,
		Workers:           0,
	}
}

// FastOptions trades precision for latency with a smaller working frame
func FastOptions() Options {
	opts := DefaultOptions()
	opts.MaxDimension = 640
	return opts
}

// WithMaxDimension sets the working frame cap
func (opts Options) WithMaxDimension(px int) Options {
	opts.MaxDimension = px
	return opts
}

// WithDefaultDPI sets the nominal capture density
func (opts Options) WithDefaultDPI(dpi float64) Options {
	opts.DefaultDPI = dpi
	return opts
}

// WithCardConfidence sets the minimum in-image card confidence
func (opts Options) WithCardConfidence(confidence float64) Options {
	opts.CardMinConfidence = confidence
	return opts
}

// WithWorkers sets the strip worker count
func (opts Options) WithWorkers(workers int) Options {
	opts.Workers = workers
	return opts
}

// WithMonocularAsymmetry sets the monocular PD gap flagged for review
func (opts Options) WithMonocularAsymmetry(mm float64) Options {
	opts.MaxMonocularAsymmetryMm = mm
	return opts
}
