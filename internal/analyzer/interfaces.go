package analyzer

import "image"

// MetricsCalculator computes the frame statistics shared by calibration, detection and quality
type MetricsCalculator interface {
	// CalculateLighting returns mean luminance and contrast on a 0..1 scale
	CalculateLighting(img image.Image) LightingStats

	// CalculateGradient returns Sobel responses for every interior pixel
	CalculateGradient(gray *image.Gray) *Gradient

	// Stats exposes the underlying worker pool counters
	Stats() PoolStats

	// Close releases the worker pool
	Close()
}
