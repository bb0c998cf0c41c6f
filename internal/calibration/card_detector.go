package calibration

import (
	"image"
	"math"
	"slices"

	"go-optical-measure/internal/analyzer"
	"go-optical-measure/internal/raster"
)

// DefaultCardMinConfidence is the confidence a detection needs to be used
const DefaultCardMinConfidence = 0.6

// CardDetectorOptions tunes rectangle detection
type CardDetectorOptions struct {
	MinConfidence float64
	// EdgeThreshold is the Sobel response a pixel needs to count as an edge
	EdgeThreshold float64
	// MinSidePx is the smallest accepted side length
	MinSidePx int
	// MinSideSupport is the edge fraction every one of the four sides needs;
	// a strong pair of sides cannot carry two missing ones
	MinSideSupport float64
}

// DefaultCardDetectorOptions returns the tuned defaults
func DefaultCardDetectorOptions() CardDetectorOptions {
	return CardDetectorOptions{
		MinConfidence:  DefaultCardMinConfidence,
		EdgeThreshold:  120,
		MinSidePx:      16,
		MinSideSupport: 0.5,
	}
}

// Detection is the best axis-aligned rectangle candidate in a frame.
// Rect spans the edge rows and columns, so PixelWidth equals Rect.Dx().
type Detection struct {
	Rect       image.Rectangle
	PixelWidth float64
	Confidence float64
	Found      bool
}

// CardDetector finds a rectangular reference object from edge projections
type CardDetector struct {
	metrics analyzer.MetricsCalculator
	opts    CardDetectorOptions
}

// NewCardDetector creates a detector sharing the given metrics calculator
func NewCardDetector(metrics analyzer.MetricsCalculator, opts CardDetectorOptions) *CardDetector {
	return &CardDetector{metrics: metrics, opts: opts}
}

// MinConfidence returns the acceptance threshold
func (d *CardDetector) MinConfidence() float64 { return d.opts.MinConfidence }

// Detect projects horizontal edges onto rows to find the top and bottom sides,
// then vertical edges between them onto columns for the left and right sides.
// Confidence blends perimeter edge support with agreement to aspect (width
// over height); aspect 0 skips the shape check. A candidate with any side
// below MinSideSupport is never Found.
func (d *CardDetector) Detect(img *raster.Image, aspect float64) Detection {
	return d.detect(d.metrics.CalculateGradient(analyzer.ToGray(img.RGBA)), aspect)
}

func (d *CardDetector) detect(grad *analyzer.Gradient, aspect float64) Detection {
	w, h := grad.Width, grad.Height
	minSide := max(d.opts.MinSidePx, 4)
	if w < minSide+2 || h < minSide+2 {
		return Detection{}
	}
	thr := d.opts.EdgeThreshold

	rows := make([]int, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if _, gy := grad.At(x, y); math.Abs(gy) >= thr {
				rows[y]++
			}
		}
	}
	top, bottom, ok := edgePair(rows, minSide)
	if !ok {
		return Detection{}
	}

	cols := make([]int, w)
	for y := top + 2; y < bottom; y++ {
		for x := 0; x < w; x++ {
			if gx, _ := grad.At(x, y); math.Abs(gx) >= thr {
				cols[x]++
			}
		}
	}
	left, right, ok := edgePair(cols, minSide)
	if !ok {
		return Detection{}
	}

	rect := image.Rect(left, top, right, bottom)
	sides := sideSupport(grad, rect, thr)
	support := (sides[0] + sides[1] + sides[2] + sides[3]) / 4
	agreement := 1.0
	if aspect > 0 {
		measured := float64(rect.Dx()) / float64(rect.Dy())
		agreement = math.Max(0, 1-math.Abs(measured-aspect)/aspect)
	}
	confidence := 0.6*support + 0.4*agreement

	return Detection{
		Rect:       rect,
		PixelWidth: float64(rect.Dx()),
		Confidence: confidence,
		Found:      confidence >= d.opts.MinConfidence && slices.Min(sides[:]) >= d.opts.MinSideSupport,
	}
}

// edgePair returns the strongest index and the strongest index at least minGap
// away from it, in ascending order. Ties resolve to the lower index, which puts
// both sides of a two-pixel Sobel plateau on the same side of the edge.
func edgePair(counts []int, minGap int) (int, int, bool) {
	first := argmax(counts, func(int) bool { return true })
	if first < 0 || counts[first] < minGap {
		return 0, 0, false
	}
	second := argmax(counts, func(i int) bool { return abs(i-first) >= minGap })
	if second < 0 || counts[second] < minGap {
		return 0, 0, false
	}
	return min(first, second), max(first, second), true
}

func argmax(counts []int, allowed func(int) bool) int {
	best := -1
	for i, c := range counts {
		if c > 0 && allowed(i) && (best < 0 || c > counts[best]) {
			best = i
		}
	}
	return best
}

// sideSupport is the fraction of edge pixels along the top, bottom, left and right sides
func sideSupport(grad *analyzer.Gradient, r image.Rectangle, thr float64) [4]float64 {
	var topHits, bottomHits, leftHits, rightHits int
	for x := r.Min.X + 1; x < r.Max.X; x++ {
		if _, gy := grad.At(x, r.Min.Y); math.Abs(gy) >= thr {
			topHits++
		}
		if _, gy := grad.At(x, r.Max.Y); math.Abs(gy) >= thr {
			bottomHits++
		}
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		if gx, _ := grad.At(r.Min.X, y); math.Abs(gx) >= thr {
			leftHits++
		}
		if gx, _ := grad.At(r.Max.X, y); math.Abs(gx) >= thr {
			rightHits++
		}
	}
	horizontal := float64(r.Dx() - 1)
	vertical := float64(r.Dy() - 1)
	return [4]float64{
		float64(topHits) / horizontal,
		float64(bottomHits) / horizontal,
		float64(leftHits) / vertical,
		float64(rightHits) / vertical,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
