package landmark

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"

	"go-optical-measure/internal/raster"
)

// HeuristicConfidenceCeiling caps the confidence the heuristic may report
const HeuristicConfidenceCeiling = 0.7

// HeuristicOptions tunes the skin-colour heuristic
type HeuristicOptions struct {
	// Chroma window for skin in YCbCr space
	CbMin, CbMax uint8
	CrMin, CrMax uint8
	// Skin must be brighter than this luma
	YMin uint8

	// A column or row belongs to the face box when its skin count reaches
	// this fraction of the strongest column or row
	ProjectionFraction float64
	// Face box must be at least this skin-dense
	MinCoverage float64
	// Face box must be at least this many pixels on each side
	MinFaceSide int

	// Eye band as fractions of face height, measured from the box top
	EyeBandTop, EyeBandBottom float64
	// Horizontal margin excluded on both sides of the box, as a fraction of its width
	EyeMargin float64
	// Eye pixels are darker than this fraction of the mean skin luma
	DarkFactor float64
}

// DefaultHeuristicOptions returns the tuned defaults
func DefaultHeuristicOptions() HeuristicOptions {
	return HeuristicOptions{
		CbMin: 77, CbMax: 127,
		CrMin: 133, CrMax: 173,
		YMin:               40,
		ProjectionFraction: 0.3,
		MinCoverage:        0.35,
		MinFaceSide:        24,
		EyeBandTop:         0.2,
		EyeBandBottom:      0.55,
		EyeMargin:          0.1,
		DarkFactor:         0.6,
	}
}

// HeuristicProvider approximates landmarks from skin-colour region analysis.
// Results are deterministic for identical frames.
type HeuristicProvider struct {
	opts HeuristicOptions
}

// NewHeuristicProvider creates a heuristic provider
func NewHeuristicProvider(opts HeuristicOptions) *HeuristicProvider {
	return &HeuristicProvider{opts: opts}
}

// Strategy returns StrategyHeuristic
func (p *HeuristicProvider) Strategy() Strategy { return StrategyHeuristic }

type skinFrame struct {
	width, height int
	skin          []bool
	luma          []uint8
}

type eyeCluster struct {
	center     r2.Point
	halfWidth  float64
	halfHeight float64
	meanLuma   float64
}

// Detect runs skin segmentation, projects it onto rows and columns for the face
// box and finds one dark cluster per half of the eye band
func (p *HeuristicProvider) Detect(ctx context.Context, img *raster.Image) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := p.segment(img.RGBA)

	box, ok := p.faceBox(f)
	if !ok {
		return nil, fmt.Errorf("%w: no skin region", ErrNoFace)
	}
	if box.Dx() < p.opts.MinFaceSide || box.Dy() < p.opts.MinFaceSide {
		return nil, fmt.Errorf("%w: skin region %dx%d is too small", ErrNoFace, box.Dx(), box.Dy())
	}

	skinCount, skinLuma := 0, 0.0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if i := y*f.width + x; f.skin[i] {
				skinCount++
				skinLuma += float64(f.luma[i])
			}
		}
	}
	coverage := float64(skinCount) / float64(box.Dx()*box.Dy())
	if coverage < p.opts.MinCoverage {
		return nil, fmt.Errorf("%w: skin coverage %.2f below %.2f", ErrNoFace, coverage, p.opts.MinCoverage)
	}
	meanSkin := skinLuma / float64(skinCount)

	bandTop := box.Min.Y + int(float64(box.Dy())*p.opts.EyeBandTop)
	bandBottom := box.Min.Y + int(float64(box.Dy())*p.opts.EyeBandBottom)
	margin := int(float64(box.Dx()) * p.opts.EyeMargin)
	mid := (box.Min.X + box.Max.X) / 2

	left, okL := p.eyeCluster(f, image.Rect(box.Min.X+margin, bandTop, mid, bandBottom), meanSkin)
	right, okR := p.eyeCluster(f, image.Rect(mid, bandTop, box.Max.X-margin, bandBottom), meanSkin)
	if !okL || !okR {
		return nil, fmt.Errorf("%w: eyes not found in the skin region", ErrNoFace)
	}

	contrast := 1 - (left.meanLuma+right.meanLuma)/(2*meanSkin)
	confidence := min(0.5*coverage+0.5*max(contrast, 0), HeuristicConfidenceCeiling)

	set := &Set{
		LeftEye:    eyeOutline(left),
		RightEye:   eyeOutline(right),
		Nose:       noseOutline(left.center, right.center, box),
		Jaw:        jawOutline(left.center, right.center, box),
		Confidence: confidence,
		Strategy:   StrategyHeuristic,
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// segment classifies every pixel as skin or not and keeps its luma
func (p *HeuristicProvider) segment(rgba *image.RGBA) skinFrame {
	b := rgba.Bounds()
	f := skinFrame{
		width:  b.Dx(),
		height: b.Dy(),
		skin:   make([]bool, b.Dx()*b.Dy()),
		luma:   make([]uint8, b.Dx()*b.Dy()),
	}
	for y := 0; y < f.height; y++ {
		off := rgba.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < f.width; x++ {
			px := rgba.Pix[off+4*x : off+4*x+3]
			yy, cb, cr := color.RGBToYCbCr(px[0], px[1], px[2])
			i := y*f.width + x
			f.luma[i] = yy
			f.skin[i] = yy > p.opts.YMin &&
				cb >= p.opts.CbMin && cb <= p.opts.CbMax &&
				cr >= p.opts.CrMin && cr <= p.opts.CrMax
		}
	}
	return f
}

// faceBox bounds the columns, then the rows within them, whose skin counts
// reach the projection fraction of the strongest one
func (p *HeuristicProvider) faceBox(f skinFrame) (image.Rectangle, bool) {
	cols := make([]int, f.width)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			if f.skin[y*f.width+x] {
				cols[x]++
			}
		}
	}
	x0, x1, ok := projectionSpan(cols, p.opts.ProjectionFraction)
	if !ok {
		return image.Rectangle{}, false
	}

	rows := make([]int, f.height)
	for y := 0; y < f.height; y++ {
		for x := x0; x <= x1; x++ {
			if f.skin[y*f.width+x] {
				rows[y]++
			}
		}
	}
	y0, y1, ok := projectionSpan(rows, p.opts.ProjectionFraction)
	if !ok {
		return image.Rectangle{}, false
	}
	return image.Rect(x0, y0, x1+1, y1+1), true
}

// projectionSpan returns the first and last index whose count reaches fraction of the peak
func projectionSpan(counts []int, fraction float64) (int, int, bool) {
	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}
	if peak == 0 {
		return 0, 0, false
	}
	threshold := int(math.Ceil(float64(peak) * fraction))
	first, last := -1, -1
	for i, c := range counts {
		if c >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last, true
}

// eyeCluster takes the centroid and extent of dark non-skin pixels in region
func (p *HeuristicProvider) eyeCluster(f skinFrame, region image.Rectangle, meanSkin float64) (eyeCluster, bool) {
	if region.Empty() {
		return eyeCluster{}, false
	}
	limit := meanSkin * p.opts.DarkFactor
	minPixels := max(6, region.Dx()*region.Dy()/1000)

	var sx, sy, sl float64
	n := 0
	minX, maxX := math.MaxInt, math.MinInt
	minY, maxY := math.MaxInt, math.MinInt
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			i := y*f.width + x
			if f.skin[i] || float64(f.luma[i]) >= limit {
				continue
			}
			sx += float64(x)
			sy += float64(y)
			sl += float64(f.luma[i])
			n++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if n < minPixels {
		return eyeCluster{}, false
	}
	return eyeCluster{
		center:     r2.Point{X: sx / float64(n), Y: sy / float64(n)},
		halfWidth:  max(float64(maxX-minX+1)/2, 2),
		halfHeight: max(float64(maxY-minY+1)/2, 1),
		meanLuma:   sl / float64(n),
	}, true
}

// eyeOutline emits six points around the cluster whose mean is its centre
func eyeOutline(c eyeCluster) []r2.Point {
	cx, cy, w, h := c.center.X, c.center.Y, c.halfWidth, c.halfHeight
	return []r2.Point{
		{X: cx - w, Y: cy},
		{X: cx - w/2, Y: cy - h},
		{X: cx + w/2, Y: cy - h},
		{X: cx + w, Y: cy},
		{X: cx + w/2, Y: cy + h},
		{X: cx - w/2, Y: cy + h},
	}
}

// noseOutline synthesises the nine nose points: four down the bridge from eye
// level to the tip, then five across the base from left wing to right wing
func noseOutline(left, right r2.Point, box image.Rectangle) []r2.Point {
	mx := (left.X + right.X) / 2
	eyeY := (left.Y + right.Y) / 2
	h := float64(box.Dy())
	tipY := float64(box.Min.Y) + 0.72*h
	baseY := tipY + 0.04*h
	halfBase := 0.12 * float64(box.Dx())

	nose := make([]r2.Point, 0, MinNosePoints)
	for i := 0; i < 4; i++ {
		nose = append(nose, r2.Point{X: mx, Y: eyeY + (tipY-eyeY)*float64(i)/3})
	}
	for i := 0; i < 5; i++ {
		nose = append(nose, r2.Point{X: mx - halfBase + halfBase*float64(i)/2, Y: baseY})
	}
	return nose
}

// jawOutline places 17 points on the lower half ellipse spanning the face box,
// from the left extreme through the chin to the right extreme
func jawOutline(left, right r2.Point, box image.Rectangle) []r2.Point {
	cx := float64(box.Min.X+box.Max.X-1) / 2
	cy := (left.Y + right.Y) / 2
	a := float64(box.Dx()-1) / 2
	b := float64(box.Max.Y-1) - cy

	jaw := make([]r2.Point, 17)
	for i := range jaw {
		t := math.Pi * float64(i) / 16
		jaw[i] = r2.Point{X: cx - a*math.Cos(t), Y: cy + b*math.Sin(t)}
	}
	return jaw
}
