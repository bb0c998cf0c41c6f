// Package geometry holds the pure measurement formulas. Inputs are pixel-space
// points and a millimetres-per-pixel ratio; outputs are millimetres or degrees.
package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// Physiological envelope for total pupillary distance
const (
	PDMinMm = 40.0
	PDMaxMm = 80.0
)

// Offset is a signed displacement in millimetres; positive Y points up
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PupilCenter returns the coordinate-wise mean of points. Coordinates are
// summed in sorted order so the result does not depend on input order.
// An empty slice yields the zero point.
func PupilCenter(points []r2.Point) r2.Point {
	if len(points) == 0 {
		return r2.Point{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	sort.Float64s(xs)
	sort.Float64s(ys)

	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	n := float64(len(points))
	return r2.Point{X: sx / n, Y: sy / n}
}

// DistanceMm is the euclidean pixel distance between a and b scaled by ratio
func DistanceMm(a, b r2.Point, ratio float64) float64 {
	return a.Sub(b).Norm() * ratio
}

// PupillaryDistance is the distance between the two pupil centres
func PupillaryDistance(left, right r2.Point, ratio float64) float64 {
	return DistanceMm(left, right, ratio)
}

// WithinPDEnvelope reports whether pd lies in the physiological envelope
func WithinPDEnvelope(pd float64) bool {
	return pd >= PDMinMm && pd <= PDMaxMm
}

// MonocularPD is the distance from pupil to the facial midline, a vertical line
// through bridge. The midline point shares the pupil's row.
func MonocularPD(pupil, bridge r2.Point, ratio float64) float64 {
	return DistanceMm(pupil, r2.Point{X: bridge.X, Y: pupil.Y}, ratio)
}

// OpticalCenter is the pupil displacement from the image centre with the vertical axis inverted
func OpticalCenter(pupil r2.Point, width, height int, ratio float64) Offset {
	cx, cy := float64(width)/2, float64(height)/2
	return Offset{
		X: (pupil.X - cx) * ratio,
		Y: (cy - pupil.Y) * ratio,
	}
}

// SegmentHeight is the vertical distance from pupil to the lowest jaw landmark
func SegmentHeight(pupil r2.Point, jaw []r2.Point, ratio float64) float64 {
	if len(jaw) == 0 {
		return 0
	}
	lowest := jaw[0].Y
	for _, p := range jaw[1:] {
		lowest = math.Max(lowest, p.Y)
	}
	return math.Abs(lowest-pupil.Y) * ratio
}

// FaceWidth is the distance between the jaw outline extremes
func FaceWidth(jaw []r2.Point, ratio float64) float64 {
	if len(jaw) < 2 {
		return 0
	}
	return DistanceMm(jaw[0], jaw[len(jaw)-1], ratio)
}

// FaceHeight is the vertical span between the topmost and bottom jaw points
func FaceHeight(jaw []r2.Point, ratio float64) float64 {
	if len(jaw) == 0 {
		return 0
	}
	bounds := r2.RectFromPoints(jaw...)
	return bounds.Y.Length() * ratio
}

// Nose landmark indices
const (
	NoseBridgeTop = 0
	NoseTip       = 3
	NoseLeftWing  = 4
	NoseSubnasale = 6
	NoseRightWing = 8
)

// NoseBridgeWidth is the distance between the two nostril wing landmarks
func NoseBridgeWidth(nose []r2.Point, ratio float64) float64 {
	if len(nose) <= NoseRightWing {
		return 0
	}
	return DistanceMm(nose[NoseLeftWing], nose[NoseRightWing], ratio)
}

// MidlineX is the x coordinate of the facial midline, taken from the nose bridge top
func MidlineX(nose []r2.Point) float64 {
	if len(nose) == 0 {
		return 0
	}
	return nose[NoseBridgeTop].X
}

// BridgeLineX averages the bridge landmarks from bridge top down to the tip
func BridgeLineX(nose []r2.Point) float64 {
	n := min(len(nose), NoseTip+1)
	if n == 0 {
		return 0
	}
	return PupilCenter(nose[:n]).X
}

// InnerCorners returns the eye points closest to each other horizontally:
// the rightmost point of the left eye and the leftmost point of the right eye.
func InnerCorners(leftEye, rightEye []r2.Point) (r2.Point, r2.Point) {
	return extremeX(leftEye, true), extremeX(rightEye, false)
}

// OuterCorners returns the leftmost point of the left eye and the rightmost point of the right eye
func OuterCorners(leftEye, rightEye []r2.Point) (r2.Point, r2.Point) {
	return extremeX(leftEye, false), extremeX(rightEye, true)
}

func extremeX(points []r2.Point, rightmost bool) r2.Point {
	if len(points) == 0 {
		return r2.Point{}
	}
	best := points[0]
	for _, p := range points[1:] {
		if (rightmost && p.X > best.X) || (!rightmost && p.X < best.X) {
			best = p
		}
	}
	return best
}
