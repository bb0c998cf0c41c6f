package geometry

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/stat"
)

// Estimate is a closed-form estimate that may have fallen back to its declared default
type Estimate struct {
	Value     float64
	Defaulted bool
}

// Declared defaults and sane ranges for the frame-fitting estimates.
const (
	DefaultBridgeWidthMm = 18.0
	MinBridgeWidthMm     = 14.0
	MaxBridgeWidthMm     = 24.0

	// BridgeToIntercanthalRatio maps the inner eye corner gap to a frame bridge width.
	BridgeToIntercanthalRatio = 0.6

	DefaultTempleLengthMm = 145.0
	MinTempleLengthMm     = 120.0
	MaxTempleLengthMm     = 160.0

	// TempleToFaceWidthRatio maps face width to temple arm length.
	TempleToFaceWidthRatio = 1.0

	DefaultPantoscopicTiltDeg = 8.0
	MinPantoscopicTiltDeg     = 2.0
	MaxPantoscopicTiltDeg     = 15.0

	// MinTiltBaselinePx is the smallest horizontal eye separation a tilt is computed over.
	MinTiltBaselinePx = 1.0

	DefaultWrapAngleDeg = 5.0
	MinWrapAngleDeg     = 0.0
	MaxWrapAngleDeg     = 25.0

	// DefaultVertexDistanceMm is always used; a frontal image carries no depth.
	DefaultVertexDistanceMm = 12.0
)

// clamped returns value when it is finite and inside [lo, hi], otherwise the default
func clamped(value, lo, hi, def float64) Estimate {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < lo || value > hi {
		return Estimate{Value: def, Defaulted: true}
	}
	return Estimate{Value: value}
}

// BridgeWidth estimates frame bridge width from the inner eye corner gap
func BridgeWidth(leftEye, rightEye []r2.Point, ratio float64) Estimate {
	if len(leftEye) == 0 || len(rightEye) == 0 {
		return Estimate{Value: DefaultBridgeWidthMm, Defaulted: true}
	}
	l, r := InnerCorners(leftEye, rightEye)
	gap := DistanceMm(l, r, ratio)
	return clamped(gap*BridgeToIntercanthalRatio, MinBridgeWidthMm, MaxBridgeWidthMm, DefaultBridgeWidthMm)
}

// TempleLength estimates temple arm length from face width in millimetres
func TempleLength(faceWidthMm float64) Estimate {
	return clamped(faceWidthMm*TempleToFaceWidthRatio, MinTempleLengthMm, MaxTempleLengthMm, DefaultTempleLengthMm)
}

// PantoscopicTilt is atan(|dy| / |dx|) between the pupil centres, in degrees.
// A baseline under MinTiltBaselinePx or a result outside the sane range yields the default.
func PantoscopicTilt(leftPupil, rightPupil r2.Point) Estimate {
	dx := rightPupil.X - leftPupil.X
	dy := rightPupil.Y - leftPupil.Y
	if math.Abs(dx) < MinTiltBaselinePx {
		return Estimate{Value: DefaultPantoscopicTiltDeg, Defaulted: true}
	}
	deg := math.Atan(math.Abs(dy)/math.Abs(dx)) * 180 / math.Pi
	return clamped(deg, MinPantoscopicTiltDeg, MaxPantoscopicTiltDeg, DefaultPantoscopicTiltDeg)
}

// PantoscopicTiltFit fits a line through every eye point and returns the angle
// of its slope. It is less sensitive to a single noisy pupil than PantoscopicTilt.
func PantoscopicTiltFit(leftEye, rightEye []r2.Point) Estimate {
	points := make([]r2.Point, 0, len(leftEye)+len(rightEye))
	points = append(points, leftEye...)
	points = append(points, rightEye...)
	if len(points) < 2 {
		return Estimate{Value: DefaultPantoscopicTiltDeg, Defaulted: true}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	if r2.RectFromPoints(points...).X.Length() < MinTiltBaselinePx {
		return Estimate{Value: DefaultPantoscopicTiltDeg, Defaulted: true}
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	deg := math.Atan(math.Abs(beta)) * 180 / math.Pi
	return clamped(deg, MinPantoscopicTiltDeg, MaxPantoscopicTiltDeg, DefaultPantoscopicTiltDeg)
}

// WrapAngle is atan((faceWidth - outerEyeSpan) / faceWidth) in degrees.
// Both widths must share a unit.
func WrapAngle(faceWidth, outerEyeSpan float64) Estimate {
	if faceWidth <= 0 {
		return Estimate{Value: DefaultWrapAngleDeg, Defaulted: true}
	}
	deg := math.Atan((faceWidth-outerEyeSpan)/faceWidth) * 180 / math.Pi
	return clamped(deg, MinWrapAngleDeg, MaxWrapAngleDeg, DefaultWrapAngleDeg)
}

// VertexDistance always returns the declared default
func VertexDistance() Estimate {
	return Estimate{Value: DefaultVertexDistanceMm, Defaulted: true}
}
