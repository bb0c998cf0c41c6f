// Package measurement turns a landmark set and a calibration into a complete
// measurement result for a requested measurement type.
package measurement

import (
	"go-optical-measure/internal/calibration"
	"go-optical-measure/internal/geometry"
	"go-optical-measure/internal/landmark"

	"github.com/golang/geo/r2"
)

// Input is everything a measurement needs. Landmarks must be validated.
type Input struct {
	Landmarks   *landmark.Set
	Calibration calibration.Calibration
	ImageWidth  int
	ImageHeight int
	Type        Type
}

// Refiner adjusts the fields a type emphasises. It must be pure.
type Refiner func(Input, Result) Result

// Dispatcher computes every field through the shared formulas, then applies
// the refiner registered for the requested type
type Dispatcher struct {
	refiners map[Type]Refiner
}

// NewDispatcher creates a dispatcher with the built-in refiners
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		refiners: map[Type]Refiner{
			TypeDefault:           primary(FieldPupillaryDistance),
			TypePD:                primary(FieldPupillaryDistance),
			TypeMonocularPD:       refineMonocularPD,
			TypeOpticalCenter:     primary(FieldOpticalCenter),
			TypeCalibrationObject: primary(FieldMmPerPixel),
			TypeSegmentHeight:     primary(FieldSegmentHeight),
			TypeBridgeWidth:       primary(FieldBridgeWidth),
			TypeTempleLength:      primary(FieldTempleLength),
			TypePantoscopicTilt:   refinePantoscopicTilt,
			TypeWrapAngle:         primary(FieldWrapAngle),
		},
	}
}

// Compute returns a fully populated result. Unknown types are treated as TypeDefault.
func (d *Dispatcher) Compute(in Input) Result {
	if !in.Type.Valid() {
		in.Type = TypeDefault
	}
	r := Base(in)
	return d.refiners[in.Type](in, r)
}

// Base computes every field with the shared formulas
func Base(in Input) Result {
	s := in.Landmarks
	ratio := in.Calibration.MmPerPixel
	lp, rp := s.Pupils()
	mid := r2.Point{X: geometry.MidlineX(s.Nose)}

	lc := geometry.OpticalCenter(lp, in.ImageWidth, in.ImageHeight, ratio)
	rc := geometry.OpticalCenter(rp, in.ImageWidth, in.ImageHeight, ratio)
	faceWidth := geometry.FaceWidth(s.Jaw, ratio)
	outerL, outerR := geometry.OuterCorners(s.LeftEye, s.RightEye)

	r := Result{
		MeasurementType:         in.Type,
		PupillaryDistance:       geometry.PupillaryDistance(lp, rp, ratio),
		MonocularPDLeft:         geometry.MonocularPD(lp, mid, ratio),
		MonocularPDRight:        geometry.MonocularPD(rp, mid, ratio),
		OpticalCenterLeftX:      lc.X,
		OpticalCenterLeftY:      lc.Y,
		OpticalCenterRightX:     rc.X,
		OpticalCenterRightY:     rc.Y,
		SegmentHeightLeft:       geometry.SegmentHeight(lp, s.Jaw, ratio),
		SegmentHeightRight:      geometry.SegmentHeight(rp, s.Jaw, ratio),
		FaceWidth:               faceWidth,
		FaceHeight:              geometry.FaceHeight(s.Jaw, ratio),
		NoseBridgeWidth:         geometry.NoseBridgeWidth(s.Nose, ratio),
		FaceDetectionConfidence: s.Confidence,
		MmPerPixel:              ratio,
		CalibrationMode:         string(in.Calibration.Mode),
		CalibrationApproximate:  in.Calibration.Approximate,
		LandmarkStrategy:        string(s.Strategy),
	}

	r = r.withEstimate(FieldBridgeWidth, geometry.BridgeWidth(s.LeftEye, s.RightEye, ratio))
	r = r.withEstimate(FieldTempleLength, geometry.TempleLength(faceWidth))
	r = r.withEstimate(FieldPantoscopicTilt, geometry.PantoscopicTilt(lp, rp))
	r = r.withEstimate(FieldWrapAngle, geometry.WrapAngle(faceWidth, geometry.DistanceMm(outerL, outerR, ratio)))
	r = r.withEstimate(FieldVertexDistance, geometry.VertexDistance())
	return r
}

func primary(field string) Refiner {
	return func(_ Input, r Result) Result {
		r.PrimaryField = field
		return r
	}
}

// refineMonocularPD takes the midline from the whole bridge line rather than its top point
func refineMonocularPD(in Input, r Result) Result {
	s := in.Landmarks
	ratio := in.Calibration.MmPerPixel
	lp, rp := s.Pupils()
	mid := r2.Point{X: geometry.BridgeLineX(s.Nose)}

	r.MonocularPDLeft = geometry.MonocularPD(lp, mid, ratio)
	r.MonocularPDRight = geometry.MonocularPD(rp, mid, ratio)
	r.PrimaryField = FieldMonocularPD
	return r
}

// refinePantoscopicTilt fits the tilt through every eye point instead of the two pupils
func refinePantoscopicTilt(in Input, r Result) Result {
	s := in.Landmarks
	r = r.withEstimate(FieldPantoscopicTilt, geometry.PantoscopicTiltFit(s.LeftEye, s.RightEye))
	r.PrimaryField = FieldPantoscopicTilt
	return r
}
