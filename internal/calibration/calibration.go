// Package calibration converts a physical reference, or the nominal capture
// density, into a millimetres-per-pixel ratio for a prepared frame.
package calibration

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/raster"
)

// Mode records how a ratio was obtained
type Mode string

const (
	// ModeReference uses a pixel width measured by the capture client
	ModeReference Mode = "reference"
	// ModeDetected uses a reference object located in the frame
	ModeDetected Mode = "detected"
	// ModeDefault assumes a nominal capture density
	ModeDefault Mode = "default"
)

// DefaultDPI is the nominal capture density used without a reference
const DefaultDPI = 96.0

// MmPerInch converts inches to millimetres
const MmPerInch = 25.4

// Reference describes a physical object of known size in the frame.
// PixelWidth, when set, is the object's width in original capture pixels.
type Reference struct {
	ObjectType string  `json:"object_type"`
	RealSizeMm float64 `json:"real_size_mm"`
	PixelWidth float64 `json:"pixel_width,omitempty"`
}

// Calibration is a resolved ratio. MmPerPixel is always > 0.
type Calibration struct {
	MmPerPixel  float64 `json:"mm_per_pixel"`
	Mode        Mode    `json:"mode"`
	Confidence  float64 `json:"confidence"`
	ObjectType  string  `json:"object_type,omitempty"`
	PixelWidth  float64 `json:"pixel_width,omitempty"`
	Approximate bool    `json:"approximate"`
}

// Grounded reports whether the ratio comes from a physical reference
func (c Calibration) Grounded() bool {
	return c.Mode == ModeReference || c.Mode == ModeDetected
}

// ObjectSpec is a catalogue entry for a common reference object
type ObjectSpec struct {
	WidthMm float64
	// Aspect is width over height; zero when the object has no fixed outline
	Aspect float64
}

// Catalogue of known reference objects
var Catalogue = map[string]ObjectSpec{
	"credit_card": {WidthMm: 85.6, Aspect: 85.6 / 53.98},
	"id_card":     {WidthMm: 85.6, Aspect: 85.6 / 53.98},
	"ruler_10mm":  {WidthMm: 10},
	"coin_euro_1": {WidthMm: 23.25, Aspect: 1},
}

// ObjectCreditCard is the reference assumed when detection runs without a hint
const ObjectCreditCard = "credit_card"

// KnownObjects lists the catalogue keys in sorted order
func KnownObjects() []string {
	out := make([]string, 0, len(Catalogue))
	for k := range Catalogue {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize fills the size from the catalogue when the reference carries none.
// Sizes must be finite and non-negative; zero means unset.
func (r Reference) Normalize() (Reference, error) {
	r.ObjectType = strings.ToLower(strings.TrimSpace(r.ObjectType))
	if !usable(r.RealSizeMm) {
		return r, apperrors.NewInputError("real_size_mm must be a finite positive number",
			fmt.Errorf("got %v", r.RealSizeMm))
	}
	if !usable(r.PixelWidth) {
		return r, apperrors.NewInputError("pixel_width must be a finite positive number",
			fmt.Errorf("got %v", r.PixelWidth))
	}
	if r.RealSizeMm > 0 {
		return r, nil
	}
	spec, ok := Catalogue[r.ObjectType]
	if !ok {
		return r, apperrors.NewInputError(
			"calibration reference needs a size",
			fmt.Errorf("unknown object type %q and no real_size_mm", r.ObjectType),
		)
	}
	r.RealSizeMm = spec.WidthMm
	return r, nil
}

// Resolver resolves calibrations for prepared frames
type Resolver struct {
	defaultDPI float64
	detector   *CardDetector
}

// NewResolver creates a resolver. defaultDPI <= 0 uses DefaultDPI.
func NewResolver(defaultDPI float64, detector *CardDetector) *Resolver {
	if defaultDPI <= 0 {
		defaultDPI = DefaultDPI
	}
	return &Resolver{defaultDPI: defaultDPI, detector: detector}
}

// Default returns the nominal-density calibration for img
func (r *Resolver) Default(img *raster.Image) Calibration {
	return Calibration{
		MmPerPixel:  MmPerInch / r.defaultDPI / img.Scale,
		Mode:        ModeDefault,
		Approximate: true,
	}
}

// Resolve grounds the ratio on ref when given, otherwise returns the default.
// A reference that cannot be measured is a CalibrationError; it is never ignored.
func (r *Resolver) Resolve(img *raster.Image, ref *Reference) (Calibration, error) {
	if ref == nil {
		return r.Default(img), nil
	}
	norm, err := ref.Normalize()
	if err != nil {
		return Calibration{}, err
	}

	if norm.PixelWidth > 0 {
		return checked(Calibration{
			MmPerPixel: norm.RealSizeMm / (norm.PixelWidth * img.Scale),
			Mode:       ModeReference,
			Confidence: 1,
			ObjectType: norm.ObjectType,
			PixelWidth: norm.PixelWidth * img.Scale,
		})
	}

	det, err := r.detect(img, norm.ObjectType)
	if err != nil {
		return Calibration{}, err
	}
	if !det.Found {
		return Calibration{}, apperrors.NewCalibrationError(
			"calibration reference could not be located in the image",
			fmt.Errorf("best candidate confidence %.2f below %.2f", det.Confidence, r.detector.MinConfidence()),
		)
	}
	return checked(detected(norm, det))
}

// DetectOrDefault looks for a credit card when no hint was supplied and falls
// back to the default when none is found with enough confidence
func (r *Resolver) DetectOrDefault(img *raster.Image) (Calibration, error) {
	det, err := r.detect(img, ObjectCreditCard)
	if err != nil {
		return Calibration{}, err
	}
	if !det.Found {
		return r.Default(img), nil
	}
	return checked(detected(Reference{ObjectType: ObjectCreditCard, RealSizeMm: Catalogue[ObjectCreditCard].WidthMm}, det))
}

func (r *Resolver) detect(img *raster.Image, objectType string) (Detection, error) {
	if r.detector == nil {
		return Detection{}, apperrors.NewCalibrationError("in-image reference detection is not available", nil)
	}
	return r.detector.Detect(img, Catalogue[objectType].Aspect), nil
}

func detected(ref Reference, det Detection) Calibration {
	return Calibration{
		MmPerPixel: ref.RealSizeMm / det.PixelWidth,
		Mode:       ModeDetected,
		Confidence: det.Confidence,
		ObjectType: ref.ObjectType,
		PixelWidth: det.PixelWidth,
	}
}

// checked returns a CalibrationError unless the ratio is finite and positive
func checked(c Calibration) (Calibration, error) {
	if math.IsNaN(c.MmPerPixel) || math.IsInf(c.MmPerPixel, 0) || c.MmPerPixel <= 0 {
		return Calibration{}, apperrors.NewCalibrationError(
			"calibration produced an unusable scale",
			fmt.Errorf("mm per pixel %v from %s reference", c.MmPerPixel, c.Mode),
		)
	}
	return c, nil
}

func usable(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
