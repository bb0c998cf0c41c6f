// Package landmark locates facial landmarks in a prepared frame.
//
// Two strategies sit behind Provider: a trained keypoint model served over HTTP
// and a skin-colour heuristic. Both emit the same point layout.
package landmark

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang/geo/r2"

	"go-optical-measure/internal/geometry"
	"go-optical-measure/internal/raster"
)

// ErrNoFace is returned, possibly wrapped, when no usable face is found
var ErrNoFace = errors.New("no face found")

// Strategy names a landmark detection strategy
type Strategy string

const (
	StrategyModel     Strategy = "model"
	StrategyHeuristic Strategy = "heuristic"
)

// ParseStrategy maps a configuration value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyModel, StrategyHeuristic:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown landmark strategy %q", s)
	}
}

// Minimum point counts for a usable set
const (
	MinEyePoints  = 2
	MinNosePoints = 9
	MinJawPoints  = 3
)

// Set holds named landmark collections in prepared-image pixel space.
//
// LeftEye is the eye with the smaller x coordinate. Nose index 0 is the bridge
// top, 3 the tip, 6 the subnasale, 4 and 8 the nostril wings. Jaw runs left to right.
type Set struct {
	LeftEye    []r2.Point
	RightEye   []r2.Point
	Nose       []r2.Point
	Jaw        []r2.Point
	Confidence float64
	Strategy   Strategy
}

// Validate checks the point counts. The error wraps ErrNoFace.
func (s *Set) Validate() error {
	switch {
	case len(s.LeftEye) < MinEyePoints:
		return fmt.Errorf("%w: left eye has %d points, need %d", ErrNoFace, len(s.LeftEye), MinEyePoints)
	case len(s.RightEye) < MinEyePoints:
		return fmt.Errorf("%w: right eye has %d points, need %d", ErrNoFace, len(s.RightEye), MinEyePoints)
	case len(s.Nose) < MinNosePoints:
		return fmt.Errorf("%w: nose has %d points, need %d", ErrNoFace, len(s.Nose), MinNosePoints)
	case len(s.Jaw) < MinJawPoints:
		return fmt.Errorf("%w: jaw has %d points, need %d", ErrNoFace, len(s.Jaw), MinJawPoints)
	}
	return nil
}

// Orient swaps the eyes and reverses the jaw when they arrive mirrored
func (s *Set) Orient() {
	if geometry.PupilCenter(s.LeftEye).X > geometry.PupilCenter(s.RightEye).X {
		s.LeftEye, s.RightEye = s.RightEye, s.LeftEye
	}
	if n := len(s.Jaw); n > 1 && s.Jaw[0].X > s.Jaw[n-1].X {
		slices.Reverse(s.Jaw)
	}
}

// Pupils returns the left and right pupil centres
func (s *Set) Pupils() (left, right r2.Point) {
	return geometry.PupilCenter(s.LeftEye), geometry.PupilCenter(s.RightEye)
}

// Provider detects landmarks in a prepared frame.
// A failed detection returns an error satisfying errors.Is(err, ErrNoFace), never an empty set.
type Provider interface {
	Detect(ctx context.Context, img *raster.Image) (*Set, error)
	Strategy() Strategy
}

// Loader is implemented by providers that need one-time initialization
type Loader interface {
	Load(ctx context.Context) error
}
