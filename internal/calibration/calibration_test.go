package calibration

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-optical-measure/internal/analyzer"
	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/raster"
)

// cardFrame draws a bright w x h card at (x0, y0) on a dark background
func cardFrame(t *testing.T, frameW, frameH, x0, y0, w, h int) *raster.Image {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			c := color.RGBA{60, 60, 60, 255}
			if x >= x0 && x < x0+w && y >= y0 && y < y0+h {
				c = color.RGBA{220, 220, 220, 255}
			}
			src.SetRGBA(x, y, c)
		}
	}
	img, err := raster.Prepare(src, 0)
	require.NoError(t, err)
	return img
}

func blankFrame(t *testing.T, w, h int, scaleTo int) *raster.Image {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	img, err := raster.Prepare(src, scaleTo)
	require.NoError(t, err)
	return img
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	metrics := analyzer.NewMetricsCalculator(2)
	t.Cleanup(metrics.Close)
	return NewResolver(DefaultDPI, NewCardDetector(metrics, DefaultCardDetectorOptions()))
}

func TestReferenceNormalize(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		want    float64
		wantErr bool
	}{
		{"catalogue card", Reference{ObjectType: "credit_card"}, 85.6, false},
		{"catalogue is case insensitive", Reference{ObjectType: " Coin_Euro_1 "}, 23.25, false},
		{"ruler", Reference{ObjectType: "ruler_10mm"}, 10, false},
		{"explicit size wins", Reference{ObjectType: "credit_card", RealSizeMm: 54}, 54, false},
		{"unknown with size", Reference{ObjectType: "sticker", RealSizeMm: 30}, 30, false},
		{"unknown without size", Reference{ObjectType: "sticker"}, 0, true},
		{"negative size", Reference{ObjectType: "credit_card", RealSizeMm: -1}, 0, true},
		{"infinite size", Reference{ObjectType: "credit_card", RealSizeMm: math.Inf(1)}, 0, true},
		{"nan size", Reference{ObjectType: "credit_card", RealSizeMm: math.NaN()}, 0, true},
		{"infinite pixel width", Reference{ObjectType: "credit_card", PixelWidth: math.Inf(1)}, 0, true},
		{"negative pixel width", Reference{ObjectType: "credit_card", PixelWidth: -300}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ref.Normalize()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.ErrorKindInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.RealSizeMm)
		})
	}
}

func TestResolveDefault(t *testing.T) {
	r := newTestResolver(t)

	cal, err := r.Resolve(blankFrame(t, 400, 300, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.2646, cal.MmPerPixel, 1e-4)
	assert.Equal(t, ModeDefault, cal.Mode)
	assert.True(t, cal.Approximate)
	assert.False(t, cal.Grounded())

	// a frame downsampled by half covers twice the millimetres per pixel
	half, err := r.Resolve(blankFrame(t, 800, 600, 400), nil)
	require.NoError(t, err)
	assert.InDelta(t, 2*cal.MmPerPixel, half.MmPerPixel, 1e-12)
}

func TestResolveConfiguredDPI(t *testing.T) {
	r := NewResolver(300, nil)
	cal, err := r.Resolve(blankFrame(t, 10, 10, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, 25.4/300, cal.MmPerPixel, 1e-12)
}

func TestResolveMeasuredReference(t *testing.T) {
	r := newTestResolver(t)

	cal, err := r.Resolve(blankFrame(t, 400, 300, 0), &Reference{ObjectType: "credit_card", RealSizeMm: 85.6, PixelWidth: 324})
	require.NoError(t, err)
	assert.Equal(t, ModeReference, cal.Mode)
	assert.True(t, cal.Grounded())
	assert.Equal(t, 1.0, cal.Confidence)
	assert.InDelta(t, 0.2642, cal.MmPerPixel, 1e-4)
	assert.InDelta(t, 79.3, 300*cal.MmPerPixel, 0.05)

	// round trip: the reference width maps back onto its real size
	assert.InDelta(t, 85.6, cal.PixelWidth*cal.MmPerPixel, 1e-9)
}

func TestResolveMeasuredReferenceOnScaledFrame(t *testing.T) {
	r := newTestResolver(t)

	cal, err := r.Resolve(blankFrame(t, 2000, 1000, 1000), &Reference{ObjectType: "credit_card", PixelWidth: 648})
	require.NoError(t, err)
	// 648 original pixels are 324 prepared pixels
	assert.InDelta(t, 85.6/324, cal.MmPerPixel, 1e-12)
	assert.InDelta(t, 324, cal.PixelWidth, 1e-9)
}

func TestResolveRejectsUnusableRatio(t *testing.T) {
	r := newTestResolver(t)
	frame := blankFrame(t, 400, 300, 0)

	tests := []struct {
		name string
		ref  Reference
		kind apperrors.ErrorKind
	}{
		{"infinite pixel width", Reference{ObjectType: "credit_card", PixelWidth: math.Inf(1)}, apperrors.ErrorKindInput},
		{"ratio overflows", Reference{ObjectType: "sticker", RealSizeMm: 1e308, PixelWidth: 1e-10}, apperrors.ErrorKindCalibration},
		{"ratio underflows", Reference{ObjectType: "sticker", RealSizeMm: 1e-320, PixelWidth: 1e300}, apperrors.ErrorKindCalibration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := r.Resolve(frame, &tt.ref)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, tt.kind), "got %v", err)
			assert.Zero(t, cal.MmPerPixel)
		})
	}
}

func TestResolveDetectsReference(t *testing.T) {
	r := newTestResolver(t)

	cal, err := r.Resolve(cardFrame(t, 400, 300, 100, 80, 200, 126), &Reference{ObjectType: "credit_card"})
	require.NoError(t, err)
	assert.Equal(t, ModeDetected, cal.Mode)
	assert.InDelta(t, 85.6/200, cal.MmPerPixel, 1e-12)
	assert.GreaterOrEqual(t, cal.Confidence, DefaultCardMinConfidence)
}

func TestResolveUnmeasurableReferenceFails(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(blankFrame(t, 400, 300, 0), &Reference{ObjectType: "credit_card"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorKindCalibration))

	_, err = NewResolver(0, nil).Resolve(blankFrame(t, 40, 30, 0), &Reference{ObjectType: "credit_card"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorKindCalibration))
}

func TestDetectOrDefault(t *testing.T) {
	r := newTestResolver(t)

	cal, err := r.DetectOrDefault(blankFrame(t, 400, 300, 0))
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, cal.Mode)

	cal, err = r.DetectOrDefault(cardFrame(t, 400, 300, 100, 80, 200, 126))
	require.NoError(t, err)
	assert.Equal(t, ModeDetected, cal.Mode)
	assert.Equal(t, ObjectCreditCard, cal.ObjectType)
	assert.InDelta(t, 85.6/200, cal.MmPerPixel, 1e-12)
}

func TestKnownObjects(t *testing.T) {
	assert.Equal(t, []string{"coin_euro_1", "credit_card", "id_card", "ruler_10mm"}, KnownObjects())
}
