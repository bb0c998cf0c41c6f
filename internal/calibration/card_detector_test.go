package calibration

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-optical-measure/internal/analyzer"
)

func newTestDetector(t *testing.T) *CardDetector {
	t.Helper()
	metrics := analyzer.NewMetricsCalculator(4)
	t.Cleanup(metrics.Close)
	return NewCardDetector(metrics, DefaultCardDetectorOptions())
}

func TestCardDetectorRecoversExactWidth(t *testing.T) {
	d := newTestDetector(t)
	aspect := Catalogue[ObjectCreditCard].Aspect

	tests := []struct {
		name   string
		x0, y0 int
		w, h   int
	}{
		{"centred", 100, 80, 200, 126},
		{"offset", 37, 51, 301, 190},
		{"small", 220, 200, 64, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := d.Detect(cardFrame(t, 420, 320, tt.x0, tt.y0, tt.w, tt.h), aspect)
			require.True(t, det.Found, "confidence %.3f", det.Confidence)
			assert.Equal(t, float64(tt.w), det.PixelWidth)
			assert.Equal(t, tt.w, det.Rect.Dx())
			assert.Equal(t, tt.h, det.Rect.Dy())
			assert.Equal(t, image.Pt(tt.x0-1, tt.y0-1), det.Rect.Min)
			assert.Greater(t, det.Confidence, 0.95)
		})
	}
}

func TestCardDetectorAspectLowersConfidence(t *testing.T) {
	d := newTestDetector(t)
	aspect := Catalogue[ObjectCreditCard].Aspect

	matched := d.Detect(cardFrame(t, 400, 300, 100, 80, 200, 126), aspect)
	square := d.Detect(cardFrame(t, 400, 300, 100, 60, 160, 160), aspect)

	assert.Equal(t, 160.0, square.PixelWidth)
	assert.Less(t, square.Confidence, matched.Confidence)

	// no shape check when the aspect is unknown
	free := d.Detect(cardFrame(t, 400, 300, 100, 60, 160, 160), 0)
	assert.Greater(t, free.Confidence, square.Confidence)
}

func TestCardDetectorNothingToFind(t *testing.T) {
	d := newTestDetector(t)

	det := d.Detect(blankFrame(t, 300, 200, 0), Catalogue[ObjectCreditCard].Aspect)
	assert.False(t, det.Found)
	assert.Zero(t, det.PixelWidth)

	tiny := d.Detect(blankFrame(t, 8, 8, 0), 0)
	assert.False(t, tiny.Found)
}

// outlineGradient builds Sobel responses for a rectangle whose top and bottom
// edges are complete while the left and right edges cover only sideRows rows
func outlineGradient(w, h int, r image.Rectangle, sideRows int) *analyzer.Gradient {
	g := &analyzer.Gradient{Width: w, Height: h, GX: make([]float64, w*h), GY: make([]float64, w*h)}
	for x := r.Min.X; x <= r.Max.X; x++ {
		g.GY[r.Min.Y*w+x] = 500
		g.GY[r.Max.Y*w+x] = 500
	}
	for y := r.Min.Y + 2; y < r.Min.Y+2+sideRows; y++ {
		g.GX[y*w+r.Min.X] = 500
		g.GX[y*w+r.Max.X] = 500
	}
	return g
}

func TestCardDetectorNeedsEverySide(t *testing.T) {
	d := newTestDetector(t)
	aspect := Catalogue[ObjectCreditCard].Aspect
	rect := image.Rect(10, 10, 90, 60)

	full := d.detect(outlineGradient(100, 80, rect, 48), aspect)
	require.True(t, full.Found, "confidence %.3f", full.Confidence)
	assert.Equal(t, rect, full.Rect)

	// 16 of 49 rows on each vertical side: the blended confidence clears the
	// bar on the strong horizontal sides alone
	weak := d.detect(outlineGradient(100, 80, rect, 16), aspect)
	assert.Equal(t, rect, weak.Rect)
	assert.GreaterOrEqual(t, weak.Confidence, DefaultCardMinConfidence)
	assert.False(t, weak.Found)
}

func TestEdgePairPlateau(t *testing.T) {
	counts := make([]int, 40)
	counts[9], counts[10] = 50, 50
	counts[29], counts[30] = 50, 50

	a, b, ok := edgePair(counts, 5)
	require.True(t, ok)
	assert.Equal(t, 9, a)
	assert.Equal(t, 29, b)
}
