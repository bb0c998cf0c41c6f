package landmark

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-optical-measure/internal/raster"
)

var (
	skinTone   = color.RGBA{224, 172, 140, 255}
	background = color.RGBA{20, 40, 200, 255}
	pupilTone  = color.RGBA{40, 30, 30, 255}
)

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func disk(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= radius*radius {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// syntheticFace draws a skin rectangle with two dark eye disks on a blue background
func syntheticFace(t *testing.T) *raster.Image {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 400, 420))
	fill(src, src.Bounds(), background)
	fill(src, image.Rect(100, 80, 300, 340), skinTone)
	disk(src, 160, 170, 8, pupilTone)
	disk(src, 240, 170, 8, pupilTone)
	img, err := raster.Prepare(src, 0)
	require.NoError(t, err)
	return img
}

func TestHeuristicProviderFindsEyes(t *testing.T) {
	p := NewHeuristicProvider(DefaultHeuristicOptions())
	set, err := p.Detect(context.Background(), syntheticFace(t))
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, set.Strategy)
	require.NoError(t, set.Validate())

	left, right := set.Pupils()
	assert.InDelta(t, 160, left.X, 1)
	assert.InDelta(t, 170, left.Y, 1)
	assert.InDelta(t, 240, right.X, 1)
	assert.InDelta(t, 170, right.Y, 1)

	assert.Greater(t, set.Confidence, 0.0)
	assert.LessOrEqual(t, set.Confidence, HeuristicConfidenceCeiling)

	// jaw spans the face box from left to right and reaches the chin
	assert.InDelta(t, 100, set.Jaw[0].X, 1)
	assert.InDelta(t, 299, set.Jaw[len(set.Jaw)-1].X, 1)
	assert.InDelta(t, 339, set.Jaw[8].Y, 1)

	// nose midline sits between the eyes
	assert.InDelta(t, 200, set.Nose[0].X, 1)
	assert.Less(t, set.Nose[4].X, set.Nose[8].X)
}

func TestHeuristicProviderDeterministic(t *testing.T) {
	p := NewHeuristicProvider(DefaultHeuristicOptions())
	img := syntheticFace(t)

	first, err := p.Detect(context.Background(), img)
	require.NoError(t, err)
	second, err := p.Detect(context.Background(), img)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("heuristic detection is not deterministic (-first +second):\n%s", diff)
	}
}

func TestHeuristicProviderRejectsNonFaces(t *testing.T) {
	noise := image.NewRGBA(image.Rect(0, 0, 200, 200))
	rng := rand.New(rand.NewPCG(42, 99))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(rng.IntN(256))
	}
	for i := 3; i < len(noise.Pix); i += 4 {
		noise.Pix[i] = 255
	}

	blank := image.NewRGBA(image.Rect(0, 0, 200, 200))
	fill(blank, blank.Bounds(), color.RGBA{255, 255, 255, 255})

	skinOnly := image.NewRGBA(image.Rect(0, 0, 200, 200))
	fill(skinOnly, skinOnly.Bounds(), skinTone)

	tiny := image.NewRGBA(image.Rect(0, 0, 200, 200))
	fill(tiny, tiny.Bounds(), background)
	fill(tiny, image.Rect(90, 90, 100, 100), skinTone)

	tests := []struct {
		name string
		img  *image.RGBA
	}{
		{"blank", blank},
		{"noise", noise},
		{"skin without eyes", skinOnly},
		{"tiny skin patch", tiny},
	}

	p := NewHeuristicProvider(DefaultHeuristicOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := raster.Prepare(tt.img, 0)
			require.NoError(t, err)

			set, err := p.Detect(context.Background(), img)
			assert.Nil(t, set)
			assert.True(t, errors.Is(err, ErrNoFace), "got %v", err)
		})
	}
}

func TestHeuristicProviderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewHeuristicProvider(DefaultHeuristicOptions())
	_, err := p.Detect(ctx, syntheticFace(t))
	assert.ErrorIs(t, err, context.Canceled)
}
