package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func createTestImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// createStepImage draws dark pixels left of column edge and bright pixels from it on
func createStepImage(width, height, edge int, dark, bright uint8) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := dark
			if x >= edge {
				v = bright
			}
			gray.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return gray
}

func TestCalculateLighting_Uniform(t *testing.T) {
	calc := NewMetricsCalculator(2)
	defer calc.Close()

	stats := calc.CalculateLighting(createTestImage(100, 100, color.RGBA{128, 128, 128, 255}))

	if math.Abs(stats.Luminance-128.0/255.0) > 1e-9 {
		t.Errorf("Expected luminance ~%f, got %f", 128.0/255.0, stats.Luminance)
	}
	if stats.Contrast > 1e-9 {
		t.Errorf("Expected zero contrast for a uniform image, got %f", stats.Contrast)
	}
}

func TestCalculateLighting_HalfAndHalf(t *testing.T) {
	calc := NewMetricsCalculator(4)
	defer calc.Close()

	img := createTestImage(200, 200, color.RGBA{0, 0, 0, 255})
	for y := 0; y < 200; y++ {
		for x := 100; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	stats := calc.CalculateLighting(img)
	if math.Abs(stats.Luminance-0.5) > 1e-6 {
		t.Errorf("Expected luminance 0.5, got %f", stats.Luminance)
	}
	if math.Abs(stats.Contrast-0.5) > 1e-6 {
		t.Errorf("Expected contrast 0.5, got %f", stats.Contrast)
	}
}

func TestCalculateLighting_NonRGBAMatchesRGBA(t *testing.T) {
	calc := NewMetricsCalculator(3)
	defer calc.Close()

	rgba := createTestImage(64, 160, color.RGBA{40, 160, 90, 255})
	nrgba := image.NewNRGBA(rgba.Bounds())
	for y := 0; y < 160; y++ {
		for x := 0; x < 64; x++ {
			nrgba.SetNRGBA(x, y, color.NRGBA{40, 160, 90, 255})
		}
	}

	a := calc.CalculateLighting(rgba)
	b := calc.CalculateLighting(nrgba)
	if math.Abs(a.Luminance-b.Luminance) > 1e-9 || math.Abs(a.Contrast-b.Contrast) > 1e-9 {
		t.Errorf("Expected identical stats, got %+v and %+v", a, b)
	}
}

func TestCalculateLighting_Empty(t *testing.T) {
	calc := NewMetricsCalculator(1)
	defer calc.Close()

	stats := calc.CalculateLighting(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if stats != (LightingStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestCalculateGradient_VerticalEdge(t *testing.T) {
	calc := NewMetricsCalculator(4)
	defer calc.Close()

	const edge = 150
	gray := createStepImage(300, 300, edge, 50, 200)
	grad := calc.CalculateGradient(gray)

	if grad.Width != 300 || grad.Height != 300 {
		t.Fatalf("Unexpected gradient size %dx%d", grad.Width, grad.Height)
	}

	want := 4.0 * (200 - 50)
	for _, y := range []int{1, 37, 150, 298} {
		for _, x := range []int{edge - 1, edge} {
			gx, gy := grad.At(x, y)
			if gx != want {
				t.Errorf("gx(%d,%d) = %f, want %f", x, y, gx, want)
			}
			if gy != 0 {
				t.Errorf("gy(%d,%d) = %f, want 0", x, y, gy)
			}
		}
		if gx, _ := grad.At(edge-2, y); gx != 0 {
			t.Errorf("gx(%d,%d) = %f, want 0", edge-2, y, gx)
		}
		if gx, _ := grad.At(edge+1, y); gx != 0 {
			t.Errorf("gx(%d,%d) = %f, want 0", edge+1, y, gx)
		}
	}

	// borders stay zero
	topX, topY := grad.At(edge, 0)
	bottomX, bottomY := grad.At(edge, 299)
	if topX != 0 || topY != 0 || bottomX != 0 || bottomY != 0 {
		t.Error("Expected zero response on border rows")
	}
}

func TestCalculateGradient_TinyImage(t *testing.T) {
	calc := NewMetricsCalculator(1)
	defer calc.Close()

	grad := calc.CalculateGradient(image.NewGray(image.Rect(0, 0, 2, 2)))
	for i := range grad.GX {
		if grad.GX[i] != 0 || grad.GY[i] != 0 {
			t.Fatal("Expected all-zero gradient for a 2x2 image")
		}
	}
}

func TestToGray(t *testing.T) {
	img := createTestImage(10, 10, color.RGBA{220, 220, 220, 255})
	gray := ToGray(img)
	if gray.GrayAt(5, 5).Y != 220 {
		t.Errorf("Expected gray 220, got %d", gray.GrayAt(5, 5).Y)
	}
	if ToGray(gray) != gray {
		t.Error("Expected an origin-anchored gray image to be returned as is")
	}
}

func TestMetricsCalculator_UsesPool(t *testing.T) {
	calc := NewMetricsCalculator(4)
	defer calc.Close()

	calc.CalculateLighting(createTestImage(64, 256, color.RGBA{1, 2, 3, 255}))
	if calc.Stats().CompletedJobs == 0 {
		t.Error("Expected strip jobs to run on the worker pool")
	}
}
