package analyzer

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// minStripRows keeps strips large enough that scheduling does not dominate
const minStripRows = 32

// metricsCalculator implements MetricsCalculator on top of a worker pool
type metricsCalculator struct {
	pool *WorkerPool
}

// NewMetricsCalculator creates a calculator backed by its own worker pool.
// workers <= 0 uses one worker per CPU.
func NewMetricsCalculator(workers int) MetricsCalculator {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &metricsCalculator{pool: pool}
}

// ToGray converts img to an 8-bit grayscale frame anchored at the origin
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// strips splits [0, height) into contiguous row ranges, one job per range
func (mc *metricsCalculator) strips(height int, fn func(startY, endY int)) {
	n := mc.pool.Workers()
	if maxStrips := (height + minStripRows - 1) / minStripRows; n > maxStrips {
		n = maxStrips
	}
	if n <= 1 {
		fn(0, height)
		return
	}
	rowsPerStrip := (height + n - 1) / n // ceil division

	jobs := make([]func(), 0, n)
	for startY := 0; startY < height; startY += rowsPerStrip {
		endY := min(startY+rowsPerStrip, height)
		jobs = append(jobs, func() { fn(startY, endY) })
	}
	mc.pool.Run(jobs...)
}

// CalculateLighting fills a per-pixel luminance buffer in parallel row strips
// and reduces it with gonum
func (mc *metricsCalculator) CalculateLighting(img image.Image) LightingStats {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return LightingStats{}
	}

	lum := make([]float64, width*height)
	rgba, isRGBA := img.(*image.RGBA)

	mc.strips(height, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			row := lum[y*width : (y+1)*width]
			if isRGBA {
				off := rgba.PixOffset(b.Min.X, b.Min.Y+y)
				for x := range row {
					i := off + 4*x
					row[x] = luminance(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
				}
				continue
			}
			for x := range row {
				c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				row[x] = luminance(c.R, c.G, c.B)
			}
		}
	})

	mean, std := stat.PopMeanStdDev(lum, nil)
	return LightingStats{Luminance: mean, Contrast: std}
}

// luminance uses Rec. 601 weights and returns a value in 0..1
func luminance(r, g, b uint8) float64 {
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255
}

// CalculateGradient computes 3x3 Sobel responses row strip by row strip
func (mc *metricsCalculator) CalculateGradient(gray *image.Gray) *Gradient {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	grad := &Gradient{
		Width:  width,
		Height: height,
		GX:     make([]float64, width*height),
		GY:     make([]float64, width*height),
	}
	if width < 3 || height < 3 {
		return grad
	}

	px := func(x, y int) int {
		return int(gray.Pix[gray.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	mc.strips(height, func(startY, endY int) {
		for y := max(startY, 1); y < endY && y < height-1; y++ {
			for x := 1; x < width-1; x++ {
				gx := -px(x-1, y-1) + px(x+1, y-1) +
					-2*px(x-1, y) + 2*px(x+1, y) +
					-px(x-1, y+1) + px(x+1, y+1)
				gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
					px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
				i := y*width + x
				grad.GX[i] = float64(gx)
				grad.GY[i] = float64(gy)
			}
		}
	})

	return grad
}

// Stats returns the worker pool counters
func (mc *metricsCalculator) Stats() PoolStats {
	return mc.pool.Stats()
}

// Close shuts the worker pool down
func (mc *metricsCalculator) Close() {
	mc.pool.Close()
}
