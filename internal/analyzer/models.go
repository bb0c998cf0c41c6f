package analyzer

// LightingStats summarises frame luminance, both values in 0..1
type LightingStats struct {
	Luminance float64 `json:"luminance"`
	Contrast  float64 `json:"contrast"`
}

// Gradient holds Sobel responses for a grayscale frame laid out row-major.
// Border pixels carry zero.
type Gradient struct {
	Width  int
	Height int
	GX     []float64
	GY     []float64
}

// At returns the horizontal and vertical response at (x, y)
func (g *Gradient) At(x, y int) (gx, gy float64) {
	i := y*g.Width + x
	return g.GX[i], g.GY[i]
}
