package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func TestBridgeWidth(t *testing.T) {
	tests := []struct {
		name      string
		gapPx     float64
		ratio     float64
		want      float64
		defaulted bool
	}{
		{"typical", 120, 0.25, 18, false},
		{"wide but sane", 150, 0.25, 22.5, false},
		{"too narrow", 40, 0.25, DefaultBridgeWidthMm, true},
		{"too wide", 400, 0.25, DefaultBridgeWidthMm, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := []r2.Point{{X: 100, Y: 200}, {X: 140, Y: 200}}
			right := []r2.Point{{X: 140 + tt.gapPx, Y: 200}, {X: 180 + tt.gapPx, Y: 200}}
			got := BridgeWidth(left, right, tt.ratio)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.defaulted, got.Defaulted)
		})
	}

	assert.True(t, BridgeWidth(nil, nil, 0.25).Defaulted)
}

func TestTempleLength(t *testing.T) {
	assert.Equal(t, Estimate{Value: 140}, TempleLength(140))
	assert.Equal(t, Estimate{Value: DefaultTempleLengthMm, Defaulted: true}, TempleLength(60))
	assert.Equal(t, Estimate{Value: DefaultTempleLengthMm, Defaulted: true}, TempleLength(math.NaN()))
}

func TestPantoscopicTilt(t *testing.T) {
	tests := []struct {
		name      string
		left      r2.Point
		right     r2.Point
		want      float64
		defaulted bool
	}{
		{"level eyes fall back", r2.Point{X: 100, Y: 200}, r2.Point{X: 200, Y: 200}, DefaultPantoscopicTiltDeg, true},
		{"ten degrees", r2.Point{X: 0, Y: 0}, r2.Point{X: 100, Y: 100 * math.Tan(10*math.Pi/180)}, 10, false},
		{"sign ignored", r2.Point{X: 0, Y: 0}, r2.Point{X: 100, Y: -100 * math.Tan(5*math.Pi/180)}, 5, false},
		{"too steep", r2.Point{X: 0, Y: 0}, r2.Point{X: 100, Y: 100}, DefaultPantoscopicTiltDeg, true},
		{"near-zero baseline", r2.Point{X: 50, Y: 0}, r2.Point{X: 50.5, Y: 30}, DefaultPantoscopicTiltDeg, true},
		{"coincident pupils", r2.Point{X: 50, Y: 50}, r2.Point{X: 50, Y: 50}, DefaultPantoscopicTiltDeg, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PantoscopicTilt(tt.left, tt.right)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.defaulted, got.Defaulted)
			assert.False(t, math.IsNaN(got.Value))
		})
	}
}

func TestPantoscopicTiltFit(t *testing.T) {
	slope := math.Tan(6 * math.Pi / 180)
	var left, right []r2.Point
	for i := 0; i < 6; i++ {
		x := float64(100 + i*8)
		left = append(left, r2.Point{X: x, Y: 300 + slope*x})
		x = float64(300 + i*8)
		right = append(right, r2.Point{X: x, Y: 300 + slope*x})
	}

	got := PantoscopicTiltFit(left, right)
	assert.False(t, got.Defaulted)
	assert.InDelta(t, 6.0, got.Value, 1e-6)

	vertical := []r2.Point{{X: 10, Y: 0}, {X: 10, Y: 50}}
	assert.True(t, PantoscopicTiltFit(vertical, vertical).Defaulted)
	assert.True(t, PantoscopicTiltFit(nil, nil).Defaulted)
}

func TestWrapAngle(t *testing.T) {
	got := WrapAngle(140, 140-140*math.Tan(10*math.Pi/180))
	assert.InDelta(t, 10, got.Value, 1e-9)
	assert.False(t, got.Defaulted)

	zero := WrapAngle(140, 140)
	assert.Equal(t, Estimate{Value: 0}, zero)

	assert.True(t, WrapAngle(140, 160).Defaulted, "eyes wider than the face is not a wrap")
	assert.True(t, WrapAngle(140, 0).Defaulted, "45 degrees is out of range")
	assert.True(t, WrapAngle(0, 0).Defaulted)
}

func TestVertexDistance(t *testing.T) {
	assert.Equal(t, Estimate{Value: DefaultVertexDistanceMm, Defaulted: true}, VertexDistance())
}
