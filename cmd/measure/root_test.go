package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-optical-measure/internal/measurement"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeFace stores a skin-toned face with two dark pupils on a blue backdrop
func writeFace(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 420))
	for y := 0; y < 420; y++ {
		for x := 0; x < 400; x++ {
			c := color.RGBA{20, 40, 200, 255}
			if x >= 100 && x < 300 && y >= 80 && y < 340 {
				c = color.RGBA{224, 172, 140, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	for _, centre := range []image.Point{{160, 170}, {240, 170}} {
		for y := -8; y <= 8; y++ {
			for x := -8; x <= 8; x++ {
				if x*x+y*y <= 64 {
					img.SetRGBA(centre.X+x, centre.Y+y, color.RGBA{40, 30, 30, 255})
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "face.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestTypesCommand(t *testing.T) {
	out, err := execute(t, "types")
	require.NoError(t, err)
	for _, typ := range measurement.Types() {
		assert.Contains(t, out, string(typ))
	}
	assert.Contains(t, out, "credit_card")
}

func TestMeasureCommand(t *testing.T) {
	path := writeFace(t)

	out, err := execute(t, "--type", "pd", path)
	require.NoError(t, err)

	var got output
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.File)
	assert.Equal(t, measurement.TypePD, got.MeasurementType)
	assert.Equal(t, "heuristic", got.LandmarkStrategy)
	assert.Greater(t, got.PupillaryDistance, 0.0)
	assert.NotEmpty(t, got.Warnings, "default calibration is always reported")
}

func TestMeasureCommandErrors(t *testing.T) {
	path := writeFace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no file", []string{}},
		{"missing file", []string{filepath.Join(t.TempDir(), "absent.png")}},
		{"unknown type", []string{"--type", "cornea", path}},
		{"unknown strategy", []string{"--strategy", "mesh", path}},
		{"model without manifest", []string{"--strategy", "model", path}},
		{"size without object", []string{"--pixel-width", "300", path}},
		{"negative size", []string{"--object", "credit_card", "--real-size", "-4", path}},
		{"infinite pixel width", []string{"--object", "credit_card", "--pixel-width", "Inf", path}},
		{"nan real size", []string{"--object", "credit_card", "--real-size", "NaN", path}},
		{"overflowing ratio", []string{"--object", "sticker", "--real-size", "1e308", "--pixel-width", "1e-10", path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
