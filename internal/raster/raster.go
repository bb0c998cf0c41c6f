// Package raster decodes capture payloads and prepares them for measurement.
package raster

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	apperrors "go-optical-measure/internal/errors"
)

// DefaultMaxDimension caps the longest side of a prepared image.
const DefaultMaxDimension = 1280

// Image is a prepared frame owned by a single measurement call.
// Pixel coordinates produced downstream refer to RGBA, not to the original capture.
type Image struct {
	RGBA *image.RGBA

	// Scale is prepared size divided by original size (1 when no resize happened).
	Scale float64

	OriginalWidth  int
	OriginalHeight int
}

// Width returns the prepared width in pixels
func (i *Image) Width() int { return i.RGBA.Bounds().Dx() }

// Height returns the prepared height in pixels
func (i *Image) Height() int { return i.RGBA.Bounds().Dy() }

// Resized reports whether the frame was downsampled during preparation
func (i *Image) Resized() bool { return i.Scale != 1 }

// Decode decodes an encoded raster payload. The returned string is the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.NewInputError("image payload is empty", nil)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewInputError("image payload could not be decoded", err)
	}
	return img, format, nil
}

// Prepare converts img to RGBA, downsampling it when its longest side exceeds maxDimension.
// A maxDimension <= 0 disables the cap.
func Prepare(img image.Image, maxDimension int) (*Image, error) {
	if img == nil {
		return nil, apperrors.NewInputError("image is missing", nil)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, apperrors.NewInputError("image has zero size", nil)
	}

	scale := 1.0
	tw, th := w, h
	longest := max(w, h)
	if maxDimension > 0 && longest > maxDimension {
		scale = float64(maxDimension) / float64(longest)
		tw = max(1, int(float64(w)*scale+0.5))
		th = max(1, int(float64(h)*scale+0.5))
		// keep Scale consistent with the integer target on the longest axis
		if w >= h {
			scale = float64(tw) / float64(w)
		} else {
			scale = float64(th) / float64(h)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	return &Image{
		RGBA:           dst,
		Scale:          scale,
		OriginalWidth:  w,
		OriginalHeight: h,
	}, nil
}
