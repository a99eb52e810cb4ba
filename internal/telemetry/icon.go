package telemetry

import (
	"image"
	"image/color"
)

// bgraToNRGBA converts 32-bit top-down BGRA pixels. Bitmaps whose alpha
// channel is zero everywhere carry no transparency and are made opaque.
func bgraToNRGBA(buf []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if len(buf) < w*h*4 {
		return img
	}
	hasAlpha := false
	for i := 3; i < len(buf); i += 4 {
		if buf[i] != 0 {
			hasAlpha = true
			break
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			a := buf[i+3]
			if !hasAlpha {
				a = 0xff
			}
			img.SetNRGBA(x, y, color.NRGBA{R: buf[i+2], G: buf[i+1], B: buf[i], A: a})
		}
	}
	return img
}
