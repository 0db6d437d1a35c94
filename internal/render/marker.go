package render

import (
	"image"
	"image/color"
)

// markerGlyph draws the 40x40 position marker: a map-pin style ring with a
// stem down to the anchor point and a white center dot.
func markerGlyph() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))

	pin := color.RGBA{214, 40, 40, 255}
	white := color.RGBA{255, 255, 255, 255}

	strokeCircle(img, 20, 14, 11, 7, pin)
	fillCircle(img, 20, 14, 4, white)

	// Stem narrows toward the anchor at the bottom edge.
	for y := 22; y < 39; y++ {
		half := (39 - y) * 7 / 17
		if half < 1 {
			half = 1
		}
		hline(img, 20-half, 20+half, y, pin)
	}

	return img
}
