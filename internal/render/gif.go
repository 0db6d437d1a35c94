package render

import (
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
)

const (
	// frameDelay and lastFrameDelay are in hundredths of a second: 200 ms
	// per frame, with a 2 s hold on the newest frame before looping.
	frameDelay     = 20
	lastFrameDelay = 200
)

// Overlays selects what is composited onto each frame when the animation is
// built. Recompositing is cheap, so toggling an overlay never requires
// re-rendering base frames.
type Overlays struct {
	ShowLegend   bool
	ShowMarker   bool
	MarkerLat    float64
	MarkerLon    float64
	ShowActivity bool
	Activity     [ActivityBuckets]int
}

// Animation composites the overlays onto each base frame and assembles the
// looping GIF, frames ordered oldest to newest.
func (r *Renderer) Animation(frames []image.Image, overlays Overlays) *gif.GIF {
	anim := &gif.GIF{LoopCount: 0}

	for i, frame := range frames {
		composited := r.composite(frame, overlays)

		paletted := image.NewPaletted(composited.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, composited.Bounds(), composited, composited.Bounds().Min)

		delay := frameDelay
		if i == len(frames)-1 {
			delay = lastFrameDelay
		}
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	return anim
}

func (r *Renderer) composite(frame image.Image, overlays Overlays) *image.RGBA {
	img := image.NewRGBA(frame.Bounds())
	draw.Draw(img, img.Bounds(), frame, frame.Bounds().Min, draw.Src)

	if overlays.ShowLegend {
		pasteOver(img, r.legend, 5, 5)
	}
	if overlays.ShowActivity {
		graph := activityImage(overlays.Activity)
		pasteOver(img, graph, img.Bounds().Dx()-graph.Bounds().Dx()-5, 5)
	}
	if overlays.ShowMarker {
		x, y := r.proj.Project(overlays.MarkerLat, overlays.MarkerLon)
		pasteOver(img, r.marker, x-r.marker.Bounds().Dx()/2, y-r.marker.Bounds().Dy()/2)
	}

	return img
}

// EncodeGIF writes the animation as GIF bytes.
func EncodeGIF(w io.Writer, anim *gif.GIF) error {
	return gif.EncodeAll(w, anim)
}
