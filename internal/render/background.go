package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font/basicfont"
)

var (
	seaColor       = color.RGBA{8, 30, 60, 255}
	graticuleColor = color.RGBA{36, 62, 96, 255}
	labelColor     = color.RGBA{120, 140, 170, 255}
)

// graticuleStep is the spacing of the coordinate grid in degrees.
const graticuleStep = 5.0

// background draws the base map canvas: a sea-colored fill with a labeled
// coordinate graticule. An operator can drop a real map PNG next to the
// frames; see Renderer.loadBackground.
func background(proj Projection) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, proj.Width(), proj.Height()))
	draw.Draw(img, img.Bounds(), image.NewUniform(seaColor), image.Point{}, draw.Src)

	profile := proj.profile

	// Meridians.
	for lon := math.Ceil(profile.West/graticuleStep) * graticuleStep; lon <= profile.East; lon += graticuleStep {
		x, _ := proj.Project(profile.North, lon)
		vline(img, x, 0, proj.Height()-1, graticuleColor)
		label := fmt.Sprintf("%.0f", lon)
		pasteOver(img, textImage(basicfont.Face7x13, label, labelColor), x+2, proj.Height()-15)
	}

	// Parallels.
	for lat := math.Ceil(profile.South/graticuleStep) * graticuleStep; lat <= profile.North; lat += graticuleStep {
		_, y := proj.Project(lat, profile.West)
		hline(img, 0, proj.Width()-1, y, graticuleColor)
		label := fmt.Sprintf("%.0f", lat)
		pasteOver(img, textImage(basicfont.Face7x13, label, labelColor), 2, y+2)
	}

	return img
}
