package render

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"golang.org/x/image/font/basicfont"
)

var legendFill = color.RGBA{12, 66, 156, 255}

// legendImage draws the age scale: one dot per color band with its upper
// bound in minutes, on a rounded rectangle.
func legendImage() *image.RGBA {
	ages := []int{20, 40, 60, 80, 100}

	img := image.NewRGBA(image.Rect(0, 0, 90, len(ages)*20+5))
	fillRoundedRect(img, img.Bounds(), 10, legendFill)

	face := basicfont.Face7x13
	white := color.RGBA{255, 255, 255, 255}

	for _, minutes := range ages {
		x := 10
		y := 12 + (minutes - 20)
		// A dot aged at the band's lower bound shows the band's color.
		fillCircle(img, x, y, 2, AgeColor(time.Duration(minutes-20)*time.Minute))

		label := textImage(face, strconv.Itoa(minutes), white)
		// Right-aligned at x+37, vertically centered on the dot.
		pasteOver(img, label, x+37-label.Bounds().Dx(), y-label.Bounds().Dy()/2)
	}

	caption := textImage(face, "min.", white)
	pasteOver(img, caption, 53, 12-caption.Bounds().Dy()/2)

	return img
}
