package render

import (
	"image/color"
	"time"
)

// ageBand is one color band of the strike age scale.
type ageBand struct {
	maxAge time.Duration
	color  color.RGBA
}

// ageBands maps strike age to dot color, newest first. Strikes older than
// the last band use oldestColor.
var ageBands = []ageBand{
	{maxAge: 20 * time.Minute, color: color.RGBA{255, 255, 255, 255}},
	{maxAge: 40 * time.Minute, color: color.RGBA{255, 255, 0, 255}},
	{maxAge: 60 * time.Minute, color: color.RGBA{255, 170, 0, 255}},
	{maxAge: 80 * time.Minute, color: color.RGBA{255, 85, 0, 255}},
	{maxAge: 100 * time.Minute, color: color.RGBA{255, 0, 0, 255}},
}

var oldestColor = color.RGBA{191, 0, 0, 255}

// AgeColor returns the dot color for a strike of the given age.
func AgeColor(age time.Duration) color.RGBA {
	for _, band := range ageBands {
		if age < band.maxAge {
			return band.color
		}
	}
	return oldestColor
}
