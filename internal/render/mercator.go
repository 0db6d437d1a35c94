// Package render draws the lightning map: strike frames on a generated
// background, the legend, the activity graph, the position marker, and the
// animated GIF that ties them together.
package render

import (
	"math"

	"blitzmap-server/internal/mapprofile"
)

// Projection maps geographic coordinates to pixel positions on a
// Mercator-projected canvas spanning the profile bbox at the profile width.
type Projection struct {
	profile mapprofile.Profile
	// topFactor is the scaled Mercator factor of the north edge; pixel y
	// grows southward from it.
	topFactor float64
	scale     float64
	height    int
}

func NewProjection(profile mapprofile.Profile) Projection {
	scale := float64(profile.Width) / deg2rad(profile.East-profile.West)
	p := Projection{
		profile:   profile,
		scale:     scale,
		topFactor: scale * mercatorFactor(profile.North),
	}
	p.height = p.yOf(profile.South) + 1
	return p
}

// Project returns the pixel position of the coordinate. Positions outside
// the bbox project outside the canvas.
func (p Projection) Project(lat, lon float64) (x, y int) {
	x = int(math.Round((lon - p.profile.West) / (p.profile.East - p.profile.West) * float64(p.profile.Width)))
	return x, p.yOf(lat)
}

func (p Projection) yOf(lat float64) int {
	return int(math.Round(p.topFactor - p.scale*mercatorFactor(lat)))
}

func (p Projection) Width() int  { return p.profile.Width }
func (p Projection) Height() int { return p.height }

// mercatorFactor is ln((1+sin φ)/(1−sin φ))/2, the unscaled Mercator y of a
// latitude.
func mercatorFactor(lat float64) float64 {
	s := math.Sin(deg2rad(lat))
	return 0.5 * math.Log((1+s)/(1-s))
}

func deg2rad(degrees float64) float64 {
	return degrees * math.Pi / 180
}
