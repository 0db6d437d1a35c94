package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/inconsolata"

	"blitzmap-server/internal/mapprofile"
)

// Strike is a strike positioned in time and space, ready to draw.
type Strike struct {
	Lat  float64
	Lon  float64
	Time time.Time
}

// Renderer draws map frames for one profile. The background and legend are
// built once and reused for every frame.
type Renderer struct {
	proj       Projection
	background *image.RGBA
	legend     *image.RGBA
	marker     *image.RGBA
	loc        *time.Location
}

// New builds a renderer for the profile. If backgroundPath names an existing
// PNG it is scaled to the canvas and used as the base map; otherwise a
// generated graticule background is used.
func New(profile mapprofile.Profile, loc *time.Location, backgroundPath string) (*Renderer, error) {
	proj := NewProjection(profile)

	bg, err := loadBackground(proj, backgroundPath)
	if err != nil {
		return nil, err
	}

	if loc == nil {
		loc = time.Local
	}

	return &Renderer{
		proj:       proj,
		background: bg,
		legend:     legendImage(),
		marker:     markerGlyph(),
		loc:        loc,
	}, nil
}

func loadBackground(proj Projection, path string) (*image.RGBA, error) {
	if path == "" {
		return background(proj), nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return background(proj), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open background %s: %w", path, err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, proj.Width(), proj.Height()))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func (r *Renderer) Projection() Projection { return r.proj }

// Frame renders one base frame: background, strike dots colored by age, and
// the local-time stamp in the bottom-left corner. Legend, marker, and
// activity graph are composited later at animation build time so toggling
// them does not invalidate stored frames.
func (r *Renderer) Frame(strikes []Strike, now time.Time) *image.RGBA {
	img := image.NewRGBA(r.background.Bounds())
	draw.Draw(img, img.Bounds(), r.background, image.Point{}, draw.Src)

	for _, s := range strikes {
		x, y := r.proj.Project(s.Lat, s.Lon)
		fillCircle(img, x, y, 2, AgeColor(now.Sub(s.Time)))
	}

	stamp := now.In(r.loc).Format("15:04")
	const textScale = 2
	textHeight := (inconsolata.Regular8x16.Ascent + inconsolata.Regular8x16.Descent) * textScale
	drawOutlinedText(img, 10, r.proj.Height()-textHeight-10, stamp,
		inconsolata.Regular8x16, textScale,
		color.RGBA{254, 255, 255, 255}, color.RGBA{0, 0, 0, 255})

	return img
}
