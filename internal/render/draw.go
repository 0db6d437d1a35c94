package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// fillCircle draws a filled circle of the given radius centered at (cx, cy).
func fillCircle(img draw.Image, cx, cy, r int, c color.Color) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

// strokeCircle draws a circle outline of the given radius and stroke width.
func strokeCircle(img draw.Image, cx, cy, r, width int, c color.Color) {
	outer := r * r
	inner := (r - width) * (r - width)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d := dx*dx + dy*dy
			if d <= outer && d > inner {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

// hline and vline draw single-pixel axis lines.
func hline(img draw.Image, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vline(img draw.Image, x, y0, y1 int, c color.Color) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

// fillRoundedRect fills a rectangle with quarter-circle corners of the given
// radius, in the manner of PIL's rounded_rectangle.
func fillRoundedRect(img draw.Image, rect image.Rectangle, radius int, c color.Color) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if insideRounded(rect, radius, x, y) {
				img.Set(x, y, c)
			}
		}
	}
}

func insideRounded(rect image.Rectangle, radius, x, y int) bool {
	left := rect.Min.X + radius
	right := rect.Max.X - 1 - radius
	top := rect.Min.Y + radius
	bottom := rect.Max.Y - 1 - radius

	cx, cy := x, y
	switch {
	case x < left && y < top:
		cx, cy = left, top
	case x > right && y < top:
		cx, cy = right, top
	case x < left && y > bottom:
		cx, cy = left, bottom
	case x > right && y > bottom:
		cx, cy = right, bottom
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

// textImage renders the string with the face onto a tight transparent RGBA.
func textImage(face font.Face, text string, c color.Color) *image.RGBA {
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)
	return img
}

// scaleImage returns the image scaled by an integer factor.
func scaleImage(src image.Image, factor int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// rotate90 rotates the image 90 degrees counter-clockwise.
func rotate90(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, src.At(x, y))
		}
	}
	return dst
}

// pasteOver composites src onto dst with its top-left corner at (x, y).
func pasteOver(dst draw.Image, src image.Image, x, y int) {
	b := src.Bounds()
	target := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(dst, target, src, b.Min, draw.Over)
}

// drawOutlinedText draws text at the integer scale with a black outline, the
// top-left of the text at (x, y).
func drawOutlinedText(dst draw.Image, x, y int, text string, face font.Face, scale int, fill, outline color.Color) {
	fg := scaleImage(textImage(face, text, fill), scale)
	bg := scaleImage(textImage(face, text, outline), scale)
	for adj := -2; adj <= 2; adj++ {
		pasteOver(dst, bg, x+adj, y)
		pasteOver(dst, bg, x, y+adj)
	}
	pasteOver(dst, fg, x, y)
}
