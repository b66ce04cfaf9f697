package signal

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/edocrave99/LightSignalDetector/internal/provider"
)

// Indicator marker geometry, fixed in the top-left corner of the frame.
const (
	markerX      = 30
	markerY      = 30
	markerRadius = 20
)

var stateColors = [...]color.RGBA{
	{R: 128, G: 128, B: 128, A: 255}, // UNKNOWN: neutral gray
	{R: 255, A: 255},                 // RED
	{R: 255, G: 255, A: 255},         // YELLOW
	{G: 255, A: 255},                 // GREEN
}

// Annotate renders the full frame with the state indicator disk and label.
// It always works on a fresh RGBA copy; the raw frame is untouched and can
// be released by the caller immediately after.
func Annotate(frame *provider.Frame, res Result) *image.RGBA {
	img := toRGBA(frame)
	drawDisk(img, markerX, markerY, markerRadius, stateColors[res.State])
	drawLabel(img, markerX+markerRadius+8, markerY+5, res.State.String())
	return img
}

// toRGBA converts the planar 4:2:0 frame to RGBA for drawing.
func toRGBA(f *provider.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	cw := (f.Width + 1) / 2
	for y := 0; y < f.Height; y++ {
		crow := (y / 2) * cw
		for x := 0; x < f.Width; x++ {
			ci := crow + x/2
			r, g, b := color.YCbCrToRGB(f.Y[y*f.Width+x], f.Cb[ci], f.Cr[ci])
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = 255
		}
	}
	return img
}

func drawDisk(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	b := img.Bounds()
	r2 := r * r
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cx + dx
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
