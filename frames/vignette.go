package frames

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"nightreel/config"
)

// Vignette is a radial darkening mask, transparent at the center and
// reaching Opacity at the corners.
type Vignette struct {
	Width   int
	Height  int
	Opacity float64
}

// Alpha is the mask opacity at pixel (x, y): clamp(r^2.5, 0, 1) * Opacity,
// where r is the distance from center with both axes mapped onto [-1, 1].
func (v Vignette) Alpha(x, y int) float64 {
	nx := normalizeAxis(x, v.Width)
	ny := normalizeAxis(y, v.Height)
	r := math.Sqrt(nx*nx + ny*ny)
	return math.Min(math.Pow(r, config.VignetteExponent), 1) * v.Opacity
}

func normalizeAxis(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n-1)
}

// Mask builds the black overlay once; every frame of a segment shares it.
func (v Vignette) Mask() *image.NRGBA {
	mask := image.NewNRGBA(image.Rect(0, 0, v.Width, v.Height))
	for y := 0; y < v.Height; y++ {
		for x := 0; x < v.Width; x++ {
			a := uint8(math.Round(v.Alpha(x, y) * 255))
			mask.SetNRGBA(x, y, color.NRGBA{A: a})
		}
	}
	return mask
}

// Apply composites the mask over img in place.
func (v Vignette) Apply(img *image.NRGBA) {
	draw.Draw(img, img.Bounds(), v.Mask(), image.Point{}, draw.Over)
}

// WriteMask writes the mask as a PNG for use as an ffmpeg overlay input.
func (v Vignette) WriteMask(path string) error {
	return WritePNG(path, v.Mask())
}
