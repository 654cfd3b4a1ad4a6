package frames

import (
	"fmt"
	"image"
	"math"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/image/draw"
)

// KenBurns is a linear zoom from 1.0 to Ratio over Duration seconds,
// anchored on the frame center.
type KenBurns struct {
	Ratio    float64
	Duration float64
	FPS      int
}

// ScaleAt returns 1 + (Ratio-1) * t/Duration, clamped to [0, Duration].
func (k KenBurns) ScaleAt(t float64) float64 {
	if k.Duration <= 0 || k.Ratio <= 1 {
		return 1
	}
	t = math.Max(0, math.Min(t, k.Duration))
	return 1 + (k.Ratio-1)*t/k.Duration
}

// Frames is the number of output frames covering Duration.
func (k KenBurns) Frames() int {
	n := int(math.Round(k.Duration * float64(k.FPS)))
	if n < 1 {
		return 1
	}
	return n
}

// ZoomExpr is ScaleAt expressed per output frame for ffmpeg's zoompan, where
// "on" is the output frame index.
func (k KenBurns) ZoomExpr() string {
	if k.Ratio <= 1 {
		return "1"
	}
	return fmt.Sprintf("1+%.6f*on/%d", k.Ratio-1, k.Frames())
}

// ZoompanArgs configures zoompan to emit one w x h frame per input frame,
// re-centered each frame.
func (k KenBurns) ZoompanArgs(w, h int) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"z":   k.ZoomExpr(),
		"x":   "iw/2-(iw/zoom/2)",
		"y":   "ih/2-(ih/zoom/2)",
		"d":   1,
		"s":   fmt.Sprintf("%dx%d", w, h),
		"fps": k.FPS,
	}
}

// FrameAt renders the zoomed frame at time t in-process. The result has the
// same size as src; at scale 1 it is an exact copy.
func (k KenBurns) FrameAt(src *image.NRGBA, t float64) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	scale := k.ScaleAt(t)
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	cw := int(math.Round(float64(b.Dx()) / scale))
	ch := int(math.Round(float64(b.Dy()) / scale))
	x0 := b.Min.X + (b.Dx()-cw)/2
	y0 := b.Min.Y + (b.Dy()-ch)/2

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	return dst
}
