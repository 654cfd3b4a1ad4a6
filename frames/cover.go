// Package frames holds the deterministic image transforms that turn a still
// into a full-bleed animated frame: cover-crop, Ken Burns zoom and vignette.
// Everything here is a pure function of its inputs and safe to call from
// concurrent scene workers.
package frames

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes a PNG, JPEG or WebP still.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// CoverCrop scales src to fill exactly w x h and crops the excess evenly from
// both edges. A source wider than the target is fitted by height, otherwise
// by width. A source already at w x h is copied unchanged.
func CoverCrop(src image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	if sw == w && sh == h {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}

	crop := coverRect(sw, sh, w, h).Add(sb.Min)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

// coverRect is the centered region of a sw x sh source with the target's
// aspect ratio.
func coverRect(sw, sh, w, h int) image.Rectangle {
	srcRatio := float64(sw) / float64(sh)
	dstRatio := float64(w) / float64(h)

	if srcRatio > dstRatio {
		cropW := int(math.Round(float64(sh) * dstRatio))
		x0 := (sw - cropW) / 2
		return image.Rect(x0, 0, x0+cropW, sh)
	}
	cropH := int(math.Round(float64(sw) / dstRatio))
	y0 := (sh - cropH) / 2
	return image.Rect(0, y0, sw, y0+cropH)
}

// PrepareStill loads src, cover-crops it to w x h and writes a PNG to dst.
func PrepareStill(src, dst string, w, h int) error {
	img, err := LoadImage(src)
	if err != nil {
		return err
	}
	return WritePNG(dst, CoverCrop(img, w, h))
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
