package captions

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"nightreel/config"
)

const (
	canvasPadding = 20
	lineSpacing   = 0.2
)

var (
	ErrEmptyCaption = errors.New("caption text is empty")
	ErrNoFont       = errors.New("caption font not loaded")
)

// Overlay is one rendered chunk on disk, timed relative to its scene.
type Overlay struct {
	Path     string
	Text     string
	Offset   float64
	Duration float64
	Width    int
	Height   int
}

// Renderer rasterizes caption chunks. It holds only the read-only style, so
// one Renderer may be shared by concurrent scene workers.
type Renderer struct {
	style  config.CaptionStyle
	logger zerolog.Logger
}

func NewRenderer(style config.CaptionStyle, logger zerolog.Logger) *Renderer {
	return &Renderer{
		style:  style,
		logger: logger.With().Str("component", "captions").Logger(),
	}
}

// RenderScene chunks a scene's text over duration and writes one PNG per
// chunk into dir. A chunk that fails to render is skipped with a warning;
// the scene renders without it.
func (r *Renderer) RenderScene(text string, duration float64, dir, prefix string) []Overlay {
	chunks := Chunk(text, duration, r.style.WordsPerChunk)
	overlays := make([]Overlay, 0, len(chunks))

	for i, chunk := range chunks {
		img, err := r.Render(chunk.Text)
		if err != nil {
			r.logger.Warn().Err(err).Str("chunk", chunk.Text).Msg("caption render failed, skipping")
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-caption-%02d.png", prefix, i))
		if err := writePNG(path, img); err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("caption write failed, skipping")
			continue
		}

		overlays = append(overlays, Overlay{
			Path:     path,
			Text:     chunk.Text,
			Offset:   chunk.Offset,
			Duration: chunk.Duration,
			Width:    img.Bounds().Dx(),
			Height:   img.Bounds().Dy(),
		})
	}
	return overlays
}

// Render draws text wrapped to the style's max width: a hard drop shadow,
// then the stroke outline, then the fill, every line centered.
func (r *Renderer) Render(text string) (*image.NRGBA, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCaption
	}
	if r.style.Font == nil {
		return nil, ErrNoFont
	}

	face, err := opentype.NewFace(r.style.Font, &opentype.FaceOptions{
		Size:    r.style.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	defer face.Close()

	stroke := r.style.StrokeWidth
	shadow := r.style.ShadowOffset
	inset := canvasPadding + stroke

	lines := wrap(face, text, r.style.MaxWidth-2*inset-shadow)

	widths := make([]int, len(lines))
	widest := 0
	for i, line := range lines {
		widths[i] = font.MeasureString(face, line).Ceil()
		if widths[i] > widest {
			widest = widths[i]
		}
	}

	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	gap := int(r.style.FontSize * lineSpacing)

	width := r.style.MaxWidth
	if w := widest + 2*inset + shadow; w > width {
		width = w
	}
	height := len(lines)*lineHeight + (len(lines)-1)*gap + 2*inset + shadow
	bounds := image.Rect(0, 0, width, height)

	mask := image.NewAlpha(bounds)
	drawer := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face}
	for i, line := range lines {
		x := (width - shadow - widths[i]) / 2
		y := inset + i*(lineHeight+gap) + metrics.Ascent.Ceil()
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
	}

	img := image.NewNRGBA(bounds)
	if shadow > 0 {
		draw.DrawMask(img, image.Rect(shadow, shadow, width, height),
			image.NewUniform(r.style.Shadow), image.Point{}, mask, image.Point{}, draw.Over)
	}
	if stroke > 0 {
		draw.DrawMask(img, bounds,
			image.NewUniform(r.style.Stroke), image.Point{}, dilate(mask, stroke), image.Point{}, draw.Over)
	}
	draw.DrawMask(img, bounds, image.NewUniform(r.style.Fill), image.Point{}, mask, image.Point{}, draw.Over)

	return img, nil
}

// wrap breaks text greedily so no line exceeds limit pixels. A single word
// wider than limit keeps a line to itself.
func wrap(face font.Face, text string, limit int) []string {
	words := strings.Fields(text)
	var lines []string
	current := ""

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && font.MeasureString(face, candidate).Ceil() > limit {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// dilate grows the mask by radius pixels in every direction (square kernel).
func dilate(src *image.Alpha, radius int) *image.Alpha {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	horizontal := image.NewAlpha(b)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var m uint8
			for dx := -radius; dx <= radius; dx++ {
				if xx := x + dx; xx >= 0 && xx < w && row[xx] > m {
					m = row[xx]
				}
			}
			horizontal.Pix[y*horizontal.Stride+x] = m
		}
	}

	out := image.NewAlpha(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m uint8
			for dy := -radius; dy <= radius; dy++ {
				if yy := y + dy; yy >= 0 && yy < h {
					if v := horizontal.Pix[yy*horizontal.Stride+x]; v > m {
						m = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = m
		}
	}
	return out
}

func writePNG(path string, img image.Image) error {
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
