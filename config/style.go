package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// EmbeddedFontName identifies the compiled-in fallback face.
const EmbeddedFontName = "embedded:gobold"

// FrameStyle is everything the frame transform needs for one scene.
type FrameStyle struct {
	Width           int
	Height          int
	FPS             int
	ZoomRatio       float64
	VignetteOpacity float64
}

// CaptionStyle is everything the caption renderer needs. Font is parsed once
// and shared read-only; faces are created per render.
type CaptionStyle struct {
	FontSource    string
	Font          *opentype.Font
	FontSize      float64
	Fill          color.NRGBA
	Stroke        color.NRGBA
	Shadow        color.NRGBA
	StrokeWidth   int
	ShadowOffset  int
	MaxWidth      int
	WordsPerChunk int
	FadeIn        float64
}

// ResolvedStyle is the validated, immutable styling of one pipeline run.
type ResolvedStyle struct {
	Frame   FrameStyle
	Caption CaptionStyle
}

// ResolveStyle validates colours and picks the caption font. Font lookup
// happens here once instead of on every caption render.
func (c *Config) ResolveStyle(logger zerolog.Logger) (*ResolvedStyle, error) {
	fill, err := ParseColor(c.CaptionColor)
	if err != nil {
		return nil, fmt.Errorf("caption color: %w", err)
	}
	stroke, err := ParseColor(c.CaptionStrokeColor)
	if err != nil {
		return nil, fmt.Errorf("caption stroke color: %w", err)
	}
	shadow, err := ParseColor(c.CaptionShadowColor)
	if err != nil {
		return nil, fmt.Errorf("caption shadow color: %w", err)
	}

	source, fnt := resolveFont(c.FontPath, c.FontsDir, logger)
	logger.Info().Str("font", source).Msg("caption font resolved")

	maxWidth := c.Width - CaptionSideMargin
	if maxWidth < c.Width/2 {
		maxWidth = c.Width / 2
	}

	return &ResolvedStyle{
		Frame: FrameStyle{
			Width:           c.Width,
			Height:          c.Height,
			FPS:             c.FPS,
			ZoomRatio:       c.ZoomRatio,
			VignetteOpacity: c.VignetteOpacity,
		},
		Caption: CaptionStyle{
			FontSource:    source,
			Font:          fnt,
			FontSize:      c.FontSize,
			Fill:          fill,
			Stroke:        stroke,
			Shadow:        shadow,
			StrokeWidth:   c.StrokeWidth,
			ShadowOffset:  c.ShadowOffset,
			MaxWidth:      maxWidth,
			WordsPerChunk: c.WordsPerChunk,
			FadeIn:        CaptionFadeIn,
		},
	}, nil
}

// resolveFont walks requested file -> first bundled font -> embedded bold.
// Unparseable candidates are skipped with a warning.
func resolveFont(requested, fontsDir string, logger zerolog.Logger) (string, *opentype.Font) {
	var candidates []string
	if requested != "" {
		if !filepath.IsAbs(requested) && fontsDir != "" {
			if _, err := os.Stat(requested); err != nil {
				requested = filepath.Join(fontsDir, requested)
			}
		}
		candidates = append(candidates, requested)
	}
	candidates = append(candidates, bundledFonts(fontsDir)...)

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("font", path).Msg("font not readable, trying next")
			continue
		}
		fnt, err := opentype.Parse(data)
		if err != nil {
			logger.Warn().Err(err).Str("font", path).Msg("font not parseable, trying next")
			continue
		}
		return path, fnt
	}

	// gobold ships with x/image and always parses
	fnt, _ := opentype.Parse(gobold.TTF)
	return EmbeddedFontName, fnt
}

func bundledFonts(dir string) []string {
	if dir == "" {
		return nil
	}
	var fonts []string
	for _, pattern := range []string{"*.ttf", "*.otf", "*.TTF", "*.OTF"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		fonts = append(fonts, matches...)
	}
	sort.Strings(fonts)
	return fonts
}

// ParseColor accepts CSS colour names and #RGB, #RRGGBB or #RRGGBBAA.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("unrecognised colour %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("unrecognised colour %q", s)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
