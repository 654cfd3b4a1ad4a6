package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the assembly pipeline. Zero values are never
// used directly; Load fills defaults from constants.go.
type Config struct {
	Width  int
	Height int
	FPS    int
	Preset string

	ZoomRatio       float64
	VignetteOpacity float64

	FontPath           string
	FontsDir           string
	FontSize           float64
	CaptionColor       string
	CaptionStrokeColor string
	CaptionShadowColor string
	StrokeWidth        int
	ShadowOffset       int
	WordsPerChunk      int

	BGMEnabled bool
	BGMVolume  float64
	BGMDir     string
	BGMTrack   string

	OutputDir string
	TempDir   string
	InputDir  string

	RenderWorkers     int
	MaxConcurrentJobs int
	WorkdirMaxAge     time.Duration
	SweepSchedule     string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Width:  getenvInt("VIDEO_WIDTH", VideoWidth),
		Height: getenvInt("VIDEO_HEIGHT", VideoHeight),
		FPS:    getenvInt("FPS", FPS),
		Preset: getenv("VIDEO_PRESET", VideoPreset),

		ZoomRatio:       getenvFloat("ZOOM_RATIO", ZoomRatio),
		VignetteOpacity: getenvFloat("VIGNETTE_OPACITY", VignetteOpacity),

		FontPath:           getenv("FONT_PATH", ""),
		FontsDir:           getenv("FONTS_DIR", FontsDir),
		FontSize:           getenvFloat("CAPTION_FONT_SIZE", CaptionFontSize),
		CaptionColor:       getenv("CAPTION_COLOR", CaptionColor),
		CaptionStrokeColor: getenv("CAPTION_STROKE_COLOR", CaptionStrokeColor),
		CaptionShadowColor: getenv("CAPTION_SHADOW_COLOR", CaptionShadowColor),
		StrokeWidth:        getenvInt("CAPTION_STROKE_WIDTH", CaptionStrokeWidth),
		ShadowOffset:       getenvInt("CAPTION_SHADOW_OFFSET", CaptionShadowOffset),
		WordsPerChunk:      getenvInt("WORDS_PER_CHUNK", WordsPerChunk),

		BGMEnabled: getenvBool("ENABLE_BGM", EnableBGM),
		BGMVolume:  getenvFloat("BGM_VOLUME", BGMVolume),
		BGMDir:     getenv("BGM_DIR", BGMDir),
		BGMTrack:   getenv("BGM_TRACK", ""),

		OutputDir: getenv("OUTPUT_DIR", OutputDir),
		TempDir:   getenv("TEMP_DIR", TempDir),
		InputDir:  getenv("INPUT_DIR", InputDir),

		RenderWorkers:     getenvInt("RENDER_WORKERS", RenderWorkers),
		MaxConcurrentJobs: getenvInt("MAX_CONCURRENT_JOBS", MaxConcurrentJobs),
		WorkdirMaxAge:     getenvDuration("WORKDIR_MAX_AGE", WorkdirMaxAge),
		SweepSchedule:     getenv("SWEEP_SCHEDULE", SweepSchedule),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the compiled-in configuration without reading the environment.
func Default() *Config {
	return &Config{
		Width:              VideoWidth,
		Height:             VideoHeight,
		FPS:                FPS,
		Preset:             VideoPreset,
		ZoomRatio:          ZoomRatio,
		VignetteOpacity:    VignetteOpacity,
		FontsDir:           FontsDir,
		FontSize:           CaptionFontSize,
		CaptionColor:       CaptionColor,
		CaptionStrokeColor: CaptionStrokeColor,
		CaptionShadowColor: CaptionShadowColor,
		StrokeWidth:        CaptionStrokeWidth,
		ShadowOffset:       CaptionShadowOffset,
		WordsPerChunk:      WordsPerChunk,
		BGMEnabled:         EnableBGM,
		BGMVolume:          BGMVolume,
		BGMDir:             BGMDir,
		OutputDir:          OutputDir,
		TempDir:            TempDir,
		InputDir:           InputDir,
		RenderWorkers:      RenderWorkers,
		MaxConcurrentJobs:  MaxConcurrentJobs,
		WorkdirMaxAge:      WorkdirMaxAge,
		SweepSchedule:      SweepSchedule,
	}
}

// Validate rejects settings ffmpeg or the transforms cannot honour.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("config: resolution must be positive, got %dx%d", c.Width, c.Height)
	case c.Width%2 != 0 || c.Height%2 != 0:
		return fmt.Errorf("config: %s needs even dimensions, got %dx%d", VideoCodec, c.Width, c.Height)
	case c.FPS <= 0:
		return fmt.Errorf("config: fps must be positive, got %d", c.FPS)
	case c.ZoomRatio < 1:
		return fmt.Errorf("config: zoom ratio must be >= 1, got %.3f", c.ZoomRatio)
	case c.VignetteOpacity < 0 || c.VignetteOpacity > 1:
		return fmt.Errorf("config: vignette opacity must be in [0,1], got %.3f", c.VignetteOpacity)
	case c.BGMVolume < 0 || c.BGMVolume > 1:
		return fmt.Errorf("config: bgm volume must be in [0,1], got %.3f", c.BGMVolume)
	case c.WordsPerChunk < 1:
		return fmt.Errorf("config: words per chunk must be >= 1, got %d", c.WordsPerChunk)
	case c.FontSize <= 0:
		return fmt.Errorf("config: caption font size must be positive, got %.1f", c.FontSize)
	case c.RenderWorkers < 1:
		return fmt.Errorf("config: render workers must be >= 1, got %d", c.RenderWorkers)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
