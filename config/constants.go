package config

import "time"

// Video Output Constants
const (
	// VideoWidth is the output video width (9:16 portrait)
	VideoWidth = 1080

	// VideoHeight is the output video height (9:16 portrait)
	VideoHeight = 1920

	// FPS is the output frame rate
	FPS = 24

	// VideoCodec is the video encoding codec
	VideoCodec = "libx264"

	// AudioCodec is the audio encoding codec
	AudioCodec = "aac"

	// AudioBitrate is the audio quality bitrate
	AudioBitrate = "192k"

	// VideoPreset is the ffmpeg encoding speed preset
	VideoPreset = "ultrafast"

	// PixelFormat keeps the output playable on phones and browsers
	PixelFormat = "yuv420p"

	// AudioSampleRate is used for generated silence
	AudioSampleRate = 44100
)

// Motion and Grading Constants
const (
	// ZoomRatio is the Ken Burns end scale for every scene
	ZoomRatio = 1.15

	// VignetteOpacity is the darkness reached at the frame corners
	VignetteOpacity = 0.7

	// VignetteExponent is the radial falloff curve of the vignette
	VignetteExponent = 2.5
)

// Caption Constants
const (
	CaptionFontSize     = 70
	CaptionColor        = "white"
	CaptionStrokeColor  = "black"
	CaptionShadowColor  = "black"
	CaptionStrokeWidth  = 4
	CaptionShadowOffset = 6

	// CaptionSideMargin is subtracted from the frame width to get the wrap width
	CaptionSideMargin = 150

	// CaptionFadeIn is the fade-in length of each caption burst, in seconds
	CaptionFadeIn = 0.1

	// WordsPerChunk is the karaoke burst size
	WordsPerChunk = 5
)

// Timing Constants
const (
	// FallbackSceneDuration is assigned when the cue track runs out
	FallbackSceneDuration = 3.0

	// MinSceneDuration floors every synchronized scene
	MinSceneDuration = 1.0
)

// Background Music Constants
const (
	EnableBGM = true

	// BGMVolume attenuates the music bed so narration stays on top
	BGMVolume = 0.3
)

// Directory Constants
const (
	OutputDir = "output"
	TempDir   = "temp"
	InputDir  = "input"
	BGMDir    = "assets/bgm"
	FontsDir  = "assets/fonts"
)

// Processing Constants
const (
	// RenderWorkers bounds concurrent per-scene segment renders
	RenderWorkers = 4

	// MaxConcurrentJobs bounds whole-job assemblies in server modes
	MaxConcurrentJobs = 2

	// WorkdirMaxAge is how old an abandoned run directory must be before it is swept
	WorkdirMaxAge = 6 * time.Hour

	// SweepSchedule is the cron spec of the stale run directory sweep
	SweepSchedule = "@every 30m"
)
