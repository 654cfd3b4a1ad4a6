package video

import (
	"errors"

	"nightreel/config"
	"nightreel/types"
)

var (
	// ErrAssetMissing means a scene image, scene audio, narration or
	// explicit music track is absent or unreadable. Fatal for the run.
	ErrAssetMissing = errors.New("asset missing")

	// ErrOverlayUnavailable means an optional overlay (vignette, music)
	// could not be produced. The run continues without it.
	ErrOverlayUnavailable = errors.New("overlay unavailable")

	// ErrRenderFailure wraps any ffmpeg failure. The output is all or nothing.
	ErrRenderFailure = errors.New("render failed")
)

// Options is the fixed configuration of a Compositor.
type Options struct {
	Style      *config.ResolvedStyle
	Preset     string
	BGMEnabled bool
	BGMVolume  float64
	BGMDir     string
	BGMTrack   string
	Workers    int
}

// OptionsFromConfig copies the render settings out of cfg.
func OptionsFromConfig(cfg *config.Config, style *config.ResolvedStyle) Options {
	return Options{
		Style:      style,
		Preset:     cfg.Preset,
		BGMEnabled: cfg.BGMEnabled,
		BGMVolume:  cfg.BGMVolume,
		BGMDir:     cfg.BGMDir,
		BGMTrack:   cfg.BGMTrack,
		Workers:    cfg.RenderWorkers,
	}
}

// Request is one assembly. Scenes carry their durations; a zero duration in
// per-scene mode is filled from the scene audio length.
type Request struct {
	Scenes []types.Scene

	// Narration, when set, is the single continuous voice track and scene
	// audio is ignored.
	Narration string

	// Music overrides BGM selection. Track is used only if it exists.
	Music types.MusicOptions

	Output string
}

// Segment is one scene's slot on the final timeline.
type Segment struct {
	Index    int
	Start    float64
	Duration float64
}

// Timeline lays scenes end to end in script order.
type Timeline struct {
	Segments []Segment
	Total    float64
}

// BuildTimeline places each scene after the previous one.
func BuildTimeline(scenes []types.Scene) Timeline {
	tl := Timeline{Segments: make([]Segment, len(scenes))}
	for i, s := range scenes {
		tl.Segments[i] = Segment{Index: i, Start: tl.Total, Duration: s.Duration}
		tl.Total += s.Duration
	}
	return tl
}
