package types

// Scene is one narration segment paired with one still image.
// Duration is either supplied by the caller (per-scene audio mode) or
// assigned by timing.Synchronize (continuous narration mode).
type Scene struct {
	Text     string  `json:"text"`
	Image    string  `json:"image"`
	Audio    string  `json:"audio,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	// Start and End locate the scene inside a continuous narration track.
	// They are zero in per-scene audio mode.
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// Cue is a time-coded fragment of synthesized speech, one per word boundary.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TextChunk is one karaoke caption burst. Offset is relative to the scene start.
type TextChunk struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// End returns the scene-relative time at which the chunk leaves the screen.
func (c TextChunk) End() float64 {
	return c.Offset + c.Duration
}

// TotalDuration sums scene durations; it is the length of the final timeline.
func TotalDuration(scenes []Scene) float64 {
	total := 0.0
	for _, s := range scenes {
		total += s.Duration
	}
	return total
}
