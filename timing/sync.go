// Package timing places the scenes of a script on a continuous narration
// track using the word-boundary cues produced by the speech synthesizer.
package timing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"nightreel/config"
	"nightreel/types"
)

// ErrMatchingDegraded reports that the cue track ran out before every scene
// was matched. It is informational: the affected scenes still get a duration.
var ErrMatchingDegraded = errors.New("cue matching degraded")

// Options tunes the fallback behaviour of Synchronize.
type Options struct {
	FallbackDuration float64
	MinDuration      float64
}

// DefaultOptions returns the fallback 3.0s and floor 1.0s.
func DefaultOptions() Options {
	return Options{
		FallbackDuration: config.FallbackSceneDuration,
		MinDuration:      config.MinSceneDuration,
	}
}

// Report describes how well the scenes lined up with the cue track.
type Report struct {
	Matched  int
	Degraded []int
}

// Err returns ErrMatchingDegraded with the affected scene indexes, or nil.
func (r Report) Err() error {
	if len(r.Degraded) == 0 {
		return nil
	}
	return fmt.Errorf("%w: scenes %v fell back", ErrMatchingDegraded, r.Degraded)
}

// Synchronize assigns Start, End and Duration to each scene in one greedy
// forward pass over cues. Input scenes are not modified.
//
// For every scene, cues are consumed until the normalized scene text appears
// in the normalized accumulation OR the accumulation is at least as long as
// the scene text. The length stop keeps a bad match from swallowing the rest
// of the track, at the price of sometimes accepting unrelated text.
func Synchronize(scenes []types.Scene, cues []types.Cue, opts Options) ([]types.Scene, Report) {
	out := make([]types.Scene, len(scenes))
	copy(out, scenes)

	var report Report
	cursor := 0
	prevEnd := 0.0

	for i := range out {
		last := i == len(out)-1

		if cursor >= len(cues) {
			out[i].Start = prevEnd
			out[i].End = prevEnd + opts.FallbackDuration
			out[i].Duration = opts.FallbackDuration
			prevEnd = out[i].End
			report.Degraded = append(report.Degraded, i)
			continue
		}

		target := Normalize(out[i].Text)
		start := cues[cursor].Start
		end := 0.0
		matched := false

		var acc strings.Builder
		for cursor < len(cues) {
			cue := cues[cursor]
			cursor++

			if acc.Len() > 0 {
				acc.WriteByte(' ')
			}
			acc.WriteString(strings.TrimSpace(cue.Text))
			accNorm := Normalize(acc.String())

			if strings.Contains(accNorm, target) || len(accNorm) >= len(target) {
				end = cue.End
				matched = true
				break
			}
		}

		if last {
			// no narration is ever left unassigned at the tail
			end = cues[len(cues)-1].End
		} else if !matched {
			end = start + opts.FallbackDuration
		}

		if matched {
			report.Matched++
		} else {
			report.Degraded = append(report.Degraded, i)
		}

		out[i].Start = start
		out[i].End = end
		out[i].Duration = math.Max(opts.MinDuration, end-start)
		if matched || last {
			prevEnd = end
		} else {
			prevEnd = start + out[i].Duration
		}
	}

	return out, report
}

// Normalize lower-cases s and drops everything but letters and digits, so
// punctuation and casing never affect matching.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}
