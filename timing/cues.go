package timing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"nightreel/types"
)

// ErrCueOrder is returned when a cue track is not ordered by start time or a
// cue ends before it starts.
var ErrCueOrder = errors.New("cue track out of order")

var (
	// "00:00:00.160 --> 00:00:02.350" with optional WebVTT cue settings after it
	timeLineRe = regexp.MustCompile(`^(\S+)\s+-->\s+(\S+)`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	secondsRe  = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ParseCueFile reads a WebVTT or SRT cue track from disk.
func ParseCueFile(path string) ([]types.Cue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cues, err := ParseCues(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cues, nil
}

// ParseCues reads WebVTT or SRT cue blocks. Headers, numeric identifiers and
// NOTE blocks are skipped because only text following a timing line is kept.
func ParseCues(r io.Reader) ([]types.Cue, error) {
	var cues []types.Cue
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		matches := timeLineRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		start, err := ParseTimestamp(matches[1])
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(matches[2])
		if err != nil {
			return nil, err
		}

		var textLines []string
		for scanner.Scan() {
			textLine := strings.TrimSpace(scanner.Text())
			if textLine == "" {
				break
			}
			if clean := strings.TrimSpace(tagRe.ReplaceAllString(textLine, "")); clean != "" {
				textLines = append(textLines, clean)
			}
		}

		if len(textLines) == 0 {
			continue
		}

		cues = append(cues, types.Cue{
			Start: start,
			End:   end,
			Text:  strings.Join(textLines, " "),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := CheckOrder(cues); err != nil {
		return nil, err
	}
	return cues, nil
}

// CheckOrder verifies cues are non-decreasing in start and never end early.
func CheckOrder(cues []types.Cue) error {
	for i, c := range cues {
		if !finite(c.Start) || !finite(c.End) {
			return fmt.Errorf("%w: cue %d has a non-finite time", ErrCueOrder, i)
		}
		if c.End < c.Start {
			return fmt.Errorf("%w: cue %d ends at %.3f before it starts at %.3f", ErrCueOrder, i, c.End, c.Start)
		}
		if i > 0 && c.Start < cues[i-1].Start {
			return fmt.Errorf("%w: cue %d starts at %.3f before cue %d at %.3f", ErrCueOrder, i, c.Start, i-1, cues[i-1].Start)
		}
	}
	return nil
}

// ParseTimestamp converts HH:MM:SS.mmm, HH:MM:SS,mmm or MM:SS.mmm to seconds.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(ts), ",", "."), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	hours := 0
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil || h < 0 {
			return 0, fmt.Errorf("invalid hours in %q", ts)
		}
		hours = h
		parts = parts[1:]
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("invalid minutes in %q", ts)
	}

	if !secondsRe.MatchString(parts[1]) {
		return 0, fmt.Errorf("invalid seconds in %q", ts)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || seconds >= 60 {
		return 0, fmt.Errorf("invalid seconds in %q", ts)
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatTimestamp renders seconds as a WebVTT HH:MM:SS.mmm timestamp.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	minutes := (totalMillis / 60_000) % 60
	secs := (totalMillis / 1000) % 60
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
