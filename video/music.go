package video

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MusicPlan fits a music source onto a timeline: the source is played
// Loops extra times back to back, then cut at Trim seconds.
type MusicPlan struct {
	Loops int
	Trim  float64
}

// PlanMusic loops a short source until it covers total and trims a long one
// to exactly total. An unknown source length (<= 0) loops indefinitely.
func PlanMusic(source, total float64) MusicPlan {
	if source <= 0 {
		return MusicPlan{Loops: -1, Trim: total}
	}
	if source >= total {
		return MusicPlan{Loops: 0, Trim: total}
	}
	return MusicPlan{Loops: int(math.Ceil(total/source)) - 1, Trim: total}
}

var musicExts = map[string]bool{".mp3": true, ".m4a": true, ".wav": true, ".ogg": true, ".aac": true, ".flac": true}

// ListTracks returns the music files in dir in name order. A missing
// directory is not an error.
func ListTracks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() || !musicExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, e.Name()))
	}
	sort.Strings(tracks)
	return tracks, nil
}

// resolveTrack picks the explicit track if it exists, otherwise a random
// track from dir via pick. Returns "" when nothing is available.
func resolveTrack(explicit, dir string, pick func(n int) int) (string, error) {
	if explicit != "" {
		candidate := explicit
		if _, err := os.Stat(candidate); err != nil && !filepath.IsAbs(explicit) {
			candidate = filepath.Join(dir, explicit)
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	tracks, err := ListTracks(dir)
	if err != nil || len(tracks) == 0 {
		return "", err
	}
	return tracks[pick(len(tracks))], nil
}
