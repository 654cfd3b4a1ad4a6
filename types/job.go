package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidJob is returned when a job envelope cannot be assembled as given.
var ErrInvalidJob = errors.New("invalid job")

// Job is the envelope accepted by every entry point: CLI, HTTP, Kafka and
// the directory watcher.
type Job struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Scenes []Scene `json:"scenes"`

	// Description and Tags are only used by publishers.
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Narration is a single continuous voice track. When set, scene
	// durations come from the cue track and scenes must not carry audio.
	Narration string `json:"narration,omitempty"`
	CuesFile  string `json:"cues_file,omitempty"`
	Cues      []Cue  `json:"cues,omitempty"`

	Music      MusicOptions `json:"music"`
	OutputName string       `json:"output_name,omitempty"`
}

// MusicOptions selects the background music bed for a job.
type MusicOptions struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Track   string `json:"track,omitempty"`
}

// IsEnabled falls back to def when the job does not say.
func (m MusicOptions) IsEnabled(def bool) bool {
	if m.Enabled == nil {
		return def
	}
	return *m.Enabled
}

// Continuous reports whether the job uses one narration track for all scenes.
func (j *Job) Continuous() bool {
	return j.Narration != ""
}

// Validate checks the structural rules of a job. It does not touch the
// filesystem; missing assets are detected at composite time.
func (j *Job) Validate() error {
	if j.ID == "." || j.ID == ".." || strings.ContainsAny(j.ID, `/\`) {
		return fmt.Errorf("%w: id %q is not a plain name", ErrInvalidJob, j.ID)
	}
	if len(j.Scenes) == 0 {
		return fmt.Errorf("%w: no scenes", ErrInvalidJob)
	}

	for i, s := range j.Scenes {
		if strings.TrimSpace(s.Image) == "" {
			return fmt.Errorf("%w: scene %d has no image", ErrInvalidJob, i)
		}
		if j.Continuous() && s.Audio != "" {
			return fmt.Errorf("%w: scene %d carries audio but the job has a continuous narration", ErrInvalidJob, i)
		}
		if !j.Continuous() && s.Audio == "" && s.Duration <= 0 {
			return fmt.Errorf("%w: scene %d needs audio or a positive duration", ErrInvalidJob, i)
		}
	}

	if j.Continuous() && len(j.Cues) == 0 && j.CuesFile == "" {
		return fmt.Errorf("%w: continuous narration requires cues or cues_file", ErrInvalidJob)
	}

	return nil
}

// JobState is the lifecycle position of a job in the status store.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobSyncing    JobState = "syncing"
	JobRendering  JobState = "rendering"
	JobPublishing JobState = "publishing"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
)

// JobStatus is the record kept for each job.
type JobStatus struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Output    string    `json:"output,omitempty"`
	Location  string    `json:"location,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
