package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nightreel/config"
	"nightreel/jobs"
	"nightreel/timing"
	"nightreel/types"
	"nightreel/video"
)

// Assembler renders a synchronized request; *video.Compositor in production.
type Assembler interface {
	Assemble(ctx context.Context, req video.Request) (*video.Result, error)
}

// Publisher ships a finished render somewhere and returns its location.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, job *types.Job, res *video.Result) (string, error)
}

// Processor runs jobs end to end: sync, assemble, persist the script,
// publish, recording each step in the status store.
type Processor struct {
	cfg        *config.Config
	assembler  Assembler
	store      jobs.Store
	publishers []Publisher
	logger     zerolog.Logger
}

func NewProcessor(cfg *config.Config, assembler Assembler, store jobs.Store, logger zerolog.Logger, publishers ...Publisher) *Processor {
	if store == nil {
		store = jobs.NewMemoryStore()
	}
	return &Processor{
		cfg:        cfg,
		assembler:  assembler,
		store:      store,
		publishers: publishers,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// Store exposes the status store so other entry points can report on jobs.
func (p *Processor) Store() jobs.Store { return p.store }

// Synchronize assigns scene durations. Per-scene jobs pass through
// unchanged; continuous jobs are matched against their cue track.
func (p *Processor) Synchronize(job *types.Job) ([]types.Scene, timing.Report, error) {
	if !job.Continuous() {
		scenes := make([]types.Scene, len(job.Scenes))
		copy(scenes, job.Scenes)
		return scenes, timing.Report{}, nil
	}

	cues := job.Cues
	if len(cues) == 0 {
		parsed, err := timing.ParseCueFile(job.CuesFile)
		if errors.Is(err, os.ErrNotExist) {
			return nil, timing.Report{}, fmt.Errorf("%w: %w", video.ErrAssetMissing, err)
		}
		if err != nil {
			return nil, timing.Report{}, fmt.Errorf("%w: %w", types.ErrInvalidJob, err)
		}
		cues = parsed
	} else if err := timing.CheckOrder(cues); err != nil {
		return nil, timing.Report{}, fmt.Errorf("%w: %w", types.ErrInvalidJob, err)
	}

	scenes, report := timing.Synchronize(job.Scenes, cues, timing.DefaultOptions())
	if err := report.Err(); err != nil {
		p.logger.Warn().Err(err).Str("job", job.ID).Int("matched", report.Matched).Msg("narration sync degraded")
	}
	return scenes, report, nil
}

// Process runs one job. The returned error wraps one of the sentinel
// errors from types or video.
func (p *Processor) Process(ctx context.Context, job *types.Job) (*video.Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	logger := p.logger.With().Str("job", job.ID).Logger()
	status := types.JobStatus{ID: job.ID}

	if err := job.Validate(); err != nil {
		p.fail(ctx, status, err)
		return nil, err
	}

	p.track(ctx, status, types.JobSyncing)
	scenes, _, err := p.Synchronize(job)
	if err != nil {
		p.fail(ctx, status, err)
		return nil, err
	}

	p.track(ctx, status, types.JobRendering)
	logger.Info().Int("scenes", len(scenes)).Bool("continuous", job.Continuous()).Msg("rendering job")

	res, err := p.assembler.Assemble(ctx, video.Request{
		Scenes:    scenes,
		Narration: job.Narration,
		Music:     job.Music,
		Output:    p.OutputPath(job),
	})
	if err != nil {
		p.fail(ctx, status, err)
		return nil, err
	}
	status.Output = res.Output

	if err := writeScript(job, res); err != nil {
		logger.Warn().Err(err).Msg("failed to save script next to video")
	}

	if len(p.publishers) > 0 {
		p.track(ctx, status, types.JobPublishing)
		for _, pub := range p.publishers {
			location, err := pub.Publish(ctx, job, res)
			if err != nil {
				err = fmt.Errorf("publish to %s: %w", pub.Name(), err)
				p.fail(ctx, status, err)
				return res, err
			}
			logger.Info().Str("publisher", pub.Name()).Str("location", location).Msg("video published")
			if status.Location == "" {
				status.Location = location
			}
		}
	}

	p.track(ctx, status, types.JobDone)
	logger.Info().Str("output", res.Output).Float64("duration", res.Duration).Msg("job done")
	return res, nil
}

// OutputPath is OutputDir/<output_name or id>.mp4.
func (p *Processor) OutputPath(job *types.Job) string {
	name := plainName(job.OutputName)
	if name == "" {
		name = plainName(job.ID)
	}
	if name == "" {
		name = uuid.NewString()
	}
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return filepath.Join(p.cfg.OutputDir, name)
}

// plainName strips any directory part so names from clients stay inside
// OutputDir.
func plainName(name string) string {
	if name == "" {
		return ""
	}
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}

func (p *Processor) track(ctx context.Context, status types.JobStatus, state types.JobState) {
	status.State = state
	status.UpdatedAt = time.Now().UTC()
	if err := p.store.Put(ctx, status); err != nil {
		p.logger.Warn().Err(err).Str("job", status.ID).Str("state", string(state)).Msg("failed to record job status")
	}
}

func (p *Processor) fail(ctx context.Context, status types.JobStatus, err error) {
	status.Error = err.Error()
	p.track(ctx, status, types.JobFailed)
	p.logger.Error().Err(err).Str("job", status.ID).Msg("job failed")
}

// LoadJobFile reads a job envelope. Relative asset paths are resolved
// against the file's directory when they do not exist as given, and a
// missing id defaults to the file name.
func LoadJobFile(path string) (*types.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", types.ErrInvalidJob, filepath.Base(path), err)
	}

	if job.ID == "" {
		job.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	base := filepath.Dir(path)
	for i := range job.Scenes {
		job.Scenes[i].Image = resolveAsset(base, job.Scenes[i].Image)
		job.Scenes[i].Audio = resolveAsset(base, job.Scenes[i].Audio)
	}
	job.Narration = resolveAsset(base, job.Narration)
	job.CuesFile = resolveAsset(base, job.CuesFile)

	return &job, nil
}

func resolveAsset(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(base, path)
}

// ProcessFile loads and processes one job file.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*video.Result, error) {
	job, err := LoadJobFile(path)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, job)
}

// ProcessDirectory processes every *.json job in dir, MaxConcurrentJobs at a time.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	var files []string
	for _, m := range matches {
		if isJobFile(m) {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		p.logger.Info().Str("dir", dir).Msg("no job files found")
		return nil
	}

	p.logger.Info().Int("jobs", len(files)).Str("dir", dir).Msg("processing job directory")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	semaphore := make(chan struct{}, max(1, p.cfg.MaxConcurrentJobs))

	for i, file := range files {
		wg.Add(1)

		go func(idx int, file string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			p.logger.Info().Msgf("[%d/%d] processing %s", idx+1, len(files), filepath.Base(file))
			if _, err := p.ProcessFile(ctx, file); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(file), err))
				mu.Unlock()
			}
		}(i, file)
	}

	wg.Wait()
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d jobs failed: %w", len(failures), len(files), errors.Join(failures...))
	}
	p.logger.Info().Int("jobs", len(files)).Msg("all jobs processed")
	return nil
}

// scriptFile is the metadata saved next to each rendered video.
type scriptFile struct {
	ID         string        `json:"id"`
	Title      string        `json:"title,omitempty"`
	Narration  string        `json:"narration,omitempty"`
	Music      string        `json:"music,omitempty"`
	Duration   float64       `json:"duration"`
	Scenes     []types.Scene `json:"scenes"`
	RenderedAt time.Time     `json:"rendered_at"`
}

// ScriptPath is the metadata file written beside a rendered video:
// out/clip.mp4 gets out/clip.script.json.
func ScriptPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".script.json"
}

func writeScript(job *types.Job, res *video.Result) error {
	data, err := json.MarshalIndent(scriptFile{
		ID:         job.ID,
		Title:      job.Title,
		Narration:  job.Narration,
		Music:      res.Music,
		Duration:   res.Duration,
		Scenes:     res.Scenes,
		RenderedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ScriptPath(res.Output), data, 0o644)
}
