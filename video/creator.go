package video

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"

	"nightreel/captions"
	"nightreel/config"
	"nightreel/frames"
	"nightreel/types"
	"nightreel/workdir"
)

// Compositor turns synchronized scenes into one rendered vertical video.
// Scenes render to silent segments in parallel; a single final encode then
// concatenates them in script order under the voice and music bed.
type Compositor struct {
	opts     Options
	runner   Runner
	prober   Prober
	workdirs *workdir.Manager
	captions *captions.Renderer
	logger   zerolog.Logger
	pick     func(n int) int
}

func NewCompositor(opts Options, runner Runner, prober Prober, workdirs *workdir.Manager, logger zerolog.Logger) *Compositor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Preset == "" {
		opts.Preset = config.VideoPreset
	}
	logger = logger.With().Str("component", "compositor").Logger()

	return &Compositor{
		opts:     opts,
		runner:   runner,
		prober:   prober,
		workdirs: workdirs,
		captions: captions.NewRenderer(opts.Style.Caption, logger),
		logger:   logger,
		pick:     rand.Intn,
	}
}

// Result describes a finished render.
type Result struct {
	Output   string
	Duration float64
	Scenes   []types.Scene
	Music    string
}

// Assemble renders req to req.Output. The output appears only when the
// whole render succeeded; intermediate files are removed on every path.
func (c *Compositor) Assemble(ctx context.Context, req Request) (*Result, error) {
	if len(req.Scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes", types.ErrInvalidJob)
	}
	if req.Output == "" {
		return nil, fmt.Errorf("%w: no output path", types.ErrInvalidJob)
	}
	if err := checkAssets(req); err != nil {
		return nil, err
	}

	scenes, err := c.resolveDurations(ctx, req)
	if err != nil {
		return nil, err
	}
	timeline := BuildTimeline(scenes)

	run, err := c.workdirs.Acquire()
	if err != nil {
		return nil, err
	}
	defer run.Release()

	logger := c.logger.With().Str("run", run.ID).Logger()
	logger.Info().
		Int("scenes", len(scenes)).
		Float64("duration", timeline.Total).
		Bool("continuous", req.Narration != "").
		Msg("assembling video")
	started := time.Now()

	vignette := c.prepareVignette(run, logger)

	segments := make([]string, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i := range scenes {
		g.Go(func() error {
			path, err := c.renderSegment(gctx, run, i, scenes[i], vignette)
			if err != nil {
				return err
			}
			segments[i] = path
			logger.Debug().Int("scene", i).Float64("duration", scenes[i].Duration).Msg("segment rendered")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	voice := voiceTrack(scenes, req.Narration, timeline.Total)
	music, track := c.music(ctx, req.Music, timeline.Total, logger)

	staged := run.Path("final" + filepath.Ext(req.Output))
	graph := finalGraph(segments, voice, music, timeline.Total, c.opts.Style.Frame.FPS, c.opts.Preset, staged)
	if err := c.runner.Run(ctx, compile(graph)); err != nil {
		return nil, fmt.Errorf("%w: final encode: %w", ErrRenderFailure, err)
	}

	if err := moveFile(staged, req.Output); err != nil {
		return nil, fmt.Errorf("%w: move output: %w", ErrRenderFailure, err)
	}

	logger.Info().
		Str("output", req.Output).
		Dur("elapsed", time.Since(started)).
		Msg("video rendered")

	return &Result{
		Output:   req.Output,
		Duration: timeline.Total,
		Scenes:   scenes,
		Music:    track,
	}, nil
}

func checkAssets(req Request) error {
	for i, s := range req.Scenes {
		if _, err := os.Stat(s.Image); err != nil {
			return fmt.Errorf("%w: scene %d image: %w", ErrAssetMissing, i, err)
		}
		if req.Narration == "" && s.Audio != "" {
			if _, err := os.Stat(s.Audio); err != nil {
				return fmt.Errorf("%w: scene %d audio: %w", ErrAssetMissing, i, err)
			}
		}
	}
	if req.Narration != "" {
		if _, err := os.Stat(req.Narration); err != nil {
			return fmt.Errorf("%w: narration: %w", ErrAssetMissing, err)
		}
	}
	return nil
}

// resolveDurations fills missing per-scene durations from the scene audio.
func (c *Compositor) resolveDurations(ctx context.Context, req Request) ([]types.Scene, error) {
	scenes := make([]types.Scene, len(req.Scenes))
	copy(scenes, req.Scenes)

	for i := range scenes {
		s := &scenes[i]
		if s.Duration > 0 {
			continue
		}
		if req.Narration == "" && s.Audio != "" {
			d, err := c.prober.Duration(ctx, s.Audio)
			if err != nil {
				return nil, fmt.Errorf("%w: scene %d audio unreadable: %w", ErrAssetMissing, i, err)
			}
			s.Duration = d
			continue
		}
		c.logger.Warn().Int("scene", i).Float64("fallback", config.FallbackSceneDuration).Msg("scene has no duration, using fallback")
		s.Duration = config.FallbackSceneDuration
	}
	return scenes, nil
}

// prepareVignette writes the mask shared by every segment of the run. An
// empty path means segments render without it.
func (c *Compositor) prepareVignette(run *workdir.Run, logger zerolog.Logger) string {
	fs := c.opts.Style.Frame
	if fs.VignetteOpacity <= 0 {
		return ""
	}

	path := run.Path("vignette.png")
	v := frames.Vignette{Width: fs.Width, Height: fs.Height, Opacity: fs.VignetteOpacity}
	if err := v.WriteMask(path); err != nil {
		logger.Warn().Err(fmt.Errorf("%w: %w", ErrOverlayUnavailable, err)).Msg("rendering without vignette")
		return ""
	}
	return path
}

func (c *Compositor) renderSegment(ctx context.Context, run *workdir.Run, i int, scene types.Scene, vignette string) (string, error) {
	fs := c.opts.Style.Frame
	prefix := fmt.Sprintf("scene-%03d", i)

	still := run.Path(prefix + "-still.png")
	if err := frames.PrepareStill(scene.Image, still, fs.Width, fs.Height); err != nil {
		return "", fmt.Errorf("%w: scene %d image: %w", ErrAssetMissing, i, err)
	}

	overlays := c.captions.RenderScene(scene.Text, scene.Duration, run.Dir, prefix)

	output := run.Path(prefix + ".mp4")
	graph := segmentGraph(segmentJob{
		still:    still,
		vignette: vignette,
		overlays: overlays,
		duration: scene.Duration,
		output:   output,
	}, c.opts.Style, c.opts.Preset)

	if err := c.runner.Run(ctx, compile(graph)); err != nil {
		return "", fmt.Errorf("%w: scene %d: %w", ErrRenderFailure, i, err)
	}
	return output, nil
}

// music builds the looped, trimmed, attenuated bed, or nil when music is off
// or no track is available.
func (c *Compositor) music(ctx context.Context, opts types.MusicOptions, total float64, logger zerolog.Logger) (*ffmpeg.Stream, string) {
	if !opts.IsEnabled(c.opts.BGMEnabled) {
		return nil, ""
	}

	explicit := opts.Track
	if explicit == "" {
		explicit = c.opts.BGMTrack
	}
	track, err := resolveTrack(explicit, c.opts.BGMDir, c.pick)
	if err != nil {
		logger.Warn().Err(fmt.Errorf("%w: %w", ErrOverlayUnavailable, err)).Msg("rendering without music")
		return nil, ""
	}
	if track == "" {
		logger.Info().Str("dir", c.opts.BGMDir).Msg("no background music found")
		return nil, ""
	}
	if explicit != "" && filepath.Base(track) != filepath.Base(explicit) {
		logger.Warn().Str("requested", explicit).Str("using", track).Msg("requested music track not found")
	}

	length, err := c.prober.Duration(ctx, track)
	if err != nil {
		// unknown length still renders: loop without bound and trim
		logger.Warn().Err(err).Str("track", track).Msg("music length unknown")
		length = 0
	}
	plan := PlanMusic(length, total)

	logger.Info().
		Str("track", track).
		Int("loops", plan.Loops).
		Float64("gain", c.opts.BGMVolume).
		Msg("adding background music")

	return musicTrack(track, plan, c.opts.BGMVolume), track
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// temp and output may sit on different filesystems: copy beside dst, then rename
	partial := dst + ".partial"
	if err := copyFile(src, partial); err != nil {
		os.Remove(partial)
		return err
	}
	return os.Rename(partial, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
