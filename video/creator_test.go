package video

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"nightreel/config"
	"nightreel/frames"
	"nightreel/types"
	"nightreel/workdir"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	failOn string
}

func (f *fakeRunner) Run(ctx context.Context, args []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	joined := strings.Join(args, " ")
	if f.failOn != "" && strings.Contains(joined, f.failOn) {
		return errors.New("exit status 1")
	}
	for _, a := range args {
		if strings.HasSuffix(a, ".mp4") {
			if _, err := os.Stat(a); os.IsNotExist(err) {
				if err := os.WriteFile(a, []byte("mp4"), 0o644); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (f *fakeRunner) final() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		joined := strings.Join(c, " ")
		if strings.Contains(joined, "concat") {
			return joined
		}
	}
	return ""
}

type fakeProber struct {
	durations map[string]float64
}

func (f fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	d, ok := f.durations[filepath.Base(path)]
	if !ok {
		return 0, errors.New("invalid data found when processing input")
	}
	return d, nil
}

type fixture struct {
	dir      string
	temp     string
	bgm      string
	runner   *fakeRunner
	prober   fakeProber
	compose  *Compositor
	cfg      *config.Config
	scenes   []types.Scene
	outputTo string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Width, cfg.Height = 90, 160
	cfg.FontSize = 20
	cfg.FontsDir = filepath.Join(dir, "fonts")
	cfg.BGMDir = filepath.Join(dir, "bgm")
	cfg.TempDir = filepath.Join(dir, "temp")

	style, err := cfg.ResolveStyle(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var scenes []types.Scene
	for i, text := range []string{"The lights went out.", "Something moved in the hall."} {
		imgPath := filepath.Join(dir, []string{"a.png", "b.png"}[i])
		if err := frames.WritePNG(imgPath, img); err != nil {
			t.Fatal(err)
		}
		audio := filepath.Join(dir, []string{"a.mp3", "b.mp3"}[i])
		if err := os.WriteFile(audio, []byte("id3"), 0o644); err != nil {
			t.Fatal(err)
		}
		scenes = append(scenes, types.Scene{Text: text, Image: imgPath, Audio: audio})
	}

	if err := os.MkdirAll(cfg.BGMDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bgm := filepath.Join(cfg.BGMDir, "drone.mp3")
	if err := os.WriteFile(bgm, []byte("id3"), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := workdir.New(cfg.TempDir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	prober := fakeProber{durations: map[string]float64{"a.mp3": 2.5, "b.mp3": 3.5, "drone.mp3": 4.0}}

	return &fixture{
		dir:      dir,
		temp:     cfg.TempDir,
		bgm:      bgm,
		runner:   runner,
		prober:   prober,
		compose:  NewCompositor(OptionsFromConfig(cfg, style), runner, prober, wd, zerolog.Nop()),
		cfg:      cfg,
		scenes:   scenes,
		outputTo: filepath.Join(dir, "output", "story.mp4"),
	}
}

func (f *fixture) assertNoRunDirs(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.temp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("workdir not released: %d entries left", len(entries))
	}
}

func TestAssemblePerSceneAudio(t *testing.T) {
	f := newFixture(t)

	res, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if _, err := os.Stat(f.outputTo); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if res.Duration != 6.0 {
		t.Errorf("Duration = %v; want 6.0 from probed audio", res.Duration)
	}
	if res.Music != f.bgm {
		t.Errorf("Music = %q; want %q", res.Music, f.bgm)
	}
	if len(f.runner.calls) != 3 {
		t.Fatalf("ffmpeg ran %d times; want 2 segments + 1 final", len(f.runner.calls))
	}

	final := f.runner.final()
	for _, want := range []string{"amix", "volume", "0.300", "a.mp3", "b.mp3", "libx264", "aac", "yuv420p"} {
		if !strings.Contains(final, want) {
			t.Errorf("final command missing %q", want)
		}
	}
	if strings.Index(final, "scene-000.mp4") > strings.Index(final, "scene-001.mp4") {
		t.Error("segments not concatenated in script order")
	}

	f.assertNoRunDirs(t)
}

func TestAssembleMusicPlan(t *testing.T) {
	cases := []struct {
		name   string
		source float64
		loops  string
	}{
		{"short track loops", 4.0, "1"},
		{"long track trims", 10.0, "0"},
		{"exact length", 6.0, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.prober.durations["drone.mp3"] = tc.source

			if _, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo}); err != nil {
				t.Fatalf("Assemble: %v", err)
			}

			final := f.runner.final()
			wantLoop := "-stream_loop " + tc.loops + " -i " + f.bgm
			if !strings.Contains(final, wantLoop) {
				t.Errorf("final command missing %q:\n%s", wantLoop, final)
			}
			if !strings.Contains(final, "atrim=duration=6.000") {
				t.Errorf("music not trimmed to the 6.0s timeline:\n%s", final)
			}
		})
	}
}

func TestAssembleSegmentGraph(t *testing.T) {
	f := newFixture(t)

	if _, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes[:1], Output: f.outputTo}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	segment := strings.Join(f.runner.calls[0], " ")
	for _, want := range []string{"zoompan", "vignette.png", "caption", "fade", "between(t,", "-t 2.500"} {
		if !strings.Contains(segment, want) {
			t.Errorf("segment command missing %q:\n%s", want, segment)
		}
	}
}

func TestAssembleContinuousNarration(t *testing.T) {
	f := newFixture(t)
	narration := filepath.Join(f.dir, "narration.mp3")
	if err := os.WriteFile(narration, []byte("id3"), 0o644); err != nil {
		t.Fatal(err)
	}

	scenes := []types.Scene{
		{Text: f.scenes[0].Text, Image: f.scenes[0].Image, Duration: 1.5},
		{Text: f.scenes[1].Text, Image: f.scenes[1].Image, Duration: 2.0},
	}
	disabled := false
	res, err := f.compose.Assemble(context.Background(), Request{
		Scenes:    scenes,
		Narration: narration,
		Music:     types.MusicOptions{Enabled: &disabled},
		Output:    f.outputTo,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Duration != 3.5 || res.Music != "" {
		t.Errorf("result = %+v", res)
	}

	final := f.runner.final()
	if !strings.Contains(final, "narration.mp3") || !strings.Contains(final, "apad") {
		t.Errorf("narration not laid under timeline: %s", final)
	}
	if strings.Contains(final, "amix") {
		t.Error("music mixed although disabled")
	}
}

func TestAssembleMissingAsset(t *testing.T) {
	f := newFixture(t)
	f.scenes[1].Image = filepath.Join(f.dir, "gone.png")

	_, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo})
	if !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("err = %v; want ErrAssetMissing", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("ffmpeg ran %d times before assets were checked", len(f.runner.calls))
	}
}

func TestAssembleUnreadableAudio(t *testing.T) {
	f := newFixture(t)
	delete(f.prober.durations, "b.mp3")

	_, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo})
	if !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("err = %v; want ErrAssetMissing", err)
	}
}

func TestAssembleRenderFailureIsAllOrNothing(t *testing.T) {
	cases := []struct {
		name   string
		failOn string
	}{
		{"segment", "scene-001-still.png"},
		{"final", "concat"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.failOn = c.failOn

			_, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo})
			if !errors.Is(err, ErrRenderFailure) {
				t.Fatalf("err = %v; want ErrRenderFailure", err)
			}
			if _, err := os.Stat(f.outputTo); !os.IsNotExist(err) {
				t.Error("partial output left behind")
			}
			f.assertNoRunDirs(t)
		})
	}
}

func TestAssembleWithoutMusicTracks(t *testing.T) {
	f := newFixture(t)
	if err := os.Remove(f.bgm); err != nil {
		t.Fatal(err)
	}

	res, err := f.compose.Assemble(context.Background(), Request{Scenes: f.scenes, Output: f.outputTo})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Music != "" || strings.Contains(f.runner.final(), "amix") {
		t.Error("music mixed with no tracks available")
	}
}

func TestAssembleFallbackDuration(t *testing.T) {
	f := newFixture(t)
	scenes := []types.Scene{{Text: "Silence.", Image: f.scenes[0].Image}}

	res, err := f.compose.Assemble(context.Background(), Request{Scenes: scenes, Output: f.outputTo})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Duration != config.FallbackSceneDuration {
		t.Errorf("Duration = %v; want fallback", res.Duration)
	}
	if !strings.Contains(f.runner.final(), "anullsrc") {
		t.Error("scene without audio not filled with silence")
	}
}

func TestBuildTimeline(t *testing.T) {
	tl := BuildTimeline([]types.Scene{{Duration: 2}, {Duration: 1.5}, {Duration: 3}})
	if tl.Total != 6.5 {
		t.Fatalf("Total = %v; want 6.5", tl.Total)
	}
	wantStarts := []float64{0, 2, 3.5}
	for i, s := range tl.Segments {
		if s.Start != wantStarts[i] || s.Index != i {
			t.Errorf("segment %d = %+v; want start %v", i, s, wantStarts[i])
		}
	}
}

func TestPlanMusic(t *testing.T) {
	cases := []struct {
		name          string
		source, total float64
		want          MusicPlan
	}{
		{"short source loops", 30, 45, MusicPlan{Loops: 1, Trim: 45}},
		{"exact multiple", 15, 45, MusicPlan{Loops: 2, Trim: 45}},
		{"long source trims", 120, 45, MusicPlan{Loops: 0, Trim: 45}},
		{"equal length", 45, 45, MusicPlan{Loops: 0, Trim: 45}},
		{"unknown length", 0, 45, MusicPlan{Loops: -1, Trim: 45}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := PlanMusic(c.source, c.total)
			if got != c.want {
				t.Fatalf("PlanMusic(%v, %v) = %+v; want %+v", c.source, c.total, got, c.want)
			}
			if got.Loops >= 0 && c.source*float64(got.Loops+1) < c.total {
				t.Fatalf("plan leaves a silent tail")
			}
		})
	}
}

func TestResolveTrack(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp3", "a.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tracks, err := ListTracks(dir)
	if err != nil || len(tracks) != 2 {
		t.Fatalf("ListTracks = %v, %v; want 2 audio files", tracks, err)
	}

	first := func(int) int { return 0 }
	if got, _ := resolveTrack("b.mp3", dir, first); got != filepath.Join(dir, "b.mp3") {
		t.Errorf("explicit track = %q", got)
	}
	if got, _ := resolveTrack("missing.mp3", dir, first); got != filepath.Join(dir, "a.wav") {
		t.Errorf("fallback track = %q; want first listed", got)
	}
	if got, err := resolveTrack("", filepath.Join(dir, "none"), first); got != "" || err != nil {
		t.Errorf("missing dir = %q, %v; want empty", got, err)
	}
}

func TestParseProbeDuration(t *testing.T) {
	got, err := parseProbeDuration(`{"format":{"duration":"12.480000"}}`)
	if err != nil || got != 12.48 {
		t.Fatalf("format duration = %v, %v", got, err)
	}

	got, err = parseProbeDuration(`{"format":{},"streams":[{"codec_type":"audio","duration":"3.5"}]}`)
	if err != nil || got != 3.5 {
		t.Fatalf("stream duration = %v, %v", got, err)
	}

	if _, err := parseProbeDuration(`{"format":{"duration":"N/A"}}`); err == nil {
		t.Fatal("expected error for missing duration")
	}
}
