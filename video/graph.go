package video

import (
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"nightreel/captions"
	"nightreel/config"
	"nightreel/frames"
	"nightreel/types"
)

// segmentJob is everything needed to render one scene to a silent clip.
type segmentJob struct {
	still    string
	vignette string
	overlays []captions.Overlay
	duration float64
	output   string
}

func secs(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// segmentGraph: looped still -> zoompan -> vignette overlay -> caption
// overlays, each fading in at its offset, cut to the exact scene duration.
func segmentGraph(job segmentJob, style *config.ResolvedStyle, preset string) *ffmpeg.Stream {
	fs := style.Frame
	dur := secs(job.duration)
	kb := frames.KenBurns{Ratio: fs.ZoomRatio, Duration: job.duration, FPS: fs.FPS}

	video := ffmpeg.Input(job.still, ffmpeg.KwArgs{"loop": 1, "framerate": fs.FPS, "t": dur}).
		Filter("zoompan", ffmpeg.Args{}, kb.ZoompanArgs(fs.Width, fs.Height))

	if job.vignette != "" {
		mask := ffmpeg.Input(job.vignette, ffmpeg.KwArgs{"loop": 1, "framerate": fs.FPS, "t": dur})
		video = video.Overlay(mask, "repeat")
	}

	for _, o := range job.overlays {
		end := o.Offset + o.Duration
		caption := ffmpeg.Input(o.Path, ffmpeg.KwArgs{"loop": 1, "framerate": fs.FPS, "t": secs(end)}).
			Filter("format", ffmpeg.Args{"rgba"}).
			Filter("fade", ffmpeg.Args{}, ffmpeg.KwArgs{
				"t":     "in",
				"st":    secs(o.Offset),
				"d":     secs(style.Caption.FadeIn),
				"alpha": 1,
			})
		video = video.Overlay(caption, "pass", ffmpeg.KwArgs{
			"x":      "(W-w)/2",
			"y":      "(H-h)/2",
			"enable": fmt.Sprintf("between(t,%s,%s)", secs(o.Offset), secs(end)),
		})
	}

	return video.Output(job.output, ffmpeg.KwArgs{
		"t":       dur,
		"r":       fs.FPS,
		"c:v":     config.VideoCodec,
		"preset":  preset,
		"pix_fmt": config.PixelFormat,
	})
}

func normalizeAudio(s *ffmpeg.Stream) *ffmpeg.Stream {
	return s.Filter("aformat", ffmpeg.Args{}, ffmpeg.KwArgs{
		"sample_rates":    config.AudioSampleRate,
		"channel_layouts": "stereo",
	})
}

func silence(duration float64) *ffmpeg.Stream {
	src := fmt.Sprintf("anullsrc=r=%d:cl=stereo", config.AudioSampleRate)
	return ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi", "t": secs(duration)}).Audio()
}

// voiceTrack is the continuous narration padded or cut to total, or, in
// per-scene mode, each scene's audio fitted to its slot and concatenated.
// Scenes without audio get silence.
func voiceTrack(scenes []types.Scene, narration string, total float64) *ffmpeg.Stream {
	if narration != "" {
		return normalizeAudio(ffmpeg.Input(narration).Audio()).
			Filter("apad", ffmpeg.Args{}).
			Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": secs(total)})
	}

	parts := make([]*ffmpeg.Stream, len(scenes))
	for i, s := range scenes {
		if s.Audio == "" {
			parts[i] = silence(s.Duration)
			continue
		}
		parts[i] = normalizeAudio(ffmpeg.Input(s.Audio).Audio()).
			Filter("apad", ffmpeg.Args{}).
			Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": secs(s.Duration)}).
			Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"})
	}
	return ffmpeg.Concat(parts, ffmpeg.KwArgs{"v": 0, "a": 1})
}

// musicTrack loops and trims the bed per plan, at gain.
func musicTrack(track string, plan MusicPlan, gain float64) *ffmpeg.Stream {
	return normalizeAudio(ffmpeg.Input(track, ffmpeg.KwArgs{"stream_loop": plan.Loops}).Audio()).
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": secs(plan.Trim)}).
		Filter("volume", ffmpeg.Args{strconv.FormatFloat(gain, 'f', 3, 64)})
}

// finalGraph concatenates segments in order and lays voice (and music, if
// any) under them in one encode.
func finalGraph(segments []string, voice, music *ffmpeg.Stream, total float64, fps int, preset, output string) *ffmpeg.Stream {
	parts := make([]*ffmpeg.Stream, len(segments))
	for i, seg := range segments {
		parts[i] = ffmpeg.Input(seg).Video()
	}
	video := ffmpeg.Concat(parts, ffmpeg.KwArgs{"v": 1, "a": 0})

	audio := voice
	if music != nil {
		audio = ffmpeg.Filter([]*ffmpeg.Stream{voice, music}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
			"inputs":             2,
			"duration":           "first",
			"dropout_transition": 0,
			"normalize":          0,
		})
	}

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, output, ffmpeg.KwArgs{
		"t":        secs(total),
		"r":        fps,
		"c:v":      config.VideoCodec,
		"c:a":      config.AudioCodec,
		"b:a":      config.AudioBitrate,
		"preset":   preset,
		"pix_fmt":  config.PixelFormat,
		"movflags": "+faststart",
	})
}
