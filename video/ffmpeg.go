package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Runner executes one compiled ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// Prober reports the playable length of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ExecRunner runs the ffmpeg binary found on PATH.
type ExecRunner struct {
	Binary string
	Logger zerolog.Logger
}

func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{Binary: "ffmpeg", Logger: logger}
}

// Run blocks until ffmpeg exits. Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stderr = &stderr

	r.Logger.Debug().Strs("args", args).Msg("running ffmpeg")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 800))
	}
	return nil
}

// compile turns an ffmpeg-go graph into command-line arguments.
func compile(stream *ffmpeg.Stream) []string {
	return stream.OverWriteOutput().GetArgs()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// FFProbe reads durations through ffprobe's JSON output.
type FFProbe struct{}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func (FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out string) (float64, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return 0, fmt.Errorf("parse probe output: %w", err)
	}

	candidates := []string{res.Format.Duration}
	for _, s := range res.Streams {
		if s.CodecType == "audio" {
			candidates = append(candidates, s.Duration)
		}
	}
	for _, c := range candidates {
		if d, err := strconv.ParseFloat(c, 64); err == nil && d > 0 {
			return d, nil
		}
	}
	return 0, fmt.Errorf("probe output has no duration")
}
