package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nightreel/video"
)

var renderCmd = &cobra.Command{
	Use:   "render <job.json|dir>...",
	Short: "Render job files to video",
	Long: `Render one or more job files. A directory argument renders every *.json job
in it, MAX_CONCURRENT_JOBS at a time. Relative asset paths in a job are
resolved against the job file's directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

var renderOpts appOptions

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.outputDir, "output-dir", "o", "", "Override OUTPUT_DIR")
	renderCmd.Flags().BoolVar(&renderOpts.noMusic, "no-music", false, "Disable background music for these jobs")
	renderCmd.Flags().BoolVar(&renderOpts.noPublish, "no-publish", false, "Skip S3/YouTube publishing")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, renderOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(TitleStyle.Render("nightreel render"))

	failed := 0
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := a.proc.ProcessDirectory(ctx, arg); err != nil {
				fmt.Println(ErrorStyle.Render(err.Error()))
				failed++
			}
			continue
		}

		res, err := a.proc.ProcessFile(ctx, arg)
		if err != nil {
			fmt.Println(ErrorStyle.Render(fmt.Sprintf("✗ %s: %v", filepath.Base(arg), err)))
			failed++
			continue
		}
		fmt.Println(renderSummary(arg, res))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(args))
	}
	return nil
}

func renderSummary(job string, res *video.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", SuccessStyle.Render("✓"), HighlightStyle.Render(filepath.Base(job)))
	fmt.Fprintf(&b, "%s %s\n", InfoStyle.Render("output:  "), res.Output)
	fmt.Fprintf(&b, "%s %.2fs across %d scenes\n", InfoStyle.Render("duration:"), res.Duration, len(res.Scenes))
	music := res.Music
	if music == "" {
		music = "none"
	}
	fmt.Fprintf(&b, "%s %s", InfoStyle.Render("music:   "), music)
	return BoxStyle.Render(b.String())
}
