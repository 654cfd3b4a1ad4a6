package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nightreel/services"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Render job files as they appear in a directory",
	Long: `Watch dir (default INPUT_DIR) and render every *.json job dropped into it.
Finished job files move to done/, failed ones to failed/.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every run directory under TEMP_DIR",
	Long:  "Remove leftover run directories. Do not run while another nightreel process renders.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{noPublish: true})
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.workdirs.Reset()
		if err != nil {
			return err
		}
		fmt.Println(SuccessStyle.Render(fmt.Sprintf("removed %d run directories from %s", removed, a.workdirs.Root())))
		return nil
	},
}

var watchOpts appOptions

func init() {
	watchCmd.Flags().BoolVar(&watchOpts.noPublish, "no-publish", false, "Skip S3/YouTube publishing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, watchOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.cfg.InputDir
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("nightreel watching " + dir))
	return services.NewWatcher(a.proc, dir, logger).Run(ctx)
}
