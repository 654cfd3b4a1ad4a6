package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nightreel",
	Short: "Assemble narrated vertical videos from stills, voice and captions",
	Long: `nightreel turns a list of scenes (text, still image, narration) into a
1080x1920 video with Ken Burns motion, a vignette, karaoke captions and a
looped music bed. Jobs can be rendered directly, served over HTTP, consumed
from Kafka or picked up from a watched directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log ffmpeg invocations and other debug output")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(cleanCmd)
}
