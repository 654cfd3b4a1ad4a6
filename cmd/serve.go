package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"nightreel/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var (
	serveAddr string
	serveOpts appOptions
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :$PORT or :8080)")
	serveCmd.Flags().BoolVar(&serveOpts.noPublish, "no-publish", false, "Skip S3/YouTube publishing")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), serveOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = ":8080"
		if v := os.Getenv("PORT"); v != "" {
			addr = ":" + v
		}
	}

	pool, err := ants.NewPool(a.cfg.MaxConcurrentJobs,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error().Msgf("panic in job worker: %v", p)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	server := api.NewServer(a.cfg, a.proc, a.workdirs, pool, addr, logger)
	server.Start()
	if err := server.StartCron(a.cfg.SweepSchedule); err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("nightreel api on " + addr))
	fmt.Println(InfoStyle.Render(`  GET  /health
  POST /api/jobs
  GET  /api/jobs/:id
  POST /api/sync
  GET  /api/bgm`))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
