package cmd

import (
	"context"
	"os"

	"nightreel/config"
	"nightreel/jobs"
	"nightreel/services"
	"nightreel/video"
	"nightreel/workdir"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	workdirs *workdir.Manager
	proc     *services.Processor
	closers  []func() error
}

type appOptions struct {
	noPublish bool
	noMusic   bool
	outputDir string
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.noMusic {
		cfg.BGMEnabled = false
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	for _, dir := range []string{cfg.OutputDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	style, err := cfg.ResolveStyle(logger)
	if err != nil {
		return nil, err
	}

	workdirs, err := workdir.New(cfg.TempDir, logger)
	if err != nil {
		return nil, err
	}
	if _, err := workdirs.Sweep(cfg.WorkdirMaxAge); err != nil {
		logger.Warn().Err(err).Msg("startup workdir sweep failed")
	}

	a := &app{cfg: cfg, workdirs: workdirs}

	var store jobs.Store
	if os.Getenv("REDIS_ADDR") != "" {
		rs, err := jobs.NewRedisStore(ctx, jobs.RedisConfigFromEnv())
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, keeping job status in memory")
		} else {
			store = rs
			a.closers = append(a.closers, rs.Close)
		}
	}

	var publishers []services.Publisher
	if !opts.noPublish {
		publishers = services.PublishersFromEnv(ctx, logger)
	}

	compositor := video.NewCompositor(
		video.OptionsFromConfig(cfg, style),
		video.NewExecRunner(logger),
		video.FFProbe{},
		workdirs,
		logger,
	)
	a.proc = services.NewProcessor(cfg, compositor, store, logger, publishers...)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}
}
