package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"nightreel/config"
	"nightreel/services"
	"nightreel/workdir"
)

// Server is the HTTP front end of the assembly pipeline. Jobs posted to it
// run on a bounded worker pool; their progress is read back from the
// processor's status store.
type Server struct {
	cfg      *config.Config
	proc     *services.Processor
	workdirs *workdir.Manager
	pool     *ants.Pool
	logger   zerolog.Logger

	httpServer *http.Server
	cron       *cron.Cron
	cronID     cron.EntryID
	mu         sync.Mutex

	// jobs outlive their request; cancel aborts them on shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires routes onto addr. The pool is owned by the caller.
func NewServer(cfg *config.Config, proc *services.Processor, workdirs *workdir.Manager, pool *ants.Pool, addr string, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		proc:     proc,
		workdirs: workdirs,
		pool:     pool,
		logger:   logger.With().Str("component", "api").Logger(),
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router constructs the Gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	g := r.Group("/api")
	g.POST("/jobs", s.handleSubmitJob)
	g.GET("/jobs/:id", s.handleGetJob)
	g.POST("/sync", s.handleSync)
	g.GET("/bgm", s.handleListTracks)
	return r
}

// Start serves in the background.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting api server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal().Err(err).Msg("http server error")
		}
	}()
}

// StartCron schedules the sweep of stale run directories.
func (s *Server) StartCron(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = id
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("workdir sweep scheduled")
	return nil
}

func (s *Server) sweep() {
	removed, err := s.workdirs.Sweep(s.cfg.WorkdirMaxAge)
	if err != nil {
		s.logger.Warn().Err(err).Msg("workdir sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("swept stale run directories")
	}
}

// Shutdown stops the cron, the listener and any running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down api server")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	return err
}
