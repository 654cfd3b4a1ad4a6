package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"nightreel/jobs"
	"nightreel/timing"
	"nightreel/types"
	"nightreel/video"
)

// JobResponse is the envelope returned by the job endpoints.
type JobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncRequest carries scenes plus either parsed cues or a raw WebVTT/SRT body.
type SyncRequest struct {
	Scenes []types.Scene `json:"scenes" binding:"required"`
	Cues   []types.Cue   `json:"cues"`
	VTT    string        `json:"vtt"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSubmitJob validates the envelope, records it as queued and hands it
// to the worker pool. POST /api/jobs
func (s *Server) handleSubmitJob(c *gin.Context) {
	var job types.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		s.respondWithError(c, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		s.respondWithError(c, http.StatusBadRequest, "Invalid job", err)
		return
	}

	store := s.proc.Store()
	if _, err := store.Get(c.Request.Context(), job.ID); err == nil {
		s.respondWithError(c, http.StatusConflict, "Job already exists", fmt.Errorf("job %q already submitted", job.ID))
		return
	} else if !errors.Is(err, jobs.ErrNotFound) {
		s.respondWithError(c, http.StatusInternalServerError, "Failed to read job", err)
		return
	}
	if err := store.Put(c.Request.Context(), types.JobStatus{ID: job.ID, State: types.JobQueued, UpdatedAt: time.Now().UTC()}); err != nil {
		s.respondWithError(c, http.StatusInternalServerError, "Failed to record job", err)
		return
	}

	s.logger.Info().Str("job", job.ID).Int("scenes", len(job.Scenes)).Msg("received job")

	err := s.pool.Submit(func() {
		// failures are recorded in the status store
		_, _ = s.proc.Process(s.ctx, &job)
	})
	if err != nil {
		_ = store.Put(c.Request.Context(), types.JobStatus{ID: job.ID, State: types.JobFailed, Error: err.Error(), UpdatedAt: time.Now().UTC()})
		status := http.StatusInternalServerError
		if errors.Is(err, ants.ErrPoolOverload) {
			status = http.StatusServiceUnavailable
		}
		s.respondWithError(c, status, "Job not accepted", err)
		return
	}

	c.JSON(http.StatusAccepted, JobResponse{Success: true, Message: "Job queued", JobID: job.ID})
}

// GET /api/jobs/:id
func (s *Server) handleGetJob(c *gin.Context) {
	status, err := s.proc.Store().Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		s.respondWithError(c, http.StatusNotFound, "Job not found", nil)
		return
	}
	if err != nil {
		s.respondWithError(c, http.StatusInternalServerError, "Failed to read job", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleSync runs the synchronizer alone so callers can inspect scene
// timings before committing to a render. POST /api/sync
func (s *Server) handleSync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondWithError(c, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	cues := req.Cues
	var err error
	if strings.TrimSpace(req.VTT) != "" {
		cues, err = timing.ParseCues(strings.NewReader(req.VTT))
	} else {
		err = timing.CheckOrder(cues)
	}
	if err != nil {
		s.respondWithError(c, http.StatusBadRequest, "Invalid cues", err)
		return
	}

	scenes, report := timing.Synchronize(req.Scenes, cues, timing.DefaultOptions())
	resp := gin.H{
		"scenes":   scenes,
		"total":    types.TotalDuration(scenes),
		"matched":  report.Matched,
		"degraded": report.Degraded,
	}
	if err := report.Err(); err != nil {
		resp["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/bgm
func (s *Server) handleListTracks(c *gin.Context) {
	tracks, err := video.ListTracks(s.cfg.BGMDir)
	if err != nil {
		s.respondWithError(c, http.StatusInternalServerError, "Failed to list music", err)
		return
	}
	if tracks == nil {
		tracks = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"dir": s.cfg.BGMDir, "tracks": tracks})
}

func (s *Server) respondWithError(c *gin.Context, status int, message string, err error) {
	resp := JobResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Warn().Err(err).Int("status", status).Msg(message)
	}
	c.JSON(status, resp)
}
