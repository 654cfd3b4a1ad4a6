package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"nightreel/config"
	"nightreel/services"
	"nightreel/types"
	"nightreel/video"
	"nightreel/workdir"
)

type stubAssembler struct{}

func (stubAssembler) Assemble(ctx context.Context, req video.Request) (*video.Result, error) {
	if err := os.WriteFile(req.Output, []byte("mp4"), 0o644); err != nil {
		return nil, err
	}
	return &video.Result{Output: req.Output, Duration: types.TotalDuration(req.Scenes), Scenes: req.Scenes}, nil
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.BGMDir = t.TempDir()
	cfg.WorkdirMaxAge = time.Hour

	workdirs, err := workdir.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	pool, err := ants.NewPool(2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Release)

	proc := services.NewProcessor(cfg, stubAssembler{}, nil, zerolog.Nop())
	s := NewServer(cfg, proc, workdirs, pool, ":0", zerolog.Nop())
	t.Cleanup(s.cancel)
	return s, s.Router()
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSubmitJobAndPollStatus(t *testing.T) {
	_, r := newTestServer(t)

	job := types.Job{
		ID:     "api-1",
		Scenes: []types.Scene{{Text: "Hi.", Image: "a.png", Duration: 2}},
	}
	w := do(t, r, http.MethodPost, "/api/jobs", job)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body %s", w.Code, w.Body)
	}
	var resp JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.JobID != "api-1" {
		t.Fatalf("resp = %+v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = do(t, r, http.MethodGet, "/api/jobs/api-1", nil)
		var status types.JobStatus
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		if status.State == types.JobDone {
			if filepath.Base(status.Output) != "api-1.mp4" {
				t.Errorf("output = %q", status.Output)
			}
			return
		}
		if status.State == types.JobFailed || time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitJobRejectsDuplicateID(t *testing.T) {
	s, r := newTestServer(t)

	existing := types.JobStatus{ID: "api-dup", State: types.JobDone, Output: "/out/api-dup.mp4", UpdatedAt: time.Now().UTC()}
	if err := s.proc.Store().Put(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	job := types.Job{
		ID:     "api-dup",
		Scenes: []types.Scene{{Text: "Hi.", Image: "a.png", Duration: 2}},
	}
	w := do(t, r, http.MethodPost, "/api/jobs", job)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409, body %s", w.Code, w.Body)
	}

	status, err := s.proc.Store().Get(context.Background(), "api-dup")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != types.JobDone || status.Output != existing.Output {
		t.Errorf("existing record overwritten: %+v", status)
	}
}

func TestSubmitJobRejectsInvalid(t *testing.T) {
	_, r := newTestServer(t)

	cases := []struct {
		name string
		body any
	}{
		{"no scenes", types.Job{ID: "x"}},
		{"audio in continuous job", types.Job{
			Narration: "n.mp3",
			Cues:      []types.Cue{{Start: 0, End: 1, Text: "a"}},
			Scenes:    []types.Scene{{Image: "a.png", Audio: "a.mp3"}},
		}},
		{"not json", "scenes"},
		{"id with path", types.Job{
			ID:     "../../etc/evil",
			Scenes: []types.Scene{{Image: "a.png", Duration: 2}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/jobs", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", w.Code)
			}
		})
	}
}

func TestGetUnknownJob(t *testing.T) {
	_, r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/api/jobs/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestSync(t *testing.T) {
	_, r := newTestServer(t)

	body := SyncRequest{
		Scenes: []types.Scene{{Text: "Hello world"}, {Text: "Goodbye now"}},
		VTT: "WEBVTT\n\n" +
			"00:00:00.000 --> 00:00:00.500\nHello\n\n" +
			"00:00:00.500 --> 00:00:01.000\nworld\n\n" +
			"00:00:01.200 --> 00:00:01.700\nGoodbye\n\n" +
			"00:00:01.700 --> 00:00:02.400\nnow\n",
	}
	w := do(t, r, http.MethodPost, "/api/sync", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body)
	}

	var resp struct {
		Scenes  []types.Scene `json:"scenes"`
		Matched int           `json:"matched"`
		Warning string        `json:"warning"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Matched != 2 || resp.Warning != "" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Scenes[1].Start != 1.2 || resp.Scenes[1].End != 2.4 {
		t.Errorf("scene 1 = %+v", resp.Scenes[1])
	}

	body.VTT = ""
	body.Cues = []types.Cue{{Start: 2, End: 3, Text: "a"}, {Start: 1, End: 2, Text: "b"}}
	if w := do(t, r, http.MethodPost, "/api/sync", body); w.Code != http.StatusBadRequest {
		t.Errorf("out of order cues: status = %d; want 400", w.Code)
	}
}

func TestListTracks(t *testing.T) {
	s, r := newTestServer(t)
	for _, name := range []string{"b.mp3", "a.ogg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(s.cfg.BGMDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := do(t, r, http.MethodGet, "/api/bgm", nil)
	var resp struct {
		Tracks []string `json:"tracks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tracks) != 2 || filepath.Base(resp.Tracks[0]) != "a.ogg" {
		t.Errorf("tracks = %v", resp.Tracks)
	}
}

func TestSweepRemovesStaleRuns(t *testing.T) {
	s, _ := newTestServer(t)

	run, err := s.workdirs.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(run.Dir, old, old); err != nil {
		t.Fatal(err)
	}

	s.sweep()
	if _, err := os.Stat(run.Dir); !os.IsNotExist(err) {
		t.Fatalf("stale run still present: %v", err)
	}
}

func TestStartCronRejectsBadSchedule(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.StartCron("not a schedule"); err == nil {
		t.Fatal("want error")
	}
}
