// Package workdir scopes intermediate files to one assembly run. Every run
// gets its own directory under a shared root, removed on release.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const runPrefix = "run-"

type Manager struct {
	root   string
	logger zerolog.Logger
}

// New creates root if needed.
func New(root string, logger zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root %s: %w", root, err)
	}
	return &Manager{
		root:   root,
		logger: logger.With().Str("component", "workdir").Logger(),
	}, nil
}

func (m *Manager) Root() string { return m.root }

// Run is one acquired working directory.
type Run struct {
	ID  string
	Dir string

	logger zerolog.Logger
}

// Acquire creates a fresh run directory. Callers must defer Release.
func (m *Manager) Acquire() (*Run, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, runPrefix+id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	m.logger.Debug().Str("run", id).Str("dir", dir).Msg("workdir acquired")
	return &Run{ID: id, Dir: dir, logger: m.logger}, nil
}

// Path joins name onto the run directory.
func (r *Run) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// Release removes the run directory and everything in it. Safe to call twice.
func (r *Run) Release() {
	if err := os.RemoveAll(r.Dir); err != nil {
		r.logger.Warn().Err(err).Str("dir", r.Dir).Msg("failed to remove workdir")
		return
	}
	r.logger.Debug().Str("run", r.ID).Msg("workdir released")
}

// Sweep removes run directories last modified more than maxAge ago. It is
// meant for leftovers of killed processes; live runs are younger than maxAge.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	return m.sweep(func(info os.FileInfo) bool {
		return time.Since(info.ModTime()) > maxAge
	})
}

// Reset removes every run directory. Only safe when no other process
// shares the root.
func (m *Manager) Reset() (int, error) {
	return m.sweep(func(os.FileInfo) bool { return true })
}

func (m *Manager) sweep(stale func(os.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !stale(info) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn().Err(err).Str("dir", path).Msg("sweep failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("stale workdirs swept")
	}
	return removed, nil
}
