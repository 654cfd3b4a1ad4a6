package workdir

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAcquireRelease(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "temp"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	run, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := os.WriteFile(run.Path("still.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	other, err := m.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if other.Dir == run.Dir {
		t.Fatal("two runs share a directory")
	}

	run.Release()
	run.Release()
	if _, err := os.Stat(run.Dir); !os.IsNotExist(err) {
		t.Fatalf("run dir still present: %v", err)
	}
	if _, err := os.Stat(other.Dir); err != nil {
		t.Fatalf("release removed a sibling run: %v", err)
	}
}

func TestSweepRemovesOnlyStaleRuns(t *testing.T) {
	root := t.TempDir()
	m, err := New(root, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	stale, _ := m.Acquire()
	fresh, _ := m.Acquire()
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale.Dir, old, old); err != nil {
		t.Fatal(err)
	}

	keep := filepath.Join(root, "not-a-run")
	if err := os.Mkdir(keep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(keep, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d; want 1", removed)
	}
	if _, err := os.Stat(fresh.Dir); err != nil {
		t.Error("fresh run swept")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("foreign directory swept")
	}
}

func TestReset(t *testing.T) {
	m, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := m.Acquire(); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := m.Reset()
	if err != nil || removed != 3 {
		t.Fatalf("Reset = %d, %v; want 3, nil", removed, err)
	}
}
