package viewer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// viewerStore implements only the store methods the sweeper touches.
type viewerStore struct {
	store.Store

	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	listErr error
}

func newViewerStore() *viewerStore {
	return &viewerStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *viewerStore) ListExpiredViewers(_ context.Context, now time.Time) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	// Return copies, like the real store scanning fresh rows. Handing out
	// the stored pointers would let ClearJobViewer mutate a caller's job.
	var out []*models.Job
	for _, j := range s.jobs {
		if j.Viewer != nil && j.Viewer.ExpiresAt.Before(now) {
			cp := *j
			v := *j.Viewer
			cp.Viewer = &v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *viewerStore) ClearJobViewer(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Viewer = nil
	return nil
}

func (s *viewerStore) addJob(t *testing.T, dir string, expiresAt time.Time, withFile bool) *models.Job {
	t.Helper()
	id := uuid.New()
	path := filepath.Join(dir, id.String()+".html")
	if withFile {
		if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	job := &models.Job{
		ID:     id,
		Status: models.JobStatusCompleted,
		Viewer: &models.ViewerArtifact{
			ViewerID:  uuid.New(),
			Path:      path,
			ExpiresAt: expiresAt,
		},
		Results: &models.DockingResults{Method: models.MethodVina, BestScore: -9},
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	return job
}

func TestSweep_RemovesExpiredKeepsLive(t *testing.T) {
	dir := t.TempDir()
	st := newViewerStore()
	expired := st.addJob(t, dir, time.Now().Add(-time.Minute), true)
	live := st.addJob(t, dir, time.Now().Add(time.Hour), true)
	// ClearJobViewer nils the stored job's viewer, so grab the paths up front.
	expiredPath := expired.Viewer.Path
	livePath := live.Viewer.Path

	sweeper := NewSweeper(st, time.Minute)
	cleaned, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cleaned != 1 {
		t.Fatalf("cleaned: got %d, want 1", cleaned)
	}

	if _, err := os.Stat(expiredPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("expired viewer file should be deleted")
	}
	if st.jobs[expired.ID].Viewer != nil {
		t.Error("expired viewer reference should be cleared")
	}
	// Results survive the sweep untouched.
	if st.jobs[expired.ID].Results == nil {
		t.Error("sweep must not touch job results")
	}

	if _, err := os.Stat(livePath); err != nil {
		t.Error("live viewer file should be untouched")
	}
	if st.jobs[live.ID].Viewer == nil {
		t.Error("live viewer reference should remain")
	}
}

func TestSweep_MissingFileStillClears(t *testing.T) {
	st := newViewerStore()
	job := st.addJob(t, t.TempDir(), time.Now().Add(-time.Minute), false)

	sweeper := NewSweeper(st, time.Minute)
	cleaned, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cleaned != 1 {
		t.Fatalf("cleaned: got %d, want 1", cleaned)
	}
	if st.jobs[job.ID].Viewer != nil {
		t.Error("viewer reference should be cleared even when the file is gone")
	}
}

func TestSweep_ListError(t *testing.T) {
	st := newViewerStore()
	st.listErr = errors.New("db down")

	sweeper := NewSweeper(st, time.Minute)
	if _, err := sweeper.Sweep(context.Background()); err == nil {
		t.Fatal("expected error from failing list")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	st := newViewerStore()
	sweeper := NewSweeper(st, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
