// Package viewer reaps expired 3D viewer artifacts: the HTML file is removed
// from disk and the job's viewer reference cleared, leaving the rest of the
// job's results intact.
package viewer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/YashJadhav21/ProteinDock/internal/store"
)

// Sweeper periodically clears expired viewer artifacts.
type Sweeper struct {
	store    store.Store
	interval time.Duration
}

// NewSweeper returns a sweeper that runs every interval.
func NewSweeper(st store.Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, interval: interval}
}

// Run sweeps on a ticker until the context is canceled. One sweep happens
// immediately on startup so artifacts orphaned by a restart are reclaimed.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		slog.Error("viewer sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("viewer sweep failed", "error", err)
			}
		}
	}
}

// Sweep clears every viewer whose expiry has passed and returns how many
// were cleaned. A failure on one job does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.store.ListExpiredViewers(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, job := range jobs {
		if job.Viewer == nil {
			continue
		}
		// A file already gone is fine; the row cleanup still matters.
		if err := os.Remove(job.Viewer.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to remove viewer file",
				"job_id", job.ID, "path", job.Viewer.Path, "error", err)
			continue
		}
		if err := s.store.ClearJobViewer(ctx, job.ID); err != nil {
			slog.Warn("failed to clear viewer reference", "job_id", job.ID, "error", err)
			continue
		}
		cleaned++
	}
	if cleaned > 0 {
		slog.Info("expired viewers cleaned", "count", cleaned)
	}
	return cleaned, nil
}
