package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// probeTimeout bounds the dependency check; importing the engine's chemistry
// toolkits takes seconds, not minutes.
const probeTimeout = 30 * time.Second

// Availability tracks whether the real engine can run. It is probed once at
// startup and can be refreshed on demand; callers inject it rather than
// consulting process-global state.
type Availability struct {
	runner *VinaRunner

	mu        sync.RWMutex
	available bool
	missing   []string
	checkedAt time.Time
}

// NewAvailability probes the runner once and returns the tracker.
func NewAvailability(ctx context.Context, runner *VinaRunner) *Availability {
	a := &Availability{runner: runner}
	a.Refresh(ctx)
	return a
}

// Available reports the result of the most recent probe.
func (a *Availability) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.available
}

// Missing returns the engine packages the last probe found absent.
func (a *Availability) Missing() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.missing...)
}

// Refresh re-runs the dependency probe and updates the cached state.
func (a *Availability) Refresh(ctx context.Context) {
	available, missing := a.probe(ctx)

	a.mu.Lock()
	a.available = available
	a.missing = missing
	a.checkedAt = time.Now()
	a.mu.Unlock()

	if available {
		slog.Info("docking engine available", "python", a.runner.python, "script", a.runner.script)
	} else {
		slog.Warn("docking engine unavailable, falling back to simulated docking",
			"missing_packages", missing)
	}
}

// probe runs the engine in check-only mode. Exit 0 means every runtime
// dependency imports cleanly; on failure the engine reports the missing
// packages as JSON on stderr.
func (a *Availability) probe(ctx context.Context) (bool, []string) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.runner.python, a.runner.script)
	payload, _ := json.Marshal(Request{CheckOnly: true})
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return false, parseMissingPackages(stderr.Bytes())
	}
	return true, nil
}

func parseMissingPackages(stderr []byte) []string {
	for _, line := range bytes.Split(stderr, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var report struct {
			MissingPackages []string `json:"missing_packages"`
		}
		if err := json.Unmarshal(line, &report); err != nil {
			continue
		}
		if len(report.MissingPackages) > 0 {
			return report.MissingPackages
		}
	}
	return nil
}
