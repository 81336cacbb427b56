package engine

import (
	"context"
	"time"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// SimulatedRunner produces deterministic synthetic docking results when the
// real engine cannot run. Scores ascend from a plausible best affinity and
// RMSD values fall into three separated bands so downstream clustering has
// structure to find.
type SimulatedRunner struct {
	// StepDelay is the pause before each progress event. Tests set it to
	// zero; the default approximates a short real run.
	StepDelay time.Duration
}

// NewSimulatedRunner returns a runner with the default pacing.
func NewSimulatedRunner() *SimulatedRunner {
	return &SimulatedRunner{StepDelay: 1500 * time.Millisecond}
}

// Method implements Runner.
func (s *SimulatedRunner) Method() string {
	return models.MethodSimulated
}

// Dock implements Runner. It emits progress at 50% and 75% with fixed delays
// and then fabricates the requested number of poses.
func (s *SimulatedRunner) Dock(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	steps := []struct {
		progress int
		message  string
	}{
		{50, "Simulated docking in progress"},
		{75, "Scoring simulated poses"},
	}
	for _, step := range steps {
		if err := sleepCtx(ctx, s.StepDelay); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(step.progress, step.message)
		}
	}

	n := req.Config.NumPoses
	if n <= 0 {
		n = 9
	}
	poses := make([]RawPose, n)
	for i := range poses {
		rmsd := syntheticRMSD(i, n)
		poses[i] = RawPose{
			PoseID:    i + 1,
			Score:     -9.6 + 0.35*float64(i),
			RMSDLower: rmsd,
			RMSDUpper: rmsd + 1.1,
		}
	}

	return &Result{
		Status:       "success",
		Poses:        poses,
		BestAffinity: poses[0].Score,
	}, nil
}

// syntheticRMSD spreads pose i of n across three bands 3.6 Å apart, with
// members of a band tightly packed so clustering at the default threshold
// recovers the bands.
func syntheticRMSD(i, n int) float64 {
	bandSize := (n + 2) / 3
	band := i / bandSize
	within := i % bandSize
	return float64(band)*3.6 + float64(within)*0.6
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
