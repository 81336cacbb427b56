// Package docking orchestrates asynchronous docking runs: it validates
// submissions, persists the job record, and drives the engine in a detached
// goroutine while the client polls for status.
package docking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YashJadhav21/ProteinDock/internal/cache"
	"github.com/YashJadhav21/ProteinDock/internal/config"
	"github.com/YashJadhav21/ProteinDock/internal/docking/engine"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// ErrInvalidParameters wraps submission validation failures.
var ErrInvalidParameters = errors.New("invalid docking parameters")

// Parameter bounds and defaults applied at submission.
const (
	defaultExhaustiveness = 16
	maxExhaustiveness     = 64
	defaultNumPoses       = 9
	maxNumPoses           = 20
	defaultGridEdge       = 20.0

	// acceptedProgress is reported as soon as the job transitions to
	// running, before the engine emits its first event.
	acceptedProgress = 5

	statusCacheTTL = 30 * time.Minute

	// defaultViewerTTL backs viewer expiry when the engine's descriptor
	// carries no usable expiresAt; matches the engine's own 30-minute TTL.
	defaultViewerTTL = 30 * time.Minute
)

// RunHandle lets callers that hold a reference (tests, shutdown hooks) wait
// for the background run to finish. The HTTP layer ignores it.
type RunHandle struct {
	done chan struct{}
}

// Done is closed when the run's goroutine has fully exited, terminal state
// persisted or abandoned.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// SubmitParams carries a validated-at-the-edge submission. Pointer fields
// are optional; nil means "use the default".
type SubmitParams struct {
	TenantID  uuid.UUID
	ProteinID uuid.UUID
	LigandID  uuid.UUID

	GridCenter     *models.Vec3
	GridSize       *models.Vec3
	Method         string
	Exhaustiveness int
	NumPoses       int
	AutoGrid       bool
}

// Service runs docking jobs. The engine runner is selected per run from the
// injected availability tracker: the real engine when its dependencies are
// present, the simulated one otherwise.
type Service struct {
	store        store.Store
	cache        cache.Cache
	availability *engine.Availability
	vina         engine.Runner
	simulated    engine.Runner

	workRoot   string
	jobTimeout time.Duration
	viewerTTL  time.Duration
}

// NewService wires a docking service.
func NewService(st store.Store, c cache.Cache, avail *engine.Availability, vina, simulated engine.Runner, cfg config.EngineConfig) *Service {
	ttl := cfg.ViewerTTL
	if ttl <= 0 {
		ttl = defaultViewerTTL
	}
	return &Service{
		store:        st,
		cache:        c,
		availability: avail,
		vina:         vina,
		simulated:    simulated,
		workRoot:     cfg.WorkRoot,
		jobTimeout:   cfg.JobTimeout,
		viewerTTL:    ttl,
	}
}

// Submit validates the request, persists a pending job, and kicks off the
// run in the background. It returns as soon as the job row exists; progress
// and results arrive via polling.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.Job, *RunHandle, error) {
	params, err := resolveParameters(p)
	if err != nil {
		return nil, nil, err
	}

	protein, err := s.store.GetProtein(ctx, p.ProteinID, p.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up protein: %w", err)
	}
	ligand, err := s.store.GetLigand(ctx, p.LigandID, p.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up ligand: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New(),
		TenantID:   p.TenantID,
		ProteinID:  protein.ID,
		LigandID:   ligand.ID,
		Status:     models.JobStatusPending,
		Parameters: params,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("creating job: %w", err)
	}
	if err := s.cache.SetJobStatus(ctx, job.ID, job.Status, statusCacheTTL); err != nil {
		slog.Warn("failed to cache job status", "job_id", job.ID, "error", err)
	}

	handle := &RunHandle{done: make(chan struct{})}
	go s.runJob(job.ID, protein, ligand, params, handle)

	slog.Info("docking job submitted",
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"protein_id", protein.ID,
		"ligand_id", ligand.ID)
	return job, handle, nil
}

// resolveParameters applies defaults and bounds checks.
func resolveParameters(p SubmitParams) (models.DockingParameters, error) {
	params := models.DockingParameters{
		GridCenter:     models.Vec3{},
		GridSize:       models.Vec3{X: defaultGridEdge, Y: defaultGridEdge, Z: defaultGridEdge},
		Method:         models.MethodVina,
		Exhaustiveness: defaultExhaustiveness,
		NumPoses:       defaultNumPoses,
		AutoGrid:       p.AutoGrid,
	}
	if p.GridCenter != nil {
		params.GridCenter = *p.GridCenter
	}
	if p.GridSize != nil {
		params.GridSize = *p.GridSize
	}
	if p.Method != "" {
		params.Method = p.Method
	}
	if p.Exhaustiveness != 0 {
		params.Exhaustiveness = p.Exhaustiveness
	}
	if p.NumPoses != 0 {
		params.NumPoses = p.NumPoses
	}

	if params.Method != models.MethodVina {
		return params, fmt.Errorf("%w: unsupported method %q", ErrInvalidParameters, params.Method)
	}
	if params.Exhaustiveness < 1 || params.Exhaustiveness > maxExhaustiveness {
		return params, fmt.Errorf("%w: exhaustiveness must be between 1 and %d", ErrInvalidParameters, maxExhaustiveness)
	}
	if params.NumPoses < 1 || params.NumPoses > maxNumPoses {
		return params, fmt.Errorf("%w: numPoses must be between 1 and %d", ErrInvalidParameters, maxNumPoses)
	}
	if params.GridSize.X <= 0 || params.GridSize.Y <= 0 || params.GridSize.Z <= 0 {
		return params, fmt.Errorf("%w: grid size dimensions must be positive", ErrInvalidParameters)
	}
	return params, nil
}

// runJob executes one docking run to completion. It owns the job's terminal
// state: every exit path either persists completed/failed or logs why it
// could not.
func (s *Service) runJob(jobID uuid.UUID, protein *models.Protein, ligand *models.Ligand, params models.DockingParameters, handle *RunHandle) {
	defer close(handle.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in docking run", "job_id", jobID, "panic", r)
			s.failJob(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Terminal writes use a fresh context: the run context may already be
	// expired when we get to them.
	runCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	// The transition guard doubles as a duplicate-run check: a second
	// goroutine for the same job cannot move pending->running twice.
	if err := s.store.UpdateJobStatus(runCtx, jobID, models.JobStatusRunning); err != nil {
		slog.Error("failed to start docking job", "job_id", jobID, "error", err)
		return
	}
	s.cacheStatus(jobID, models.JobStatusRunning)
	s.reportProgress(jobID, acceptedProgress)

	runner := s.vina
	if !s.availability.Available() {
		runner = s.simulated
	}

	workDir := filepath.Join(s.workRoot, jobID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		s.failJob(jobID, fmt.Sprintf("preparing work directory: %v", err))
		return
	}

	lastProgress := acceptedProgress
	onProgress := func(pct int, message string) {
		// Strictly-greater filter keeps progress monotonic even if the
		// engine re-emits or reorders events.
		if pct <= lastProgress || pct > 100 {
			return
		}
		lastProgress = pct
		s.reportProgress(jobID, pct)
		slog.Debug("docking progress", "job_id", jobID, "progress", pct, "message", message)
	}

	req := engine.Request{
		SMILES:     ligand.SMILES,
		PDBContent: protein.Content,
		WorkDir:    workDir,
		AutoGrid:   params.AutoGrid,
		Config: engine.SearchConfig{
			GridCenter:     params.GridCenter,
			GridSize:       params.GridSize,
			Method:         params.Method,
			Exhaustiveness: params.Exhaustiveness,
			NumPoses:       params.NumPoses,
		},
	}

	started := time.Now()
	raw, err := runner.Dock(runCtx, req, onProgress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.failJob(jobID, fmt.Sprintf("docking timed out after %s", s.jobTimeout))
			return
		}
		s.failJob(jobID, err.Error())
		return
	}

	results, err := buildResults(runner.Method(), raw)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("normalizing engine results: %v", err))
		return
	}

	opts := []store.JobUpdateOption{store.WithResults(results)}
	if viewer := s.viewerArtifact(raw.Viewer); viewer != nil {
		opts = append(opts, store.WithViewer(viewer))
	}
	ctx := context.Background()
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, opts...); err != nil {
		slog.Error("failed to persist docking results", "job_id", jobID, "error", err)
		return
	}
	s.cacheStatus(jobID, models.JobStatusCompleted)

	slog.Info("docking job completed",
		"job_id", jobID,
		"method", results.Method,
		"best_score", results.BestScore,
		"poses", len(results.Poses),
		"clusters", len(results.Clusters),
		"duration", time.Since(started))
}

func (s *Service) failJob(jobID uuid.UUID, message string) {
	ctx := context.Background()
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(message)); err != nil {
		slog.Error("failed to mark docking job failed", "job_id", jobID, "error", err)
		return
	}
	s.cacheStatus(jobID, models.JobStatusFailed)
	slog.Warn("docking job failed", "job_id", jobID, "reason", message)
}

// reportProgress is fire-and-forget: a lost progress write never fails the
// run.
func (s *Service) reportProgress(jobID uuid.UUID, progress int) {
	if err := s.store.UpdateJobProgress(context.Background(), jobID, progress); err != nil {
		slog.Warn("failed to update job progress", "job_id", jobID, "progress", progress, "error", err)
	}
}

func (s *Service) cacheStatus(jobID uuid.UUID, status string) {
	if err := s.cache.SetJobStatus(context.Background(), jobID, status, statusCacheTTL); err != nil {
		slog.Warn("failed to cache job status", "job_id", jobID, "error", err)
	}
}

// viewerArtifact converts the engine's viewer descriptor. An unparseable id
// drops the viewer rather than persisting a broken reference; a missing or
// unparseable expiry falls back to the configured viewer TTL so the sweeper
// still reaps the artifact.
func (s *Service) viewerArtifact(raw *engine.RawViewer) *models.ViewerArtifact {
	if raw == nil {
		return nil
	}
	id, err := uuid.Parse(raw.ViewerID)
	if err != nil {
		slog.Warn("engine viewer id is not a uuid, dropping viewer", "viewer_id", raw.ViewerID)
		return nil
	}
	expires, err := time.Parse(time.RFC3339, raw.ExpiresAt)
	if err != nil {
		if raw.ExpiresAt != "" {
			slog.Warn("engine viewer expiry unparseable, using configured TTL", "expires_at", raw.ExpiresAt)
		}
		expires = time.Now().UTC().Add(s.viewerTTL)
	}
	return &models.ViewerArtifact{
		ViewerID:  id,
		Path:      raw.HTMLPath,
		URLPath:   raw.URLPath,
		ExpiresAt: expires,
	}
}
