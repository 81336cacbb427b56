package docking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/YashJadhav21/ProteinDock/internal/config"
	"github.com/YashJadhav21/ProteinDock/internal/docking/engine"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// --- in-memory store ---

type memStore struct {
	mu       sync.Mutex
	proteins map[uuid.UUID]*models.Protein
	ligands  map[uuid.UUID]*models.Ligand
	jobs     map[uuid.UUID]*models.Job
	// progressLog records every accepted progress write, in order.
	progressLog []int
}

func newMemStore() *memStore {
	return &memStore{
		proteins: make(map[uuid.UUID]*models.Protein),
		ligands:  make(map[uuid.UUID]*models.Ligand),
		jobs:     make(map[uuid.UUID]*models.Job),
	}
}

var jobTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) GetDefaultTenant(context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}
func (m *memStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(context.Context, *models.APIKey) error    { return nil }
func (m *memStore) ListAPIKeys(context.Context, uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) RevokeAPIKey(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (m *memStore) CreateProtein(_ context.Context, p *models.Protein) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proteins[p.ID] = p
	return nil
}

func (m *memStore) GetProtein(_ context.Context, id, tenantID uuid.UUID) (*models.Protein, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proteins[id]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProteins(context.Context, uuid.UUID) ([]*models.Protein, error) {
	return nil, nil
}

func (m *memStore) CreateLigand(_ context.Context, l *models.Ligand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ligands[l.ID] = l
	return nil
}

func (m *memStore) GetLigand(_ context.Context, id, tenantID uuid.UUID) (*models.Ligand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ligands[id]
	if !ok || l.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (m *memStore) ListLigands(context.Context, uuid.UUID) ([]*models.Ligand, error) {
	return nil, nil
}

func (m *memStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetJob(_ context.Context, id, tenantID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) GetJobByViewerID(context.Context, uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) ListJobs(context.Context, store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}

func (m *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	allowed := false
	for _, next := range jobTransitions[job.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid status transition %s -> %s", job.Status, status)
	}

	params := store.ApplyJobUpdateOptions(opts)
	now := time.Now().UTC()
	job.Status = status
	job.UpdatedAt = now
	switch status {
	case models.JobStatusRunning:
		job.StartedAt = &now
	case models.JobStatusCompleted:
		job.CompletedAt = &now
		job.Progress = 100
	case models.JobStatusFailed:
		job.CompletedAt = &now
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.Results != nil {
		job.Results = params.Results
	}
	if params.Viewer != nil {
		job.Viewer = params.Viewer
	}
	return nil
}

func (m *memStore) UpdateJobProgress(_ context.Context, id uuid.UUID, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return store.ErrNotFound
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	m.progressLog = append(m.progressLog, job.Progress)
	return nil
}

func (m *memStore) ListExpiredViewers(context.Context, time.Time) ([]*models.Job, error) {
	return nil, nil
}
func (m *memStore) ClearJobViewer(context.Context, uuid.UUID) error { return nil }

func (m *memStore) progressHistory() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.progressLog...)
}

// --- in-memory cache ---

type memCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMemCache() *memCache {
	return &memCache{statuses: make(map[uuid.UUID]string)}
}

func (c *memCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (c *memCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (c *memCache) Delete(context.Context, string) error                     { return nil }
func (c *memCache) Ping(context.Context) error                               { return nil }
func (c *memCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}
func (c *memCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}
func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

// --- stub runner ---

type stubRunner struct {
	method string
	dock   func(ctx context.Context, req engine.Request, onProgress engine.ProgressFunc) (*engine.Result, error)
}

func (s *stubRunner) Method() string { return s.method }
func (s *stubRunner) Dock(ctx context.Context, req engine.Request, onProgress engine.ProgressFunc) (*engine.Result, error) {
	return s.dock(ctx, req, onProgress)
}

// --- fixtures ---

func engineDown(t *testing.T) *engine.Availability {
	t.Helper()
	runner := engine.NewVinaRunner(config.EngineConfig{Python: "/bin/false", Script: "unused"})
	return engine.NewAvailability(context.Background(), runner)
}

func engineUp(t *testing.T) *engine.Availability {
	t.Helper()
	runner := engine.NewVinaRunner(config.EngineConfig{Python: "/bin/true", Script: "unused"})
	return engine.NewAvailability(context.Background(), runner)
}

type fixture struct {
	store   *memStore
	cache   *memCache
	svc     *Service
	tenant  uuid.UUID
	protein *models.Protein
	ligand  *models.Ligand
}

func newFixture(t *testing.T, avail *engine.Availability, vina, sim engine.Runner) *fixture {
	t.Helper()
	st := newMemStore()
	c := newMemCache()
	cfg := config.EngineConfig{
		WorkRoot:   t.TempDir(),
		JobTimeout: 10 * time.Second,
		ViewerTTL:  15 * time.Minute,
	}
	tenant := uuid.New()
	protein := &models.Protein{ID: uuid.New(), TenantID: tenant, Name: "HIV-1 protease", Content: "ATOM ..."}
	ligand := &models.Ligand{ID: uuid.New(), TenantID: tenant, Name: "ritonavir", SMILES: "CC(C)..."}
	_ = st.CreateProtein(context.Background(), protein)
	_ = st.CreateLigand(context.Background(), ligand)

	return &fixture{
		store:   st,
		cache:   c,
		svc:     NewService(st, c, avail, vina, sim, cfg),
		tenant:  tenant,
		protein: protein,
		ligand:  ligand,
	}
}

func (f *fixture) submit(t *testing.T, p SubmitParams) (*models.Job, *RunHandle) {
	t.Helper()
	p.TenantID = f.tenant
	if p.ProteinID == uuid.Nil {
		p.ProteinID = f.protein.ID
	}
	if p.LigandID == uuid.Nil {
		p.LigandID = f.ligand.ID
	}
	job, handle, err := f.svc.Submit(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return job, handle
}

func waitDone(t *testing.T, handle *RunHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

// --- tests ---

func TestSubmit_ParameterValidation(t *testing.T) {
	f := newFixture(t, engineDown(t), nil, &engine.SimulatedRunner{})

	cases := []struct {
		name   string
		params SubmitParams
	}{
		{"unsupported method", SubmitParams{Method: "smina"}},
		{"exhaustiveness too high", SubmitParams{Exhaustiveness: 100}},
		{"exhaustiveness negative", SubmitParams{Exhaustiveness: -1}},
		{"too many poses", SubmitParams{NumPoses: 50}},
		{"zero grid dimension", SubmitParams{GridSize: &models.Vec3{X: 0, Y: 20, Z: 20}}},
		{"negative grid dimension", SubmitParams{GridSize: &models.Vec3{X: 20, Y: -5, Z: 20}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.params.TenantID = f.tenant
			tc.params.ProteinID = f.protein.ID
			tc.params.LigandID = f.ligand.ID
			_, _, err := f.svc.Submit(context.Background(), tc.params)
			if !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestSubmit_UnknownProteinOrLigand(t *testing.T) {
	f := newFixture(t, engineDown(t), nil, &engine.SimulatedRunner{})

	_, _, err := f.svc.Submit(context.Background(), SubmitParams{
		TenantID:  f.tenant,
		ProteinID: uuid.New(),
		LigandID:  f.ligand.ID,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown protein, got %v", err)
	}

	_, _, err = f.svc.Submit(context.Background(), SubmitParams{
		TenantID:  f.tenant,
		ProteinID: f.protein.ID,
		LigandID:  uuid.New(),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ligand, got %v", err)
	}
}

func TestSubmit_AppliesDefaults(t *testing.T) {
	f := newFixture(t, engineDown(t), nil, &engine.SimulatedRunner{StepDelay: 0})

	job, handle := f.submit(t, SubmitParams{})
	waitDone(t, handle)

	p := job.Parameters
	if p.Method != models.MethodVina {
		t.Errorf("method default: %q", p.Method)
	}
	if p.Exhaustiveness != 16 || p.NumPoses != 9 {
		t.Errorf("defaults: exhaustiveness=%d numPoses=%d", p.Exhaustiveness, p.NumPoses)
	}
	if p.GridSize != (models.Vec3{X: 20, Y: 20, Z: 20}) {
		t.Errorf("grid size default: %+v", p.GridSize)
	}
	if job.Status != models.JobStatusPending || job.Progress != 0 {
		t.Errorf("submitted job should be pending at 0%%: %+v", job)
	}
}

func TestRun_SimulatedEndToEnd(t *testing.T) {
	f := newFixture(t, engineDown(t), nil, &engine.SimulatedRunner{StepDelay: 0})

	job, handle := f.submit(t, SubmitParams{})
	waitDone(t, handle)

	final, err := f.store.GetJob(context.Background(), job.ID, f.tenant)
	if err != nil {
		t.Fatal(err)
	}

	if final.Status != models.JobStatusCompleted {
		t.Fatalf("status: got %q, error=%v", final.Status, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Errorf("progress: got %d, want 100", final.Progress)
	}
	if final.ErrorMessage != nil {
		t.Errorf("completed job must not carry an error message")
	}

	res := final.Results
	if res == nil {
		t.Fatal("completed job must carry results")
	}
	if res.Method != models.MethodSimulated {
		t.Errorf("method: got %q, want simulated", res.Method)
	}
	if len(res.Poses) != 9 {
		t.Errorf("poses: got %d, want 9", len(res.Poses))
	}
	if len(res.Clusters) != 3 {
		t.Errorf("clusters: got %d, want 3", len(res.Clusters))
	}
	for i := 1; i < len(res.Poses); i++ {
		if res.Poses[i].Score < res.Poses[i-1].Score {
			t.Errorf("poses not sorted by score at %d", i)
		}
	}
	if res.Interactions == nil {
		t.Error("simulated results should carry placeholder interactions")
	}

	if status, ok, _ := f.cache.GetJobStatus(context.Background(), job.ID); !ok || status != models.JobStatusCompleted {
		t.Errorf("cache status mirror: %q %v", status, ok)
	}
}

func TestRun_UsesRealRunnerWhenAvailable(t *testing.T) {
	var gotReq engine.Request
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(_ context.Context, req engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
			gotReq = req
			return &engine.Result{
				Status: "success",
				Poses:  []engine.RawPose{{PoseID: 1, Score: -8.8}},
			}, nil
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	_, handle := f.submit(t, SubmitParams{NumPoses: 1})
	waitDone(t, handle)

	if gotReq.SMILES != f.ligand.SMILES {
		t.Errorf("request smiles: %q", gotReq.SMILES)
	}
	if gotReq.PDBContent != f.protein.Content {
		t.Errorf("request pdb content not forwarded")
	}
	if gotReq.WorkDir == "" {
		t.Error("work dir not assigned")
	}
}

func TestRun_ViewerExpiryFallsBackToConfiguredTTL(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(context.Context, engine.Request, engine.ProgressFunc) (*engine.Result, error) {
			return &engine.Result{
				Status: "success",
				Poses:  []engine.RawPose{{PoseID: 1, Score: -8.8}},
				Viewer: &engine.RawViewer{
					ViewerID: uuid.NewString(),
					HTMLPath: "/work/viewer.html",
					URLPath:  "/api/v1/dock/viewer/x",
					// No expiresAt in the descriptor.
				},
			}, nil
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	before := time.Now().UTC()
	job, handle := f.submit(t, SubmitParams{NumPoses: 1})
	waitDone(t, handle)

	got, err := f.store.GetJob(context.Background(), job.ID, f.tenant)
	if err != nil {
		t.Fatal(err)
	}
	if got.Viewer == nil {
		t.Fatal("viewer with a valid id should be kept despite the missing expiry")
	}
	want := before.Add(15 * time.Minute)
	if got.Viewer.ExpiresAt.Before(want) || got.Viewer.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("fallback expiry: got %v, want about %v", got.Viewer.ExpiresAt, want)
	}
}

func TestRun_InvalidViewerIDDropsViewer(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(context.Context, engine.Request, engine.ProgressFunc) (*engine.Result, error) {
			return &engine.Result{
				Status: "success",
				Poses:  []engine.RawPose{{PoseID: 1, Score: -8.8}},
				Viewer: &engine.RawViewer{ViewerID: "not-a-uuid", HTMLPath: "/work/viewer.html"},
			}, nil
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	job, handle := f.submit(t, SubmitParams{NumPoses: 1})
	waitDone(t, handle)

	got, err := f.store.GetJob(context.Background(), job.ID, f.tenant)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("status: %s", got.Status)
	}
	if got.Viewer != nil {
		t.Error("unparseable viewer id should drop the viewer")
	}
}

func TestRun_MonotonicProgress(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(_ context.Context, _ engine.Request, onProgress engine.ProgressFunc) (*engine.Result, error) {
			// Out-of-order and duplicate events must never lower progress.
			for _, p := range []int{50, 30, 80, 80, 60, 95} {
				onProgress(p, "step")
			}
			return &engine.Result{
				Status: "success",
				Poses:  []engine.RawPose{{PoseID: 1, Score: -8.8}},
			}, nil
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	_, handle := f.submit(t, SubmitParams{NumPoses: 1})
	waitDone(t, handle)

	history := f.store.progressHistory()
	for i := 1; i < len(history); i++ {
		if history[i] < history[i-1] {
			t.Fatalf("progress regressed: %v", history)
		}
	}
	if history[len(history)-1] != 95 {
		t.Errorf("final reported progress: %v", history)
	}
}

func TestRun_EngineFailure(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(context.Context, engine.Request, engine.ProgressFunc) (*engine.Result, error) {
			return nil, fmt.Errorf("%w: vina exited 137", engine.ErrProtocol)
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	job, handle := f.submit(t, SubmitParams{})
	waitDone(t, handle)

	final, err := f.store.GetJob(context.Background(), job.ID, f.tenant)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != models.JobStatusFailed {
		t.Fatalf("status: got %q, want failed", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, "vina exited 137") {
		t.Errorf("error message: %v", final.ErrorMessage)
	}
	if final.Results != nil {
		t.Error("failed job must not carry results")
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(context.Context, engine.Request, engine.ProgressFunc) (*engine.Result, error) {
			panic("boom")
		},
	}
	f := newFixture(t, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0})

	job, handle := f.submit(t, SubmitParams{})
	waitDone(t, handle)

	final, _ := f.store.GetJob(context.Background(), job.ID, f.tenant)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("status after panic: %q", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, "internal error") {
		t.Errorf("error message: %v", final.ErrorMessage)
	}
}

func TestRun_Timeout(t *testing.T) {
	vina := &stubRunner{
		method: models.MethodVina,
		dock: func(ctx context.Context, _ engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	st := newMemStore()
	c := newMemCache()
	svc := NewService(st, c, engineUp(t), vina, &engine.SimulatedRunner{StepDelay: 0}, config.EngineConfig{
		WorkRoot:   t.TempDir(),
		JobTimeout: 50 * time.Millisecond,
	})

	tenant := uuid.New()
	protein := &models.Protein{ID: uuid.New(), TenantID: tenant, Content: "ATOM"}
	ligand := &models.Ligand{ID: uuid.New(), TenantID: tenant, SMILES: "CCO"}
	_ = st.CreateProtein(context.Background(), protein)
	_ = st.CreateLigand(context.Background(), ligand)

	job, handle, err := svc.Submit(context.Background(), SubmitParams{
		TenantID: tenant, ProteinID: protein.ID, LigandID: ligand.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, handle)

	final, _ := st.GetJob(context.Background(), job.ID, tenant)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("status: %q", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, "timed out") {
		t.Errorf("error message: %v", final.ErrorMessage)
	}
}
