package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateProtein(ctx context.Context, protein *models.Protein) error
	GetProtein(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Protein, error)
	ListProteins(ctx context.Context, tenantID uuid.UUID) ([]*models.Protein, error)

	CreateLigand(ctx context.Context, ligand *models.Ligand) error
	GetLigand(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Ligand, error)
	ListLigands(ctx context.Context, tenantID uuid.UUID) ([]*models.Ligand, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	GetJobByViewerID(ctx context.Context, viewerID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	// UpdateJobStatus drives the job state machine. Transitions out of a
	// terminal state, or any transition the machine does not allow, fail.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	// UpdateJobProgress is a targeted partial update of the progress column
	// only. The persisted value is monotonically non-decreasing: a stale or
	// out-of-order write can never lower it.
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error

	ListExpiredViewers(ctx context.Context, now time.Time) ([]*models.Job, error)

	// ClearJobViewer removes the viewer reference from a job, leaving all
	// other result fields untouched.
	ClearJobViewer(ctx context.Context, id uuid.UUID) error
}

// JobFilter selects jobs for listing, newest first.
type JobFilter struct {
	TenantID uuid.UUID
	Status   string
	Page     int
	Limit    int
}

// JobUpdate carries the optional fields of a status update. Implementations
// resolve the options with ApplyJobUpdateOptions.
type JobUpdate struct {
	ErrorMessage *string
	Results      *models.DockingResults
	Viewer       *models.ViewerArtifact
}

type JobUpdateOption func(*JobUpdate)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.ErrorMessage = &msg
	}
}

func WithResults(results *models.DockingResults) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Results = results
	}
}

func WithViewer(viewer *models.ViewerArtifact) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Viewer = viewer
	}
}

// ApplyJobUpdateOptions folds the options into a JobUpdate.
func ApplyJobUpdateOptions(opts []JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
