// Package models contains shared data models used across the ProteinDock codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// MethodVina is the only docking method currently accepted. Alternatives
// ("smina", "qvina") are reserved in validation but not yet wired to an
// engine build.
const MethodVina = "vina"

// MethodSimulated tags results fabricated by the synthetic engine when the
// real docking engine is unavailable. It is never accepted as an input method.
const MethodSimulated = "simulated"

// Job tracks one asynchronous docking run. The API returns the job on
// POST /api/v1/dock; the client polls GET /api/v1/dock/{job_id} until status
// is completed or failed.
//
// Exactly one of Results / ErrorMessage is set once the job is terminal;
// neither is set while pending or running.
type Job struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	ProteinID uuid.UUID `db:"protein_id" json:"protein_id"`
	LigandID  uuid.UUID `db:"ligand_id"  json:"ligand_id"`

	Status     string            `db:"status"     json:"status"`
	Parameters DockingParameters `db:"parameters" json:"parameters"`
	Progress   int               `db:"progress"   json:"progress"`

	Results      *DockingResults `db:"results"       json:"results,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`

	Viewer *ViewerArtifact `json:"viewer,omitempty"`

	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Vec3 is a point or extent in Ångströms.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DockingParameters is the search configuration handed to the engine.
// Stored as JSONB on the job row; immutable after submission.
type DockingParameters struct {
	GridCenter     Vec3   `json:"gridCenter"`
	GridSize       Vec3   `json:"gridSize"`
	Method         string `json:"method"`
	Exhaustiveness int    `json:"exhaustivity"`
	NumPoses       int    `json:"numPoses"`
	AutoGrid       bool   `json:"auto_grid"`
}

// DockingResults is the normalized outcome of a completed run.
// Poses are sorted ascending by score (best first); pose ordinal ids are
// independent of that ordering.
type DockingResults struct {
	Method       string             `json:"method"`
	BestScore    float64            `json:"best_score"`
	Poses        []Pose             `json:"poses"`
	Clusters     []PoseCluster      `json:"clusters"`
	Interactions *Interactions      `json:"interactions,omitempty"`
	OutputFiles  map[string]string  `json:"output_files,omitempty"`
	GridInfo     *GridDetectionInfo `json:"grid_detection,omitempty"`
}

// GridDetectionInfo records how the engine chose the search box when
// auto-grid detection ran.
type GridDetectionInfo struct {
	Center     Vec3   `json:"center"`
	Size       Vec3   `json:"size"`
	Method     string `json:"method"`
	Confidence string `json:"confidence"`
}

// ViewerArtifact is an ephemeral on-disk rendering of the best pose. The
// sweeper deletes the file and clears this reference once ExpiresAt passes;
// the rest of the job's results are untouched.
type ViewerArtifact struct {
	ViewerID  uuid.UUID `json:"viewer_id"`
	Path      string    `json:"-"`
	URLPath   string    `json:"url_path"`
	ExpiresAt time.Time `json:"expires_at"`
}
