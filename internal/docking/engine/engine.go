// Package engine drives the external docking engine process: one JSON request
// on stdin, a line-oriented JSON stream of progress events on stdout, and a
// single terminal result message. Exit code 0 is required for a result to be
// honored.
package engine

import (
	"context"
	"errors"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// Sentinel errors for engine failures.
var (
	// ErrSpawn means the engine process could not be started at all
	// (missing executable, permission denied).
	ErrSpawn = errors.New("engine spawn failed")

	// ErrProtocol means the engine ran but violated the wire contract:
	// non-zero exit, or no terminal success message before the stream ended.
	ErrProtocol = errors.New("engine protocol error")

	// ErrUnavailable means the engine's runtime dependencies are missing.
	ErrUnavailable = errors.New("docking engine unavailable")
)

// ProgressFunc receives progress events as the engine reports them.
// Implementations must be cheap; the runner invokes it inline while draining
// the engine's stdout.
type ProgressFunc func(progress int, message string)

// Runner executes one docking request against an engine implementation.
type Runner interface {
	// Dock runs a single request/response cycle and returns the raw engine
	// result. The context bounds the engine process lifetime; no timeout is
	// imposed by the runner itself.
	Dock(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error)

	// Method identifies the result provenance ("vina" or "simulated").
	Method() string
}

// Request is the single message written to the engine's stdin.
type Request struct {
	SMILES     string       `json:"smiles,omitempty"`
	PDBContent string       `json:"pdb_content"`
	Config     SearchConfig `json:"config"`
	WorkDir    string       `json:"work_dir"`
	AutoGrid   bool         `json:"auto_grid"`
	CheckOnly  bool         `json:"check_only,omitempty"`
}

// SearchConfig mirrors the engine's expected config keys.
type SearchConfig struct {
	GridCenter     models.Vec3 `json:"gridCenter"`
	GridSize       models.Vec3 `json:"gridSize"`
	Method         string      `json:"method"`
	Exhaustiveness int         `json:"exhaustivity"`
	NumPoses       int         `json:"numPoses"`
}

// Result is the engine's terminal success payload, unnormalized.
type Result struct {
	Status       string                    `json:"status"`
	Poses        []RawPose                 `json:"poses"`
	BestAffinity float64                   `json:"best_affinity"`
	OutputFile   string                    `json:"output_file,omitempty"`
	PoseFiles    []string                  `json:"pose_files,omitempty"`
	BestPosePDB  string                    `json:"best_pose_pdb,omitempty"`
	ComplexPDB   string                    `json:"complex_pdb,omitempty"`
	Interactions *models.Interactions      `json:"interactions,omitempty"`
	Viewer       *RawViewer                `json:"viewer,omitempty"`
	GridInfo     *models.GridDetectionInfo `json:"grid_detection,omitempty"`
}

// RawPose is one pose as reported by the engine. RMSDLower is the pose's
// RMSD lower bound relative to the best pose.
type RawPose struct {
	PoseID       int                  `json:"poseId"`
	Score        float64              `json:"score"`
	RMSDLower    float64              `json:"rmsd_lb"`
	RMSDUpper    float64              `json:"rmsd_ub"`
	File         string               `json:"file,omitempty"`
	Interactions *models.Interactions `json:"interactions,omitempty"`
}

// RawViewer is the engine's viewer descriptor. ExpiresAt is RFC 3339 text.
type RawViewer struct {
	ViewerID  string `json:"viewerId"`
	HTMLPath  string `json:"htmlPath"`
	ExpiresAt string `json:"expiresAt"`
	URLPath   string `json:"urlPath"`
}
