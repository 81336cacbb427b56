// Package handler implements the HTTP handlers for the ProteinDock API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/YashJadhav21/ProteinDock/internal/api/middleware"
	"github.com/YashJadhav21/ProteinDock/internal/api/response"
	"github.com/YashJadhav21/ProteinDock/internal/docking"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// NewSubmitDockHandler returns an http.HandlerFunc for POST /api/v1/dock.
func NewSubmitDockHandler(svc *docking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			ProteinID  string `json:"protein_id"`
			LigandID   string `json:"ligand_id"`
			Parameters struct {
				GridCenter     *models.Vec3 `json:"gridCenter"`
				GridSize       *models.Vec3 `json:"gridSize"`
				Method         string       `json:"method"`
				Exhaustiveness int          `json:"exhaustivity"`
				NumPoses       int          `json:"numPoses"`
				AutoGrid       bool         `json:"auto_grid"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.ProteinID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "protein_id is required", nil)
			return
		}
		proteinID, err := uuid.Parse(req.ProteinID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "protein_id must be a valid UUID", nil)
			return
		}

		if req.LigandID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ligand_id is required", nil)
			return
		}
		ligandID, err := uuid.Parse(req.LigandID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ligand_id must be a valid UUID", nil)
			return
		}

		job, _, err := svc.Submit(r.Context(), docking.SubmitParams{
			TenantID:       tenantID,
			ProteinID:      proteinID,
			LigandID:       ligandID,
			GridCenter:     req.Parameters.GridCenter,
			GridSize:       req.Parameters.GridSize,
			Method:         req.Parameters.Method,
			Exhaustiveness: req.Parameters.Exhaustiveness,
			NumPoses:       req.Parameters.NumPoses,
			AutoGrid:       req.Parameters.AutoGrid,
		})
		if err != nil {
			switch {
			case errors.Is(err, docking.ErrInvalidParameters):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND",
					"Protein or ligand not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/dock/{jobID}.
func NewGetJobHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job id must be a valid UUID", nil)
			return
		}

		job, err := st.GetJob(r.Context(), jobID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/dock.
func NewListJobsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 20
		}

		status := r.URL.Query().Get("status")
		switch status {
		case "", models.JobStatusPending, models.JobStatusRunning,
			models.JobStatusCompleted, models.JobStatusFailed:
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status filter", nil)
			return
		}

		jobs, total, err := st.ListJobs(r.Context(), store.JobFilter{
			TenantID: tenantID,
			Status:   status,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
