package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/YashJadhav21/ProteinDock/internal/api/middleware"
	"github.com/YashJadhav21/ProteinDock/internal/api/response"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

const maxSMILESLen = 2000

// NewCreateLigandHandler returns an http.HandlerFunc for POST /api/v1/ligands.
func NewCreateLigandHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Name   string `json:"name"`
			SMILES string `json:"smiles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		smiles := strings.TrimSpace(req.SMILES)
		if smiles == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "smiles is required", nil)
			return
		}
		// Full SMILES validation happens in the engine's chemistry toolkit;
		// here we only reject obvious junk.
		if len(smiles) > maxSMILESLen || strings.ContainsAny(smiles, " \t\n") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"smiles must be a single token of at most 2000 characters", nil)
			return
		}

		now := time.Now().UTC()
		ligand := &models.Ligand{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      req.Name,
			SMILES:    smiles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateLigand(r.Context(), ligand); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Created(w, ligand)
	}
}

// NewGetLigandHandler returns an http.HandlerFunc for GET /api/v1/ligands/{ligandID}.
func NewGetLigandHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		ligandID, err := uuid.Parse(chi.URLParam(r, "ligandID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ligand id must be a valid UUID", nil)
			return
		}

		ligand, err := st.GetLigand(r.Context(), ligandID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ligand not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, ligand)
	}
}

// NewListLigandsHandler returns an http.HandlerFunc for GET /api/v1/ligands.
func NewListLigandsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		ligands, err := st.ListLigands(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, ligands)
	}
}
