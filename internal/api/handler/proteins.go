package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/YashJadhav21/ProteinDock/internal/api/middleware"
	"github.com/YashJadhav21/ProteinDock/internal/api/response"
	"github.com/YashJadhav21/ProteinDock/internal/cache"
	"github.com/YashJadhav21/ProteinDock/internal/pdb"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/pkg/gridbox"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// maxProteinBytes caps inline PDB uploads.
const maxProteinBytes = 32 << 20

// pdbCacheTTL is how long a fetched RCSB structure stays cached; entries are
// immutable upstream so a long TTL is safe.
const pdbCacheTTL = 24 * time.Hour

// NewCreateProteinHandler returns an http.HandlerFunc for POST /api/v1/proteins.
// The structure comes either inline as `content` or by RCSB id as `pdb_id`.
func NewCreateProteinHandler(st store.Store, c cache.Cache, rcsb pdb.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxProteinBytes+4096)
		var req struct {
			Name    string `json:"name"`
			Content string `json:"content"`
			PDBID   string `json:"pdb_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if (req.Content == "") == (req.PDBID == "") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"exactly one of content or pdb_id is required", nil)
			return
		}

		content := req.Content
		var pdbID *string
		if req.PDBID != "" {
			fetched, err := fetchStructure(r, c, rcsb, req.PDBID)
			if err != nil {
				switch {
				case errors.Is(err, pdb.ErrInvalidID):
					response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
						"pdb_id must be a valid 4-character PDB identifier", nil)
				case errors.Is(err, pdb.ErrNotFound):
					response.Error(w, http.StatusNotFound, "NOT_FOUND",
						"PDB entry not found in RCSB", nil)
				default:
					response.Error(w, http.StatusBadGateway, "RCSB_UNAVAILABLE",
						"Could not fetch structure from RCSB", nil)
				}
				return
			}
			content = fetched
			id := strings.ToUpper(strings.TrimSpace(req.PDBID))
			pdbID = &id
		}

		if !looksLikePDB(content) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"content does not look like a PDB structure (no ATOM/HETATM records)", nil)
			return
		}

		now := time.Now().UTC()
		protein := &models.Protein{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      req.Name,
			PDBID:     pdbID,
			Content:   content,
			SizeBytes: len(content),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateProtein(r.Context(), protein); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Created(w, protein)
	}
}

// fetchStructure pulls a structure from RCSB, going through the cache first.
func fetchStructure(r *http.Request, c cache.Cache, rcsb pdb.Client, pdbID string) (string, error) {
	key := cache.PDBContentKey(strings.ToUpper(strings.TrimSpace(pdbID)))
	if cached, ok, err := c.Get(r.Context(), key); err == nil && ok {
		return string(cached), nil
	}

	content, err := rcsb.FetchPDB(r.Context(), pdbID)
	if err != nil {
		return "", err
	}
	if err := c.Set(r.Context(), key, []byte(content), pdbCacheTTL); err != nil {
		slog.Warn("failed to cache fetched structure", "pdb_id", pdbID, "error", err)
	}
	return content, nil
}

func looksLikePDB(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			return true
		}
	}
	return false
}

// NewGetProteinHandler returns an http.HandlerFunc for GET /api/v1/proteins/{proteinID}.
func NewGetProteinHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		proteinID, err := uuid.Parse(chi.URLParam(r, "proteinID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "protein id must be a valid UUID", nil)
			return
		}

		protein, err := st.GetProtein(r.Context(), proteinID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Protein not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, protein)
	}
}

// NewListProteinsHandler returns an http.HandlerFunc for GET /api/v1/proteins.
func NewListProteinsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		proteins, err := st.ListProteins(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, proteins)
	}
}

// NewGridBoxHandler returns an http.HandlerFunc for
// GET /api/v1/proteins/{proteinID}/gridbox. It previews the search box
// auto-detection without running a docking job.
func NewGridBoxHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		proteinID, err := uuid.Parse(chi.URLParam(r, "proteinID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "protein id must be a valid UUID", nil)
			return
		}

		protein, err := st.GetProtein(r.Context(), proteinID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Protein not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		box := gridbox.Detect(protein.Content)
		response.JSON(w, box)
	}
}
