package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/YashJadhav21/ProteinDock/internal/api/response"
	"github.com/YashJadhav21/ProteinDock/internal/store"
)

// NewViewerHandler returns an http.HandlerFunc for
// GET /api/v1/dock/viewer/{viewerID}. It serves the generated 3D viewer HTML
// until the artifact expires; after that the sweeper will have removed it.
func NewViewerHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, err := uuid.Parse(chi.URLParam(r, "viewerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "viewer id must be a valid UUID", nil)
			return
		}

		job, err := st.GetJobByViewerID(r.Context(), viewerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "VIEWER_NOT_FOUND",
					"Viewer not found or already cleaned up", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		viewer := job.Viewer
		if viewer == nil {
			response.Error(w, http.StatusNotFound, "VIEWER_NOT_FOUND",
				"Viewer not found or already cleaned up", nil)
			return
		}
		// Expired but not yet swept counts as gone.
		if time.Now().After(viewer.ExpiresAt) {
			response.Error(w, http.StatusGone, "VIEWER_EXPIRED",
				"Viewer has expired", nil)
			return
		}

		html, err := os.ReadFile(viewer.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				response.Error(w, http.StatusNotFound, "VIEWER_NOT_FOUND",
					"Viewer file no longer exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
	}
}
