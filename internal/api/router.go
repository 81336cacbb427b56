package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	mw "github.com/YashJadhav21/ProteinDock/internal/api/middleware"
	"github.com/YashJadhav21/ProteinDock/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SubmitDockHandler http.HandlerFunc
	GetJobHandler     http.HandlerFunc
	ListJobsHandler   http.HandlerFunc
	ViewerHandler     http.HandlerFunc

	CreateProteinHandler http.HandlerFunc
	GetProteinHandler    http.HandlerFunc
	ListProteinsHandler  http.HandlerFunc
	GridBoxHandler       http.HandlerFunc

	CreateLigandHandler http.HandlerFunc
	GetLigandHandler    http.HandlerFunc
	ListLigandsHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// The viewer serves HTML straight into a browser, which cannot attach a
	// Bearer token; the unguessable viewer id is the capability.
	r.Get("/api/v1/dock/viewer/{viewerID}", orNotImplemented(deps.ViewerHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/dock", orNotImplemented(deps.SubmitDockHandler))
		r.Get("/api/v1/dock", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/dock/{jobID}", orNotImplemented(deps.GetJobHandler))

		r.Post("/api/v1/proteins", orNotImplemented(deps.CreateProteinHandler))
		r.Get("/api/v1/proteins", orNotImplemented(deps.ListProteinsHandler))
		r.Get("/api/v1/proteins/{proteinID}", orNotImplemented(deps.GetProteinHandler))
		r.Get("/api/v1/proteins/{proteinID}/gridbox", orNotImplemented(deps.GridBoxHandler))

		r.Post("/api/v1/ligands", orNotImplemented(deps.CreateLigandHandler))
		r.Get("/api/v1/ligands", orNotImplemented(deps.ListLigandsHandler))
		r.Get("/api/v1/ligands/{ligandID}", orNotImplemented(deps.GetLigandHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
