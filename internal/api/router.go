package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/speclink/internal/specservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *specservice.Service, logger *slog.Logger, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.UpdateDocument)
	r.Delete("/documents/*", h.DeleteDocument)

	// Validation and diagnostics.
	r.Post("/validate", h.Validate)
	r.Post("/validate/all", h.ValidateAll)
	r.Get("/diagnostics", h.AllDiagnostics)
	r.Get("/diagnostics/*", h.Diagnostics)

	// Navigation.
	r.Post("/resolve", h.Resolve)
	r.Post("/definition", h.Definition)
	r.Get("/block", h.Block)
	r.Get("/references", h.References)

	// Completion.
	r.Post("/suggest", h.Suggest)
	r.Post("/complete", h.Complete)

	r.Get("/graph", h.Graph)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
