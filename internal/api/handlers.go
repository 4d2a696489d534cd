package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/resolver"
	"github.com/starford/speclink/internal/specservice"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *specservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *specservice.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// docPath extracts the document path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. design%2Fpay.design.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List workspace documents
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a document with its current diagnostics
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Get(r.Context(), path)
	if err != nil {
		h.writeError(w, "get document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a document at its layout path
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	phase, ok := models.ParsePhase(req.Phase)
	if req.Artifact == "" || !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("artifact and a valid phase are required"))
		return
	}
	doc, err := h.svc.Create(r.Context(), models.Reference{Artifact: req.Artifact, Phase: phase}, req.Content)
	if err != nil {
		h.writeError(w, "create document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/*.
//
//	@Summary		Update a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string					true	"Document path"
//	@Param			If-Match	header	string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateDocumentRequest	true	"Updated content"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	doc, err := h.svc.Update(r.Context(), path, req.Content, r.Header.Get("If-Match"))
	if err != nil {
		h.writeError(w, "update document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/*.
//
//	@Summary		Delete a document and retract its diagnostics
//	@Tags			documents
//	@Param			path	path	string	true	"Document path"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		h.writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate handles POST /api/validate.
//
//	@Summary		Validate unsaved document text without publishing
//	@Tags			diagnostics
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateRequest	true	"Text to validate"
//	@Success		200		{object}	specservice.Result
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Validate(r.Context(), req.Path, req.Content))
}

// ValidateAll handles POST /api/validate/all.
//
//	@Summary		Revalidate the whole workspace
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	specservice.Report
//	@Security		BearerAuth
//	@Router			/validate/all [post]
func (h *Handler) ValidateAll(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.ValidateAll(r.Context())
	if err != nil {
		h.writeError(w, "validate all", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AllDiagnostics handles GET /api/diagnostics.
//
//	@Summary		Last published diagnostics of every document
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	map[string][]models.Diagnostic
//	@Security		BearerAuth
//	@Router			/diagnostics [get]
func (h *Handler) AllDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.AllDiagnostics())
}

// Diagnostics handles GET /api/diagnostics/*.
//
//	@Summary		Last published diagnostics of one document
//	@Tags			diagnostics
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DiagnosticsResponse
//	@Security		BearerAuth
//	@Router			/diagnostics/{path} [get]
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	diags := h.svc.Diagnostics(path)
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, DiagnosticsResponse{Path: path, Diagnostics: diags})
}

func (req SiteRequest) site() resolver.Site {
	return resolver.Site{Path: req.Path, Text: req.Text, Line: req.Line}
}

// Resolve handles POST /api/resolve.
//
//	@Summary		Resolve an element identifier to its target document
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SiteRequest	true	"Identifier and reference site"
//	@Success		200		{object}	resolver.Target
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if !decode(w, r, &req) {
		return
	}
	target, err := h.svc.Resolve(r.Context(), req.ElementID, req.site())
	if err != nil {
		h.writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// Definition handles POST /api/definition.
//
//	@Summary		Resolve an element identifier and return its defining block
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SiteRequest	true	"Identifier and reference site"
//	@Success		200		{object}	query.Definition
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/definition [post]
func (h *Handler) Definition(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if !decode(w, r, &req) {
		return
	}
	def, err := h.svc.Definition(r.Context(), req.ElementID, req.site())
	if err != nil {
		h.writeError(w, "definition", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// Block handles GET /api/block?path=&id=.
//
//	@Summary		Defining block of an element inside a document
//	@Tags			navigation
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			id		query		string	true	"Element identifier"
//	@Success		200		{object}	BlockResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/block [get]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, id := q.Get("path"), q.Get("id")
	if path == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'path' and 'id' are required"))
		return
	}
	block, err := h.svc.Block(r.Context(), path, id)
	if err != nil {
		h.writeError(w, "block", err)
		return
	}
	writeJSON(w, http.StatusOK, BlockResponse{ElementID: id, Path: path, Block: block})
}

// References handles GET /api/references?id=.
//
//	@Summary		Every textual occurrence of an element identifier
//	@Tags			navigation
//	@Produce		json
//	@Param			id	query		string	true	"Element identifier"
//	@Success		200	{array}		query.Location
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'id' is required"))
		return
	}
	locs, err := h.svc.FindReferences(r.Context(), id)
	if err != nil {
		h.writeError(w, "references", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// Suggest handles POST /api/suggest.
//
//	@Summary		Reference candidates a document may add
//	@Tags			completion
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SuggestRequest	true	"Document and relation"
//	@Success		200		{array}		models.Reference
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/suggest [post]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if !decode(w, r, &req) {
		return
	}
	rel := models.Relation(req.Relation)
	switch rel {
	case models.RelationDependsOn, models.RelationReferences, models.RelationMention:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("relation must be depends-on, references or mention"))
		return
	}
	cands, err := h.svc.Suggest(r.Context(), req.Path, req.Content, rel)
	if err != nil {
		h.writeError(w, "suggest", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

// Complete handles POST /api/complete.
//
//	@Summary		Completions at a cursor position
//	@Tags			completion
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CompleteRequest	true	"Text and cursor"
//	@Success		200		{object}	query.Completion
//	@Security		BearerAuth
//	@Router			/complete [post]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Complete(r.Context(), req.Path, req.Content, req.Line, req.Column)
	if err != nil {
		h.writeError(w, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the document dependency graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		h.writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}
