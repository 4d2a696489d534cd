package api

import (
	"github.com/starford/speclink/internal/graph"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/specservice"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Artifact string `json:"artifact" example:"payments" validate:"required"`
	Phase    string `json:"phase" example:"design" validate:"required"`
	Content  string `json:"content" example:"## Overview\nDepends on @payments.req"`
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"---\nphase: design\n---\n## Overview" validate:"required"`
}

// ValidateRequest validates text that may not be saved yet.
type ValidateRequest struct {
	Path    string `json:"path" example:"design/payments.design.md" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// SiteRequest identifies an element identifier and where it was referenced.
type SiteRequest struct {
	ElementID string `json:"element_id" example:"REQ-0001" validate:"required"`
	Path      string `json:"path" example:"design/payments.design.md"`
	Text      string `json:"text"`
	Line      int    `json:"line" example:"4"`
}

// SuggestRequest asks for reference candidates for a document.
type SuggestRequest struct {
	Path     string `json:"path" example:"design/payments.design.md" validate:"required"`
	Content  string `json:"content"`
	Relation string `json:"relation" example:"depends-on" validate:"required"`
}

// CompleteRequest asks for completions at a cursor position.
type CompleteRequest struct {
	Path    string `json:"path" example:"design/payments.design.md" validate:"required"`
	Content string `json:"content" validate:"required"`
	Line    int    `json:"line" example:"3"`
	Column  int    `json:"column" example:"14"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = specservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = specservice.DocumentListItem

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// DiagnosticsResponse is the last published diagnostics of one document.
type DiagnosticsResponse struct {
	Path        string              `json:"path" example:"design/payments.design.md"`
	Diagnostics []models.Diagnostic `json:"diagnostics" validate:"required"`
}

// BlockResponse is the defining block of an element.
type BlockResponse struct {
	ElementID string `json:"element_id" example:"REQ-0001"`
	Path      string `json:"path" example:"requirements/payments.req.md"`
	Block     string `json:"block"`
}

// GraphResponse wraps the document graph.
type GraphResponse struct {
	Nodes []graph.Node `json:"nodes" validate:"required"`
	Links []graph.Link `json:"links" validate:"required"`
}
