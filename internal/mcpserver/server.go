// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes speclink validation and navigation tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/resolver"
	"github.com/starford/speclink/internal/specservice"
)

const formatURI = "speclink://document-format"

// Server wraps the MCP server with speclink tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *specservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all speclink tools registered.
func New(svc *specservice.Service, logger *slog.Logger, version string) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"speclink",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List every requirement, design and implementation document in the workspace."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document's content together with its current diagnostics."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative path (e.g. design/payments.design.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document for an artifact in a phase. The file is placed at "+
			"<phase folder>/<artifact>.<tag>.md and its front matter is completed. Read the format "+
			"first via get_document_format or the "+formatURI+" resource."),
		mcp.WithString("artifact", mcp.Required(), mcp.Description("Artifact name (letters, digits, hyphens)")),
		mcp.WithString("phase", mcp.Required(), mcp.Description("requirement, design or implementation (or req, design, impl)")),
		mcp.WithString("content", mcp.Description("Initial Markdown content")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns the speclink document format. "+
			"Call this before creating or updating documents."),
	), s.getDocumentFormat)

	s.mcp.AddTool(mcp.NewTool("validate_document",
		mcp.WithDescription("Validate a document's references. With content, the text is checked as an "+
			"unsaved edit and nothing is published; without it the stored file is validated."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative document path")),
		mcp.WithString("content", mcp.Description("Unsaved document text")),
	), s.validateDocument)

	s.mcp.AddTool(mcp.NewTool("validate_workspace",
		mcp.WithDescription("Revalidate every document and return the diagnostics per path."),
	), s.validateWorkspace)

	s.mcp.AddTool(mcp.NewTool("goto_definition",
		mcp.WithDescription("Resolve an element identifier (REQ-0001, DES-0002, IMP-0003) and return "+
			"the document that defines it and the element's block."),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element identifier")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document holding the reference")),
		mcp.WithString("text", mcp.Description("Text of that document, used for artifact annotations")),
		mcp.WithNumber("line", mcp.Description("0-based line of the reference")),
	), s.gotoDefinition)

	s.mcp.AddTool(mcp.NewTool("get_element_block",
		mcp.WithDescription("Return the block of an element inside a given document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element identifier")),
	), s.elementBlock)

	s.mcp.AddTool(mcp.NewTool("find_references",
		mcp.WithDescription("List every whole-token occurrence of an element identifier across the workspace."),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element identifier")),
	), s.findReferences)

	s.mcp.AddTool(mcp.NewTool("suggest_references",
		mcp.WithDescription("List the documents a document may add for a relation."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("relation", mcp.Required(), mcp.Enum("depends-on", "references", "mention"),
			mcp.Description("Relation to suggest for")),
		mcp.WithString("content", mcp.Description("Unsaved document text; the stored file is used when empty")),
	), s.suggestReferences)

	s.mcp.AddTool(mcp.NewTool("complete",
		mcp.WithDescription("Completion candidates at a cursor position."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based cursor line")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("0-based cursor column")),
	), s.complete)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the document graph: nodes and dependsOn/references edges."),
	), s.graph)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format",
			mcp.WithResourceDescription("Layout, front matter and element conventions of speclink documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// intArg returns the numeric argument key, or def when missing.
// JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return def
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError renders err for the model. Resolution misses are not failures of the
// server, so they are reported as plain text results.
func (s *Server) toolError(op string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, resolver.ErrNotResolvable),
		errors.Is(err, resolver.ErrArtifactUnresolved):
		return mcp.NewToolResultText("no result: " + err.Error()), nil
	}
	s.logger.Debug("mcp: tool failed", slog.String("tool", op), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx)
	if err != nil {
		return s.toolError("list_documents", err)
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d", it.Path, it.Phase, it.Diagnostics))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return s.toolError("read_document", err)
	}
	return jsonResult(doc)
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	artifact, err := req.RequireString("artifact")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawPhase, err := req.RequireString("phase")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	phase, ok := models.ParsePhase(rawPhase)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown phase %q", rawPhase)), nil
	}
	doc, err := s.svc.Create(ctx, models.Reference{Artifact: artifact, Phase: phase}, req.GetString("content", ""))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("document already exists: %s", models.DocumentPath(models.Reference{Artifact: artifact, Phase: phase}))), nil
		}
		return s.toolError("create_document", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d diagnostics)", doc.Path, len(doc.Diagnostics))), nil
}

func (s *Server) getDocumentFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormat), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormat,
		},
	}, nil
}

func (s *Server) validateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if content := req.GetString("content", ""); content != "" {
		return jsonResult(s.svc.Validate(ctx, path, content).Diagnostics)
	}
	diags, err := s.svc.ValidatePath(ctx, path, specservice.TriggerAPI)
	if err != nil {
		return s.toolError("validate_document", err)
	}
	if len(diags) == 0 {
		return mcp.NewToolResultText("no issues"), nil
	}
	return jsonResult(diags)
}

func (s *Server) validateWorkspace(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.ValidateAll(ctx)
	if err != nil {
		return s.toolError("validate_workspace", err)
	}
	return jsonResult(rep)
}

func (s *Server) gotoDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("element_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	site := resolver.Site{Path: path, Text: req.GetString("text", ""), Line: intArg(req, "line", 0)}
	def, err := s.svc.Definition(ctx, id, site)
	if err != nil {
		return s.toolError("goto_definition", err)
	}
	return jsonResult(def)
}

func (s *Server) elementBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("element_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	block, err := s.svc.Block(ctx, path, id)
	if err != nil {
		return s.toolError("get_element_block", err)
	}
	return mcp.NewToolResultText(block), nil
}

func (s *Server) findReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("element_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	locs, err := s.svc.FindReferences(ctx, id)
	if err != nil {
		return s.toolError("find_references", err)
	}
	if len(locs) == 0 {
		return mcp.NewToolResultText("no references found"), nil
	}
	lines := make([]string, 0, len(locs))
	for _, l := range locs {
		line := fmt.Sprintf("%s:%d:%d", l.Path, l.Line+1, l.Column+1)
		if l.Definition {
			line += " (definition)"
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) suggestReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rel, err := req.RequireString("relation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cands, err := s.svc.Suggest(ctx, path, req.GetString("content", ""), models.Relation(rel))
	if err != nil {
		return s.toolError("suggest_references", err)
	}
	if len(cands) == 0 {
		return mcp.NewToolResultText("no candidates"), nil
	}
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.String())
	}
	return mcp.NewToolResultText(strings.Join(out, "\n")), nil
}

func (s *Server) complete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Complete(ctx, path, content, intArg(req, "line", 0), intArg(req, "column", 0))
	if err != nil {
		return s.toolError("complete", err)
	}
	return jsonResult(c)
}

func (s *Server) graph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, links, err := s.svc.Graph(ctx)
	if err != nil {
		return s.toolError("get_graph", err)
	}
	return jsonResult(map[string]any{"nodes": nodes, "links": links})
}
