package query

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/graph"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
	"github.com/starford/speclink/internal/refs"
	"github.com/starford/speclink/internal/resolver"
	"github.com/starford/speclink/internal/storage"
)

// Location is one textual occurrence of an element identifier.
type Location struct {
	Path string `json:"path"`
	models.Span
	// Definition is set when the occurrence is on the element's defining heading.
	Definition bool `json:"definition,omitempty"`
}

// Definition is the resolved defining block of an element.
type Definition struct {
	Target resolver.Target `json:"target"`
	Line   int             `json:"line"`
	Block  string          `json:"block"`
}

// Completion is the result of a completion request at a cursor position.
type Completion struct {
	Context    refs.Context       `json:"context"`
	Candidates []models.Reference `json:"candidates"`
}

// Service runs corpus-wide queries. Every call reads the corpus afresh.
type Service struct {
	store        storage.Provider
	summaryFiles []string
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSummaryFiles overrides the summary document base-name patterns.
func WithSummaryFiles(patterns []string) Option {
	return func(s *Service) {
		if len(patterns) > 0 {
			s.summaryFiles = patterns
		}
	}
}

// New creates a query service over store.
func New(store storage.Provider, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, summaryFiles: DefaultSummaryFiles, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSummary reports whether p is a summary document.
func (s *Service) IsSummary(p string) bool {
	return IsSummaryPath(p, s.summaryFiles)
}

// Corpus snapshots the workspace.
func (s *Service) Corpus(ctx context.Context) (*graph.Corpus, error) {
	return graph.NewCorpus(ctx, s.store)
}

// Complete suggests references for the cursor at (line, col) in raw, the
// possibly unsaved text of the document at path.
func (s *Service) Complete(ctx context.Context, path, raw string, line, col int) (*Completion, error) {
	c := refs.ContextAt(raw, line, col)
	out := &Completion{Context: c, Candidates: []models.Reference{}}
	if c.Key == "" && !c.AfterSigil {
		return out, nil
	}

	corpus, err := s.Corpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: complete: %w", err)
	}
	doc := parser.ParseFile(path, raw)

	var cands []models.Reference
	switch {
	case c.Key == models.RelationDependsOn:
		cands = SuggestDependsOnCandidates(doc, corpus)
	case c.Key == models.RelationReferences:
		cands = SuggestReferenceCandidates(doc, corpus)
	case c.AfterSigil:
		for _, ref := range SuggestMentionCandidates(doc, s.IsSummary(path), corpus) {
			if strings.HasPrefix(ref.String(), c.Prefix) {
				cands = append(cands, ref)
			}
		}
	}
	if cands != nil {
		out.Candidates = cands
	}
	return out, nil
}

// FindAllReferencingLocations scans every document for whole-token occurrences
// of id. The match is textual, so an identifier quoted in prose is reported too.
func (s *Service) FindAllReferencingLocations(ctx context.Context, id string) ([]Location, error) {
	if _, err := resolver.PhaseOf(id); errors.Is(err, resolver.ErrMalformedIdentifier) {
		return nil, err
	}
	files, err := s.store.ListArtifactFiles()
	if err != nil {
		return nil, fmt.Errorf("query: list corpus: %w", err)
	}

	out := []Location{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.ReadFile(f.Path)
		if err != nil {
			s.logger.Debug("query: skip unreadable file", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		lines := parser.SplitLines(string(data))
		depths := headingDepths(lines)
		for n, line := range lines {
			for _, col := range tokenIndexes(line, id) {
				out = append(out, Location{
					Path:       f.Path,
					Span:       models.Span{Line: n, Column: col, Length: len(id)},
					Definition: depths[n] >= 3,
				})
			}
		}
	}
	return out, nil
}

// Definition resolves id as referenced from site and returns its defining block.
func (s *Service) Definition(_ context.Context, id string, site resolver.Site) (*Definition, error) {
	target, err := resolver.ResolveTarget(id, site)
	if err != nil {
		return nil, err
	}
	data, err := s.store.ReadFile(target.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("query: %s: %w", target.Path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("query: read %s: %w", target.Path, err)
	}
	text := string(data)
	block, err := LocateElementBlock(text, id)
	if err != nil {
		return nil, fmt.Errorf("query: %s in %s: %w", id, target.Path, err)
	}
	line, _, _ := ElementHeading(text, id)
	return &Definition{Target: target, Line: line, Block: block}, nil
}
