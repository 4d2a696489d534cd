package specservice

import (
	"context"
	"fmt"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/graph"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
	"github.com/starford/speclink/internal/query"
	"github.com/starford/speclink/internal/resolver"
)

// Suggest lists the candidates the document at p (with content raw, or the
// stored content when raw is empty) may add for relation.
func (s *Service) Suggest(ctx context.Context, p, raw string, relation models.Relation) ([]models.Reference, error) {
	if raw == "" {
		data, err := s.store.ReadFile(p)
		if err == nil {
			raw = string(data)
		}
	}
	corpus, err := s.query.Corpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("spec: suggest: %w", err)
	}
	doc := parser.ParseFile(p, raw)

	var out []models.Reference
	switch relation {
	case models.RelationDependsOn:
		out = query.SuggestDependsOnCandidates(doc, corpus)
	case models.RelationReferences:
		out = query.SuggestReferenceCandidates(doc, corpus)
	case models.RelationMention:
		out = query.SuggestMentionCandidates(doc, s.query.IsSummary(p), corpus)
	default:
		return nil, fmt.Errorf("spec: suggest: unknown relation %q", relation)
	}
	if out == nil {
		out = []models.Reference{}
	}
	return out, nil
}

// Complete delegates to the query layer.
func (s *Service) Complete(ctx context.Context, p, raw string, line, col int) (*query.Completion, error) {
	return s.query.Complete(ctx, p, raw, line, col)
}

// FindReferences lists every textual occurrence of an element identifier.
func (s *Service) FindReferences(ctx context.Context, id string) ([]query.Location, error) {
	return s.query.FindAllReferencingLocations(ctx, id)
}

// Resolve maps an element identifier to the document that should define it.
func (s *Service) Resolve(_ context.Context, id string, site resolver.Site) (resolver.Target, error) {
	return resolver.ResolveTarget(id, site)
}

// Definition resolves an element identifier and returns its defining block.
func (s *Service) Definition(ctx context.Context, id string, site resolver.Site) (*query.Definition, error) {
	return s.query.Definition(ctx, id, site)
}

// Block returns the defining block of id inside the stored document at p.
func (s *Service) Block(_ context.Context, p, id string) (string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	data, err := s.store.ReadFile(p)
	if err != nil {
		if notFound(err) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("spec: block: %w", err)
	}
	return query.LocateElementBlock(string(data), id)
}

// Graph returns the dependsOn/references graph of the workspace.
func (s *Service) Graph(ctx context.Context) ([]graph.Node, []graph.Link, error) {
	corpus, err := s.query.Corpus(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("spec: graph: %w", err)
	}
	nodes, links := corpus.Export()
	return nodes, links, nil
}
