package graph

import (
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/refs"
)

// TransitiveDeps returns every document reachable from start over dependsOn
// edges. start itself is included only when a cycle leads back to it. Each node
// is expanded at most once, so cycles already present in the corpus terminate.
func TransitiveDeps(start models.Reference, lookup Lookup) map[models.Reference]struct{} {
	seen := make(map[models.Reference]struct{})
	stack := append([]models.Reference(nil), lookup.DependsOn(start)...)
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		stack = append(stack, lookup.DependsOn(ref)...)
	}
	return seen
}

// WouldCycle reports whether an edge self → target closes a cycle.
func WouldCycle(self, target models.Reference, lookup Lookup) bool {
	if self == target {
		return true
	}
	_, ok := TransitiveDeps(target, lookup)[self]
	return ok
}

// AllowedDependency reports whether a document in phase from may list a document
// in phase to: requirements depend on requirements, designs on requirements or
// designs, implementations on anything.
func AllowedDependency(from, to models.Phase) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.Rank() <= from.Rank()
}

// Validate checks every reference in set against lookup. doc is overlaid on
// lookup so its own dependsOn entries are the ones used for cycle detection.
//
// Over-specified references are reported regardless of whether their target
// exists. Only dependsOn entries take part in cycle detection.
func Validate(doc *models.Document, set *refs.Set, lookup Lookup) []models.ValidationIssue {
	if set == nil {
		return nil
	}
	lk := WithDocument(lookup, doc)
	self := doc.GraphRef()

	var issues []models.ValidationIssue
	for _, loc := range set.All() {
		issue := models.ValidationIssue{
			Relation: loc.Relation,
			Raw:      loc.Raw,
			Target:   loc.Ref,
			Span:     loc.Span,
		}
		switch {
		case !loc.Bare:
			issue.Kind = models.IssueOverSpecified
		case loc.Relation == models.RelationDependsOn && WouldCycle(self, loc.Ref, lk):
			issue.Kind = models.IssueCircularDependency
		case !lk.Exists(loc.Ref):
			issue.Kind = models.IssueMissingTarget
		default:
			continue
		}
		issues = append(issues, issue)
	}
	return issues
}
