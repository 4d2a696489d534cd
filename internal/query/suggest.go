// Package query answers the navigation and completion questions front ends ask:
// which references a document may add, where an element is defined and where it
// is referenced.
package query

import (
	"path"

	"github.com/starford/speclink/internal/graph"
	"github.com/starford/speclink/internal/models"
)

// DefaultSummaryFiles are the base-name patterns of summary documents.
var DefaultSummaryFiles = []string{"SUMMARY.md", "summary.md", "*.summary.md"}

// SuggestDependsOnCandidates lists the documents doc may add to its dependsOn:
// everything in the corpus except doc itself, implementation documents, targets
// the phase ordering disallows and targets that would close a cycle.
func SuggestDependsOnCandidates(doc *models.Document, corpus *graph.Corpus) []models.Reference {
	lookup := graph.WithDocument(corpus, doc)
	self := doc.GraphRef()
	var out []models.Reference
	for _, ref := range corpus.Refs() {
		if !referenceCandidate(doc, ref) {
			continue
		}
		if graph.WouldCycle(self, ref, lookup) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// SuggestReferenceCandidates is SuggestDependsOnCandidates without the cycle
// filter; references never form cycles.
func SuggestReferenceCandidates(doc *models.Document, corpus *graph.Corpus) []models.Reference {
	var out []models.Reference
	for _, ref := range corpus.Refs() {
		if referenceCandidate(doc, ref) {
			out = append(out, ref)
		}
	}
	return out
}

func referenceCandidate(doc *models.Document, ref models.Reference) bool {
	if ref == doc.GraphRef() || ref.Phase == models.PhaseImplementation {
		return false
	}
	return graph.AllowedDependency(doc.Phase, ref.Phase)
}

// SuggestMentionCandidates lists the documents doc may mention inline. Summary
// documents may mention only requirements; requirement documents may not
// mention designs.
func SuggestMentionCandidates(doc *models.Document, isSummary bool, corpus *graph.Corpus) []models.Reference {
	var out []models.Reference
	for _, ref := range corpus.Refs() {
		switch {
		case ref == doc.GraphRef(), ref.Phase == models.PhaseImplementation:
			continue
		case isSummary && ref.Phase != models.PhaseRequirement:
			continue
		case doc.Phase == models.PhaseRequirement && ref.Phase == models.PhaseDesign:
			continue
		}
		out = append(out, ref)
	}
	return out
}

// IsSummaryPath reports whether the base name of p matches one of patterns
// (path.Match syntax). A nil patterns uses DefaultSummaryFiles.
func IsSummaryPath(p string, patterns []string) bool {
	if patterns == nil {
		patterns = DefaultSummaryFiles
	}
	base := path.Base(p)
	for _, pat := range patterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
	}
	return false
}
