// Package diagnostics converts validation findings into sink-facing diagnostics
// and fans them out to the sinks that keep or stream them.
package diagnostics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/speclink/internal/models"
)

// Source is stamped on every diagnostic.
const Source = "speclink"

// Sink receives, per path, the complete current list of diagnostics. Publish
// replaces whatever was reported for the path before; Retract clears it.
type Sink interface {
	Publish(path string, diags []models.Diagnostic) error
	Retract(path string) error
}

// FromIssues converts validation issues to diagnostics. Every kind is advisory
// and reported as a warning.
func FromIssues(issues []models.ValidationIssue) []models.Diagnostic {
	out := make([]models.Diagnostic, 0, len(issues))
	for _, is := range issues {
		out = append(out, models.Diagnostic{
			Range: models.Range{
				Start: models.Position{Line: is.Span.Line, Character: is.Span.Column},
				End:   models.Position{Line: is.Span.Line, Character: is.Span.Column + is.Span.Length},
			},
			Message:  Message(is),
			Severity: models.SeverityWarning,
			Code:     is.Kind,
			Source:   Source,
		})
	}
	return out
}

// Message renders the human-readable text of an issue.
func Message(is models.ValidationIssue) string {
	switch is.Kind {
	case models.IssueOverSpecified:
		return fmt.Sprintf("%s %q is over-specified: use the bare <artifact>.<req|design|impl> form", is.Relation, is.Raw)
	case models.IssueMissingTarget:
		return fmt.Sprintf("%s %q: no document at %s", is.Relation, is.Raw, is.Target.Path())
	case models.IssueCircularDependency:
		return fmt.Sprintf("depends-on %q creates a circular dependency", is.Raw)
	default:
		return fmt.Sprintf("%s %q: %s", is.Relation, is.Raw, is.Kind)
	}
}

// Memory keeps the last published diagnostics per path.
type Memory struct {
	mu    sync.RWMutex
	diags map[string][]models.Diagnostic
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{diags: make(map[string][]models.Diagnostic)}
}

// Publish implements Sink. A path with no diagnostics is dropped.
func (m *Memory) Publish(path string, diags []models.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(diags) == 0 {
		delete(m.diags, path)
		return nil
	}
	m.diags[path] = append([]models.Diagnostic(nil), diags...)
	return nil
}

// Retract implements Sink.
func (m *Memory) Retract(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.diags, path)
	return nil
}

// Get returns the diagnostics last published for path.
func (m *Memory) Get(path string) []models.Diagnostic {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Diagnostic(nil), m.diags[path]...)
}

// Paths returns the paths that currently have diagnostics, sorted.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.diags))
	for p := range m.diags {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of diagnostics held.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, d := range m.diags {
		n += len(d)
	}
	return n
}

// Multi forwards to every sink, in order. Errors are joined; a failing sink
// does not stop the rest.
type Multi []Sink

// Publish implements Sink.
func (ms Multi) Publish(path string, diags []models.Diagnostic) error {
	var errs []error
	for _, s := range ms {
		if err := s.Publish(path, diags); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retract implements Sink.
func (ms Multi) Retract(path string) error {
	var errs []error
	for _, s := range ms {
		if err := s.Retract(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
