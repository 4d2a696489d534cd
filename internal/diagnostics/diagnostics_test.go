package diagnostics

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/speclink/internal/models"
)

func TestFromIssues(t *testing.T) {
	issues := []models.ValidationIssue{
		{
			Kind:     models.IssueMissingTarget,
			Relation: models.RelationReferences,
			Raw:      "ghost.design",
			Target:   models.Reference{Artifact: "ghost", Phase: models.PhaseDesign},
			Span:     models.Span{Line: 3, Column: 13, Length: 12},
		},
		{Kind: models.IssueOverSpecified, Relation: models.RelationDependsOn, Raw: "foo.req[extra]"},
		{Kind: models.IssueCircularDependency, Relation: models.RelationDependsOn, Raw: "c.design"},
	}

	got := FromIssues(issues)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	first := got[0]
	if first.Range.Start != (models.Position{Line: 3, Character: 13}) || first.Range.End != (models.Position{Line: 3, Character: 25}) {
		t.Errorf("range = %+v", first.Range)
	}
	if !strings.Contains(first.Message, "design/ghost.design.md") {
		t.Errorf("message = %q", first.Message)
	}
	for i, d := range got {
		if d.Severity != models.SeverityWarning {
			t.Errorf("[%d] severity = %s", i, d.Severity)
		}
		if d.Code != issues[i].Kind || d.Source != Source {
			t.Errorf("[%d] code/source = %s/%s", i, d.Code, d.Source)
		}
	}
	if !strings.Contains(got[1].Message, "over-specified") || !strings.Contains(got[2].Message, "circular") {
		t.Errorf("messages = %q, %q", got[1].Message, got[2].Message)
	}
}

func TestFromIssues_Empty(t *testing.T) {
	if got := FromIssues(nil); got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestMemoryReplaceInFull(t *testing.T) {
	m := NewMemory()
	d := models.Diagnostic{Message: "x"}

	_ = m.Publish("a.req.md", []models.Diagnostic{d, d})
	_ = m.Publish("a.req.md", []models.Diagnostic{d})
	if got := m.Get("a.req.md"); len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	_ = m.Publish("b.req.md", []models.Diagnostic{d})
	if m.Count() != 2 || len(m.Paths()) != 2 {
		t.Errorf("count=%d paths=%v", m.Count(), m.Paths())
	}

	_ = m.Publish("a.req.md", nil)
	_ = m.Retract("b.req.md")
	if len(m.Paths()) != 0 {
		t.Errorf("paths = %v, want none", m.Paths())
	}
}

type failing struct{}

func (failing) Publish(string, []models.Diagnostic) error { return errors.New("publish failed") }
func (failing) Retract(string) error                      { return errors.New("retract failed") }

func TestMultiContinuesPastErrors(t *testing.T) {
	mem := NewMemory()
	multi := Multi{failing{}, mem}

	err := multi.Publish("a.req.md", []models.Diagnostic{{Message: "x"}})
	if err == nil || !strings.Contains(err.Error(), "publish failed") {
		t.Fatalf("err = %v", err)
	}
	if len(mem.Get("a.req.md")) != 1 {
		t.Error("second sink should still receive the publish")
	}
	if err := multi.Retract("a.req.md"); err == nil {
		t.Error("expected retract error")
	}
	if len(mem.Paths()) != 0 {
		t.Error("second sink should still retract")
	}
}
