package diagstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/speclink/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "speclink-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func diag(code models.IssueKind, line int) models.Diagnostic {
	return models.Diagnostic{
		Range: models.Range{
			Start: models.Position{Line: line, Character: 2},
			End:   models.Position{Line: line, Character: 9},
		},
		Message:  string(code) + " finding",
		Severity: models.SeverityWarning,
		Code:     code,
		Source:   "speclink",
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"documents", "diagnostics", "runs"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestPublishReplacesInFull(t *testing.T) {
	db := testDB(t)
	path := "design/c.design.md"

	if err := db.Publish(path, []models.Diagnostic{diag(models.IssueMissingTarget, 1), diag(models.IssueOverSpecified, 2)}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := diag(models.IssueCircularDependency, 3)
	if err := db.Publish(path, []models.Diagnostic{want}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := db.Diagnostics(path)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %+v, want [%+v]", got, want)
	}
}

func TestPublishEmptyClears(t *testing.T) {
	db := testDB(t)
	_ = db.Publish("a.req.md", []models.Diagnostic{diag(models.IssueMissingTarget, 0)})
	if err := db.Publish("a.req.md", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	paths, _ := db.AllPaths()
	if len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
	got, _ := db.Diagnostics("a.req.md")
	if len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestRetractCascades(t *testing.T) {
	db := testDB(t)
	_ = db.Publish("a.req.md", []models.Diagnostic{diag(models.IssueMissingTarget, 0)})
	_ = db.Publish("b.req.md", []models.Diagnostic{diag(models.IssueMissingTarget, 0), diag(models.IssueOverSpecified, 1)})

	if err := db.Retract("a.req.md"); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	counts, err := db.CountByCode()
	if err != nil {
		t.Fatalf("CountByCode: %v", err)
	}
	if counts[models.IssueMissingTarget] != 1 || counts[models.IssueOverSpecified] != 1 {
		t.Errorf("counts = %v", counts)
	}
	paths, _ := db.AllPaths()
	if _, ok := paths["b.req.md"]; !ok || len(paths) != 1 {
		t.Errorf("paths = %v", paths)
	}
}

func TestRuns(t *testing.T) {
	db := testDB(t)
	if r, err := db.LastRun(); err != nil || r != nil {
		t.Fatalf("LastRun on empty db = %v, %v", r, err)
	}

	start := time.Now().Add(-time.Minute)
	older := Run{ID: uuid.NewString(), StartedAt: start, FinishedAt: start.Add(time.Second), Documents: 1}
	newer := Run{ID: uuid.NewString(), StartedAt: start, FinishedAt: start.Add(2 * time.Second), Documents: 4, Diagnostics: 2}
	for _, r := range []Run{older, newer} {
		if err := db.RecordRun(r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	got, err := db.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if got.ID != newer.ID || got.Documents != 4 || got.Diagnostics != 2 {
		t.Errorf("last run = %+v, want %+v", got, newer)
	}
}
