// Package testutil provides shared test helpers for setting up workspaces and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/speclink/internal/diagstore"
	"github.com/starford/speclink/internal/storage"
)

// TestDB creates a temporary diagnostics database that is automatically cleaned up.
func TestDB(t *testing.T) *diagstore.DB {
	t.Helper()
	db, err := diagstore.Open(filepath.Join(t.TempDir(), "speclink-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFiles writes files (slash-separated relative path to content) under root.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestWorkspace creates a temporary workspace holding files.
func TestWorkspace(t *testing.T, files map[string]string, opts ...storage.FSOption) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, files)
	store, err := storage.NewFS(root, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}
