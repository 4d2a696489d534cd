package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempWorkspace(t *testing.T, opts ...FSOption) *FS {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFS(dir, opts...)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempWorkspace(t)
	content := []byte("---\nartifact: a\n---\n## Overview\n")
	if err := s.WriteFile("requirements/a.req.md", content); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile("requirements/a.req.md")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempWorkspace(t)
	_, err := s.ReadFile("design/ghost.design.md")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.WriteFile("design/del.design.md", []byte("bye"))
	if err := s.DeleteFile("design/del.design.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := s.ReadFile("design/del.design.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestListArtifactFiles(t *testing.T) {
	s := tempWorkspace(t, WithIgnore("**/drafts/**"))
	_ = s.WriteFile("requirements/a.req.md", []byte("a"))
	_ = s.WriteFile("design/a.design.md", []byte("b"))
	_ = s.WriteFile("requirements/drafts/x.req.md", []byte("ignored"))
	_ = s.WriteFile(".git/HEAD.md", []byte("hidden"))
	_ = s.WriteFile("readme.txt", []byte("not md"))

	items, err := s.ListArtifactFiles()
	if err != nil {
		t.Fatalf("ListArtifactFiles: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
		if filepath.IsAbs(it.Path) {
			t.Errorf("%s: path should be relative", it.Path)
		}
	}
}

func TestNewFS_InvalidIgnorePattern(t *testing.T) {
	if _, err := NewFS(t.TempDir(), WithIgnore("[")); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempWorkspace(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.ReadFile(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.WriteFile(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.WriteFile("atomic.req.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.WriteFile("atomic.req.md", updated); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, _ := s.ReadFile("atomic.req.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "speclink-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestMem(t *testing.T) {
	m := NewMem(map[string]string{
		"requirements/a.req.md": "a",
		"notes.txt":             "skip",
	})
	if err := m.WriteFile("/design/b.design.md", []byte("b")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	items, _ := m.ListArtifactFiles()
	if len(items) != 2 || items[0].Path != "design/b.design.md" || items[1].Path != "requirements/a.req.md" {
		t.Fatalf("items = %+v", items)
	}
	if err := m.DeleteFile("requirements/a.req.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := m.ReadFile("requirements/a.req.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
	if err := m.DeleteFile("requirements/a.req.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second delete err = %v", err)
	}
}
