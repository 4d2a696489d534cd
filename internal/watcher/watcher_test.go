package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/speclink/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recorder) handle(_ context.Context, ev models.ChangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(path string, kind models.ChangeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Path == path && e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) total(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Path == path {
			n++
		}
	}
	return n
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, opts Options) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, root, rec.handle, logger, opts)
	time.Sleep(100 * time.Millisecond)
	return rec
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_NewFileCreated(t *testing.T) {
	root := t.TempDir()
	_ = os.MkdirAll(filepath.Join(root, "requirements"), 0o755)
	rec := startWatch(t, root, Options{Debounce: 50 * time.Millisecond})

	write(t, root, "requirements/a.req.md", "---\nartifact: a\n---\n")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("requirements/a.req.md", models.ChangeCreated) == 1
	}, "expected one created event for requirements/a.req.md")
}

func TestWatcher_BurstIsDebounced(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.req.md", "v0")
	rec := startWatch(t, root, Options{Debounce: 300 * time.Millisecond})

	for i := 0; i < 5; i++ {
		write(t, root, "b.req.md", strings.Repeat("x", i+1))
		time.Sleep(20 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("b.req.md", models.ChangeModified) == 1
	}, "expected a single modified event after the burst")
	time.Sleep(400 * time.Millisecond)
	if n := rec.total("b.req.md"); n != 1 {
		t.Errorf("events for b.req.md = %d, want 1", n)
	}
}

func TestWatcher_DeleteReported(t *testing.T) {
	root := t.TempDir()
	write(t, root, "design/del.design.md", "bye")
	rec := startWatch(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.Remove(filepath.Join(root, "design", "del.design.md"))

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("design/del.design.md", models.ChangeDeleted) == 1
	}, "expected deleted event")
}

func TestWatcher_RenameReportsBothPaths(t *testing.T) {
	root := t.TempDir()
	write(t, root, "old.req.md", "x")
	rec := startWatch(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.Rename(filepath.Join(root, "old.req.md"), filepath.Join(root, "new.req.md"))

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("old.req.md", models.ChangeDeleted) == 1 &&
			rec.count("new.req.md", models.ChangeCreated) == 1
	}, "rename should report old path deleted and new path created")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.MkdirAll(filepath.Join(root, "implementation"), 0o755)
	time.Sleep(100 * time.Millisecond)
	write(t, root, "implementation/deep.impl.md", "# Deep")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("implementation/deep.impl.md", models.ChangeCreated) >= 1
	}, "file in new dir not reported")
}

func TestWatcher_IgnoresNonDocumentsAndIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, Options{
		Debounce: 50 * time.Millisecond,
		Ignore:   func(rel string) bool { return strings.HasPrefix(rel, "drafts/") },
	})

	_ = os.MkdirAll(filepath.Join(root, "drafts"), 0o755)
	time.Sleep(100 * time.Millisecond)
	write(t, root, "notes.txt", "x")
	write(t, root, "drafts/x.req.md", "x")
	write(t, root, "kept.req.md", "x")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.count("kept.req.md", models.ChangeCreated) == 1
	}, "expected kept.req.md")
	if rec.total("notes.txt") != 0 || rec.total("drafts/x.req.md") != 0 {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		t.Errorf("unexpected events: %+v", rec.events)
	}
}
