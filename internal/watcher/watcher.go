// Package watcher turns fsnotify events under the workspace root into debounced,
// per-path document change events.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/speclink/internal/models"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives settled change events. It is always called from the watch
// loop goroutine, so calls never overlap.
type Handler func(ctx context.Context, ev models.ChangeEvent)

// Options configures Watch.
type Options struct {
	// Debounce is how long a path must stay quiet before its event is delivered.
	Debounce time.Duration
	// Ignore reports whether a workspace-relative, slash-separated path is skipped.
	Ignore func(rel string) bool
}

type pending struct {
	gen     uint64
	created bool
}

type fired struct {
	rel string
	gen uint64
}

// Watch watches root recursively until ctx is cancelled. A new event for a path
// replaces the one still waiting for that path; when the timer settles the file
// is stat'ed and the handler gets created/modified if it exists and deleted
// otherwise.
//
// New directories created at runtime are added to the watch list and the .md
// files already inside them are reported as created.
func Watch(ctx context.Context, root string, handler Handler, logger *slog.Logger, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watcher: resolve root: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return fmt.Errorf("watcher: add dirs: %w", err)
	}
	logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", opts.Debounce))

	var (
		waiting = make(map[string]pending)
		gen     uint64
		fireCh  = make(chan fired, 64)
	)
	schedule := func(rel string, created bool) {
		gen++
		p := waiting[rel]
		p.gen = gen
		p.created = p.created || created
		waiting[rel] = p
		g := gen
		time.AfterFunc(opts.Debounce, func() {
			select {
			case fireCh <- fired{rel: rel, gen: g}:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case f := <-fireCh:
			p, ok := waiting[f.rel]
			if !ok || p.gen != f.gen {
				continue // superseded by a later event
			}
			delete(waiting, f.rel)

			kind := models.ChangeModified
			if _, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(f.rel))); statErr != nil {
				kind = models.ChangeDeleted
			} else if p.created {
				kind = models.ChangeCreated
			}
			logger.Debug("watcher: settled", slog.String("path", f.rel), slog.String("kind", string(kind)))
			handler(ctx, models.ChangeEvent{Path: f.rel, Kind: kind, At: time.Now()})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if hidden(filepath.Base(absPath)) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					for _, rel := range documentsUnder(root, absPath) {
						if opts.Ignore == nil || !opts.Ignore(rel) {
							schedule(rel, true)
						}
					}
					continue
				}
			}

			rel, ok := relevant(root, absPath, opts.Ignore)
			if !ok || ev.Op == fsnotify.Chmod {
				continue
			}
			schedule(rel, ev.Op&fsnotify.Create != 0)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant returns the workspace-relative path of a document file.
func relevant(root, absPath string, ignore func(string) bool) (string, bool) {
	base := filepath.Base(absPath)
	if !strings.HasSuffix(base, models.DocumentExt) || hidden(base) {
		return "", false
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if ignore != nil && ignore(rel) {
		return "", false
	}
	return rel, true
}

// documentsUnder lists the .md files already present in a new directory.
func documentsUnder(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := relevant(root, p, nil); ok {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
