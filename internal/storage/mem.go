package storage

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/speclink/internal/checksum"
	"github.com/starford/speclink/internal/models"
)

// Mem is an in-memory Provider. The zero value is not usable; call NewMem.
type Mem struct {
	mu    sync.RWMutex
	files map[string]memFile
	now   func() time.Time
}

type memFile struct {
	data    []byte
	updated time.Time
}

// NewMem returns a Mem seeded with files (path → content).
func NewMem(files map[string]string) *Mem {
	m := &Mem{files: make(map[string]memFile, len(files)), now: time.Now}
	for p, content := range files {
		m.files[clean(p)] = memFile{data: []byte(content), updated: m.now()}
	}
	return m
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// ListArtifactFiles returns every .md file, sorted by path.
func (m *Mem) ListArtifactFiles() ([]models.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.FileMetadata, 0, len(m.files))
	for p, f := range m.files {
		if !strings.HasSuffix(p, models.DocumentExt) {
			continue
		}
		out = append(out, models.FileMetadata{Path: p, Checksum: checksum.Sum(f.data), UpdatedAt: f.updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ReadFile returns a copy of the stored content.
func (m *Mem) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, fs.ErrNotExist)
	}
	return append([]byte(nil), f.data...), nil
}

// WriteFile stores a copy of content.
func (m *Mem) WriteFile(p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(p)] = memFile{data: append([]byte(nil), content...), updated: m.now()}
	return nil
}

// DeleteFile removes p.
func (m *Mem) DeleteFile(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := clean(p)
	if _, ok := m.files[key]; !ok {
		return fmt.Errorf("storage: delete %s: %w", p, fs.ErrNotExist)
	}
	delete(m.files, key)
	return nil
}
