package specservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/checksum"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
)

// DocumentDetail is the full representation of a stored document.
type DocumentDetail struct {
	Path        string              `json:"path"`
	Content     string              `json:"content"`
	Checksum    string              `json:"checksum"`
	Document    *models.Document    `json:"document"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path        string       `json:"path"`
	Artifact    string       `json:"artifact"`
	Phase       models.Phase `json:"phase"`
	Checksum    string       `json:"checksum"`
	Diagnostics int          `json:"diagnostics"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// List returns every document in the workspace.
func (s *Service) List(_ context.Context) ([]DocumentListItem, error) {
	files, err := s.store.ListArtifactFiles()
	if err != nil {
		return nil, fmt.Errorf("spec: list: %w", err)
	}
	items := make([]DocumentListItem, 0, len(files))
	for _, f := range files {
		data, err := s.store.ReadFile(f.Path)
		if err != nil {
			continue
		}
		doc := parser.ParseFile(f.Path, string(data))
		items = append(items, DocumentListItem{
			Path:        f.Path,
			Artifact:    doc.Artifact,
			Phase:       doc.Phase,
			Checksum:    f.Checksum,
			Diagnostics: len(s.memory.Get(f.Path)),
			UpdatedAt:   f.UpdatedAt,
		})
	}
	return items, nil
}

// Get reads a document and validates its stored content.
func (s *Service) Get(ctx context.Context, p string) (*DocumentDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.store.ReadFile(p)
	if err != nil {
		if notFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.detail(ctx, p, data), nil
}

// Create writes a new document for ref at its layout path. Front matter is
// added or completed and last-updated is stamped.
func (s *Service) Create(ctx context.Context, ref models.Reference, content string) (*DocumentDetail, error) {
	if !models.ValidArtifactName(ref.Artifact) || !ref.Phase.Valid() {
		return nil, fmt.Errorf("%w: artifact %q phase %q", apperr.ErrInvalidInput, ref.Artifact, ref.Phase)
	}
	p := ref.Path()
	if _, err := s.store.ReadFile(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	data := []byte(parser.Stamp(content, ref, s.now()))
	if err := s.store.WriteFile(p, data); err != nil {
		return nil, err
	}
	s.HandleEvent(ctx, models.ChangeEvent{Path: p, Kind: models.ChangeCreated, At: s.now()})
	return s.detail(ctx, p, data), nil
}

// Update replaces the content of p. A non-empty ifMatch must equal the checksum
// of the stored content. The phase is corrected to the file identity and
// last-updated is stamped.
func (s *Service) Update(ctx context.Context, p, content, ifMatch string) (*DocumentDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ReadFile(p)
	if err != nil {
		if notFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	ref, _ := models.ParseDocumentPath(p)
	data := []byte(parser.Stamp(content, ref, s.now()))
	if err := s.store.WriteFile(p, data); err != nil {
		return nil, err
	}
	s.HandleEvent(ctx, models.ChangeEvent{Path: p, Kind: models.ChangeModified, At: s.now()})
	return s.detail(ctx, p, data), nil
}

// Delete removes p and retracts its diagnostics.
func (s *Service) Delete(ctx context.Context, p string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFile(p); err != nil {
		if notFound(err) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.HandleEvent(ctx, models.ChangeEvent{Path: p, Kind: models.ChangeDeleted, At: s.now()})
	return nil
}

// detail builds a DocumentDetail from raw data without re-reading the file.
func (s *Service) detail(ctx context.Context, p string, data []byte) *DocumentDetail {
	res := s.Validate(ctx, p, string(data))
	return &DocumentDetail{
		Path:        p,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Document:    res.Document,
		Diagnostics: res.Diagnostics,
	}
}
