// Package graph builds the dependency graph between specification documents and
// validates a document's references against it.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
	"github.com/starford/speclink/internal/storage"
)

// Lookup answers the two questions validation asks of the corpus.
type Lookup interface {
	// Exists reports whether the document for ref is present.
	Exists(ref models.Reference) bool
	// DependsOn returns the well-formed dependsOn targets of ref's document.
	DependsOn(ref models.Reference) []models.Reference
}

// StoreLookup reads and parses documents on demand. Read failures make the
// document absent. Nothing is cached between calls.
type StoreLookup struct {
	store storage.Provider
}

// NewStoreLookup returns a Lookup backed by store.
func NewStoreLookup(store storage.Provider) *StoreLookup {
	return &StoreLookup{store: store}
}

func (l *StoreLookup) read(ref models.Reference) (*models.Document, bool) {
	if !ref.Phase.Valid() || ref.Artifact == "" {
		return nil, false
	}
	data, err := l.store.ReadFile(ref.Path())
	if err != nil {
		return nil, false
	}
	return parser.ParseFile(ref.Path(), string(data)), true
}

// Exists implements Lookup.
func (l *StoreLookup) Exists(ref models.Reference) bool {
	_, ok := l.read(ref)
	return ok
}

// DependsOn implements Lookup.
func (l *StoreLookup) DependsOn(ref models.Reference) []models.Reference {
	doc, ok := l.read(ref)
	if !ok {
		return nil
	}
	return doc.DependsOnRefs()
}

type overlay struct {
	base Lookup
	doc  *models.Document
}

// WithDocument layers doc over base, so its current (possibly unsaved) dependsOn
// entries win over what the corpus holds for the same reference.
func WithDocument(base Lookup, doc *models.Document) Lookup {
	return overlay{base: base, doc: doc}
}

func (o overlay) Exists(ref models.Reference) bool {
	if ref == o.doc.GraphRef() {
		return true
	}
	return o.base.Exists(ref)
}

func (o overlay) DependsOn(ref models.Reference) []models.Reference {
	if ref == o.doc.GraphRef() {
		return o.doc.DependsOnRefs()
	}
	return o.base.DependsOn(ref)
}

// Corpus is a point-in-time snapshot of every conventionally named document.
type Corpus struct {
	docs  map[models.Reference]*models.Document
	order []models.Reference
}

// NewCorpus reads every document listed by store that sits in its phase folder.
// Unreadable files are skipped.
func NewCorpus(ctx context.Context, store storage.Provider) (*Corpus, error) {
	files, err := store.ListArtifactFiles()
	if err != nil {
		return nil, fmt.Errorf("graph: list corpus: %w", err)
	}
	c := &Corpus{docs: make(map[models.Reference]*models.Document, len(files))}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !models.IsDocumentPath(f.Path) {
			continue
		}
		ref, _ := models.ParseDocumentPath(f.Path)
		data, err := store.ReadFile(f.Path)
		if err != nil {
			continue
		}
		if _, dup := c.docs[ref]; dup {
			continue
		}
		c.docs[ref] = parser.ParseFile(f.Path, string(data))
		c.order = append(c.order, ref)
	}
	sortRefs(c.order)
	return c, nil
}

func sortRefs(refs []models.Reference) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Artifact != b.Artifact {
			return a.Artifact < b.Artifact
		}
		return a.Phase.Rank() < b.Phase.Rank()
	})
}

// NewCorpusFromDocuments builds a snapshot from already parsed documents.
func NewCorpusFromDocuments(docs ...*models.Document) *Corpus {
	c := &Corpus{docs: make(map[models.Reference]*models.Document, len(docs))}
	for _, d := range docs {
		ref := d.GraphRef()
		if _, dup := c.docs[ref]; dup {
			continue
		}
		c.docs[ref] = d
		c.order = append(c.order, ref)
	}
	sortRefs(c.order)
	return c
}

// Exists implements Lookup.
func (c *Corpus) Exists(ref models.Reference) bool {
	_, ok := c.docs[ref]
	return ok
}

// DependsOn implements Lookup.
func (c *Corpus) DependsOn(ref models.Reference) []models.Reference {
	if d, ok := c.docs[ref]; ok {
		return d.DependsOnRefs()
	}
	return nil
}

// Document returns the snapshot of ref's document.
func (c *Corpus) Document(ref models.Reference) (*models.Document, bool) {
	d, ok := c.docs[ref]
	return d, ok
}

// Refs returns every reference in the snapshot, ordered by artifact then phase.
func (c *Corpus) Refs() []models.Reference {
	return append([]models.Reference(nil), c.order...)
}

// Documents returns the documents in Refs order.
func (c *Corpus) Documents() []*models.Document {
	out := make([]*models.Document, 0, len(c.order))
	for _, ref := range c.order {
		out = append(out, c.docs[ref])
	}
	return out
}
