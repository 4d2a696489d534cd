// Package specservice ties the engine together: it validates documents, keeps
// diagnostics sinks current as files change and serves document CRUD and
// queries to the HTTP and MCP front ends.
package specservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/diagnostics"
	"github.com/starford/speclink/internal/diagstore"
	"github.com/starford/speclink/internal/graph"
	"github.com/starford/speclink/internal/metrics"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
	"github.com/starford/speclink/internal/query"
	"github.com/starford/speclink/internal/refs"
	"github.com/starford/speclink/internal/storage"
)

// Validation triggers, used as metric labels.
const (
	TriggerEvent = "event"
	TriggerAPI   = "api"
	TriggerFull  = "full"
)

// RunStore persists full-run summaries and knows which paths it holds
// diagnostics for. *diagstore.DB implements it.
type RunStore interface {
	RecordRun(r diagstore.Run) error
	AllPaths() (map[string]struct{}, error)
}

// ChangeNotifier is told about every document change the service handles.
type ChangeNotifier func(kind models.ChangeKind, path string)

// Service coordinates storage, validation and diagnostics sinks.
type Service struct {
	store   storage.Provider
	query   *query.Service
	memory  *diagnostics.Memory
	sink    diagnostics.Sink
	runs    RunStore
	metrics *metrics.Metrics
	notify  ChangeNotifier
	logger  *slog.Logger
	now     func() time.Time

	// mu serialises validate-and-publish so two callers never interleave
	// publications for the same path.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithSinks adds sinks that receive every publication after the in-memory one.
// Repeated use appends.
func WithSinks(sinks ...diagnostics.Sink) Option {
	return func(s *Service) {
		multi, ok := s.sink.(diagnostics.Multi)
		if !ok {
			multi = diagnostics.Multi{s.memory}
		}
		s.sink = append(multi, sinks...)
	}
}

// WithRunStore records full runs and retracts stale paths through rs.
func WithRunStore(rs RunStore) Option {
	return func(s *Service) { s.runs = rs }
}

// WithMetrics instruments the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithChangeNotifier registers fn for document changes.
func WithChangeNotifier(fn ChangeNotifier) Option {
	return func(s *Service) { s.notify = fn }
}

// WithClock overrides the time source used for last-updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new spec service.
func New(store storage.Provider, q *query.Service, logger *slog.Logger, opts ...Option) *Service {
	mem := diagnostics.NewMemory()
	s := &Service{
		store:  store,
		query:  q,
		memory: mem,
		sink:   mem,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of validating one document.
type Result struct {
	Document    *models.Document         `json:"document"`
	Issues      []models.ValidationIssue `json:"issues"`
	Diagnostics []models.Diagnostic      `json:"diagnostics"`
}

// Validate parses and validates raw as the content of path without publishing
// anything. The text may differ from what is stored.
func (s *Service) Validate(_ context.Context, p, raw string) *Result {
	doc := parser.ParseFile(p, raw)
	issues := graph.Validate(doc, refs.ExtractDocument(doc), graph.NewStoreLookup(s.store))
	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	return &Result{Document: doc, Issues: issues, Diagnostics: diagnostics.FromIssues(issues)}
}

// ValidatePath validates the stored document at p and publishes the result. An
// unreadable document is treated as absent and its diagnostics are retracted.
func (s *Service) ValidatePath(ctx context.Context, p, trigger string) ([]models.Diagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(ctx, p, trigger)
}

func (s *Service) validateLocked(ctx context.Context, p, trigger string) ([]models.Diagnostic, error) {
	data, err := s.store.ReadFile(p)
	if err != nil {
		s.logger.Debug("spec: document absent", slog.String("path", p), slog.String("error", err.Error()))
		if rerr := s.sink.Retract(p); rerr != nil {
			return nil, fmt.Errorf("spec: retract %s: %w", p, rerr)
		}
		return nil, fmt.Errorf("spec: %s: %w", p, apperr.ErrNotFound)
	}

	start := time.Now()
	res := s.Validate(ctx, p, string(data))
	s.metrics.ObserveValidation(trigger, res.Issues, time.Since(start))

	if err := s.sink.Publish(p, res.Diagnostics); err != nil {
		return res.Diagnostics, fmt.Errorf("spec: publish %s: %w", p, err)
	}
	s.logger.Debug("spec: validated",
		slog.String("path", p),
		slog.String("trigger", trigger),
		slog.Int("issues", len(res.Issues)))
	return res.Diagnostics, nil
}

// Retract clears the published diagnostics of p.
func (s *Service) Retract(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sink.Retract(p); err != nil {
		return fmt.Errorf("spec: retract %s: %w", p, err)
	}
	return nil
}

// Diagnostics returns the last diagnostics published for p.
func (s *Service) Diagnostics(p string) []models.Diagnostic {
	return s.memory.Get(p)
}

// StoredDiagnostics reads diagnostics persisted by an earlier process.
// *diagstore.DB implements it.
type StoredDiagnostics interface {
	AllPaths() (map[string]struct{}, error)
	Diagnostics(path string) ([]models.Diagnostic, error)
}

// Restore loads persisted diagnostics into memory so queries answer before the
// first full pass. Paths already validated by this process are left alone and
// nothing is republished. It returns the number of paths restored.
func (s *Service) Restore(src StoredDiagnostics) (int, error) {
	paths, err := src.AllPaths()
	if err != nil {
		return 0, fmt.Errorf("spec: restore: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for p := range paths {
		if len(s.memory.Get(p)) > 0 {
			continue
		}
		diags, err := src.Diagnostics(p)
		if err != nil {
			return n, fmt.Errorf("spec: restore %s: %w", p, err)
		}
		if len(diags) == 0 {
			continue
		}
		_ = s.memory.Publish(p, diags)
		n++
	}
	return n, nil
}

// AllDiagnostics returns every path that currently has diagnostics.
func (s *Service) AllDiagnostics() map[string][]models.Diagnostic {
	out := make(map[string][]models.Diagnostic)
	for _, p := range s.memory.Paths() {
		out[p] = s.memory.Get(p)
	}
	return out
}

// HandleEvent reacts to a file-change event: the changed document is
// revalidated (or its diagnostics retracted when deleted) and so is every
// document whose findings may depend on it.
func (s *Service) HandleEvent(ctx context.Context, ev models.ChangeEvent) {
	s.metrics.IncrementChangeEvent(ev.Kind)
	s.logger.Debug("spec: change", slog.String("path", ev.Path), slog.String("kind", string(ev.Kind)))

	switch ev.Kind {
	case models.ChangeDeleted:
		if err := s.Retract(ev.Path); err != nil {
			s.logger.Warn("spec: retract failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}
	default:
		if _, err := s.ValidatePath(ctx, ev.Path, TriggerEvent); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("spec: validate failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}
	}
	s.revalidateDependents(ctx, ev.Path)

	if s.notify != nil {
		s.notify(ev.Kind, ev.Path)
	}
}

// revalidateDependents revalidates the documents that reference changed or
// reach it through dependsOn.
func (s *Service) revalidateDependents(ctx context.Context, changed string) {
	if !models.IsDocumentPath(changed) {
		return
	}
	target, _ := models.ParseDocumentPath(changed)
	deps, err := s.dependents(ctx, target, changed)
	if err != nil {
		s.logger.Warn("spec: dependents scan failed", slog.String("path", changed), slog.String("error", err.Error()))
		return
	}
	for _, p := range deps {
		if _, err := s.ValidatePath(ctx, p, TriggerEvent); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("spec: revalidate dependent failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

// dependents returns, in corpus order, the paths of documents that name target
// in any relation or depend on it transitively.
func (s *Service) dependents(ctx context.Context, target models.Reference, changed string) ([]string, error) {
	files, err := s.store.ListArtifactFiles()
	if err != nil {
		return nil, err
	}
	var (
		nodes   []string
		direct  = make(map[string]bool)
		reverse = make(map[models.Reference][]int)
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Path == changed {
			continue
		}
		data, err := s.store.ReadFile(f.Path)
		if err != nil {
			continue
		}
		doc := parser.ParseFile(f.Path, string(data))
		for _, loc := range refs.ExtractDocument(doc).All() {
			if loc.Ref == target {
				direct[f.Path] = true
			}
		}
		idx := len(nodes)
		nodes = append(nodes, f.Path)
		for _, d := range doc.DependsOnRefs() {
			reverse[d] = append(reverse[d], idx)
		}
	}

	// Walk dependsOn edges backwards from target.
	hit := make(map[int]bool)
	queue := append([]int(nil), reverse[target]...)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if hit[i] {
			continue
		}
		hit[i] = true
		if !models.IsDocumentPath(nodes[i]) {
			continue
		}
		ref, _ := models.ParseDocumentPath(nodes[i])
		queue = append(queue, reverse[ref]...)
	}

	var out []string
	for i, p := range nodes {
		if hit[i] || direct[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Report summarises a full validation pass.
type Report struct {
	RunID       string                         `json:"run_id"`
	StartedAt   time.Time                      `json:"started_at"`
	FinishedAt  time.Time                      `json:"finished_at"`
	Documents   int                            `json:"documents"`
	Total       int                            `json:"total"`
	Diagnostics map[string][]models.Diagnostic `json:"diagnostics"`
}

// cleanPath normalises a workspace-relative document path.
func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", apperr.ErrInvalidPath, p)
	}
	c := path.Clean(p)
	if c == ".." || strings.HasPrefix(c, "../") || !strings.HasSuffix(c, models.DocumentExt) {
		return "", fmt.Errorf("%w: %q", apperr.ErrInvalidPath, p)
	}
	return c, nil
}

func notFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
