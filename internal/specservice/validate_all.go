package specservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/diagstore"
	"github.com/starford/speclink/internal/models"
)

// ValidateAll validates every document in the workspace and publishes the
// results. Paths the run store (or memory) still holds diagnostics for but that
// no longer exist on disk are retracted.
func (s *Service) ValidateAll(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now(),
		Diagnostics: make(map[string][]models.Diagnostic),
	}
	logger := s.logger.With(slog.String("run_id", rep.RunID))

	files, err := s.store.ListArtifactFiles()
	if err != nil {
		return nil, fmt.Errorf("spec: validate all: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		disk[f.Path] = struct{}{}
		diags, err := s.validateLocked(ctx, f.Path, TriggerFull)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				logger.Warn("validate: failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			}
			continue
		}
		rep.Documents++
		if len(diags) > 0 {
			rep.Diagnostics[f.Path] = diags
			rep.Total += len(diags)
		}
	}

	for p := range s.stalePaths(logger) {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.sink.Retract(p); err != nil {
			logger.Warn("validate: retract stale failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("validate: retracted stale", slog.String("path", p))
		}
	}

	rep.FinishedAt = time.Now()
	s.metrics.ObserveFullRun(rep.FinishedAt.Sub(rep.StartedAt))
	if s.runs != nil {
		err := s.runs.RecordRun(diagstore.Run{
			ID:          rep.RunID,
			StartedAt:   rep.StartedAt,
			FinishedAt:  rep.FinishedAt,
			Documents:   rep.Documents,
			Diagnostics: rep.Total,
		})
		if err != nil {
			logger.Warn("validate: record run failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("validate: complete",
		slog.Int("documents", rep.Documents),
		slog.Int("diagnostics", rep.Total),
		slog.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

func (s *Service) stalePaths(logger *slog.Logger) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range s.memory.Paths() {
		out[p] = struct{}{}
	}
	if s.runs == nil {
		return out
	}
	stored, err := s.runs.AllPaths()
	if err != nil {
		logger.Warn("validate: list stored paths failed", slog.String("error", err.Error()))
		return out
	}
	for p := range stored {
		out[p] = struct{}{}
	}
	return out
}
