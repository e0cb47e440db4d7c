package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// Service assembles snapshots for device downloads and answers
// compatibility and membership questions for the pipeline.
type Service struct {
	store  Store
	cache  *SnapshotCache
	logger *slog.Logger
}

// NewService builds a vocabulary service. cache may be nil (dev mode).
func NewService(store Store, cache *SnapshotCache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// Snapshot returns every active vocabulary plus the compact version map.
// Served from Redis when possible.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			// Cache trouble must not block a sync cycle.
			s.logger.WarnContext(ctx, "vocabulary cache read failed", "error", err)
		}
	}

	vocabs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble vocabulary snapshot: %w", err)
	}
	snap := &Snapshot{
		Vocabularies: vocabs,
		Versions:     make(map[string]string, len(vocabs)),
	}
	for _, v := range vocabs {
		snap.Versions[v.Name] = v.Version.String()
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "vocabulary cache write failed", "error", err)
		}
	}
	return snap, nil
}

// CurrentVersions returns the server's version per vocabulary name.
func (s *Service) CurrentVersions(ctx context.Context) (map[string]id.SemVer, error) {
	vocabs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vocabulary versions: %w", err)
	}
	out := make(map[string]id.SemVer, len(vocabs))
	for _, v := range vocabs {
		out[v.Name] = v.Version
	}
	return out, nil
}

// Check compares a package's recorded vocabulary versions to the server's.
func (s *Service) Check(ctx context.Context, packageVersions map[string]string) (CompatResult, error) {
	current, err := s.CurrentVersions(ctx)
	if err != nil {
		return CompatResult{}, err
	}
	return CheckCompatibility(packageVersions, current), nil
}

// Lookup fetches one vocabulary for membership checks; nil if unknown.
func (s *Service) Lookup(ctx context.Context, name string) (*Vocabulary, error) {
	vocab, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup vocabulary %s: %w", name, err)
	}
	return vocab, nil
}
