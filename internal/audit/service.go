package audit

import (
	"context"
	"log/slog"
)

type ServiceAPI interface {
	Search(ctx context.Context, q Query) ([]EntryView, error)
}

// Service exposes the read-only audit listing. Writes go through Recorder and
// TxRecorder directly from the services performing the audited operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Search(ctx context.Context, q Query) ([]EntryView, error) {
	entries, err := s.repo.Search(ctx, q)
	if err != nil {
		s.logger.Error("audit search failed", "error", err)
		return nil, err
	}

	views := make([]EntryView, len(entries))
	for i, e := range entries {
		views[i] = e.ToView()
	}
	return views, nil
}
