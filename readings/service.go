package readings

import (
	"context"
	"sort"
	"time"

	"github.com/glucolab/agp/glucose"
	"go.uber.org/zap"
)

type service struct {
	repo   Repository
	logger *zap.SugaredLogger
}

var _ Service = &service{}

func NewService(repo Repository, logger *zap.SugaredLogger) (Service, error) {
	return &service{
		repo:   repo,
		logger: logger,
	}, nil
}

// Add validates the batch before it reaches the store: readings are sorted,
// and in-batch duplicates or out-of-range values reject the whole batch.
func (s *service) Add(ctx context.Context, patientID string, incoming []glucose.Reading) (int, error) {
	batch := append([]glucose.Reading(nil), incoming...)
	sort.Slice(batch, func(i, j int) bool { return batch[i].Time.Before(batch[j].Time) })

	if _, err := glucose.NewSeries(patientID, batch); err != nil {
		return 0, err
	}

	inserted, err := s.repo.Add(ctx, patientID, batch)
	if err != nil {
		return inserted, err
	}

	s.logger.Infow("ingested readings",
		"patientId", patientID,
		"batch", len(batch),
		"inserted", inserted)
	return inserted, nil
}

func (s *service) GetSeries(ctx context.Context, patientID string, from, to time.Time) (*glucose.Series, error) {
	return s.repo.GetSeries(ctx, patientID, from, to)
}
