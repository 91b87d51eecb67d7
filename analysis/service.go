package analysis

import (
	"context"
	"errors"

	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/store"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mohae/deepcopy"
	"go.uber.org/zap"
)

type Service interface {
	// Analyze runs the pipeline over the series. Re-analyzing an identical
	// series returns the previously persisted report; the bool reports
	// whether a new report was created by this call.
	Analyze(ctx context.Context, series *glucose.Series) (*Report, bool, error)
	Get(ctx context.Context, reportID string) (*Report, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error)
}

type service struct {
	repo        Repository
	coordinator *Coordinator
	cache       *lru.Cache
	logger      *zap.SugaredLogger
}

var _ Service = &service{}

func NewService(repo Repository, coordinator *Coordinator, cacheSize int, logger *zap.SugaredLogger) (Service, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &service{
		repo:        repo,
		coordinator: coordinator,
		cache:       cache,
		logger:      logger,
	}, nil
}

func (s *service) Analyze(ctx context.Context, series *glucose.Series) (*Report, bool, error) {
	if series == nil || series.Len() == 0 {
		return nil, false, glucose.ErrEmptySeries
	}

	hash := series.Hash()
	if cached, ok := s.cache.Get(hash); ok {
		s.logger.Debugw("report cache hit", "patientId", series.PatientID, "seriesHash", hash)
		return copyReport(cached.(*Report)), false, nil
	}

	existing, err := s.repo.GetBySeriesHash(ctx, series.PatientID, hash)
	if err == nil {
		s.cache.Add(hash, existing)
		return copyReport(existing), false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	report, err := s.coordinator.Run(ctx, series)
	if err != nil {
		return nil, false, err
	}

	if err := s.repo.Create(ctx, report); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent run over the same series.
			winner, err := s.getBySeriesHashCached(ctx, series.PatientID, hash)
			return winner, false, err
		}
		return nil, false, err
	}

	s.logger.Infow("analysis complete",
		"patientId", report.PatientID,
		"reportId", report.ReportID,
		"category", report.Brittleness.Category,
		"readings", report.TotalReadings)

	s.cache.Add(hash, report)
	return copyReport(report), true, nil
}

func (s *service) getBySeriesHashCached(ctx context.Context, patientID, hash string) (*Report, error) {
	report, err := s.repo.GetBySeriesHash(ctx, patientID, hash)
	if err != nil {
		return nil, err
	}
	s.cache.Add(hash, report)
	return copyReport(report), nil
}

func (s *service) Get(ctx context.Context, reportID string) (*Report, error) {
	return s.repo.Get(ctx, reportID)
}

func (s *service) List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error) {
	return s.repo.List(ctx, filter, pagination)
}

// copyReport returns a deep copy so cached reports stay immutable even if a
// caller mutates the returned value.
func copyReport(report *Report) *Report {
	return deepcopy.Copy(report).(*Report)
}
