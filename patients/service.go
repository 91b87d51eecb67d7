package patients

import (
	"context"
	"fmt"
	"strings"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/store"
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

func (s *service) Create(ctx context.Context, patient Patient) (*Patient, error) {
	patient.FullName = strings.TrimSpace(patient.FullName)
	if patient.FullName == "" {
		return nil, fmt.Errorf("full name is required: %w", errors.BadRequest)
	}

	created, err := s.repo.Create(ctx, patient)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("created patient", "id", created.ID.Hex())
	return created, nil
}

func (s *service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error) {
	return s.repo.List(ctx, filter, pagination)
}
