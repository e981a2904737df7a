package service

import (
	"context"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/repository"
)

// RunHistoryService reads stored run recordings.
type RunHistoryService struct {
	repo repository.RunRepo
}

func NewRunHistoryService(repo repository.RunRepo) *RunHistoryService {
	return &RunHistoryService{repo: repo}
}

func (s *RunHistoryService) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	return s.repo.List(ctx, limit)
}

// GetRun returns a run and its recording.
func (s *RunHistoryService) GetRun(ctx context.Context, id string) (models.RunRecord, []plot.DataPoint, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.RunRecord{}, nil, err
	}
	points, err := s.repo.Points(ctx, id)
	if err != nil {
		return models.RunRecord{}, nil, err
	}
	return rec, points, nil
}
