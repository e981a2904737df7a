package service

import (
	"context"
	"fmt"

	"reflow_oven/internal/executor"
	"reflow_oven/internal/hardware"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
)

type ProfileService struct {
	repo    repository.ProfileRepo
	sensors *sensor.Array
}

func NewProfileService(repo repository.ProfileRepo, sensors *sensor.Array) *ProfileService {
	return &ProfileService{repo: repo, sensors: sensors}
}

func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	return s.repo.List(ctx)
}

func (s *ProfileService) Get(ctx context.Context, id int) (models.Profile, error) {
	return s.repo.Get(ctx, id)
}

// Save stores p in its slot. Locked slots are rejected by the store.
func (s *ProfileService) Save(ctx context.Context, p models.Profile) error {
	return s.repo.Save(ctx, p)
}

// Preview returns the ideal curve of profile id. The curve starts from the
// last fused oven temperature, or from the nominal ambient when no channel
// has been read yet.
func (s *ProfileService) Preview(ctx context.Context, id int) ([]executor.CurvePoint, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ambient := hardware.AmbientC
	if s.sensors != nil {
		if f := s.sensors.Last(); f.Valid {
			ambient = f.Temperature
		}
	}
	return executor.IdealCurve(p, ambient)
}

// SeedDefaults writes the built-in profiles, merged with the seed file
// when one is given. Locked profiles are always rewritten; unlocked ones
// only fill empty slots so that operator edits survive a restart.
func (s *ProfileService) SeedDefaults(ctx context.Context, seedFile string) (int, error) {
	profiles := profile.Builtin()
	if seedFile != "" {
		seeded, err := profile.Load(seedFile)
		if err != nil {
			return 0, fmt.Errorf("load profile seed: %w", err)
		}
		profiles = profile.Merge(profiles, seeded)
	}

	stored, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[int]bool, len(stored))
	for _, p := range stored {
		taken[p.ID] = true
	}
	write := profiles[:0:0]
	for _, p := range profiles {
		if p.Locked() || !taken[p.ID] {
			write = append(write, p)
		}
	}
	if err := s.repo.Seed(ctx, write); err != nil {
		return 0, err
	}
	return len(write), nil
}
