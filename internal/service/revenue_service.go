package service

import (
	"context"

	"github.com/vogiaan1904/barberqueue/internal/analytics"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

type RevenueService interface {
	Stats(ctx context.Context) (models.Stats, error)
	Logs(ctx context.Context) ([]models.RevenueLog, error)
}

type revenueService struct {
	revenueRepo repository.RevenueRepository
	clock       util.Clock
	l           logger.Logger
}

// NewRevenueService computes stats at clock.Now(); calendar buckets follow
// the location the clock reports in.
func NewRevenueService(revenueRepo repository.RevenueRepository, clock util.Clock, l logger.Logger) RevenueService {
	return &revenueService{
		revenueRepo: revenueRepo,
		clock:       clock,
		l:           l,
	}
}

func (s *revenueService) Stats(ctx context.Context) (models.Stats, error) {
	logs, err := s.Logs(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return analytics.ComputeStats(logs, s.clock.Now()), nil
}

func (s *revenueService) Logs(ctx context.Context) ([]models.RevenueLog, error) {
	logs, err := s.revenueRepo.List(ctx)
	if err != nil {
		s.l.Errorf(ctx, "revenueService.Logs: %v", err)
		return nil, err
	}
	return logs, nil
}
