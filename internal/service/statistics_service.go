package service

import (
	"context"
	"fmt"
	"time"

	"console/internal/model"
	"console/internal/repository"

	"golang.org/x/sync/errgroup"
)

// TopRolesLimit caps the role ranking.
const TopRolesLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.PermissionStatistics, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics runs the independent aggregate queries concurrently.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.PermissionStatistics, error) {
	response := model.PermissionStatistics{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}
	if endDate.Before(startDate) {
		return response, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		response.TotalRoles, err = s.repo.CountRoles(gctx)
		return err
	})
	g.Go(func() (err error) {
		response.TotalUsers, response.UsersWithoutRole, err = s.repo.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		response.Coverage, err = s.repo.GetModuleCoverage(gctx)
		return err
	})
	g.Go(func() (err error) {
		response.TopRoles, err = s.repo.GetTopRoles(gctx, TopRolesLimit)
		return err
	})
	g.Go(func() (err error) {
		response.Changes, err = s.repo.CountChanges(gctx, startDate, endDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PermissionStatistics{}, err
	}

	if response.Coverage == nil {
		response.Coverage = []model.ModuleCoverage{}
	}
	if response.TopRoles == nil {
		response.TopRoles = []model.RoleRanking{}
	}
	return response, nil
}
