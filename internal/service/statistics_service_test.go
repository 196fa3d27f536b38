package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"console/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	coverage    []model.ModuleCoverage
	top         []model.RoleRanking
	roles       int64
	users       int64
	withoutRole int64
	changes     int64
	err         error
	limit       int
	start, end  time.Time
}

func (f *fakeStats) GetModuleCoverage(context.Context) ([]model.ModuleCoverage, error) {
	return f.coverage, f.err
}

func (f *fakeStats) GetTopRoles(_ context.Context, limit int) ([]model.RoleRanking, error) {
	f.limit = limit
	return f.top, nil
}

func (f *fakeStats) CountRoles(context.Context) (int64, error) { return f.roles, nil }

func (f *fakeStats) CountUsers(context.Context) (int64, int64, error) {
	return f.users, f.withoutRole, nil
}

func (f *fakeStats) CountChanges(_ context.Context, start, end time.Time) (int64, error) {
	f.start, f.end = start, end
	return f.changes, nil
}

func TestGetStatistics(t *testing.T) {
	repo := &fakeStats{
		coverage:    []model.ModuleCoverage{{Module: "Invoice", View: 2, Delete: 1}},
		top:         []model.RoleRanking{{RoleName: "admin", Grants: 12, IsSystem: true}},
		roles:       3,
		users:       10,
		withoutRole: 2,
		changes:     7,
	}
	svc := NewStatisticsService(repo)
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	stats, err := svc.GetStatistics(context.Background(), start, end)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalRoles)
	assert.EqualValues(t, 10, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.UsersWithoutRole)
	assert.EqualValues(t, 7, stats.Changes)
	assert.Equal(t, repo.coverage, stats.Coverage)
	assert.Equal(t, repo.top, stats.TopRoles)
	assert.Equal(t, TopRolesLimit, repo.limit)
	assert.Equal(t, start, repo.start)
	assert.Equal(t, end, repo.end)
	assert.Equal(t, start, stats.TimeRangeStartDate)
}

func TestGetStatisticsEmptyListsAreNotNull(t *testing.T) {
	svc := NewStatisticsService(&fakeStats{})
	now := time.Now()

	stats, err := svc.GetStatistics(context.Background(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.NotNil(t, stats.Coverage)
	assert.NotNil(t, stats.TopRoles)
}

func TestGetStatisticsErrors(t *testing.T) {
	now := time.Now()

	_, err := NewStatisticsService(&fakeStats{}).GetStatistics(context.Background(), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidInput)

	boom := errors.New("db down")
	_, err = NewStatisticsService(&fakeStats{err: boom}).GetStatistics(context.Background(), now.Add(-time.Hour), now)
	assert.ErrorIs(t, err, boom)
}
