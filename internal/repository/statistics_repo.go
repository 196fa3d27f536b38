package repository

import (
	"context"
	"fmt"
	"time"

	"console/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	GetModuleCoverage(ctx context.Context) ([]model.ModuleCoverage, error)
	GetTopRoles(ctx context.Context, limit int) ([]model.RoleRanking, error)
	CountRoles(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (total, withoutRole int64, err error)
	CountChanges(ctx context.Context, start, end time.Time) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// GetModuleCoverage includes modules nobody holds anything on.
func (r *statisticsRepository) GetModuleCoverage(ctx context.Context) ([]model.ModuleCoverage, error) {
	var coverage []model.ModuleCoverage
	if err := GetDB(ctx, r.db).Table("modules").
		Select(`modules.name AS module,
			COUNT(*) FILTER (WHERE role_permissions.permission = 'view') AS view,
			COUNT(*) FILTER (WHERE role_permissions.permission = 'create') AS "create",
			COUNT(*) FILTER (WHERE role_permissions.permission = 'edit') AS edit,
			COUNT(*) FILTER (WHERE role_permissions.permission = 'delete') AS "delete"`).
		Joins("LEFT JOIN role_permissions ON role_permissions.module_id = modules.id").
		Group("modules.id, modules.name").
		Order("modules.name").
		Scan(&coverage).Error; err != nil {
		return nil, fmt.Errorf("failed to query module coverage: %w", err)
	}
	return coverage, nil
}

func (r *statisticsRepository) GetTopRoles(ctx context.Context, limit int) ([]model.RoleRanking, error) {
	var rankings []model.RoleRanking
	if err := GetDB(ctx, r.db).Table("roles").
		Select(`roles.id AS role_id, roles.name AS role_name, roles.is_system,
			(SELECT COUNT(*) FROM role_permissions WHERE role_permissions.role_id = roles.id) AS grants,
			(SELECT COUNT(*) FROM users WHERE users.role_id = roles.id AND users.deleted_at IS NULL) AS users`).
		Order("grants DESC, roles.name").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top roles: %w", err)
	}
	return rankings, nil
}

func (r *statisticsRepository) CountRoles(ctx context.Context) (int64, error) {
	var n int64
	if err := GetDB(ctx, r.db).Model(&model.Role{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return n, nil
}

func (r *statisticsRepository) CountUsers(ctx context.Context) (int64, int64, error) {
	var result struct {
		Total       int64
		WithoutRole int64
	}
	if err := GetDB(ctx, r.db).Model(&model.User{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE role_id IS NULL) AS without_role").
		Scan(&result).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return result.Total, result.WithoutRole, nil
}

// CountChanges counts audited role and permission changes between start and end.
func (r *statisticsRepository) CountChanges(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	if err := GetDB(ctx, r.db).Model(&model.AuditLog{}).
		Where("action IN ?", []string{
			model.ActionCreateRole,
			model.ActionRenameRole,
			model.ActionDeleteRole,
			model.ActionUpdateRolePermissions,
		}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count changes: %w", err)
	}
	return n, nil
}
