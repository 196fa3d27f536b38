package repository

import (
	"context"

	"console/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionRepository stores the role_permissions rows.
type PermissionRepository interface {
	// ListByRole returns the role's rows with their module loaded.
	ListByRole(ctx context.Context, roleID uuid.UUID) ([]model.RolePermission, error)
	// Replace deletes every row of the role and inserts rows in their place.
	Replace(ctx context.Context, roleID uuid.UUID, rows []model.RolePermission) error
	// CodesForRole returns "<module>.<kind>" for every grant of the role.
	CodesForRole(ctx context.Context, roleID uuid.UUID) ([]string, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) ListByRole(ctx context.Context, roleID uuid.UUID) ([]model.RolePermission, error) {
	var rows []model.RolePermission
	err := GetDB(ctx, r.db).
		Preload("Module").
		Where("role_id = ?", roleID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *permissionRepository) Replace(ctx context.Context, roleID uuid.UUID, rows []model.RolePermission) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Omit("Module").Create(&rows).Error
}

func (r *permissionRepository) CodesForRole(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	var codes []string
	err := GetDB(ctx, r.db).Raw(`
		SELECT m.name || '.' || rp.permission AS code FROM role_permissions rp
		INNER JOIN modules m ON m.id = rp.module_id
		WHERE rp.role_id = ?
		ORDER BY m.name, rp.permission
	`, roleID).Pluck("code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}
