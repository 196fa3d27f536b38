package repository

import (
	"context"

	"console/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModuleRepository interface {
	List(ctx context.Context) ([]model.Module, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Module, error)
	FindOrCreate(ctx context.Context, name string) (*model.Module, error)
}

type moduleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) List(ctx context.Context) ([]model.Module, error) {
	var modules []model.Module
	if err := GetDB(ctx, r.db).Order("name asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Module, error) {
	var modules []model.Module
	if len(ids) == 0 {
		return modules, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) FindOrCreate(ctx context.Context, name string) (*model.Module, error) {
	m := model.Module{Name: name}
	if err := GetDB(ctx, r.db).Where("name = ?", name).FirstOrCreate(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
