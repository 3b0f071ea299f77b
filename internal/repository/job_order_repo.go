package repository

import (
	"context"

	"freight-erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobOrderRepository interface {
	Create(ctx context.Context, jo *model.JobOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.JobOrder, error)
	FindByPJOID(ctx context.Context, pjoID uuid.UUID) (*model.JobOrder, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

type jobOrderRepository struct {
	db *gorm.DB
}

func NewJobOrderRepository(db *gorm.DB) JobOrderRepository {
	return &jobOrderRepository{db: db}
}

func (r *jobOrderRepository) Create(ctx context.Context, jo *model.JobOrder) error {
	return GetDB(ctx, r.db).Create(jo).Error
}

func (r *jobOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.JobOrder, error) {
	var jo model.JobOrder
	if err := GetDB(ctx, r.db).First(&jo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &jo, nil
}

func (r *jobOrderRepository) FindByPJOID(ctx context.Context, pjoID uuid.UUID) (*model.JobOrder, error) {
	var jo model.JobOrder
	if err := GetDB(ctx, r.db).First(&jo, "pjo_id = ?", pjoID).Error; err != nil {
		return nil, err
	}
	return &jo, nil
}

func (r *jobOrderRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.JobOrder{}).Where("jo_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
