package repository

import (
	"context"

	"freight-erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PJORepository interface {
	Create(ctx context.Context, pjo *model.PJO) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PJO, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PJO, error)
	List(ctx context.Context, status string, page, limit int) ([]model.PJO, int64, error)
	Update(ctx context.Context, pjo *model.PJO) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)

	FindCostItem(ctx context.Context, pjoID, itemID uuid.UUID) (*model.PJOCostItem, error)
	ListCostItems(ctx context.Context, pjoID uuid.UUID) ([]model.PJOCostItem, error)
	UpdateCostItem(ctx context.Context, item *model.PJOCostItem) error
}

type pjoRepository struct {
	db *gorm.DB
}

func NewPJORepository(db *gorm.DB) PJORepository {
	return &pjoRepository{db: db}
}

// Create inserts the PJO together with its cost items
func (r *pjoRepository) Create(ctx context.Context, pjo *model.PJO) error {
	return GetDB(ctx, r.db).Create(pjo).Error
}

func (r *pjoRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PJO, error) {
	var pjo model.PJO
	err := GetDB(ctx, r.db).
		Preload("CostItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&pjo, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pjo, nil
}

func (r *pjoRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PJO, error) {
	var pjo model.PJO
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&pjo).Error; err != nil {
		return nil, err
	}
	return &pjo, nil
}

func (r *pjoRepository) List(ctx context.Context, status string, page, limit int) ([]model.PJO, int64, error) {
	var pjos []model.PJO
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PJO{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("CostItems").Order("created_at desc").Offset(offset).Limit(limit).Find(&pjos).Error; err != nil {
		return nil, 0, err
	}

	return pjos, total, nil
}

func (r *pjoRepository) Update(ctx context.Context, pjo *model.PJO) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(pjo).Error
}

func (r *pjoRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.PJO{}).Where("pjo_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *pjoRepository) FindCostItem(ctx context.Context, pjoID, itemID uuid.UUID) (*model.PJOCostItem, error) {
	var item model.PJOCostItem
	if err := GetDB(ctx, r.db).First(&item, "id = ? AND pjo_id = ?", itemID, pjoID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *pjoRepository) ListCostItems(ctx context.Context, pjoID uuid.UUID) ([]model.PJOCostItem, error) {
	var items []model.PJOCostItem
	if err := GetDB(ctx, r.db).Where("pjo_id = ?", pjoID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *pjoRepository) UpdateCostItem(ctx context.Context, item *model.PJOCostItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}
