package repository

import (
	"context"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserListFilter narrows a user listing
type UserListFilter struct {
	Role     string
	IsActive *bool
	Page     int
	Limit    int
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, filter UserListFilter) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	CountActiveAdmins(ctx context.Context) (int64, error)
	LockAdminRoster(ctx context.Context) error
}

// adminRosterLockKey names the advisory lock held while the set of admins is checked or changed
const adminRosterLockKey int64 = 0x61646d696e

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserListFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := GetDB(ctx, r.db).Model(&model.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at asc").Offset(offset).Limit(filter.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

// CountActiveAdmins counts active admins that can still manage users. Inside a transaction the
// matching rows are locked so two concurrent demotions cannot both see a second admin.
func (r *userRepository) CountActiveAdmins(ctx context.Context) (int64, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("role = ? AND is_active = ? AND can_manage_users = ?", string(permission.RoleAdmin), true, true).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// LockAdminRoster takes a transaction-scoped advisory lock. Row locks from CountActiveAdmins
// cover nothing while no admin exists yet, so bootstrap and admin removal serialize here first.
func (r *userRepository) LockAdminRoster(ctx context.Context) error {
	return GetDB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(?)", adminRosterLockKey).Error
}
