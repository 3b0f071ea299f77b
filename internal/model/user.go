package model

import (
	"time"

	"freight-erp/internal/permission"

	"github.com/google/uuid"
)

// User is the persisted user profile. Permission flags are seeded from the role
// defaults at onboarding and may be edited by an admin afterwards.
type User struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email           string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName        string    `gorm:"type:varchar(255)" json:"full_name"`
	Password        string    `gorm:"type:varchar(255);not null" json:"-"`
	Role            string    `gorm:"type:varchar(50);not null;index" json:"role"`
	CustomDashboard string    `gorm:"type:varchar(50);not null;default:'default'" json:"custom_dashboard"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`

	CanSeeRevenue     bool `gorm:"not null;default:false" json:"can_see_revenue"`
	CanSeeProfit      bool `gorm:"not null;default:false" json:"can_see_profit"`
	CanApprovePJO     bool `gorm:"column:can_approve_pjo;not null;default:false" json:"can_approve_pjo"`
	CanManageInvoices bool `gorm:"not null;default:false" json:"can_manage_invoices"`
	CanManageUsers    bool `gorm:"not null;default:false" json:"can_manage_users"`
	CanCreatePJO      bool `gorm:"column:can_create_pjo;not null;default:false" json:"can_create_pjo"`
	CanFillCosts      bool `gorm:"not null;default:false" json:"can_fill_costs"`

	LastLoginAt   *time.Time `json:"last_login_at"`
	DeactivatedAt *time.Time `json:"deactivated_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Permissions returns the stored flags as a PermissionSet
func (u *User) Permissions() permission.PermissionSet {
	return permission.PermissionSet{
		CanSeeRevenue:     u.CanSeeRevenue,
		CanSeeProfit:      u.CanSeeProfit,
		CanApprovePJO:     u.CanApprovePJO,
		CanManageInvoices: u.CanManageInvoices,
		CanManageUsers:    u.CanManageUsers,
		CanCreatePJO:      u.CanCreatePJO,
		CanFillCosts:      u.CanFillCosts,
	}
}

// SetPermissions overwrites the stored flags
func (u *User) SetPermissions(p permission.PermissionSet) {
	u.CanSeeRevenue = p.CanSeeRevenue
	u.CanSeeProfit = p.CanSeeProfit
	u.CanApprovePJO = p.CanApprovePJO
	u.CanManageInvoices = p.CanManageInvoices
	u.CanManageUsers = p.CanManageUsers
	u.CanCreatePJO = p.CanCreatePJO
	u.CanFillCosts = p.CanFillCosts
}

// Profile is the authorization view of the user
func (u *User) Profile() *permission.Profile {
	return &permission.Profile{
		UserID:          u.ID.String(),
		Role:            permission.Role(u.Role),
		CustomDashboard: u.CustomDashboard,
		IsActive:        u.IsActive,
		Permissions:     u.Permissions(),
	}
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Expired reports whether the token can no longer be exchanged
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
