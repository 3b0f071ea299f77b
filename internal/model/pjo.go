package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PJOStatus enum constants
const (
	PJOStatusDraft           = "draft"
	PJOStatusPendingApproval = "pending_approval"
	PJOStatusApproved        = "approved"
	PJOStatusRejected        = "rejected"
	PJOStatusConverted       = "converted"
)

// PJO (proforma job order) is a cost/revenue estimate that becomes a JobOrder
// once every cost item has been confirmed.
type PJO struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PJONumber       string          `gorm:"column:pjo_number;type:varchar(30);uniqueIndex;not null" json:"pjo_number"`
	CustomerName    string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	Commodity       string          `gorm:"type:varchar(255)" json:"commodity"`
	Origin          string          `gorm:"type:varchar(255)" json:"origin"`
	Destination     string          `gorm:"type:varchar(255)" json:"destination"`
	Status          string          `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	TotalRevenue    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_revenue"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	ApprovedBy      *uuid.UUID      `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	ConvertedAt     *time.Time      `json:"converted_at"`
	CostItems       []PJOCostItem   `gorm:"foreignKey:PJOID;constraint:OnDelete:CASCADE" json:"cost_items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName keeps the plural of PJO readable
func (PJO) TableName() string {
	return "pjos"
}

// MaxVariancePct is the largest percentage the variance_pct column holds. A tiny estimate
// against a large actual can go past it.
var MaxVariancePct = decimal.RequireFromString("9999999999999999.99")

// PJOCostItem is one budgeted cost on a PJO. It is confirmed once both
// ActualAmount and ConfirmedAt are set.
type PJOCostItem struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PJOID           uuid.UUID        `gorm:"column:pjo_id;type:uuid;not null;index" json:"pjo_id"`
	Category        string           `gorm:"type:varchar(50);not null" json:"category"` // trucking, port_charges, documentation, handling, ...
	Description     string           `gorm:"type:text" json:"description"`
	EstimatedAmount decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"estimated_amount"`
	ActualAmount    *decimal.Decimal `gorm:"type:decimal(18,4)" json:"actual_amount"`
	Status          string           `gorm:"type:varchar(20);not null;default:'estimated'" json:"status"` // estimated, confirmed, at_risk, exceeded
	Variance        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"variance"`
	VariancePct     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"variance_pct"` // capped at MaxVariancePct
	Justification   string           `gorm:"type:text" json:"justification"`
	ConfirmedBy     *uuid.UUID       `gorm:"type:uuid" json:"confirmed_by"`
	ConfirmedAt     *time.Time       `json:"confirmed_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName matches the PJO naming
func (PJOCostItem) TableName() string {
	return "pjo_cost_items"
}

// JobOrderStatus enum constants
const (
	JobOrderActive    = "active"
	JobOrderCompleted = "completed"
)

// JobOrder is created from a fully confirmed PJO
type JobOrder struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JONumber     string          `gorm:"column:jo_number;type:varchar(30);uniqueIndex;not null" json:"jo_number"`
	PJOID        uuid.UUID       `gorm:"column:pjo_id;type:uuid;not null;uniqueIndex" json:"pjo_id"`
	PJO          *PJO            `gorm:"foreignKey:PJOID" json:"pjo,omitempty"`
	CustomerName string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	Status       string          `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	FinalRevenue decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"final_revenue"`
	FinalCost    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"final_cost"`
	HasOverruns  bool            `gorm:"not null;default:false" json:"has_overruns"`
	ConvertedBy  *uuid.UUID      `gorm:"type:uuid" json:"converted_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
