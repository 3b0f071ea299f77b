package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateUser            = "CREATE_USER"
	ActionUpdateUserPermissions = "UPDATE_USER_PERMISSIONS"
	ActionDeactivateUser        = "DEACTIVATE_USER"

	ActionCreateInvoice       = "CREATE_INVOICE"
	ActionChangeInvoiceStatus = "CHANGE_INVOICE_STATUS"
	ActionMarkInvoiceOverdue  = "MARK_INVOICE_OVERDUE"
	ActionRecordPayment       = "RECORD_PAYMENT"
	ActionDeletePayment       = "DELETE_PAYMENT"

	ActionCreatePJO       = "CREATE_PJO"
	ActionSubmitPJO       = "SUBMIT_PJO"
	ActionApprovePJO      = "APPROVE_PJO"
	ActionRejectPJO       = "REJECT_PJO"
	ActionConfirmCostItem = "CONFIRM_COST_ITEM"
	ActionConvertPJO      = "CONVERT_PJO_TO_JO"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for scheduled jobs
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	UserRole   string     `gorm:"type:varchar(50);index" json:"user_role"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string     `gorm:"type:varchar(50);index" json:"entity_type"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
