package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a customer bill. Status and AmountPaid are derived from the
// invoice's payments every time a payment is recorded or removed.
type Invoice struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNo    string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	JobOrderID   *uuid.UUID      `gorm:"type:uuid;index" json:"job_order_id"`
	JobOrder     *JobOrder       `gorm:"foreignKey:JobOrderID" json:"job_order,omitempty"`
	CustomerName string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	Status       string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"` // draft, sent, received, overdue, partial, paid, cancelled
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_paid"`
	DueDate      *time.Time      `gorm:"type:date;index" json:"due_date"`
	SentAt       *time.Time      `json:"sent_at"`
	PaidAt       *time.Time      `json:"paid_at"`
	CancelledAt  *time.Time      `json:"cancelled_at"`
	Notes        string          `gorm:"type:text" json:"notes"`
	CreatedBy    *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Payments     []Payment       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Payment is money received against exactly one invoice
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	PaymentDate   time.Time       `gorm:"type:date;not null" json:"payment_date"`
	PaymentMethod string          `gorm:"type:varchar(20);not null" json:"payment_method"` // transfer, cash, check, giro
	Reference     string          `gorm:"type:varchar(100)" json:"reference"`
	BankName      string          `gorm:"type:varchar(100)" json:"bank_name"`
	Notes         string          `gorm:"type:text" json:"notes"`
	RecordedBy    *uuid.UUID      `gorm:"type:uuid" json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentAmount lets payments be summed by the finance engine
func (p Payment) PaymentAmount() decimal.Decimal {
	return p.Amount
}
