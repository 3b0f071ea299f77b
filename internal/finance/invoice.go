package finance

import (
	"time"

	"freight-erp/internal/permission"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoiceReceived  InvoiceStatus = "received"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// PaymentMethod enum constants
const (
	PaymentTransfer = "transfer"
	PaymentCash     = "cash"
	PaymentCheck    = "check"
	PaymentGiro     = "giro"
)

// IsValidPaymentMethod reports whether method is one of the accepted payment methods.
func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentTransfer, PaymentCash, PaymentCheck, PaymentGiro:
		return true
	}
	return false
}

// ValidationResult reports a failed precondition as a value instead of an error.
type ValidationResult struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

func valid() ValidationResult { return ValidationResult{IsValid: true} }

func invalid(msg string) ValidationResult { return ValidationResult{Error: msg} }

// Payable is anything that carries a payment amount.
type Payable interface {
	PaymentAmount() decimal.Decimal
}

// Amount is the simplest Payable.
type Amount decimal.Decimal

func (a Amount) PaymentAmount() decimal.Decimal { return decimal.Decimal(a) }

// DetermineInvoiceStatus derives an invoice's status from what has been paid against it.
//
// Cancelled is absorbing. With nothing paid the current status is kept, so recomputation
// never moves a sent invoice back to draft.
func DetermineInvoiceStatus(totalAmount, totalPaid decimal.Decimal, current InvoiceStatus) InvoiceStatus {
	if current == InvoiceCancelled {
		return InvoiceCancelled
	}
	if totalAmount.IsPositive() && totalPaid.GreaterThanOrEqual(totalAmount) {
		return InvoicePaid
	}
	if totalPaid.IsPositive() && totalPaid.LessThan(totalAmount) {
		return InvoicePartial
	}
	// paid/partial with nothing left on record fall back to sent
	if current == InvoicePaid || current == InvoicePartial {
		return InvoiceSent
	}
	return current
}

// CalculateTotalPaid sums the payment amounts.
func CalculateTotalPaid[P Payable](payments []P) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.PaymentAmount())
	}
	return total
}

// RemainingBalance is what is still owed, never below zero.
func RemainingBalance(totalAmount, totalPaid decimal.Decimal) decimal.Decimal {
	remaining := totalAmount.Sub(totalPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ValidatePaymentAmount rejects zero and negative amounts. There is no upper bound.
func ValidatePaymentAmount(amount decimal.Decimal) ValidationResult {
	if !amount.IsPositive() {
		return invalid("Payment amount must be greater than 0")
	}
	return valid()
}

// IsOverpayment is used to ask for confirmation, never to block.
func IsOverpayment(amount, remainingBalance decimal.Decimal) bool {
	return amount.GreaterThan(remainingBalance)
}

// CanRecordPayment checks the role's default table entry only. Use
// permission.HasPermission for profiles with overridden flags.
func CanRecordPayment(role string) bool {
	return permission.GetDefaultPermissions(role).CanManageInvoices
}

// manualTransitions lists the status changes a user may request directly.
// partial and paid are only ever derived from payments.
var manualTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:    {InvoiceSent, InvoiceCancelled},
	InvoiceSent:     {InvoiceReceived, InvoiceCancelled},
	InvoiceReceived: {InvoiceCancelled},
	InvoiceOverdue:  {InvoiceCancelled},
	InvoicePartial:  {InvoiceCancelled},
}

// CanTransitionInvoice reports whether a user may move an invoice from one status to another.
// Cancelling requires that nothing has been paid.
func CanTransitionInvoice(from, to InvoiceStatus, totalPaid decimal.Decimal) ValidationResult {
	for _, next := range manualTransitions[from] {
		if next != to {
			continue
		}
		if to == InvoiceCancelled && totalPaid.IsPositive() {
			return invalid("Cannot cancel an invoice that has payments recorded")
		}
		return valid()
	}
	return invalid("Cannot change invoice status from " + string(from) + " to " + string(to))
}

// IsOverdue reports whether an unpaid invoice has passed its due date.
func IsOverdue(status InvoiceStatus, dueDate *time.Time, now time.Time) bool {
	if dueDate == nil {
		return false
	}
	switch status {
	case InvoiceSent, InvoiceReceived, InvoicePartial:
		return dueDate.Before(now)
	}
	return false
}
