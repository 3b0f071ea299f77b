package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDetermineInvoiceStatus(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		paid    int64
		current InvoiceStatus
		want    InvoiceStatus
	}{
		{"fully paid", 1000, 1000, InvoiceSent, InvoicePaid},
		{"overpaid", 1000, 1200, InvoiceReceived, InvoicePaid},
		{"partial", 1000, 400, InvoiceSent, InvoicePartial},
		{"partial from overdue", 1000, 1, InvoiceOverdue, InvoicePartial},
		{"cancelled stays cancelled", 1000, 0, InvoiceCancelled, InvoiceCancelled},
		{"cancelled ignores payments", 1000, 1000, InvoiceCancelled, InvoiceCancelled},
		{"no payment keeps draft", 1000, 0, InvoiceDraft, InvoiceDraft},
		{"no payment keeps sent", 1000, 0, InvoiceSent, InvoiceSent},
		{"no payment keeps received", 1000, 0, InvoiceReceived, InvoiceReceived},
		{"no payment keeps overdue", 1000, 0, InvoiceOverdue, InvoiceOverdue},
		{"all payments removed from paid", 1000, 0, InvoicePaid, InvoiceSent},
		{"all payments removed from partial", 1000, 0, InvoicePartial, InvoiceSent},
		{"zero total is never paid", 0, 0, InvoiceSent, InvoiceSent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineInvoiceStatus(d(tt.total), d(tt.paid), tt.current)
			assert.Equal(t, tt.want, got)
			// no hidden state between calls
			assert.Equal(t, got, DetermineInvoiceStatus(d(tt.total), d(tt.paid), tt.current))
		})
	}
}

func TestCalculateTotalPaid(t *testing.T) {
	assert.True(t, CalculateTotalPaid([]Amount{}).IsZero())
	assert.True(t, CalculateTotalPaid[Amount](nil).IsZero())

	payments := []Amount{Amount(d(2000000)), Amount(decimal.RequireFromString("0.25")), Amount(d(3000000))}
	assert.Equal(t, "5000000.25", CalculateTotalPaid(payments).String())
	assert.Equal(t, "0.25", decimal.Decimal(payments[1]).String(), "input must not be modified")
}

func TestValidatePaymentAmount(t *testing.T) {
	assert.True(t, ValidatePaymentAmount(d(1)).IsValid)
	assert.True(t, ValidatePaymentAmount(decimal.RequireFromString("0.01")).IsValid)
	assert.True(t, ValidatePaymentAmount(d(999999999999)).IsValid)

	res := ValidatePaymentAmount(decimal.Zero)
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Error)
	assert.False(t, ValidatePaymentAmount(d(-5)).IsValid)
}

func TestIsOverpayment(t *testing.T) {
	assert.True(t, IsOverpayment(d(101), d(100)))
	assert.False(t, IsOverpayment(d(100), d(100)))
	assert.False(t, IsOverpayment(d(50), d(100)))
}

func TestRemainingBalance(t *testing.T) {
	assert.Equal(t, "600", RemainingBalance(d(1000), d(400)).String())
	assert.True(t, RemainingBalance(d(1000), d(1500)).IsZero())
}

func TestCanRecordPayment(t *testing.T) {
	assert.True(t, CanRecordPayment("admin"))
	assert.True(t, CanRecordPayment("finance"))
	for _, role := range []string{"manager", "ops", "viewer", "owner", "", "Finance"} {
		assert.False(t, CanRecordPayment(role), role)
	}
}

func TestCanTransitionInvoice(t *testing.T) {
	assert.True(t, CanTransitionInvoice(InvoiceDraft, InvoiceSent, decimal.Zero).IsValid)
	assert.True(t, CanTransitionInvoice(InvoiceSent, InvoiceReceived, decimal.Zero).IsValid)
	assert.True(t, CanTransitionInvoice(InvoiceOverdue, InvoiceCancelled, decimal.Zero).IsValid)

	assert.False(t, CanTransitionInvoice(InvoicePartial, InvoiceCancelled, d(10)).IsValid)
	assert.False(t, CanTransitionInvoice(InvoiceSent, InvoiceDraft, decimal.Zero).IsValid)
	assert.False(t, CanTransitionInvoice(InvoiceSent, InvoicePaid, decimal.Zero).IsValid)
	assert.False(t, CanTransitionInvoice(InvoiceCancelled, InvoiceSent, decimal.Zero).IsValid)
	assert.False(t, CanTransitionInvoice(InvoicePaid, InvoiceCancelled, decimal.Zero).IsValid)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	assert.True(t, IsOverdue(InvoiceSent, &past, now))
	assert.True(t, IsOverdue(InvoicePartial, &past, now))
	assert.False(t, IsOverdue(InvoiceSent, &future, now))
	assert.False(t, IsOverdue(InvoiceSent, nil, now))
	assert.False(t, IsOverdue(InvoiceDraft, &past, now))
	assert.False(t, IsOverdue(InvoicePaid, &past, now))
	assert.False(t, IsOverdue(InvoiceCancelled, &past, now))
}

func TestIsValidPaymentMethod(t *testing.T) {
	for _, m := range []string{"transfer", "cash", "check", "giro"} {
		assert.True(t, IsValidPaymentMethod(m))
	}
	assert.False(t, IsValidPaymentMethod("crypto"))
}
