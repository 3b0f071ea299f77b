package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freight-erp/internal/finance"
	"freight-erp/internal/model"
	"freight-erp/internal/permission"
	"freight-erp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type RecordPaymentRequest struct {
	Amount        string `json:"amount" binding:"required"`
	PaymentDate   string `json:"payment_date"` // YYYY-MM-DD, defaults to today
	PaymentMethod string `json:"payment_method" binding:"required"`
	Reference     string `json:"reference"`
	BankName      string `json:"bank_name"`
	Notes         string `json:"notes"`
}

type PaymentResponse struct {
	ID            string  `json:"id"`
	InvoiceID     string  `json:"invoice_id"`
	Amount        string  `json:"amount"`
	PaymentDate   string  `json:"payment_date"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference"`
	BankName      string  `json:"bank_name"`
	Notes         string  `json:"notes"`
	RecordedBy    *string `json:"recorded_by"`
	CreatedAt     string  `json:"created_at"`
}

// PaymentResult is the payment plus the invoice state it produced
type PaymentResult struct {
	Payment       *PaymentResponse `json:"payment,omitempty"`
	Invoice       InvoiceResponse  `json:"invoice"`
	IsOverpayment bool             `json:"is_overpayment"`
}

type PaymentService interface {
	RecordPayment(ctx context.Context, actor *permission.Profile, invoiceID string, req RecordPaymentRequest) (PaymentResult, error)
	DeletePayment(ctx context.Context, actor *permission.Profile, invoiceID, paymentID string) (PaymentResult, error)
	ListPayments(ctx context.Context, actor *permission.Profile, invoiceID string) ([]PaymentResponse, error)
}

type paymentService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	events      EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

func NewPaymentService(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	log zerolog.Logger,
) PaymentService {
	return &paymentService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		events:      publisherOrNoop(events),
		log:         log.With().Str("component", "payment_service").Logger(),
		now:         time.Now,
	}
}

// RecordPayment stores a payment and re-derives the invoice's paid amount and status.
// Overpayment is reported in the result but never rejected.
func (s *paymentService) RecordPayment(ctx context.Context, actor *permission.Profile, invoiceID string, req RecordPaymentRequest) (PaymentResult, error) {
	if err := requireFeature(actor, permission.FeaturePaymentsRecord); err != nil {
		return PaymentResult{}, err
	}
	id, err := parseID(invoiceID, "invoice id")
	if err != nil {
		return PaymentResult{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return PaymentResult{}, validationError("invalid amount")
	}
	if check := finance.ValidatePaymentAmount(amount); !check.IsValid {
		return PaymentResult{}, validationError(check.Error)
	}
	if !finance.IsValidPaymentMethod(req.PaymentMethod) {
		return PaymentResult{}, validationError("payment_method must be one of transfer, cash, check, giro")
	}

	paymentDate := s.now()
	if req.PaymentDate != "" {
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			return PaymentResult{}, validationError("payment_date must be YYYY-MM-DD")
		}
	}

	payment := &model.Payment{
		InvoiceID:     id,
		Amount:        amount,
		PaymentDate:   paymentDate,
		PaymentMethod: req.PaymentMethod,
		Reference:     req.Reference,
		BankName:      req.BankName,
		Notes:         req.Notes,
		RecordedBy:    actorID(actor),
	}

	var invoice *model.Invoice
	var from string
	var overpaid bool

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.lockInvoice(txCtx, id)
		if findErr != nil {
			return findErr
		}
		if invoice.Status == string(finance.InvoiceCancelled) {
			return invalidTransition("cannot record a payment on a cancelled invoice")
		}

		from = invoice.Status
		overpaid = finance.IsOverpayment(amount, finance.RemainingBalance(invoice.TotalAmount, invoice.AmountPaid))

		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := s.recompute(txCtx, invoice); err != nil {
			return err
		}

		entry := auditEntry(actor, model.ActionRecordPayment, "invoice", invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
			"payment_id":     payment.ID.String(),
			"amount":         amount.String(),
			"payment_method": payment.PaymentMethod,
			"status_before":  from,
			"status_after":   invoice.Status,
			"overpayment":    overpaid,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if overpaid {
		s.log.Warn().Str("invoice_no", invoice.InvoiceNo).Str("amount", amount.String()).Msg("payment exceeds remaining balance")
	}
	s.publishChange(EventPaymentRecorded, invoice, payment, from)

	paymentRes := toPaymentResponse(payment)
	return PaymentResult{
		Payment:       &paymentRes,
		Invoice:       toInvoiceResponse(invoice),
		IsOverpayment: overpaid,
	}, nil
}

// DeletePayment removes a payment and re-derives the invoice from whatever is left.
func (s *paymentService) DeletePayment(ctx context.Context, actor *permission.Profile, invoiceID, paymentID string) (PaymentResult, error) {
	if err := requireFeature(actor, permission.FeaturePaymentsRecord); err != nil {
		return PaymentResult{}, err
	}
	invID, err := parseID(invoiceID, "invoice id")
	if err != nil {
		return PaymentResult{}, err
	}
	payID, err := parseID(paymentID, "payment id")
	if err != nil {
		return PaymentResult{}, err
	}

	var invoice *model.Invoice
	var payment *model.Payment
	var from string

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.lockInvoice(txCtx, invID)
		if findErr != nil {
			return findErr
		}

		payment, findErr = s.paymentRepo.FindByID(txCtx, payID)
		if findErr != nil {
			return lookupError(findErr, "payment")
		}
		if payment.InvoiceID != invoice.ID {
			return notFound("payment")
		}

		from = invoice.Status
		if err := s.paymentRepo.Delete(txCtx, payment.ID); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
		if err := s.recompute(txCtx, invoice); err != nil {
			return err
		}

		entry := auditEntry(actor, model.ActionDeletePayment, "invoice", invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
			"payment_id":    payment.ID.String(),
			"amount":        payment.Amount.String(),
			"status_before": from,
			"status_after":  invoice.Status,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return PaymentResult{}, err
	}

	s.publishChange(EventPaymentDeleted, invoice, payment, from)
	return PaymentResult{Invoice: toInvoiceResponse(invoice)}, nil
}

func (s *paymentService) ListPayments(ctx context.Context, actor *permission.Profile, invoiceID string) ([]PaymentResponse, error) {
	if err := requireFeature(actor, permission.FeatureInvoicesView); err != nil {
		return nil, err
	}
	id, err := parseID(invoiceID, "invoice id")
	if err != nil {
		return nil, err
	}
	if _, err := s.invoiceRepo.FindByID(ctx, id); err != nil {
		return nil, lookupError(err, "invoice")
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	res := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		res = append(res, toPaymentResponse(&payments[i]))
	}
	return res, nil
}

func (s *paymentService) lockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("invoice")
		}
		return nil, err
	}
	return invoice, nil
}

// recompute re-reads every payment of the locked invoice and writes back the derived
// amount_paid, status and paid_at. Must run inside the transaction holding the lock.
func (s *paymentService) recompute(ctx context.Context, invoice *model.Invoice) error {
	payments, err := s.paymentRepo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}

	totalPaid := finance.CalculateTotalPaid(payments)
	status := finance.DetermineInvoiceStatus(invoice.TotalAmount, totalPaid, finance.InvoiceStatus(invoice.Status))

	invoice.AmountPaid = totalPaid
	invoice.Status = string(status)
	switch {
	case status == finance.InvoicePaid && invoice.PaidAt == nil:
		now := s.now()
		invoice.PaidAt = &now
	case status != finance.InvoicePaid:
		invoice.PaidAt = nil
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

func (s *paymentService) publishChange(event string, invoice *model.Invoice, payment *model.Payment, from string) {
	s.events.Publish(event, map[string]interface{}{
		"invoice_id":  invoice.ID.String(),
		"invoice_no":  invoice.InvoiceNo,
		"payment_id":  payment.ID.String(),
		"amount":      payment.Amount.StringFixed(2),
		"amount_paid": invoice.AmountPaid.StringFixed(2),
		"status":      invoice.Status,
	})
	if from != invoice.Status {
		s.events.Publish(EventInvoiceStatusChanged, map[string]interface{}{
			"invoice_id": invoice.ID.String(),
			"invoice_no": invoice.InvoiceNo,
			"from":       from,
			"to":         invoice.Status,
		})
		s.log.Info().Str("invoice_no", invoice.InvoiceNo).Str("from", from).Str("to", invoice.Status).Msg("invoice status derived from payments")
	}
}

func toPaymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		InvoiceID:     p.InvoiceID.String(),
		Amount:        p.Amount.StringFixed(2),
		PaymentDate:   p.PaymentDate.Format("2006-01-02"),
		PaymentMethod: p.PaymentMethod,
		Reference:     p.Reference,
		BankName:      p.BankName,
		Notes:         p.Notes,
		RecordedBy:    formatUUID(p.RecordedBy),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}
