package service

import (
	"context"
	"fmt"
	"time"

	"freight-erp/internal/finance"
	"freight-erp/internal/model"
	"freight-erp/internal/permission"
	"freight-erp/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateInvoiceRequest struct {
	JobOrderID   string `json:"job_order_id"`
	CustomerName string `json:"customer_name" binding:"required"`
	TotalAmount  string `json:"total_amount" binding:"required"`
	DueDate      string `json:"due_date"` // YYYY-MM-DD
	Notes        string `json:"notes"`
}

type ChangeInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type InvoiceFilter struct {
	Status     string
	InvoiceNo  string // partial match on invoice_no
	JobOrderID string
	Page       int
	Limit      int
}

type InvoiceResponse struct {
	ID               string            `json:"id"`
	InvoiceNo        string            `json:"invoice_no"`
	JobOrderID       *string           `json:"job_order_id"`
	CustomerName     string            `json:"customer_name"`
	Status           string            `json:"status"`
	TotalAmount      string            `json:"total_amount"`
	AmountPaid       string            `json:"amount_paid"`
	RemainingBalance string            `json:"remaining_balance"`
	DueDate          *string           `json:"due_date"`
	SentAt           *string           `json:"sent_at"`
	PaidAt           *string           `json:"paid_at"`
	CancelledAt      *string           `json:"cancelled_at"`
	Notes            string            `json:"notes"`
	Payments         []PaymentResponse `json:"payments,omitempty"`
	CreatedAt        string            `json:"created_at"`
}

// OverdueSweepResult lists the invoices moved to overdue by one sweep
type OverdueSweepResult struct {
	Marked     int      `json:"marked"`
	InvoiceNos []string `json:"invoice_nos"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, actor *permission.Profile, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, actor *permission.Profile, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, actor *permission.Profile, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	ChangeStatus(ctx context.Context, actor *permission.Profile, id string, req ChangeInvoiceStatusRequest) (InvoiceResponse, error)
	MarkOverdue(ctx context.Context, now time.Time) (OverdueSweepResult, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	events      EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	log zerolog.Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		events:      publisherOrNoop(events),
		log:         log.With().Str("component", "invoice_service").Logger(),
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, actor *permission.Profile, req CreateInvoiceRequest) (InvoiceResponse, error) {
	if err := requireFeature(actor, permission.FeatureInvoicesManage); err != nil {
		return InvoiceResponse{}, err
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return InvoiceResponse{}, validationError("invalid total_amount")
	}
	if !total.IsPositive() {
		return InvoiceResponse{}, validationError("total_amount must be greater than 0")
	}

	invoice := &model.Invoice{
		CustomerName: req.CustomerName,
		Status:       string(finance.InvoiceDraft),
		TotalAmount:  total,
		AmountPaid:   decimal.Zero,
		Notes:        req.Notes,
		CreatedBy:    actorID(actor),
	}

	if req.JobOrderID != "" {
		joID, err := parseID(req.JobOrderID, "job_order_id")
		if err != nil {
			return InvoiceResponse{}, err
		}
		invoice.JobOrderID = &joID
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return InvoiceResponse{}, validationError("due_date must be YYYY-MM-DD")
		}
		invoice.DueDate = &due
	}

	err = runNumbered(ctx, s.txManager, func(txCtx context.Context) error {
		invoiceNo, err := documentNumber(txCtx, "INV", s.now(), s.invoiceRepo.CountByPrefix)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}
		invoice.InvoiceNo = invoiceNo

		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		entry := auditEntry(actor, model.ActionCreateInvoice, "invoice", invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
			"customer_name": invoice.CustomerName,
			"total_amount":  invoice.TotalAmount.String(),
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.log.Info().Str("invoice_no", invoice.InvoiceNo).Str("total", invoice.TotalAmount.String()).Msg("invoice created")
	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, actor *permission.Profile, id string) (InvoiceResponse, error) {
	if err := requireFeature(actor, permission.FeatureInvoicesView); err != nil {
		return InvoiceResponse{}, err
	}
	invoiceID, err := parseID(id, "invoice id")
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice, err := s.invoiceRepo.FindByIDWithPayments(ctx, invoiceID)
	if err != nil {
		if repository.IsNotFound(err) {
			return InvoiceResponse{}, notFound("invoice")
		}
		return InvoiceResponse{}, err
	}

	res := toInvoiceResponse(invoice)
	res.Payments = make([]PaymentResponse, 0, len(invoice.Payments))
	for i := range invoice.Payments {
		res.Payments = append(res.Payments, toPaymentResponse(&invoice.Payments[i]))
	}
	return res, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, actor *permission.Profile, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	if err := requireFeature(actor, permission.FeatureInvoicesView); err != nil {
		return nil, 0, err
	}

	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	repoFilter := repository.InvoiceListFilter{
		Status:    filter.Status,
		InvoiceNo: filter.InvoiceNo,
		Page:      filter.Page,
		Limit:     filter.Limit,
	}
	if filter.JobOrderID != "" {
		joID, err := parseID(filter.JobOrderID, "job_order_id")
		if err != nil {
			return nil, 0, err
		}
		repoFilter.JobOrderID = &joID
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		res = append(res, toInvoiceResponse(&invoices[i]))
	}
	return res, total, nil
}

// ChangeStatus applies a manual transition. partial and paid are never accepted here;
// they only follow from recorded payments.
func (s *invoiceService) ChangeStatus(ctx context.Context, actor *permission.Profile, id string, req ChangeInvoiceStatusRequest) (InvoiceResponse, error) {
	if err := requireFeature(actor, permission.FeatureInvoicesManage); err != nil {
		return InvoiceResponse{}, err
	}
	invoiceID, err := parseID(id, "invoice id")
	if err != nil {
		return InvoiceResponse{}, err
	}

	target := finance.InvoiceStatus(req.Status)
	var invoice *model.Invoice
	var from string

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			if repository.IsNotFound(findErr) {
				return notFound("invoice")
			}
			return findErr
		}

		from = invoice.Status
		check := finance.CanTransitionInvoice(finance.InvoiceStatus(invoice.Status), target, invoice.AmountPaid)
		if !check.IsValid {
			return invalidTransition(check.Error)
		}

		now := s.now()
		invoice.Status = string(target)
		switch target {
		case finance.InvoiceSent:
			invoice.SentAt = &now
		case finance.InvoiceCancelled:
			invoice.CancelledAt = &now
		}

		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		entry := auditEntry(actor, model.ActionChangeInvoiceStatus, "invoice", invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
			"from": from,
			"to":   invoice.Status,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.events.Publish(EventInvoiceStatusChanged, map[string]interface{}{
		"invoice_id": invoice.ID.String(),
		"invoice_no": invoice.InvoiceNo,
		"from":       from,
		"to":         invoice.Status,
	})
	s.log.Info().Str("invoice_no", invoice.InvoiceNo).Str("from", from).Str("to", invoice.Status).Msg("invoice status changed")

	return toInvoiceResponse(invoice), nil
}

// MarkOverdue moves every unpaid invoice past its due date to overdue. Each invoice is
// re-checked under its row lock so a payment landing mid-sweep wins.
func (s *invoiceService) MarkOverdue(ctx context.Context, now time.Time) (OverdueSweepResult, error) {
	result := OverdueSweepResult{InvoiceNos: []string{}}

	candidates, err := s.invoiceRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	for _, candidate := range candidates {
		var marked *model.Invoice
		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			invoice, err := s.invoiceRepo.FindByIDForUpdate(txCtx, candidate.ID)
			if err != nil {
				return err
			}
			if !finance.IsOverdue(finance.InvoiceStatus(invoice.Status), invoice.DueDate, now) {
				return nil
			}

			from := invoice.Status
			invoice.Status = string(finance.InvoiceOverdue)
			if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
				return err
			}
			marked = invoice

			entry := auditEntry(nil, model.ActionMarkInvoiceOverdue, "invoice", invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
				"from":     from,
				"due_date": invoice.DueDate.Format("2006-01-02"),
			})
			return s.auditRepo.Log(txCtx, entry)
		})
		if err != nil {
			s.log.Error().Err(err).Str("invoice_id", candidate.ID.String()).Msg("failed to mark invoice overdue")
			continue
		}
		if marked == nil {
			continue
		}

		result.Marked++
		result.InvoiceNos = append(result.InvoiceNos, marked.InvoiceNo)
		s.events.Publish(EventInvoiceStatusChanged, map[string]interface{}{
			"invoice_id": marked.ID.String(),
			"invoice_no": marked.InvoiceNo,
			"to":         marked.Status,
		})
	}

	if result.Marked > 0 {
		s.log.Info().Int("marked", result.Marked).Msg("overdue sweep finished")
	}
	return result, nil
}

// --- Helpers ---

func toInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	var dueDate *string
	if inv.DueDate != nil {
		d := inv.DueDate.Format("2006-01-02")
		dueDate = &d
	}

	return InvoiceResponse{
		ID:               inv.ID.String(),
		InvoiceNo:        inv.InvoiceNo,
		JobOrderID:       formatUUID(inv.JobOrderID),
		CustomerName:     inv.CustomerName,
		Status:           inv.Status,
		TotalAmount:      inv.TotalAmount.StringFixed(2),
		AmountPaid:       inv.AmountPaid.StringFixed(2),
		RemainingBalance: finance.RemainingBalance(inv.TotalAmount, inv.AmountPaid).StringFixed(2),
		DueDate:          dueDate,
		SentAt:           formatTime(inv.SentAt),
		PaidAt:           formatTime(inv.PaidAt),
		CancelledAt:      formatTime(inv.CancelledAt),
		Notes:            inv.Notes,
		CreatedAt:        inv.CreatedAt.Format(time.RFC3339),
	}
}
