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

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CostItemInput struct {
	Category        string `json:"category" binding:"required"`
	Description     string `json:"description"`
	EstimatedAmount string `json:"estimated_amount" binding:"required"`
}

type CreatePJORequest struct {
	CustomerName string          `json:"customer_name" binding:"required"`
	Commodity    string          `json:"commodity"`
	Origin       string          `json:"origin"`
	Destination  string          `json:"destination"`
	TotalRevenue string          `json:"total_revenue" binding:"required"`
	Notes        string          `json:"notes"`
	CostItems    []CostItemInput `json:"cost_items"`
}

type RejectPJORequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ConfirmCostRequest struct {
	ActualAmount  string `json:"actual_amount" binding:"required"`
	Justification string `json:"justification"`
}

// CostPreviewResponse is what confirming would produce, without writing anything
type CostPreviewResponse struct {
	Status                string `json:"status"`
	Variance              string `json:"variance"`
	VariancePct           string `json:"variance_pct"`
	RequiresJustification bool   `json:"requires_justification"`
	IsValid               bool   `json:"is_valid"`
	Error                 string `json:"error,omitempty"`
}

// CostItemResponse leaves the amounts nil for callers without jo.view_costs.
type CostItemResponse struct {
	ID              string  `json:"id"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	EstimatedAmount *string `json:"estimated_amount"`
	ActualAmount    *string `json:"actual_amount"`
	Status          string  `json:"status"`
	Variance        *string `json:"variance"`
	VariancePct     *string `json:"variance_pct"`
	Justification   string  `json:"justification"`
	ConfirmedBy     *string `json:"confirmed_by"`
	ConfirmedAt     *string `json:"confirmed_at"`
}

// PJOResponse leaves TotalRevenue, EstimatedProfit and TotalEstimatedCost nil for callers
// that may not see them. Costs follow jo.view_costs since a job order's final cost is the
// sum of its PJO's actual amounts.
type PJOResponse struct {
	ID                 string             `json:"id"`
	PJONumber          string             `json:"pjo_number"`
	CustomerName       string             `json:"customer_name"`
	Commodity          string             `json:"commodity"`
	Origin             string             `json:"origin"`
	Destination        string             `json:"destination"`
	Status             string             `json:"status"`
	TotalRevenue       *string            `json:"total_revenue"`
	TotalEstimatedCost *string            `json:"total_estimated_cost"`
	EstimatedProfit    *string            `json:"estimated_profit"`
	Notes              string             `json:"notes"`
	ApprovedBy         *string            `json:"approved_by"`
	ApprovedAt         *string            `json:"approved_at"`
	RejectionReason    string             `json:"rejection_reason,omitempty"`
	ConvertedAt        *string            `json:"converted_at"`
	CostItems          []CostItemResponse `json:"cost_items"`
	Progress           finance.Progress   `json:"progress"`
	CreatedAt          string             `json:"created_at"`
}

// JobOrderResponse shows revenue and profit only with jo.view_full and costs only with jo.view_costs.
type JobOrderResponse struct {
	ID           string  `json:"id"`
	JONumber     string  `json:"jo_number"`
	PJOID        string  `json:"pjo_id"`
	CustomerName string  `json:"customer_name"`
	Status       string  `json:"status"`
	FinalRevenue *string `json:"final_revenue"`
	FinalCost    *string `json:"final_cost"`
	Profit       *string `json:"profit"`
	HasOverruns  bool    `json:"has_overruns"`
	CreatedAt    string  `json:"created_at"`
}

type PJOFilter struct {
	Status string
	Page   int
	Limit  int
}

// --- Interface ---

type PJOService interface {
	CreatePJO(ctx context.Context, actor *permission.Profile, req CreatePJORequest) (PJOResponse, error)
	GetPJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error)
	ListPJOs(ctx context.Context, actor *permission.Profile, filter PJOFilter) ([]PJOResponse, int64, error)
	SubmitPJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error)
	ApprovePJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error)
	RejectPJO(ctx context.Context, actor *permission.Profile, id string, req RejectPJORequest) (PJOResponse, error)
	PreviewCostConfirmation(ctx context.Context, actor *permission.Profile, pjoID, itemID string, req ConfirmCostRequest) (CostPreviewResponse, error)
	ConfirmCostItem(ctx context.Context, actor *permission.Profile, pjoID, itemID string, req ConfirmCostRequest) (CostItemResponse, error)
	GetProgress(ctx context.Context, actor *permission.Profile, id string) (finance.Progress, error)
	ConvertToJobOrder(ctx context.Context, actor *permission.Profile, id string) (JobOrderResponse, error)
	GetJobOrder(ctx context.Context, actor *permission.Profile, id string) (JobOrderResponse, error)
}

type pjoService struct {
	pjoRepo   repository.PJORepository
	joRepo    repository.JobOrderRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	events    EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewPJOService(
	pjoRepo repository.PJORepository,
	joRepo repository.JobOrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	log zerolog.Logger,
) PJOService {
	return &pjoService{
		pjoRepo:   pjoRepo,
		joRepo:    joRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		events:    publisherOrNoop(events),
		log:       log.With().Str("component", "pjo_service").Logger(),
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *pjoService) CreatePJO(ctx context.Context, actor *permission.Profile, req CreatePJORequest) (PJOResponse, error) {
	if err := requireFeature(actor, permission.FeaturePJOCreate); err != nil {
		return PJOResponse{}, err
	}

	revenue, err := decimal.NewFromString(req.TotalRevenue)
	if err != nil || revenue.IsNegative() {
		return PJOResponse{}, validationError("total_revenue must be a non-negative number")
	}

	pjo := &model.PJO{
		CustomerName: req.CustomerName,
		Commodity:    req.Commodity,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Status:       model.PJOStatusDraft,
		TotalRevenue: revenue,
		Notes:        req.Notes,
		CreatedBy:    actorID(actor),
	}

	for i, in := range req.CostItems {
		estimated, err := decimal.NewFromString(in.EstimatedAmount)
		if err != nil || estimated.IsNegative() {
			return PJOResponse{}, validationError(fmt.Sprintf("cost_items[%d].estimated_amount must be a non-negative number", i))
		}
		if strings.TrimSpace(in.Category) == "" {
			return PJOResponse{}, validationError(fmt.Sprintf("cost_items[%d].category is required", i))
		}
		pjo.CostItems = append(pjo.CostItems, model.PJOCostItem{
			Category:        in.Category,
			Description:     in.Description,
			EstimatedAmount: estimated,
			Status:          string(finance.CostEstimated),
		})
	}

	err = runNumbered(ctx, s.txManager, func(txCtx context.Context) error {
		number, err := documentNumber(txCtx, "PJO", s.now(), s.pjoRepo.CountByPrefix)
		if err != nil {
			return fmt.Errorf("failed to generate pjo number: %w", err)
		}
		pjo.PJONumber = number

		if err := s.pjoRepo.Create(txCtx, pjo); err != nil {
			return fmt.Errorf("failed to create pjo: %w", err)
		}

		entry := auditEntry(actor, model.ActionCreatePJO, "pjo", pjo.ID.String(), pjo.PJONumber, map[string]interface{}{
			"customer_name": pjo.CustomerName,
			"cost_items":    len(pjo.CostItems),
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return PJOResponse{}, err
	}

	s.log.Info().Str("pjo_number", pjo.PJONumber).Int("cost_items", len(pjo.CostItems)).Msg("pjo created")
	return toPJOResponse(pjo, actor), nil
}

func (s *pjoService) GetPJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error) {
	if err := requireFeature(actor, permission.FeaturePJOView); err != nil {
		return PJOResponse{}, err
	}
	pjo, err := s.findPJO(ctx, id)
	if err != nil {
		return PJOResponse{}, err
	}
	return toPJOResponse(pjo, actor), nil
}

func (s *pjoService) ListPJOs(ctx context.Context, actor *permission.Profile, filter PJOFilter) ([]PJOResponse, int64, error) {
	if err := requireFeature(actor, permission.FeaturePJOView); err != nil {
		return nil, 0, err
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	pjos, total, err := s.pjoRepo.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pjos: %w", err)
	}

	res := make([]PJOResponse, 0, len(pjos))
	for i := range pjos {
		res = append(res, toPJOResponse(&pjos[i], actor))
	}
	return res, total, nil
}

func (s *pjoService) SubmitPJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error) {
	return s.transition(ctx, actor, id, permission.FeaturePJOCreate, model.ActionSubmitPJO,
		[]string{model.PJOStatusDraft, model.PJOStatusRejected},
		func(pjo *model.PJO, _ time.Time) {
			pjo.Status = model.PJOStatusPendingApproval
			pjo.RejectionReason = ""
		})
}

func (s *pjoService) ApprovePJO(ctx context.Context, actor *permission.Profile, id string) (PJOResponse, error) {
	return s.transition(ctx, actor, id, permission.FeaturePJOApprove, model.ActionApprovePJO,
		[]string{model.PJOStatusPendingApproval},
		func(pjo *model.PJO, now time.Time) {
			pjo.Status = model.PJOStatusApproved
			pjo.ApprovedBy = actorID(actor)
			pjo.ApprovedAt = &now
		})
}

func (s *pjoService) RejectPJO(ctx context.Context, actor *permission.Profile, id string, req RejectPJORequest) (PJOResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return PJOResponse{}, validationError("rejection reason is required")
	}
	return s.transition(ctx, actor, id, permission.FeaturePJOApprove, model.ActionRejectPJO,
		[]string{model.PJOStatusPendingApproval},
		func(pjo *model.PJO, _ time.Time) {
			pjo.Status = model.PJOStatusRejected
			pjo.RejectionReason = reason
		})
}

// transition moves a PJO between workflow states under its row lock.
func (s *pjoService) transition(
	ctx context.Context,
	actor *permission.Profile,
	id, feature, action string,
	allowedFrom []string,
	apply func(pjo *model.PJO, now time.Time),
) (PJOResponse, error) {
	if err := requireFeature(actor, feature); err != nil {
		return PJOResponse{}, err
	}
	pjoID, err := parseID(id, "pjo id")
	if err != nil {
		return PJOResponse{}, err
	}

	var pjo *model.PJO
	var from string

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.pjoRepo.FindByIDForUpdate(txCtx, pjoID)
		if err != nil {
			if repository.IsNotFound(err) {
				return notFound("pjo")
			}
			return err
		}
		pjo = locked
		from = pjo.Status

		if !containsStatus(allowedFrom, pjo.Status) {
			return invalidTransition(fmt.Sprintf("pjo is %s, expected one of %s", pjo.Status, strings.Join(allowedFrom, ", ")))
		}

		apply(pjo, s.now())
		if err := s.pjoRepo.Update(txCtx, pjo); err != nil {
			return fmt.Errorf("failed to update pjo: %w", err)
		}

		details := map[string]interface{}{"from": from, "to": pjo.Status}
		if pjo.RejectionReason != "" {
			details["reason"] = pjo.RejectionReason
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, action, "pjo", pjo.ID.String(), pjo.PJONumber, details))
	})
	if err != nil {
		return PJOResponse{}, err
	}

	s.events.Publish(EventPJOStatusChanged, map[string]interface{}{
		"pjo_id":     pjo.ID.String(),
		"pjo_number": pjo.PJONumber,
		"from":       from,
		"to":         pjo.Status,
	})
	s.log.Info().Str("pjo_number", pjo.PJONumber).Str("from", from).Str("to", pjo.Status).Msg("pjo status changed")

	// reload so the response carries cost items
	full, err := s.pjoRepo.FindByID(ctx, pjo.ID)
	if err != nil {
		return toPJOResponse(pjo, actor), nil
	}
	return toPJOResponse(full, actor), nil
}

func (s *pjoService) PreviewCostConfirmation(ctx context.Context, actor *permission.Profile, pjoID, itemID string, req ConfirmCostRequest) (CostPreviewResponse, error) {
	if err := requireFeature(actor, permission.FeaturePJOFillCosts); err != nil {
		return CostPreviewResponse{}, err
	}
	item, err := s.findCostItem(ctx, pjoID, itemID)
	if err != nil {
		return CostPreviewResponse{}, err
	}
	actual, err := decimal.NewFromString(strings.TrimSpace(req.ActualAmount))
	if err != nil {
		return CostPreviewResponse{}, validationError("actual_amount must be a number")
	}

	result := finance.CalculateCostStatus(item.EstimatedAmount, actual)
	check := finance.ValidateCostConfirmation(item.EstimatedAmount, actual, req.Justification)
	return CostPreviewResponse{
		Status:                string(result.Status),
		Variance:              result.Variance.StringFixed(2),
		VariancePct:           result.VariancePct.StringFixed(2),
		RequiresJustification: result.Status == finance.CostExceeded,
		IsValid:               check.IsValid,
		Error:                 check.Error,
	}, nil
}

// ConfirmCostItem records the actual amount of a cost item. Only approved PJOs take
// confirmations, and the confirmation gate runs again here whatever the preview said.
func (s *pjoService) ConfirmCostItem(ctx context.Context, actor *permission.Profile, pjoID, itemID string, req ConfirmCostRequest) (CostItemResponse, error) {
	if err := requireFeature(actor, permission.FeaturePJOFillCosts); err != nil {
		return CostItemResponse{}, err
	}
	pID, err := parseID(pjoID, "pjo id")
	if err != nil {
		return CostItemResponse{}, err
	}
	iID, err := parseID(itemID, "cost item id")
	if err != nil {
		return CostItemResponse{}, err
	}
	actual, err := decimal.NewFromString(strings.TrimSpace(req.ActualAmount))
	if err != nil {
		return CostItemResponse{}, validationError("actual_amount must be a number")
	}

	var item *model.PJOCostItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pjo, err := s.pjoRepo.FindByIDForUpdate(txCtx, pID)
		if err != nil {
			if repository.IsNotFound(err) {
				return notFound("pjo")
			}
			return err
		}
		if pjo.Status != model.PJOStatusApproved {
			return invalidTransition("costs can only be confirmed on an approved pjo")
		}

		item, err = s.pjoRepo.FindCostItem(txCtx, pID, iID)
		if err != nil {
			return lookupError(err, "cost item")
		}

		check := finance.ValidateCostConfirmation(item.EstimatedAmount, actual, req.Justification)
		if !check.IsValid {
			return validationError(check.Error)
		}

		result := finance.CalculateCostStatus(item.EstimatedAmount, actual)
		now := s.now()
		item.ActualAmount = &actual
		item.Status = string(result.Status)
		item.Variance = result.Variance
		item.VariancePct = storedVariancePct(result.VariancePct)
		item.Justification = strings.TrimSpace(req.Justification)
		item.ConfirmedBy = actorID(actor)
		item.ConfirmedAt = &now

		if err := s.pjoRepo.UpdateCostItem(txCtx, item); err != nil {
			return fmt.Errorf("failed to update cost item: %w", err)
		}

		entry := auditEntry(actor, model.ActionConfirmCostItem, "pjo", pjo.ID.String(), pjo.PJONumber, map[string]interface{}{
			"cost_item_id": item.ID.String(),
			"category":     item.Category,
			"estimated":    item.EstimatedAmount.String(),
			"actual":       actual.String(),
			"status":       item.Status,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return CostItemResponse{}, err
	}

	if item.Status == string(finance.CostExceeded) {
		s.log.Warn().Str("cost_item_id", item.ID.String()).Str("variance_pct", item.VariancePct.StringFixed(2)).Msg("cost item exceeded budget")
	}
	return toCostItemResponse(item, actor), nil
}

func (s *pjoService) GetProgress(ctx context.Context, actor *permission.Profile, id string) (finance.Progress, error) {
	if err := requireFeature(actor, permission.FeaturePJOView); err != nil {
		return finance.Progress{}, err
	}
	pjoID, err := parseID(id, "pjo id")
	if err != nil {
		return finance.Progress{}, err
	}
	items, err := s.pjoRepo.ListCostItems(ctx, pjoID)
	if err != nil {
		return finance.Progress{}, fmt.Errorf("failed to load cost items: %w", err)
	}
	return finance.CalculatePJOProgress(costLines(items)), nil
}

// ConvertToJobOrder turns an approved, fully confirmed PJO into a job order. Overruns are
// carried onto the job order for review.
func (s *pjoService) ConvertToJobOrder(ctx context.Context, actor *permission.Profile, id string) (JobOrderResponse, error) {
	if err := requireFeature(actor, permission.FeatureJOCreate); err != nil {
		return JobOrderResponse{}, err
	}
	pjoID, err := parseID(id, "pjo id")
	if err != nil {
		return JobOrderResponse{}, err
	}

	var jo *model.JobOrder
	var pjo *model.PJO

	err = runNumbered(ctx, s.txManager, func(txCtx context.Context) error {
		var err error
		pjo, err = s.pjoRepo.FindByIDForUpdate(txCtx, pjoID)
		if err != nil {
			if repository.IsNotFound(err) {
				return notFound("pjo")
			}
			return err
		}
		if pjo.Status != model.PJOStatusApproved {
			return invalidTransition("only approved pjos can be converted, pjo is " + pjo.Status)
		}

		items, err := s.pjoRepo.ListCostItems(txCtx, pjo.ID)
		if err != nil {
			return fmt.Errorf("failed to load cost items: %w", err)
		}
		progress := finance.CalculatePJOProgress(costLines(items))
		if !finance.CanConvertToJobOrder(progress) {
			return invalidTransition(fmt.Sprintf("%d of %d cost items confirmed", progress.Confirmed, progress.Total))
		}

		finalCost := decimal.Zero
		for _, item := range items {
			finalCost = finalCost.Add(*item.ActualAmount)
		}

		number, err := documentNumber(txCtx, "JO", s.now(), s.joRepo.CountByPrefix)
		if err != nil {
			return fmt.Errorf("failed to generate job order number: %w", err)
		}

		jo = &model.JobOrder{
			JONumber:     number,
			PJOID:        pjo.ID,
			CustomerName: pjo.CustomerName,
			Status:       model.JobOrderActive,
			FinalRevenue: pjo.TotalRevenue,
			FinalCost:    finalCost,
			HasOverruns:  progress.HasOverruns,
			ConvertedBy:  actorID(actor),
		}
		if err := s.joRepo.Create(txCtx, jo); err != nil {
			return fmt.Errorf("failed to create job order: %w", err)
		}

		now := s.now()
		pjo.Status = model.PJOStatusConverted
		pjo.ConvertedAt = &now
		if err := s.pjoRepo.Update(txCtx, pjo); err != nil {
			return fmt.Errorf("failed to update pjo: %w", err)
		}

		entry := auditEntry(actor, model.ActionConvertPJO, "pjo", pjo.ID.String(), pjo.PJONumber, map[string]interface{}{
			"jo_number":    jo.JONumber,
			"final_cost":   finalCost.String(),
			"has_overruns": jo.HasOverruns,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return JobOrderResponse{}, err
	}

	s.events.Publish(EventPJOConverted, map[string]interface{}{
		"pjo_id":       pjo.ID.String(),
		"pjo_number":   pjo.PJONumber,
		"job_order_id": jo.ID.String(),
		"jo_number":    jo.JONumber,
		"has_overruns": jo.HasOverruns,
	})
	s.log.Info().Str("pjo_number", pjo.PJONumber).Str("jo_number", jo.JONumber).Bool("has_overruns", jo.HasOverruns).Msg("pjo converted to job order")

	return toJobOrderResponse(jo, actor), nil
}

func (s *pjoService) GetJobOrder(ctx context.Context, actor *permission.Profile, id string) (JobOrderResponse, error) {
	if err := requireFeature(actor, permission.FeaturePJOView); err != nil {
		return JobOrderResponse{}, err
	}
	joID, err := parseID(id, "job order id")
	if err != nil {
		return JobOrderResponse{}, err
	}
	jo, err := s.joRepo.FindByID(ctx, joID)
	if err != nil {
		if repository.IsNotFound(err) {
			return JobOrderResponse{}, notFound("job order")
		}
		return JobOrderResponse{}, err
	}
	return toJobOrderResponse(jo, actor), nil
}

// --- Helpers ---

func (s *pjoService) findPJO(ctx context.Context, id string) (*model.PJO, error) {
	pjoID, err := parseID(id, "pjo id")
	if err != nil {
		return nil, err
	}
	pjo, err := s.pjoRepo.FindByID(ctx, pjoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("pjo")
		}
		return nil, err
	}
	return pjo, nil
}

func (s *pjoService) findCostItem(ctx context.Context, pjoID, itemID string) (*model.PJOCostItem, error) {
	pID, err := parseID(pjoID, "pjo id")
	if err != nil {
		return nil, err
	}
	iID, err := parseID(itemID, "cost item id")
	if err != nil {
		return nil, err
	}
	item, err := s.pjoRepo.FindCostItem(ctx, pID, iID)
	if err != nil {
		return nil, lookupError(err, "cost item")
	}
	return item, nil
}

func containsStatus(list []string, status string) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func costLines(items []model.PJOCostItem) []finance.CostLine {
	lines := make([]finance.CostLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, finance.CostLine{
			ActualAmount: item.ActualAmount,
			Confirmed:    item.ConfirmedAt != nil,
			Status:       finance.CostStatus(item.Status),
		})
	}
	return lines
}

func storedVariancePct(pct decimal.Decimal) decimal.Decimal {
	if pct.GreaterThan(model.MaxVariancePct) {
		return model.MaxVariancePct
	}
	return pct.Round(2)
}

func decimalString(d decimal.Decimal) *string {
	s := d.StringFixed(2)
	return &s
}

func toCostItemResponse(item *model.PJOCostItem, viewer *permission.Profile) CostItemResponse {
	res := CostItemResponse{
		ID:            item.ID.String(),
		Category:      item.Category,
		Description:   item.Description,
		Status:        item.Status,
		Justification: item.Justification,
		ConfirmedBy:   formatUUID(item.ConfirmedBy),
		ConfirmedAt:   formatTime(item.ConfirmedAt),
	}
	if !permission.CanAccessFeature(viewer, permission.FeatureJOViewCosts) {
		return res
	}

	res.EstimatedAmount = decimalString(item.EstimatedAmount)
	if item.ActualAmount != nil {
		res.ActualAmount = decimalString(*item.ActualAmount)
	}
	res.Variance = decimalString(item.Variance)
	res.VariancePct = decimalString(item.VariancePct)
	return res
}

func toPJOResponse(pjo *model.PJO, viewer *permission.Profile) PJOResponse {
	estimatedCost := decimal.Zero
	items := make([]CostItemResponse, 0, len(pjo.CostItems))
	for i := range pjo.CostItems {
		estimatedCost = estimatedCost.Add(pjo.CostItems[i].EstimatedAmount)
		items = append(items, toCostItemResponse(&pjo.CostItems[i], viewer))
	}

	res := PJOResponse{
		ID:                 pjo.ID.String(),
		PJONumber:          pjo.PJONumber,
		CustomerName:       pjo.CustomerName,
		Commodity:          pjo.Commodity,
		Origin:             pjo.Origin,
		Destination:        pjo.Destination,
		Status:             pjo.Status,
		Notes:              pjo.Notes,
		ApprovedBy:         formatUUID(pjo.ApprovedBy),
		ApprovedAt:         formatTime(pjo.ApprovedAt),
		RejectionReason:    pjo.RejectionReason,
		ConvertedAt:        formatTime(pjo.ConvertedAt),
		CostItems:          items,
		Progress:           finance.CalculatePJOProgress(costLines(pjo.CostItems)),
		CreatedAt:          pjo.CreatedAt.Format(time.RFC3339),
	}

	if permission.CanAccessFeature(viewer, permission.FeaturePJOViewRevenue) {
		res.TotalRevenue = decimalString(pjo.TotalRevenue)
	}
	if permission.CanAccessFeature(viewer, permission.FeatureJOViewCosts) {
		res.TotalEstimatedCost = decimalString(estimatedCost)
	}
	if permission.CanAccessFeature(viewer, permission.FeaturePJOViewProfit) {
		res.EstimatedProfit = decimalString(pjo.TotalRevenue.Sub(estimatedCost))
	}
	return res
}

func toJobOrderResponse(jo *model.JobOrder, viewer *permission.Profile) JobOrderResponse {
	res := JobOrderResponse{
		ID:           jo.ID.String(),
		JONumber:     jo.JONumber,
		PJOID:        jo.PJOID.String(),
		CustomerName: jo.CustomerName,
		Status:       jo.Status,
		HasOverruns:  jo.HasOverruns,
		CreatedAt:    jo.CreatedAt.Format(time.RFC3339),
	}
	if permission.CanAccessFeature(viewer, permission.FeatureJOViewFull) {
		res.FinalRevenue = decimalString(jo.FinalRevenue)
		res.Profit = decimalString(jo.FinalRevenue.Sub(jo.FinalCost))
	}
	if permission.CanAccessFeature(viewer, permission.FeatureJOViewCosts) {
		res.FinalCost = decimalString(jo.FinalCost)
	}
	return res
}
