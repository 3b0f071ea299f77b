package handler

import (
	"net/http"
	"time"

	"freight-erp/internal/middleware"
	"freight-erp/internal/permission"
	"freight-erp/internal/service"
	"freight-erp/pkg/pagination"
	"freight-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	paymentService service.PaymentService
	auth           *middleware.Auth
	now            func() time.Time
}

func NewInvoiceHandler(invoiceService service.InvoiceService, paymentService service.PaymentService, auth *middleware.Auth) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
		auth:           auth,
		now:            time.Now,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	view := h.auth.RequireFeature(permission.FeatureInvoicesView)
	manage := h.auth.RequireFeature(permission.FeatureInvoicesManage)
	record := h.auth.RequireFeature(permission.FeaturePaymentsRecord)

	invoices := router.Group("/invoices", h.auth.RequireAuth())
	{
		invoices.GET("", view, h.ListInvoices)
		invoices.POST("", manage, h.CreateInvoice)
		invoices.POST("/overdue-sweep", h.auth.RequireRole(permission.RoleAdmin, permission.RoleFinance), manage, h.RunOverdueSweep)
		invoices.GET("/:id", view, h.GetInvoice)
		invoices.PATCH("/:id/status", manage, h.ChangeStatus)

		invoices.GET("/:id/payments", view, h.ListPayments)
		invoices.POST("/:id/payments", record, h.RecordPayment)
		invoices.DELETE("/:id/payments/:paymentId", record, h.DeletePayment)
	}
}

// CreateInvoice creates a draft invoice
// @Summary      Create invoice
// @Description  Creates a draft invoice, optionally linked to a job order
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Description  Retrieves a paginated list of invoices, optionally filtered by status, number or job order
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status        query     string  false  "Filter by status (draft, sent, partial, paid, overdue, cancelled)"
// @Param        invoice_no    query     string  false  "Partial match on invoice number"
// @Param        job_order_id  query     string  false  "Filter by job order"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Number of items per page (default 20)"
// @Success      200           {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      403           {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.InvoiceFilter{
		Status:     c.Query("status"),
		InvoiceNo:  c.Query("invoice_no"),
		JobOrderID: c.Query("job_order_id"),
		Page:       params.Page,
		Limit:      params.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, params.Page, params.Limit, total))
}

// GetInvoice returns one invoice with its payments
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ChangeStatus moves an invoice to sent or cancelled
// @Summary      Change invoice status
// @Description  Manual transitions only; paid, partial and overdue are derived from payments and due dates
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Invoice ID"
// @Param        payload  body      service.ChangeInvoiceStatusRequest  true  "Target status"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/status [patch]
func (h *InvoiceHandler) ChangeStatus(c *gin.Context) {
	var req service.ChangeInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.ChangeStatus(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// RunOverdueSweep marks every unpaid invoice past its due date as overdue
// @Summary      Run overdue sweep
// @Description  Runs the same sweep as the background job, immediately
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.OverdueSweepResult}
// @Failure      403  {object}  response.Response
// @Router       /api/invoices/overdue-sweep [post]
func (h *InvoiceHandler) RunOverdueSweep(c *gin.Context) {
	result, err := h.invoiceService.MarkOverdue(c.Request.Context(), h.now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListPayments returns the payments recorded against an invoice
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.PaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// RecordPayment records a payment and recomputes the invoice status
// @Summary      Record payment
// @Description  Records a payment. Overpayments are accepted and flagged with is_overpayment.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.RecordPaymentRequest  true  "Payment"
// @Success      201      {object}  response.Response{data=service.PaymentResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// DeletePayment removes a payment and recomputes the invoice status
// @Summary      Delete payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id         path      string  true  "Invoice ID"
// @Param        paymentId  path      string  true  "Payment ID"
// @Success      200        {object}  response.Response{data=service.PaymentResult}
// @Failure      404        {object}  response.Response
// @Router       /api/invoices/{id}/payments/{paymentId} [delete]
func (h *InvoiceHandler) DeletePayment(c *gin.Context) {
	result, err := h.paymentService.DeletePayment(c.Request.Context(), actor(c), c.Param("id"), c.Param("paymentId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
