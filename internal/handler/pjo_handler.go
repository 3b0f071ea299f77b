package handler

import (
	"net/http"

	"freight-erp/internal/middleware"
	"freight-erp/internal/permission"
	"freight-erp/internal/service"
	"freight-erp/pkg/pagination"
	"freight-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type PJOHandler struct {
	pjoService service.PJOService
	auth       *middleware.Auth
}

func NewPJOHandler(pjoService service.PJOService, auth *middleware.Auth) *PJOHandler {
	return &PJOHandler{pjoService: pjoService, auth: auth}
}

func (h *PJOHandler) RegisterRoutes(router *gin.RouterGroup) {
	view := h.auth.RequireFeature(permission.FeaturePJOView)
	create := h.auth.RequireFeature(permission.FeaturePJOCreate)
	approve := h.auth.RequireFeature(permission.FeaturePJOApprove)
	fillCosts := h.auth.RequireFeature(permission.FeaturePJOFillCosts)

	pjos := router.Group("/pjos", h.auth.RequireAuth())
	{
		pjos.GET("", view, h.ListPJOs)
		pjos.POST("", create, h.CreatePJO)
		pjos.GET("/:id", view, h.GetPJO)
		pjos.GET("/:id/progress", view, h.GetProgress)
		pjos.POST("/:id/submit", create, h.SubmitPJO)
		pjos.POST("/:id/approve", approve, h.ApprovePJO)
		pjos.POST("/:id/reject", approve, h.RejectPJO)
		pjos.POST("/:id/cost-items/:itemId/preview", fillCosts, h.PreviewCostConfirmation)
		pjos.POST("/:id/cost-items/:itemId/confirm", fillCosts, h.ConfirmCostItem)
		pjos.POST("/:id/convert", h.auth.RequireFeature(permission.FeatureJOCreate), h.ConvertToJobOrder)
	}

	router.GET("/job-orders/:id", h.auth.RequireAuth(), view, h.GetJobOrder)
}

// CreatePJO creates a draft proforma job order with its estimated cost items
// @Summary      Create PJO
// @Tags         pjo
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePJORequest  true  "PJO with estimated costs"
// @Success      201      {object}  response.Response{data=service.PJOResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/pjos [post]
func (h *PJOHandler) CreatePJO(c *gin.Context) {
	var req service.CreatePJORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pjo, err := h.pjoService.CreatePJO(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pjo))
}

// ListPJOs returns a paginated list of PJOs. Revenue and profit are hidden from roles that may not see them.
// @Summary      List PJOs
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (draft, pending_approval, approved, rejected, converted)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.PJOResponse}
// @Router       /api/pjos [get]
func (h *PJOHandler) ListPJOs(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.PJOFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	pjos, total, err := h.pjoService.ListPJOs(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, pjos, params.Page, params.Limit, total))
}

// GetPJO returns a PJO with cost items and confirmation progress
// @Summary      Get PJO
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "PJO ID"
// @Success      200  {object}  response.Response{data=service.PJOResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/pjos/{id} [get]
func (h *PJOHandler) GetPJO(c *gin.Context) {
	pjo, err := h.pjoService.GetPJO(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pjo))
}

// GetProgress returns how many cost items are confirmed
// @Summary      Get PJO cost progress
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "PJO ID"
// @Success      200  {object}  response.Response{data=finance.Progress}
// @Failure      404  {object}  response.Response
// @Router       /api/pjos/{id}/progress [get]
func (h *PJOHandler) GetProgress(c *gin.Context) {
	progress, err := h.pjoService.GetProgress(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, progress))
}

// SubmitPJO sends a draft or rejected PJO for approval
// @Summary      Submit PJO
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "PJO ID"
// @Success      200  {object}  response.Response{data=service.PJOResponse}
// @Failure      422  {object}  response.Response
// @Router       /api/pjos/{id}/submit [post]
func (h *PJOHandler) SubmitPJO(c *gin.Context) {
	pjo, err := h.pjoService.SubmitPJO(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pjo))
}

// ApprovePJO approves a pending PJO
// @Summary      Approve PJO
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "PJO ID"
// @Success      200  {object}  response.Response{data=service.PJOResponse}
// @Failure      403  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/pjos/{id}/approve [post]
func (h *PJOHandler) ApprovePJO(c *gin.Context) {
	pjo, err := h.pjoService.ApprovePJO(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pjo))
}

// RejectPJO rejects a pending PJO with a reason
// @Summary      Reject PJO
// @Tags         pjo
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "PJO ID"
// @Param        payload  body      service.RejectPJORequest  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=service.PJOResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/pjos/{id}/reject [post]
func (h *PJOHandler) RejectPJO(c *gin.Context) {
	var req service.RejectPJORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pjo, err := h.pjoService.RejectPJO(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pjo))
}

// PreviewCostConfirmation shows the variance status an actual amount would produce
// @Summary      Preview cost confirmation
// @Tags         pjo
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "PJO ID"
// @Param        itemId   path      string                      true  "Cost item ID"
// @Param        payload  body      service.ConfirmCostRequest  true  "Actual amount"
// @Success      200      {object}  response.Response{data=service.CostPreviewResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/pjos/{id}/cost-items/{itemId}/preview [post]
func (h *PJOHandler) PreviewCostConfirmation(c *gin.Context) {
	var req service.ConfirmCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	preview, err := h.pjoService.PreviewCostConfirmation(c.Request.Context(), actor(c), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// ConfirmCostItem records the actual amount of a cost item
// @Summary      Confirm cost item
// @Description  Overruns require a justification
// @Tags         pjo
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "PJO ID"
// @Param        itemId   path      string                      true  "Cost item ID"
// @Param        payload  body      service.ConfirmCostRequest  true  "Actual amount and justification"
// @Success      200      {object}  response.Response{data=service.CostItemResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/pjos/{id}/cost-items/{itemId}/confirm [post]
func (h *PJOHandler) ConfirmCostItem(c *gin.Context) {
	var req service.ConfirmCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.pjoService.ConfirmCostItem(c.Request.Context(), actor(c), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// ConvertToJobOrder converts an approved, fully confirmed PJO into a job order
// @Summary      Convert PJO to job order
// @Tags         pjo
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "PJO ID"
// @Success      201  {object}  response.Response{data=service.JobOrderResponse}
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/pjos/{id}/convert [post]
func (h *PJOHandler) ConvertToJobOrder(c *gin.Context) {
	jo, err := h.pjoService.ConvertToJobOrder(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, jo))
}

// GetJobOrder returns a job order. Financial fields are shown per the caller's features.
// @Summary      Get job order
// @Tags         job-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Job order ID"
// @Success      200  {object}  response.Response{data=service.JobOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/job-orders/{id} [get]
func (h *PJOHandler) GetJobOrder(c *gin.Context) {
	jo, err := h.pjoService.GetJobOrder(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, jo))
}
