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

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs", h.auth.RequireAuth(), h.auth.RequireFeature(permission.FeatureAuditView))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns the audit trail, newest first
// @Summary      Get audit logs
// @Description  Retrieves audit entries, optionally filtered by entity or action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query     string  false  "Entity type (user, invoice, payment, pjo, job_order)"
// @Param        entity_id    query     string  false  "Entity ID"
// @Param        action       query     string  false  "Action name"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=[]service.AuditLogResponse}
// @Failure      403          {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.AuditFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		Page:       params.Page,
		Limit:      params.Limit,
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, params.Page, params.Limit, total))
}
