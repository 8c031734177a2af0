package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roles-service/internal/middleware"
	"roles-service/internal/repository"
	"roles-service/internal/services"
)

// AuditHandler handles HTTP requests for the role audit log
type AuditHandler struct {
	service *services.AssignmentService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service *services.AssignmentService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List returns audit entries, newest first
// @Summary List role audit entries
// @Tags Audit
// @Produce json
// @Param userId query string false "Filter by subject user"
// @Param action query string false "Filter by action"
// @Param district query string false "Filter by district"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.AuditLogEntry
// @Router /api/v1/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset := pagination(c)

	filters := repository.AuditFilters{
		Action:   c.Query("action"),
		District: c.Query("district"),
	}
	if raw := c.Query("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			middleware.AbortBadRequest(c, "userId must be a valid UUID")
			return
		}
		filters.UserID = &userID
	}

	entries, total, err := h.service.ListAuditLogs(c.Request.Context(), tenantID, filters, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
