package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roles-service/internal/middleware"
	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/services"
)

// PermissionHandler handles HTTP requests for the permission matrix
type PermissionHandler struct {
	service *services.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// GetPermissions returns one matrix row
// @Summary Get capabilities of a role on a module
// @Tags Permissions
// @Produce json
// @Param role path string true "Role"
// @Param module path string true "Module"
// @Success 200 {object} models.Capabilities
// @Router /api/v1/permissions/{role}/{module} [get]
func (h *PermissionHandler) GetPermissions(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	role := policy.Role(c.Param("role"))
	module := c.Param("module")

	caps, err := h.service.Get(c.Request.Context(), tenantID, role, module)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":         role,
		"module":       module,
		"capabilities": caps,
	})
}

// SetCapabilityRequest is the body of a capability update.
type SetCapabilityRequest struct {
	Capability models.Capability `json:"capability" binding:"required"`
	Value      *bool             `json:"value" binding:"required"`
}

// SetCapability updates one capability flag
// @Summary Set one capability of a role on a module
// @Tags Permissions
// @Accept json
// @Produce json
// @Param role path string true "Role"
// @Param module path string true "Module"
// @Param request body SetCapabilityRequest true "Capability update"
// @Success 200 {object} models.ModulePermission
// @Router /api/v1/permissions/{role}/{module} [put]
func (h *PermissionHandler) SetCapability(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	role := policy.Role(c.Param("role"))
	module := c.Param("module")

	var req SetCapabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortBadRequest(c, err.Error())
		return
	}

	perm, err := h.service.SetCapability(c.Request.Context(), tenantID, role, module, req.Capability, *req.Value, middleware.GetUserID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, perm)
}

// ListByRole returns all matrix rows of a role
// @Summary List module permissions of a role
// @Tags Permissions
// @Produce json
// @Param role path string true "Role"
// @Success 200 {array} models.ModulePermission
// @Router /api/v1/permissions/{role} [get]
func (h *PermissionHandler) ListByRole(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	role := policy.Role(c.Param("role"))

	perms, err := h.service.ListByRole(c.Request.Context(), tenantID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

// EffectivePermissions returns a user's effective capabilities on a module
// @Summary Effective capabilities of a user on a module
// @Tags Permissions
// @Produce json
// @Param userId path string true "User ID"
// @Param module path string true "Module"
// @Success 200 {object} models.Capabilities
// @Router /api/v1/permissions/effective/{userId}/{module} [get]
func (h *PermissionHandler) EffectivePermissions(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	module := c.Param("module")

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		middleware.AbortBadRequest(c, "userId must be a valid UUID")
		return
	}

	caps, err := h.service.EffectivePermissions(c.Request.Context(), tenantID, userID, module)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":       userID,
		"module":       module,
		"capabilities": caps,
	})
}
