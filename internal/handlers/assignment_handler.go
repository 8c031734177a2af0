package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roles-service/internal/middleware"
	"roles-service/internal/services"
)

// AssignmentHandler handles HTTP requests for role assignments
type AssignmentHandler struct {
	service *services.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(service *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Grant assigns a role directly to a user
// @Summary Grant a role to a user
// @Tags Assignments
// @Accept json
// @Produce json
// @Param request body services.AdminGrantInput true "Grant"
// @Success 201 {object} models.UserRoleAssignment
// @Router /api/v1/assignments [post]
func (h *AssignmentHandler) Grant(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var input services.AdminGrantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.AbortBadRequest(c, err.Error())
		return
	}

	assignment, err := h.service.AdminGrant(c.Request.Context(), tenantID, middleware.GetUserID(c), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, assignment)
}

// Revoke removes an assignment
// @Summary Revoke an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /api/v1/assignments/{id} [delete]
func (h *AssignmentHandler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	if err := h.service.Revoke(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		if errors.Is(err, services.ErrAssignmentNotFound) {
			middleware.AbortNotFound(c, "assignment")
			return
		}
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetActiveRequest is the body of an activation toggle.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive toggles an assignment's active flag
// @Summary Activate or deactivate an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} models.UserRoleAssignment
// @Router /api/v1/assignments/{id}/active [patch]
func (h *AssignmentHandler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortBadRequest(c, err.Error())
		return
	}

	assignment, err := h.service.SetActive(c.Request.Context(), id, *req.Active, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrAssignmentNotFound) {
			middleware.AbortNotFound(c, "assignment")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// ListByUser lists a user's assignments
// @Summary List assignments of a user
// @Tags Assignments
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} models.UserRoleAssignment
// @Router /api/v1/assignments/user/{userId} [get]
func (h *AssignmentHandler) ListByUser(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		middleware.AbortBadRequest(c, "userId must be a valid UUID")
		return
	}

	assignments, err := h.service.ListUserAssignments(c.Request.Context(), tenantID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}
