package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roles-service/internal/middleware"
	"roles-service/internal/policy"
	"roles-service/internal/services"
)

// RequestHandler handles HTTP requests for the role change workflow
type RequestHandler struct {
	service *services.RequestService
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(service *services.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit files a role change request with optional attachments
// @Summary Submit a role change request
// @Tags RoleRequests
// @Accept multipart/form-data
// @Produce json
// @Param requestedRole formData string true "Requested role"
// @Param reason formData string true "Reason"
// @Param justification formData string false "Justification"
// @Param district formData string false "District"
// @Param files formData file false "Supporting documents"
// @Success 201 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	requesterID := middleware.GetUserID(c)

	input := services.SubmitInput{
		RequestedRole: policy.Role(c.PostForm("requestedRole")),
		Reason:        c.PostForm("reason"),
		Justification: c.PostForm("justification"),
		District:      c.PostForm("district"),
	}

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		for _, header := range form.File["files"] {
			file, err := header.Open()
			if err != nil {
				middleware.AbortBadRequest(c, "could not read uploaded file "+header.Filename)
				return
			}
			data, err := io.ReadAll(io.LimitReader(file, services.MaxAttachmentSize+1))
			file.Close()
			if err != nil {
				middleware.AbortBadRequest(c, "could not read uploaded file "+header.Filename)
				return
			}
			input.Files = append(input.Files, services.AttachmentInput{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	request, attachments, err := h.service.Submit(c.Request.Context(), tenantID, requesterID, input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"request":     request,
		"attachments": attachments,
	})
}

// ListPending lists requests awaiting the caller's approver role
// @Summary List pending requests for the caller's role
// @Tags RoleRequests
// @Produce json
// @Param status query string false "Status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.RoleChangeRequest
// @Router /api/v1/role-requests/pending [get]
func (h *RequestHandler) ListPending(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset := pagination(c)

	requests, total, err := h.service.ListPending(c.Request.Context(), tenantID, middleware.GetUserRole(c), c.Query("status"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListMine lists the caller's own requests
// @Summary List the caller's submitted requests
// @Tags RoleRequests
// @Produce json
// @Success 200 {array} models.RoleChangeRequest
// @Router /api/v1/role-requests/my-requests [get]
func (h *RequestHandler) ListMine(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset := pagination(c)

	requests, total, err := h.service.ListMyRequests(c.Request.Context(), tenantID, middleware.GetUserID(c), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get retrieves one request
// @Summary Get a role change request
// @Tags RoleRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	request, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			middleware.AbortNotFound(c, "role change request")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// StartReview moves a request under review
// @Summary Start reviewing a request
// @Tags RoleRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests/{id}/start-review [post]
func (h *RequestHandler) StartReview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	request, err := h.service.StartReview(c.Request.Context(), id, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			middleware.AbortNotFound(c, "role change request")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ReviewRequestBody carries the optional review comment.
type ReviewRequestBody struct {
	Comment string `json:"comment"`
}

// Approve approves a request
// @Summary Approve a role change request
// @Tags RoleRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body ReviewRequestBody false "Review comment"
// @Success 200 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	h.review(c, services.DecisionApprove)
}

// Reject rejects a request
// @Summary Reject a role change request
// @Tags RoleRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body ReviewRequestBody false "Review comment"
// @Success 200 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	h.review(c, services.DecisionReject)
}

func (h *RequestHandler) review(c *gin.Context, decision string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	var body ReviewRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.AbortBadRequest(c, err.Error())
			return
		}
	}

	request, err := h.service.Review(c.Request.Context(), id, decision, middleware.GetUserID(c), middleware.GetUserRole(c), body.Comment)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			middleware.AbortNotFound(c, "role change request")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// Cancel withdraws the caller's own request
// @Summary Cancel a role change request
// @Tags RoleRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.RoleChangeRequest
// @Router /api/v1/role-requests/{id} [delete]
func (h *RequestHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	request, err := h.service.Cancel(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			middleware.AbortNotFound(c, "role change request")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// History returns the audit trail of one request
// @Summary Get the audit history of a request
// @Tags RoleRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {array} models.AuditLogEntry
// @Router /api/v1/role-requests/{id}/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortBadRequest(c, "id must be a valid UUID")
		return
	}

	entries, err := h.service.GetHistory(c.Request.Context(), tenantID, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
