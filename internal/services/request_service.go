package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"roles-service/internal/apperrors"
	"roles-service/internal/cache"
	"roles-service/internal/clients"
	"roles-service/internal/events"
	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/repository"
)

var (
	ErrRequestNotFound = errors.New("role change request not found")
)

// Attachment limits
const (
	MaxAttachmentSize = 10 << 20 // 10 MB
)

var allowedAttachmentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

var allowedAttachmentMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/png":  true,
}

// RequestService runs the role change request workflow: the
// self-service escalation path bounded by the policy graph. The
// approver role and requirements are snapshotted at submission and
// never recomputed.
type RequestService struct {
	repo       repository.RequestRepositoryInterface
	assignRepo repository.AssignmentRepositoryInterface
	docs       clients.DocumentClientInterface
	permCache  *cache.PermissionCache
	publisher  *events.Publisher
	logger     *logrus.Entry
}

// NewRequestService creates a new RequestService
func NewRequestService(repo repository.RequestRepositoryInterface, assignRepo repository.AssignmentRepositoryInterface, docs clients.DocumentClientInterface, permCache *cache.PermissionCache, publisher *events.Publisher, logger *logrus.Logger) *RequestService {
	return &RequestService{
		repo:       repo,
		assignRepo: assignRepo,
		docs:       docs,
		permCache:  permCache,
		publisher:  publisher,
		logger:     logger.WithField("component", "request-service"),
	}
}

// AttachmentInput is one file handed in with a submission.
type AttachmentInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitInput carries a role change submission.
type SubmitInput struct {
	RequestedRole policy.Role
	Reason        string
	Justification string
	District      string
	Files         []AttachmentInput
}

// Decision values accepted by Review.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Submit validates and persists a role change request. The request
// row is all-or-nothing; attachments are best-effort with per-file
// failures reported back to the caller.
func (s *RequestService) Submit(ctx context.Context, tenantID string, requesterID uuid.UUID, input SubmitInput) (*models.RoleChangeRequest, []models.AttachmentResult, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, nil, apperrors.NewValidationError("reason", "reason must not be empty")
	}
	if !policy.IsKnown(input.RequestedRole) {
		return nil, nil, apperrors.NewValidationError("requestedRole", "unknown role "+string(input.RequestedRole))
	}

	activeRoles, err := s.assignRepo.ListActiveRoles(ctx, tenantID, requesterID)
	if err != nil {
		return nil, nil, err
	}
	currentRole, err := policy.HighestRole(activeRoles)
	if err != nil {
		return nil, nil, err
	}

	ok, err := policy.CanEscalate(currentRole, input.RequestedRole)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.NewValidationError("requestedRole",
			fmt.Sprintf("role %s is not a self-service target of %s", input.RequestedRole, currentRole))
	}

	// Snapshot the approval policy at submission time. A later
	// catalog change never alters what this request needs.
	approverRole, requirements, err := policy.Resolve(currentRole, input.RequestedRole)
	if err != nil {
		return nil, nil, err
	}
	requirementStrings := make(pq.StringArray, 0, len(requirements))
	for _, r := range requirements {
		requirementStrings = append(requirementStrings, string(r))
	}

	request := &models.RoleChangeRequest{
		TenantID:             tenantID,
		RequesterID:          requesterID,
		TargetUserID:         requesterID,
		Status:               models.StatusSubmitted,
		CurrentRole:          currentRole,
		RequestedRole:        input.RequestedRole,
		RequiredApproverRole: approverRole,
		ApprovalRequirements: requirementStrings,
		Reason:               input.Reason,
		Justification:        input.Justification,
		District:             input.District,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, nil, err
	}

	s.appendRequestAudit(ctx, s.repo, request, models.AuditActionRequestCreated, requesterID, nil)
	s.publisher.PublishRequest(events.SubjectRequestCreated, request, requesterID)

	results := s.storeAttachments(ctx, request, input.Files)

	return request, results, nil
}

// storeAttachments validates and uploads the submission's files, one
// goroutine per file. A failed file never fails the batch; the only
// shared state is the result slot each goroutine owns.
func (s *RequestService) storeAttachments(ctx context.Context, request *models.RoleChangeRequest, files []AttachmentInput) []models.AttachmentResult {
	if len(files) == 0 {
		return nil
	}

	results := make([]models.AttachmentResult, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		results[i] = models.AttachmentResult{Filename: file.Filename}

		if err := validateAttachment(file); err != nil {
			results[i].Error = err.Error()
			continue
		}

		wg.Add(1)
		go func(i int, file AttachmentInput) {
			defer wg.Done()
			ref, err := s.docs.Store(ctx, request.TenantID, request.RequesterID, file.Filename, file.Data)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Stored = true
			results[i].Reference = ref
		}(i, file)
	}
	wg.Wait()

	var stored []string
	for _, r := range results {
		if r.Stored {
			stored = append(stored, r.Reference)
		}
	}
	if len(stored) > 0 {
		if err := s.repo.AppendAttachments(ctx, request.ID, stored); err != nil {
			s.logger.WithError(err).WithField("requestId", request.ID).Error("Failed to record attachment references")
		} else {
			request.Attachments = pq.StringArray(stored)
		}
	}

	return results
}

// validateAttachment enforces the type allow-list and the size
// ceiling locally, before any byte reaches the blob store.
func validateAttachment(file AttachmentInput) error {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAttachmentExtensions[ext] {
		return apperrors.NewValidationError("file", fmt.Sprintf("file type %q is not allowed", ext))
	}
	if file.ContentType != "" && !allowedAttachmentMIMETypes[file.ContentType] {
		return apperrors.NewValidationError("file", fmt.Sprintf("content type %q is not allowed", file.ContentType))
	}
	if len(file.Data) > MaxAttachmentSize {
		return apperrors.NewValidationError("file", fmt.Sprintf("file exceeds the %d byte limit", MaxAttachmentSize))
	}
	if len(file.Data) == 0 {
		return apperrors.NewValidationError("file", "file is empty")
	}
	return nil
}

// StartReview moves a submitted request under review by an authorized
// reviewer.
func (s *RequestService) StartReview(ctx context.Context, requestID, reviewerID uuid.UUID, reviewerRole policy.Role) (*models.RoleChangeRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if request.Status != models.StatusSubmitted {
		return nil, apperrors.NewConflictError("request is not in submitted state")
	}
	if err := s.authorizeReviewer(reviewerRole, request); err != nil {
		return nil, err
	}

	// CAS from submitted only: of two concurrent reviewers exactly one
	// moves the request under review.
	if err := s.repo.UpdateStatus(ctx, request, models.StatusUnderReview, []string{models.StatusSubmitted}, nil); err != nil {
		return nil, err
	}

	s.appendRequestAudit(ctx, s.repo, request, models.AuditActionRequestUnderReview, reviewerID, nil)
	return request, nil
}

// Review decides a request. The transition, the granted assignment
// and the audit entry run in one transaction; the compare-and-set on
// status guarantees that of two concurrent reviews exactly one
// succeeds and exactly one assignment and audit entry exist.
func (s *RequestService) Review(ctx context.Context, requestID uuid.UUID, decision string, reviewerID uuid.UUID, reviewerRole policy.Role, comment string) (*models.RoleChangeRequest, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperrors.NewValidationError("decision", "decision must be approve or reject")
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if request.IsTerminal() {
		return nil, apperrors.NewConflictError("request has already been decided")
	}
	if err := s.authorizeReviewer(reviewerRole, request); err != nil {
		return nil, err
	}

	newStatus := models.StatusApproved
	auditAction := models.AuditActionRequestApproved
	if decision == DecisionReject {
		newStatus = models.StatusRejected
		auditAction = models.AuditActionRequestRejected
	}

	now := time.Now()
	err = s.repo.WithTransaction(ctx, func(txRepo repository.RequestRepositoryInterface) error {
		txRequest, err := txRepo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if txRequest.IsTerminal() {
			return apperrors.NewConflictError("request has already been decided")
		}

		updates := map[string]interface{}{
			"reviewed_by":    reviewerID,
			"reviewed_role":  reviewerRole,
			"review_comment": comment,
			"decided_at":     now,
		}
		if err := txRepo.UpdateStatus(ctx, txRequest, newStatus, models.ReviewableStatuses, updates); err != nil {
			return err
		}

		if newStatus == models.StatusApproved {
			assignment := &models.UserRoleAssignment{
				TenantID:   txRequest.TenantID,
				UserID:     txRequest.TargetUserID,
				Role:       txRequest.RequestedRole,
				IsActive:   true,
				AssignedBy: reviewerID,
				District:   txRequest.District,
			}
			if err := txRepo.CreateAssignment(ctx, assignment); err != nil {
				return err
			}
		}

		s.appendRequestAudit(ctx, txRepo, txRequest, auditAction, reviewerID, map[string]interface{}{
			"comment": comment,
		})

		request = txRequest
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.ReviewedBy = &reviewerID
	request.ReviewedRole = reviewerRole
	request.ReviewComment = comment
	request.DecidedAt = &now

	if newStatus == models.StatusApproved {
		s.invalidate(ctx, request.TenantID, request.TargetUserID)
		s.publisher.PublishRequest(events.SubjectRequestApproved, request, reviewerID)
	} else {
		s.publisher.PublishRequest(events.SubjectRequestRejected, request, reviewerID)
	}

	return request, nil
}

// Cancel terminates a request on behalf of its requester. Cancelled
// is a terminal state, never a delete.
func (s *RequestService) Cancel(ctx context.Context, requestID, requesterID uuid.UUID) (*models.RoleChangeRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if request.RequesterID != requesterID {
		return nil, apperrors.NewValidationError("requester", "only the original requester can cancel the request")
	}
	if request.IsTerminal() {
		return nil, apperrors.NewConflictError("request has already been decided")
	}

	if err := s.repo.UpdateStatus(ctx, request, models.StatusCancelled, models.ReviewableStatuses, nil); err != nil {
		return nil, err
	}

	s.appendRequestAudit(ctx, s.repo, request, models.AuditActionRequestCancelled, requesterID, nil)
	s.publisher.PublishRequest(events.SubjectRequestCancelled, request, requesterID)

	return request, nil
}

// Get retrieves a request by ID.
func (s *RequestService) Get(ctx context.Context, requestID uuid.UUID) (*models.RoleChangeRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return request, nil
}

// ListPending lists requests awaiting an approver role.
func (s *RequestService) ListPending(ctx context.Context, tenantID string, approverRole policy.Role, status string, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	return s.repo.ListPending(ctx, tenantID, approverRole, status, limit, offset)
}

// ListMyRequests lists requests submitted by a user.
func (s *RequestService) ListMyRequests(ctx context.Context, tenantID string, requesterID uuid.UUID, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	return s.repo.ListByRequester(ctx, tenantID, requesterID, limit, offset)
}

// GetHistory retrieves the audit trail of one request.
func (s *RequestService) GetHistory(ctx context.Context, tenantID string, requestID uuid.UUID) ([]models.AuditLogEntry, error) {
	return s.repo.GetHistory(ctx, tenantID, requestID)
}

// authorizeReviewer enforces the reviewer bound: the snapshotted
// approver role, or any role of strictly higher level.
func (s *RequestService) authorizeReviewer(reviewerRole policy.Role, request *models.RoleChangeRequest) error {
	ok, err := policy.HasAuthorityOver(reviewerRole, request.RequiredApproverRole)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewValidationError("reviewerRole",
			fmt.Sprintf("role %s cannot review a request requiring %s", reviewerRole, request.RequiredApproverRole))
	}
	return nil
}

func (s *RequestService) appendRequestAudit(ctx context.Context, repo repository.RequestRepositoryInterface, request *models.RoleChangeRequest, action string, actorID uuid.UUID, extra map[string]interface{}) {
	meta := map[string]interface{}{
		"request_id": request.ID.String(),
	}
	for k, v := range extra {
		meta[k] = v
	}
	metadata, _ := json.Marshal(meta)

	entry := &models.AuditLogEntry{
		TenantID:    request.TenantID,
		UserID:      request.TargetUserID,
		Action:      action,
		OldRole:     request.CurrentRole,
		NewRole:     request.RequestedRole,
		PerformedBy: actorID,
		Reason:      request.Reason,
		District:    request.District,
		Metadata:    datatypes.JSON(metadata),
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", action).Error("Failed to write audit entry")
	}
}

func (s *RequestService) invalidate(ctx context.Context, tenantID string, userID uuid.UUID) {
	if s.permCache == nil {
		return
	}
	if err := s.permCache.InvalidateUser(ctx, tenantID, userID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate permission cache")
	}
}
