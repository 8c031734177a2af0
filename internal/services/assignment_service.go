package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roles-service/internal/apperrors"
	"roles-service/internal/cache"
	"roles-service/internal/events"
	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/repository"
)

var (
	ErrAssignmentNotFound = errors.New("role assignment not found")
)

// AssignmentService is the administrative direct-grant path over the
// user-role relation. Unlike the self-service request workflow it is
// deliberately NOT bounded by the escalation graph: an admin may grant
// any catalog role. The two entry points are kept separate so the
// weaker guard of one can never leak into the other.
type AssignmentService struct {
	repo      repository.AssignmentRepositoryInterface
	permCache *cache.PermissionCache
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(repo repository.AssignmentRepositoryInterface, permCache *cache.PermissionCache, publisher *events.Publisher, logger *logrus.Logger) *AssignmentService {
	return &AssignmentService{
		repo:      repo,
		permCache: permCache,
		publisher: publisher,
		logger:    logger.WithField("component", "assignment-service"),
	}
}

// AdminGrantInput carries an administrative role grant.
type AdminGrantInput struct {
	UserID    uuid.UUID   `json:"userId" binding:"required"`
	Role      policy.Role `json:"role" binding:"required"`
	District  string      `json:"district,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}

// AdminGrant assigns a role directly. The (user, role) unique
// constraint makes the duplicate check atomic: an assignment row
// already existing for the pair, active or not, yields ConflictError.
func (s *AssignmentService) AdminGrant(ctx context.Context, tenantID string, assignedBy uuid.UUID, input AdminGrantInput) (*models.UserRoleAssignment, error) {
	if !policy.IsKnown(input.Role) {
		return nil, apperrors.NewValidationError("role", "unknown role "+string(input.Role))
	}

	assignment := &models.UserRoleAssignment{
		TenantID:   tenantID,
		UserID:     input.UserID,
		Role:       input.Role,
		IsActive:   true,
		AssignedBy: assignedBy,
		District:   input.District,
		ExpiresAt:  input.ExpiresAt,
	}

	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &models.AuditLogEntry{
		TenantID:    tenantID,
		UserID:      input.UserID,
		Action:      models.AuditActionAssigned,
		NewRole:     input.Role,
		PerformedBy: assignedBy,
		District:    input.District,
	})
	s.invalidate(ctx, tenantID, input.UserID)
	s.publisher.PublishAssignment(events.SubjectRoleAssigned, assignment, assignedBy)

	return assignment, nil
}

// Revoke hard-deletes an assignment. History survives only in the
// audit trail.
func (s *AssignmentService) Revoke(ctx context.Context, assignmentID, performedBy uuid.UUID) error {
	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, assignmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.appendAudit(ctx, &models.AuditLogEntry{
		TenantID:    assignment.TenantID,
		UserID:      assignment.UserID,
		Action:      models.AuditActionRevoked,
		OldRole:     assignment.Role,
		PerformedBy: performedBy,
		District:    assignment.District,
	})
	s.invalidate(ctx, assignment.TenantID, assignment.UserID)
	s.publisher.PublishAssignment(events.SubjectRoleRevoked, assignment, performedBy)

	return nil
}

// SetActive toggles an assignment's active flag. Effective
// permissions reflect the change immediately through cache
// invalidation.
func (s *AssignmentService) SetActive(ctx context.Context, assignmentID uuid.UUID, active bool, performedBy uuid.UUID) (*models.UserRoleAssignment, error) {
	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if assignment.IsActive == active {
		return assignment, nil
	}

	if err := s.repo.SetActive(ctx, assignmentID, active); err != nil {
		return nil, err
	}
	assignment.IsActive = active

	action := models.AuditActionActivated
	subject := events.SubjectRoleActivated
	if !active {
		action = models.AuditActionDeactivated
		subject = events.SubjectRoleDeactivated
	}

	s.appendAudit(ctx, &models.AuditLogEntry{
		TenantID:    assignment.TenantID,
		UserID:      assignment.UserID,
		Action:      action,
		OldRole:     assignment.Role,
		NewRole:     assignment.Role,
		PerformedBy: performedBy,
		District:    assignment.District,
	})
	s.invalidate(ctx, assignment.TenantID, assignment.UserID)
	s.publisher.PublishAssignment(subject, assignment, performedBy)

	return assignment, nil
}

// ListUserAssignments returns all assignments of a user.
func (s *AssignmentService) ListUserAssignments(ctx context.Context, tenantID string, userID uuid.UUID) ([]models.UserRoleAssignment, error) {
	return s.repo.ListByUser(ctx, tenantID, userID)
}

// ListAuditLogs returns the audit trail for a tenant.
func (s *AssignmentService) ListAuditLogs(ctx context.Context, tenantID string, filters repository.AuditFilters, limit, offset int) ([]models.AuditLogEntry, int64, error) {
	return s.repo.ListAuditLogs(ctx, tenantID, filters, limit, offset)
}

// DeactivateExpired flips assignments whose expiry passed and audits
// each as a deactivation performed by the system. Called by the
// background expiry job.
func (s *AssignmentService) DeactivateExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.DeactivateExpired(ctx)
	if err != nil {
		return 0, err
	}

	for i := range expired {
		a := &expired[i]
		s.appendAudit(ctx, &models.AuditLogEntry{
			TenantID:    a.TenantID,
			UserID:      a.UserID,
			Action:      models.AuditActionDeactivated,
			OldRole:     a.Role,
			NewRole:     a.Role,
			PerformedBy: a.UserID,
			Reason:      "assignment expired",
			District:    a.District,
		})
		s.invalidate(ctx, a.TenantID, a.UserID)
		s.publisher.PublishAssignment(events.SubjectRoleDeactivated, a, a.UserID)
	}

	return len(expired), nil
}

func (s *AssignmentService) appendAudit(ctx context.Context, entry *models.AuditLogEntry) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Error("Failed to write audit entry")
	}
}

func (s *AssignmentService) invalidate(ctx context.Context, tenantID string, userID uuid.UUID) {
	if s.permCache == nil {
		return
	}
	if err := s.permCache.InvalidateUser(ctx, tenantID, userID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate permission cache")
	}
}
