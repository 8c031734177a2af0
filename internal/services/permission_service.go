package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"roles-service/internal/apperrors"
	"roles-service/internal/cache"
	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/repository"
)

// PermissionService answers capability questions from the permission
// matrix. Matrix rows are per (role, module); a user's effective
// permissions are the OR across their active role assignments.
type PermissionService struct {
	permRepo   repository.PermissionRepositoryInterface
	assignRepo repository.AssignmentRepositoryInterface
	permCache  *cache.PermissionCache
	logger     *logrus.Entry
}

// NewPermissionService creates a new PermissionService
func NewPermissionService(permRepo repository.PermissionRepositoryInterface, assignRepo repository.AssignmentRepositoryInterface, permCache *cache.PermissionCache, logger *logrus.Logger) *PermissionService {
	return &PermissionService{
		permRepo:   permRepo,
		assignRepo: assignRepo,
		permCache:  permCache,
		logger:     logger.WithField("component", "permission-service"),
	}
}

// Get returns the matrix row for (role, module). A missing row is not
// an error: it means deny-by-default, all capabilities false.
func (s *PermissionService) Get(ctx context.Context, tenantID string, role policy.Role, module string) (models.Capabilities, error) {
	if !policy.IsKnown(role) {
		return models.Capabilities{}, apperrors.NewValidationError("role", "unknown role "+string(role))
	}

	perm, err := s.permRepo.Get(ctx, tenantID, role, module)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Capabilities{}, nil
		}
		return models.Capabilities{}, err
	}
	return perm.Capabilities(), nil
}

// SetCapability flips one capability on a matrix row with upsert
// semantics: a fresh row grants only the named capability, an
// existing row changes only the named capability. Every change is
// audited and invalidates the tenant's permission cache.
func (s *PermissionService) SetCapability(ctx context.Context, tenantID string, role policy.Role, module string, cap models.Capability, value bool, performedBy uuid.UUID) (*models.ModulePermission, error) {
	if !policy.IsKnown(role) {
		return nil, apperrors.NewValidationError("role", "unknown role "+string(role))
	}
	if module == "" {
		return nil, apperrors.NewValidationError("module", "module must not be empty")
	}
	if !cap.IsValid() {
		return nil, apperrors.NewValidationError("capability", "unknown capability "+string(cap))
	}

	perm, err := s.permRepo.SetCapability(ctx, tenantID, role, module, cap, value)
	if err != nil {
		return nil, err
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"module":     module,
		"capability": string(cap),
		"value":      value,
	})
	s.appendAudit(ctx, &models.AuditLogEntry{
		TenantID:    tenantID,
		UserID:      performedBy,
		Action:      models.AuditActionPermissionChanged,
		NewRole:     role,
		PerformedBy: performedBy,
		Metadata:    datatypes.JSON(metadata),
	})

	if s.permCache != nil {
		if err := s.permCache.InvalidateTenant(ctx, tenantID); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate permission cache")
		}
	}

	return perm, nil
}

// ListByRole returns every matrix row of a role.
func (s *PermissionService) ListByRole(ctx context.Context, tenantID string, role policy.Role) ([]models.ModulePermission, error) {
	if !policy.IsKnown(role) {
		return nil, apperrors.NewValidationError("role", "unknown role "+string(role))
	}
	return s.permRepo.ListByRole(ctx, tenantID, role)
}

// EffectivePermissions computes the OR of the matrix entries of the
// user's active assignments on one module. A user with no active
// assignment has no capabilities anywhere.
func (s *PermissionService) EffectivePermissions(ctx context.Context, tenantID string, userID uuid.UUID, module string) (models.Capabilities, error) {
	if s.permCache != nil {
		cached, err := s.permCache.Get(ctx, tenantID, userID, module)
		if err != nil {
			s.logger.WithError(err).Warn("Permission cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	roles, err := s.assignRepo.ListActiveRoles(ctx, tenantID, userID)
	if err != nil {
		return models.Capabilities{}, err
	}
	if len(roles) == 0 {
		return models.Capabilities{}, nil
	}

	perms, err := s.permRepo.ListForRoles(ctx, tenantID, roles, module)
	if err != nil {
		return models.Capabilities{}, err
	}

	var effective models.Capabilities
	for _, p := range perms {
		effective = effective.Or(p.Capabilities())
	}

	if s.permCache != nil {
		if err := s.permCache.Set(ctx, tenantID, userID, module, effective); err != nil {
			s.logger.WithError(err).Warn("Permission cache write failed")
		}
	}

	return effective, nil
}

func (s *PermissionService) appendAudit(ctx context.Context, entry *models.AuditLogEntry) {
	if err := s.assignRepo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Error("Failed to write audit entry")
	}
}
