package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roles-service/internal/apperrors"
	"roles-service/internal/models"
	"roles-service/internal/policy"
)

// PermissionRepositoryInterface defines database operations for the
// permission matrix.
type PermissionRepositoryInterface interface {
	Get(ctx context.Context, tenantID string, role policy.Role, module string) (*models.ModulePermission, error)
	SetCapability(ctx context.Context, tenantID string, role policy.Role, module string, cap models.Capability, value bool) (*models.ModulePermission, error)
	ListForRoles(ctx context.Context, tenantID string, roles []policy.Role, module string) ([]models.ModulePermission, error)
	ListByRole(ctx context.Context, tenantID string, role policy.Role) ([]models.ModulePermission, error)
}

// PermissionRepository handles database operations for the matrix
type PermissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository creates a new PermissionRepository
func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Get retrieves one matrix row. ErrNotFound means deny-by-default,
// not a failure; callers translate it to all-false capabilities.
func (r *PermissionRepository) Get(ctx context.Context, tenantID string, role policy.Role, module string) (*models.ModulePermission, error) {
	var perm models.ModulePermission
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ? AND module = ?", tenantID, role, module).
		First(&perm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.WrapTimeout("permission lookup", err)
	}
	return &perm, nil
}

// SetCapability upserts one capability flag. A fresh row starts with
// every flag false and only the named capability set; an existing row
// has only the named capability flipped. The ON CONFLICT clause makes
// the upsert atomic against concurrent writers.
func (r *PermissionRepository) SetCapability(ctx context.Context, tenantID string, role policy.Role, module string, cap models.Capability, value bool) (*models.ModulePermission, error) {
	column, ok := capabilityColumn(cap)
	if !ok {
		return nil, apperrors.NewValidationError("capability", "unknown capability "+string(cap))
	}

	row := models.ModulePermission{
		TenantID: tenantID,
		Role:     role,
		Module:   module,
	}
	caps := models.Capabilities{}.With(cap, value)
	row.CanRead = caps.CanRead
	row.CanCreate = caps.CanCreate
	row.CanUpdate = caps.CanUpdate
	row.CanDelete = caps.CanDelete
	row.CanApprove = caps.CanApprove

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "role"}, {Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("permission upsert", err)
	}

	return r.Get(ctx, tenantID, role, module)
}

// ListForRoles retrieves the matrix rows for a set of roles on one
// module. Roles without a row simply have no entry in the result.
func (r *PermissionRepository) ListForRoles(ctx context.Context, tenantID string, roles []policy.Role, module string) ([]models.ModulePermission, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var perms []models.ModulePermission
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role IN ? AND module = ?", tenantID, roles, module).
		Find(&perms).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("permission list", err)
	}
	return perms, nil
}

// ListByRole retrieves every matrix row of one role.
func (r *PermissionRepository) ListByRole(ctx context.Context, tenantID string, role policy.Role) ([]models.ModulePermission, error) {
	var perms []models.ModulePermission
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ?", tenantID, role).
		Order("module ASC").
		Find(&perms).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("permission list", err)
	}
	return perms, nil
}

func capabilityColumn(cap models.Capability) (string, bool) {
	switch cap {
	case models.CapabilityRead:
		return "can_read", true
	case models.CapabilityCreate:
		return "can_create", true
	case models.CapabilityUpdate:
		return "can_update", true
	case models.CapabilityDelete:
		return "can_delete", true
	case models.CapabilityApprove:
		return "can_approve", true
	}
	return "", false
}
