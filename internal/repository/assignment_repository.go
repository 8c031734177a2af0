package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"roles-service/internal/apperrors"
	"roles-service/internal/models"
	"roles-service/internal/policy"
)

var (
	ErrNotFound = errors.New("not found")
)

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// AssignmentRepositoryInterface defines database operations for role
// assignments and the audit trail they produce.
type AssignmentRepositoryInterface interface {
	Create(ctx context.Context, assignment *models.UserRoleAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserRoleAssignment, error)
	ListByUser(ctx context.Context, tenantID string, userID uuid.UUID) ([]models.UserRoleAssignment, error)
	ListActiveRoles(ctx context.Context, tenantID string, userID uuid.UUID) ([]policy.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	DeactivateExpired(ctx context.Context) ([]models.UserRoleAssignment, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, tenantID string, filters AuditFilters, limit, offset int) ([]models.AuditLogEntry, int64, error)
}

// AuditFilters narrows an audit log listing.
type AuditFilters struct {
	UserID   *uuid.UUID
	Action   string
	District string
}

// AssignmentRepository handles database operations for assignments
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment row. The (tenant, user, role) unique
// index is the atomic duplicate check: concurrent grants of the same
// role cannot both succeed, the loser gets a ConflictError.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.UserRoleAssignment) error {
	err := r.db.WithContext(ctx).Create(assignment).Error
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("user already holds an assignment for role " + string(assignment.Role))
		}
		return apperrors.WrapTimeout("assignment insert", err)
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserRoleAssignment, error) {
	var assignment models.UserRoleAssignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.WrapTimeout("assignment lookup", err)
	}
	return &assignment, nil
}

// ListByUser retrieves all assignments of a user, active or not.
func (r *AssignmentRepository) ListByUser(ctx context.Context, tenantID string, userID uuid.UUID) ([]models.UserRoleAssignment, error) {
	var assignments []models.UserRoleAssignment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("assignment list", err)
	}
	return assignments, nil
}

// ListActiveRoles returns the roles of the user's active assignments
// only. Deactivated assignments contribute nothing.
func (r *AssignmentRepository) ListActiveRoles(ctx context.Context, tenantID string, userID uuid.UUID) ([]policy.Role, error) {
	var roles []policy.Role
	err := r.db.WithContext(ctx).Model(&models.UserRoleAssignment{}).
		Where("tenant_id = ? AND user_id = ? AND is_active = ?", tenantID, userID, true).
		Pluck("role", &roles).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("active role list", err)
	}
	return roles, nil
}

// Delete hard-deletes an assignment. There is no undo.
func (r *AssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserRoleAssignment{})
	if result.Error != nil {
		return apperrors.WrapTimeout("assignment delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles the active flag in place.
func (r *AssignmentRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.UserRoleAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.WrapTimeout("assignment update", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateExpired deactivates assignments whose expiry has passed
// and returns the rows that were flipped so the caller can audit each
// one.
func (r *AssignmentRepository) DeactivateExpired(ctx context.Context) ([]models.UserRoleAssignment, error) {
	now := time.Now()

	var expired []models.UserRoleAssignment
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Find(&expired).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("expired assignment scan", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, a := range expired {
		ids = append(ids, a.ID)
	}

	result := r.db.WithContext(ctx).Model(&models.UserRoleAssignment{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, apperrors.WrapTimeout("expired assignment update", result.Error)
	}
	return expired, nil
}

// CreateAuditLog appends an audit entry. Entries are append-only.
func (r *AssignmentRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperrors.WrapTimeout("audit insert", err)
	}
	return nil
}

// ListAuditLogs retrieves audit entries for a tenant, newest first.
func (r *AssignmentRepository) ListAuditLogs(ctx context.Context, tenantID string, filters AuditFilters, limit, offset int) ([]models.AuditLogEntry, int64, error) {
	var entries []models.AuditLogEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AuditLogEntry{}).
		Where("tenant_id = ?", tenantID)

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.District != "" {
		query = query.Where("district = ?", filters.District)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapTimeout("audit count", err)
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.WrapTimeout("audit list", err)
	}
	return entries, total, nil
}
