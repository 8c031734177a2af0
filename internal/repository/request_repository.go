package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"roles-service/internal/apperrors"
	"roles-service/internal/models"
	"roles-service/internal/policy"
)

// RequestRepositoryInterface defines database operations for the
// role change request workflow. Assignment and audit writes are part
// of the interface so an approval can run them inside one
// transaction.
type RequestRepositoryInterface interface {
	Create(ctx context.Context, request *models.RoleChangeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RoleChangeRequest, error)
	ListPending(ctx context.Context, tenantID string, approverRole policy.Role, status string, limit, offset int) ([]models.RoleChangeRequest, int64, error)
	ListByRequester(ctx context.Context, tenantID string, requesterID uuid.UUID, limit, offset int) ([]models.RoleChangeRequest, int64, error)
	UpdateStatus(ctx context.Context, request *models.RoleChangeRequest, newStatus string, fromStatuses []string, updates map[string]interface{}) error
	AppendAttachments(ctx context.Context, id uuid.UUID, references []string) error
	GetHistory(ctx context.Context, tenantID string, requestID uuid.UUID) ([]models.AuditLogEntry, error)

	CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error

	WithTransaction(ctx context.Context, fn func(txRepo RequestRepositoryInterface) error) error
}

// RequestRepository handles database operations for requests
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create persists a new request
func (r *RequestRepository) Create(ctx context.Context, request *models.RoleChangeRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return apperrors.WrapTimeout("request insert", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RoleChangeRequest, error) {
	var request models.RoleChangeRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.WrapTimeout("request lookup", err)
	}
	return &request, nil
}

// ListPending retrieves requests awaiting an approver role, with an
// optional status filter.
func (r *RequestRepository) ListPending(ctx context.Context, tenantID string, approverRole policy.Role, status string, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	var requests []models.RoleChangeRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RoleChangeRequest{}).
		Where("tenant_id = ?", tenantID)

	if approverRole != "" {
		query = query.Where("required_approver_role = ?", approverRole)
	}
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	} else if status == "" {
		query = query.Where("status IN ?", models.ReviewableStatuses)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapTimeout("request count", err)
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, 0, apperrors.WrapTimeout("request list", err)
	}
	return requests, total, nil
}

// ListByRequester retrieves requests submitted by a specific user
func (r *RequestRepository) ListByRequester(ctx context.Context, tenantID string, requesterID uuid.UUID, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	var requests []models.RoleChangeRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RoleChangeRequest{}).
		Where("tenant_id = ? AND requester_id = ?", tenantID, requesterID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapTimeout("request count", err)
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, 0, apperrors.WrapTimeout("request list", err)
	}
	return requests, total, nil
}

// UpdateStatus transitions a request with an atomic compare-and-set:
// the UPDATE only matches while the row is still in one of the
// caller's expected from-states, so two concurrent transitions cannot
// both succeed. Zero rows affected means another caller won the race.
func (r *RequestRepository) UpdateStatus(ctx context.Context, request *models.RoleChangeRequest, newStatus string, fromStatuses []string, updates map[string]interface{}) error {
	if len(fromStatuses) == 0 {
		fromStatuses = models.ReviewableStatuses
	}

	fields := map[string]interface{}{
		"status":     newStatus,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		fields[k] = v
	}

	result := r.db.WithContext(ctx).Model(&models.RoleChangeRequest{}).
		Where("id = ? AND status IN ?", request.ID, fromStatuses).
		Updates(fields)
	if result.Error != nil {
		return apperrors.WrapTimeout("request status update", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewConflictError("request " + request.ID.String() + " is no longer in an expected state")
	}

	request.Status = newStatus
	return nil
}

// AppendAttachments records the stored attachment references on the
// request after the upload batch completes.
func (r *RequestRepository) AppendAttachments(ctx context.Context, id uuid.UUID, references []string) error {
	if len(references) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.RoleChangeRequest{}).
		Where("id = ?", id).
		Update("attachments", pq.StringArray(references))
	if result.Error != nil {
		return apperrors.WrapTimeout("attachment update", result.Error)
	}
	return nil
}

// GetHistory retrieves the audit entries recorded for a request.
func (r *RequestRepository) GetHistory(ctx context.Context, tenantID string, requestID uuid.UUID) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND metadata ->> 'request_id' = ?", tenantID, requestID.String()).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.WrapTimeout("audit list", err)
	}
	return entries, nil
}

// CreateAssignment inserts the assignment an approval grants. Same
// unique-constraint semantics as the assignment repository: a
// duplicate surfaces as ConflictError and rolls the transaction back.
func (r *RequestRepository) CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error {
	err := r.db.WithContext(ctx).Create(assignment).Error
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("user already holds an assignment for role " + string(assignment.Role))
		}
		return apperrors.WrapTimeout("assignment insert", err)
	}
	return nil
}

// CreateAuditLog appends an audit entry
func (r *RequestRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperrors.WrapTimeout("audit insert", err)
	}
	return nil
}

// WithTransaction executes fn within a database transaction. The
// repository passed to fn shares the transaction handle, so a failed
// step rolls back every write of the review.
func (r *RequestRepository) WithTransaction(ctx context.Context, fn func(txRepo RequestRepositoryInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RequestRepository{db: tx})
	})
}
