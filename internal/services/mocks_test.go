package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/repository"
)

// MockAssignmentRepository is a mock implementation of AssignmentRepositoryInterface
type MockAssignmentRepository struct {
	mock.Mock
}

var _ repository.AssignmentRepositoryInterface = (*MockAssignmentRepository)(nil)

func (m *MockAssignmentRepository) Create(ctx context.Context, assignment *models.UserRoleAssignment) error {
	args := m.Called(ctx, assignment)
	if args.Error(0) == nil && assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockAssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserRoleAssignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserRoleAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListByUser(ctx context.Context, tenantID string, userID uuid.UUID) ([]models.UserRoleAssignment, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Get(0).([]models.UserRoleAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListActiveRoles(ctx context.Context, tenantID string, userID uuid.UUID) ([]policy.Role, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]policy.Role), args.Error(1)
}

func (m *MockAssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAssignmentRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockAssignmentRepository) DeactivateExpired(ctx context.Context) ([]models.UserRoleAssignment, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.UserRoleAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAssignmentRepository) ListAuditLogs(ctx context.Context, tenantID string, filters repository.AuditFilters, limit, offset int) ([]models.AuditLogEntry, int64, error) {
	args := m.Called(ctx, tenantID, filters, limit, offset)
	return args.Get(0).([]models.AuditLogEntry), args.Get(1).(int64), args.Error(2)
}

// MockPermissionRepository is a mock implementation of PermissionRepositoryInterface
type MockPermissionRepository struct {
	mock.Mock
}

var _ repository.PermissionRepositoryInterface = (*MockPermissionRepository)(nil)

func (m *MockPermissionRepository) Get(ctx context.Context, tenantID string, role policy.Role, module string) (*models.ModulePermission, error) {
	args := m.Called(ctx, tenantID, role, module)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModulePermission), args.Error(1)
}

func (m *MockPermissionRepository) SetCapability(ctx context.Context, tenantID string, role policy.Role, module string, cap models.Capability, value bool) (*models.ModulePermission, error) {
	args := m.Called(ctx, tenantID, role, module, cap, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModulePermission), args.Error(1)
}

func (m *MockPermissionRepository) ListForRoles(ctx context.Context, tenantID string, roles []policy.Role, module string) ([]models.ModulePermission, error) {
	args := m.Called(ctx, tenantID, roles, module)
	return args.Get(0).([]models.ModulePermission), args.Error(1)
}

func (m *MockPermissionRepository) ListByRole(ctx context.Context, tenantID string, role policy.Role) ([]models.ModulePermission, error) {
	args := m.Called(ctx, tenantID, role)
	return args.Get(0).([]models.ModulePermission), args.Error(1)
}

// MockRequestRepository is a mock implementation of RequestRepositoryInterface
type MockRequestRepository struct {
	mock.Mock
}

var _ repository.RequestRepositoryInterface = (*MockRequestRepository)(nil)

func (m *MockRequestRepository) Create(ctx context.Context, request *models.RoleChangeRequest) error {
	args := m.Called(ctx, request)
	if args.Error(0) == nil && request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RoleChangeRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleChangeRequest), args.Error(1)
}

func (m *MockRequestRepository) ListPending(ctx context.Context, tenantID string, approverRole policy.Role, status string, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	args := m.Called(ctx, tenantID, approverRole, status, limit, offset)
	return args.Get(0).([]models.RoleChangeRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequestRepository) ListByRequester(ctx context.Context, tenantID string, requesterID uuid.UUID, limit, offset int) ([]models.RoleChangeRequest, int64, error) {
	args := m.Called(ctx, tenantID, requesterID, limit, offset)
	return args.Get(0).([]models.RoleChangeRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequestRepository) UpdateStatus(ctx context.Context, request *models.RoleChangeRequest, newStatus string, fromStatuses []string, updates map[string]interface{}) error {
	args := m.Called(ctx, request, newStatus, fromStatuses, updates)
	if args.Error(0) == nil {
		request.Status = newStatus
	}
	return args.Error(0)
}

func (m *MockRequestRepository) AppendAttachments(ctx context.Context, id uuid.UUID, references []string) error {
	args := m.Called(ctx, id, references)
	return args.Error(0)
}

func (m *MockRequestRepository) GetHistory(ctx context.Context, tenantID string, requestID uuid.UUID) ([]models.AuditLogEntry, error) {
	args := m.Called(ctx, tenantID, requestID)
	return args.Get(0).([]models.AuditLogEntry), args.Error(1)
}

func (m *MockRequestRepository) CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockRequestRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// WithTransaction executes the callback with the mock itself standing
// in for the transaction repository.
func (m *MockRequestRepository) WithTransaction(ctx context.Context, fn func(txRepo repository.RequestRepositoryInterface) error) error {
	return fn(m)
}

// MockDocumentClient is a mock implementation of DocumentClientInterface
type MockDocumentClient struct {
	mock.Mock
}

func (m *MockDocumentClient) Store(ctx context.Context, tenantID string, ownerID uuid.UUID, filename string, data []byte) (string, error) {
	args := m.Called(ctx, tenantID, ownerID, filename, data)
	return args.String(0), args.Error(1)
}
