package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"roles-service/internal/apperrors"
	"roles-service/internal/models"
	"roles-service/internal/policy"
)

func newTestRequestService(requestRepo *MockRequestRepository, assignRepo *MockAssignmentRepository, docs *MockDocumentClient) *RequestService {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewRequestService(requestRepo, assignRepo, docs, nil, nil, logger)
}

func submittedRequest(tenantID string, requesterID uuid.UUID) *models.RoleChangeRequest {
	return &models.RoleChangeRequest{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		RequesterID:          requesterID,
		TargetUserID:         requesterID,
		Status:               models.StatusSubmitted,
		CurrentRole:          policy.RoleCommunityLeader,
		RequestedRole:        policy.RoleCommunityAdmin,
		RequiredApproverRole: policy.RoleDistrictCoordinator,
		ApprovalRequirements: pq.StringArray{"performance_evaluation", "interview_process"},
		Reason:               "served two terms as community leader",
	}
}

func TestSubmitSnapshotsPolicy(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	service := newTestRequestService(requestRepo, assignRepo, new(MockDocumentClient))

	requesterID := uuid.New()
	assignRepo.On("ListActiveRoles", mock.Anything, "tenant-1", requesterID).
		Return([]policy.Role{policy.RoleResident, policy.RoleCommunityLeader}, nil)
	requestRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.RoleChangeRequest")).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.AnythingOfType("*models.AuditLogEntry")).Return(nil)

	request, results, err := service.Submit(context.Background(), "tenant-1", requesterID, SubmitInput{
		RequestedRole: policy.RoleCommunityAdmin,
		Reason:        "served two terms as community leader",
	})

	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, models.StatusSubmitted, request.Status)
	// Highest active role wins, not the first listed.
	assert.Equal(t, policy.RoleCommunityLeader, request.CurrentRole)
	assert.Equal(t, policy.RoleDistrictCoordinator, request.RequiredApproverRole)
	assert.ElementsMatch(t, pq.StringArray{"performance_evaluation", "interview_process"}, request.ApprovalRequirements)
	requestRepo.AssertCalled(t, "CreateAuditLog", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == models.AuditActionRequestCreated
	}))
}

func TestSubmitOutsideEscalationGraph(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	service := newTestRequestService(requestRepo, assignRepo, new(MockDocumentClient))

	requesterID := uuid.New()
	assignRepo.On("ListActiveRoles", mock.Anything, "tenant-1", requesterID).
		Return([]policy.Role{policy.RoleResident}, nil)

	// resident -> community_admin skips a hop and must be rejected.
	_, _, err := service.Submit(context.Background(), "tenant-1", requesterID, SubmitInput{
		RequestedRole: policy.RoleCommunityAdmin,
		Reason:        "I want to run the community",
	})

	assert.True(t, apperrors.IsValidation(err))
	requestRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitRequiresReason(t *testing.T) {
	service := newTestRequestService(new(MockRequestRepository), new(MockAssignmentRepository), new(MockDocumentClient))

	_, _, err := service.Submit(context.Background(), "tenant-1", uuid.New(), SubmitInput{
		RequestedRole: policy.RoleCommunityLeader,
		Reason:        "   ",
	})

	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmitWithoutActiveRole(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	service := newTestRequestService(requestRepo, assignRepo, new(MockDocumentClient))

	requesterID := uuid.New()
	assignRepo.On("ListActiveRoles", mock.Anything, "tenant-1", requesterID).
		Return([]policy.Role{}, nil)

	_, _, err := service.Submit(context.Background(), "tenant-1", requesterID, SubmitInput{
		RequestedRole: policy.RoleCommunityLeader,
		Reason:        "new member application",
	})

	assert.True(t, apperrors.IsValidation(err))
	requestRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitIsolatesAttachmentFailures(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	docs := new(MockDocumentClient)
	service := newTestRequestService(requestRepo, assignRepo, docs)

	requesterID := uuid.New()
	assignRepo.On("ListActiveRoles", mock.Anything, "tenant-1", requesterID).
		Return([]policy.Role{policy.RoleResident}, nil)
	requestRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)
	requestRepo.On("AppendAttachments", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	docs.On("Store", mock.Anything, "tenant-1", requesterID, "resume.pdf", mock.Anything).Return("doc-1", nil)
	docs.On("Store", mock.Anything, "tenant-1", requesterID, "photo.png", mock.Anything).Return("doc-2", nil)
	docs.On("Store", mock.Anything, "tenant-1", requesterID, "letter.docx", mock.Anything).Return("doc-3", nil)

	oversized := make([]byte, MaxAttachmentSize+1)
	_, results, err := service.Submit(context.Background(), "tenant-1", requesterID, SubmitInput{
		RequestedRole: policy.RoleCommunityLeader,
		Reason:        "volunteer work",
		Files: []AttachmentInput{
			{Filename: "resume.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
			{Filename: "photo.png", ContentType: "image/png", Data: []byte("png")},
			{Filename: "letter.docx", Data: []byte("docx")},
			{Filename: "huge.pdf", ContentType: "application/pdf", Data: oversized},
		},
	})

	assert.NoError(t, err)
	assert.Len(t, results, 4)

	stored := 0
	for _, r := range results {
		if r.Stored {
			stored++
		}
	}
	assert.Equal(t, 3, stored)
	assert.False(t, results[3].Stored)
	assert.NotEmpty(t, results[3].Error)

	requestRepo.AssertCalled(t, "AppendAttachments", mock.Anything, mock.Anything, mock.MatchedBy(func(refs []string) bool {
		return len(refs) == 3
	}))
}

func TestSubmitRejectsDisallowedFileType(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	docs := new(MockDocumentClient)
	service := newTestRequestService(requestRepo, assignRepo, docs)

	requesterID := uuid.New()
	assignRepo.On("ListActiveRoles", mock.Anything, "tenant-1", requesterID).
		Return([]policy.Role{policy.RoleResident}, nil)
	requestRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)

	_, results, err := service.Submit(context.Background(), "tenant-1", requesterID, SubmitInput{
		RequestedRole: policy.RoleSecurity,
		Reason:        "night shift volunteer",
		Files: []AttachmentInput{
			{Filename: "malware.exe", Data: []byte("MZ")},
		},
	})

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.False(t, results[0].Stored)
	docs.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewApproveGrantsAssignment(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	assignRepo := new(MockAssignmentRepository)
	service := newTestRequestService(requestRepo, assignRepo, new(MockDocumentClient))

	requesterID := uuid.New()
	reviewerID := uuid.New()
	request := submittedRequest("tenant-1", requesterID)

	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusApproved, models.ReviewableStatuses, mock.Anything).Return(nil)
	requestRepo.On("CreateAssignment", mock.Anything, mock.MatchedBy(func(a *models.UserRoleAssignment) bool {
		return a.UserID == requesterID && a.Role == policy.RoleCommunityAdmin && a.IsActive && a.AssignedBy == reviewerID
	})).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == models.AuditActionRequestApproved
	})).Return(nil)

	result, err := service.Review(context.Background(), request.ID, DecisionApprove, reviewerID, policy.RoleDistrictCoordinator, "well earned")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, &reviewerID, result.ReviewedBy)
	assert.NotNil(t, result.DecidedAt)
	requestRepo.AssertExpectations(t)
}

func TestReviewRejectDoesNotGrant(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusRejected, models.ReviewableStatuses, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == models.AuditActionRequestRejected
	})).Return(nil)

	result, err := service.Review(context.Background(), request.ID, DecisionReject, uuid.New(), policy.RoleDistrictCoordinator, "insufficient tenure")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
	requestRepo.AssertNotCalled(t, "CreateAssignment", mock.Anything, mock.Anything)
}

func TestReviewRequiresAuthority(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	// community_admin sits below the snapshotted district_coordinator.
	_, err := service.Review(context.Background(), request.ID, DecisionApprove, uuid.New(), policy.RoleCommunityAdmin, "")

	assert.True(t, apperrors.IsValidation(err))
	requestRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHigherRoleCanActForApprover(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusRejected, models.ReviewableStatuses, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Review(context.Background(), request.ID, DecisionReject, uuid.New(), policy.RoleStateAdmin, "")

	assert.NoError(t, err)
}

func TestReviewOfDecidedRequestConflicts(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	request.Status = models.StatusApproved
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := service.Review(context.Background(), request.ID, DecisionApprove, uuid.New(), policy.RoleAdmin, "")

	assert.True(t, apperrors.IsConflict(err))
}

func TestReviewRaceLoserGetsConflict(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	// The compare-and-set finds the row already decided.
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusApproved, models.ReviewableStatuses, mock.Anything).
		Return(apperrors.NewConflictError("request is no longer in an expected state"))

	_, err := service.Review(context.Background(), request.ID, DecisionApprove, uuid.New(), policy.RoleAdmin, "")

	assert.True(t, apperrors.IsConflict(err))
	requestRepo.AssertNotCalled(t, "CreateAssignment", mock.Anything, mock.Anything)
}

func TestReviewRejectsUnknownDecision(t *testing.T) {
	service := newTestRequestService(new(MockRequestRepository), new(MockAssignmentRepository), new(MockDocumentClient))

	_, err := service.Review(context.Background(), uuid.New(), "maybe", uuid.New(), policy.RoleAdmin, "")

	assert.True(t, apperrors.IsValidation(err))
}

func TestCancelByRequester(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	requesterID := uuid.New()
	request := submittedRequest("tenant-1", requesterID)
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusCancelled, models.ReviewableStatuses, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == models.AuditActionRequestCancelled
	})).Return(nil)

	result, err := service.Cancel(context.Background(), request.ID, requesterID)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, result.Status)
}

func TestCancelByAnotherUserRejected(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := service.Cancel(context.Background(), request.ID, uuid.New())

	assert.True(t, apperrors.IsValidation(err))
	requestRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelDecidedRequestConflicts(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	requesterID := uuid.New()
	request := submittedRequest("tenant-1", requesterID)
	request.Status = models.StatusRejected
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := service.Cancel(context.Background(), request.ID, requesterID)

	assert.True(t, apperrors.IsConflict(err))
}

func TestStartReviewMovesToUnderReview(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusUnderReview, []string{models.StatusSubmitted}, mock.Anything).Return(nil)
	requestRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == models.AuditActionRequestUnderReview
	})).Return(nil)

	result, err := service.StartReview(context.Background(), request.ID, uuid.New(), policy.RoleDistrictCoordinator)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, result.Status)
}

func TestStartReviewRaceLoserGetsConflict(t *testing.T) {
	requestRepo := new(MockRequestRepository)
	service := newTestRequestService(requestRepo, new(MockAssignmentRepository), new(MockDocumentClient))

	request := submittedRequest("tenant-1", uuid.New())
	requestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	// Another reviewer claimed the request between the read and the update,
	// so the compare-and-set no longer finds it submitted.
	requestRepo.On("UpdateStatus", mock.Anything, request, models.StatusUnderReview, []string{models.StatusSubmitted}, mock.Anything).
		Return(apperrors.NewConflictError("request is no longer in an expected state"))

	_, err := service.StartReview(context.Background(), request.ID, uuid.New(), policy.RoleDistrictCoordinator)

	assert.True(t, apperrors.IsConflict(err))
	requestRepo.AssertNotCalled(t, "CreateAuditLog", mock.Anything, mock.Anything)
}
