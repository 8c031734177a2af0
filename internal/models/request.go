package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"roles-service/internal/policy"
)

// RoleChangeRequest is a user's record of intent to move from their
// current role to another. The current role, the required approver
// role and the approval requirements are snapshotted at submission
// time and never recomputed, so a later catalog change cannot alter
// what the requester agreed to.
type RoleChangeRequest struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	RequesterID  uuid.UUID `gorm:"type:uuid;not null;index" json:"requesterId"`
	TargetUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"targetUserId"`
	Status       string    `gorm:"type:varchar(30);not null;default:'submitted';index" json:"status"`

	// Snapshot fields, immutable after creation
	CurrentRole          policy.Role    `gorm:"type:varchar(50);not null" json:"currentRole"`
	RequestedRole        policy.Role    `gorm:"type:varchar(50);not null" json:"requestedRole"`
	RequiredApproverRole policy.Role    `gorm:"type:varchar(50);not null" json:"requiredApproverRole"`
	ApprovalRequirements pq.StringArray `gorm:"type:text[]" json:"approvalRequirements"`

	// Request context
	Reason        string         `gorm:"type:text;not null" json:"reason"`
	Justification string         `gorm:"type:text" json:"justification,omitempty"`
	Attachments   pq.StringArray `gorm:"type:text[]" json:"attachments"`
	District      string         `gorm:"type:varchar(100);index" json:"district,omitempty"`

	// Review outcome
	ReviewedBy    *uuid.UUID  `gorm:"type:uuid" json:"reviewedBy,omitempty"`
	ReviewedRole  policy.Role `gorm:"type:varchar(50)" json:"reviewedRole,omitempty"`
	ReviewComment string      `gorm:"type:text" json:"reviewComment,omitempty"`
	DecidedAt     *time.Time  `json:"decidedAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for RoleChangeRequest
func (RoleChangeRequest) TableName() string {
	return "role_change_requests"
}

// Request status constants
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
)

// ReviewableStatuses are the states a review or cancellation may act
// on. Everything else is terminal.
var ReviewableStatuses = []string{StatusSubmitted, StatusUnderReview}

// IsTerminal returns true if the status is a terminal state
func (r *RoleChangeRequest) IsTerminal() bool {
	return r.Status == StatusApproved ||
		r.Status == StatusRejected ||
		r.Status == StatusCancelled
}

// AttachmentResult reports the outcome of one uploaded file in a
// submission batch. Failures are per file; the request itself is
// created regardless.
type AttachmentResult struct {
	Filename  string `json:"filename"`
	Stored    bool   `json:"stored"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}
