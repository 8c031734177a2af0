package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"roles-service/internal/policy"
)

// AuditLogEntry records a single role mutation. Rows are append-only:
// they are written alongside every mutation and never updated or
// deleted afterwards.
type AuditLogEntry struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID    string         `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	Action      string         `gorm:"type:varchar(50);not null;index" json:"action"`
	OldRole     policy.Role    `gorm:"type:varchar(50)" json:"oldRole,omitempty"`
	NewRole     policy.Role    `gorm:"type:varchar(50)" json:"newRole,omitempty"`
	PerformedBy uuid.UUID      `gorm:"type:uuid;not null;index" json:"performedBy"`
	Reason      string         `gorm:"type:text" json:"reason,omitempty"`
	District    string         `gorm:"type:varchar(100);index" json:"district,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for AuditLogEntry
func (AuditLogEntry) TableName() string {
	return "role_audit_log"
}

// Audit action constants
const (
	AuditActionAssigned           = "assigned"
	AuditActionRevoked            = "revoked"
	AuditActionActivated          = "activated"
	AuditActionDeactivated        = "deactivated"
	AuditActionPermissionChanged  = "permission_changed"
	AuditActionRequestCreated     = "request_created"
	AuditActionRequestUnderReview = "request_under_review"
	AuditActionRequestApproved    = "request_approved"
	AuditActionRequestRejected    = "request_rejected"
	AuditActionRequestCancelled   = "request_cancelled"
)
