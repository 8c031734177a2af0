package models

import (
	"time"

	"github.com/google/uuid"

	"roles-service/internal/policy"
)

// UserRoleAssignment links a user to a role they hold. A user may hold
// multiple concurrent assignments, but at most one row per (user,
// role) — the unique index is the atomic duplicate check.
// Deactivation suspends authority without losing history; deletion is
// a hard, irreversible revoke.
type UserRoleAssignment struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID   string      `gorm:"type:varchar(255);not null;index;uniqueIndex:idx_user_role" json:"tenantId"`
	UserID     uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_role" json:"userId"`
	Role       policy.Role `gorm:"type:varchar(50);not null;uniqueIndex:idx_user_role" json:"role"`
	IsActive   bool        `gorm:"not null;default:true" json:"isActive"`
	AssignedBy uuid.UUID   `gorm:"type:uuid;not null" json:"assignedBy"`
	AssignedAt time.Time   `gorm:"autoCreateTime" json:"assignedAt"`
	District   string      `gorm:"type:varchar(100);index" json:"district,omitempty"`
	ExpiresAt  *time.Time  `json:"expiresAt,omitempty"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for UserRoleAssignment
func (UserRoleAssignment) TableName() string {
	return "user_role_assignments"
}

// IsExpired reports whether the assignment carries an expiry in the
// past.
func (a *UserRoleAssignment) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
